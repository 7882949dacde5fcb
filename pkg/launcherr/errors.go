// Package launcherr holds the error taxonomy shared by the resolve, download,
// argument and launch stages.
//
// Every error returned by those stages matches exactly one of the sentinel
// kinds below with errors.Is, and unwraps to its underlying cause.
package launcherr

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidInput = errors.New("invalid input")
	ErrChecksum     = errors.New("checksum failure")
	ErrTask         = errors.New("task failure")
	ErrIO           = errors.New("io failure")
	ErrProcess      = errors.New("process failure")
	ErrParse        = errors.New("parse failure")
	ErrFetch        = errors.New("fetch failure")
)

// Error is the generic carrier for kinds without extra fields.
type Error struct {
	Kind error
	Msg  string
	Err  error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := e.Kind.Error()
	if e.Msg != "" {
		msg = fmt.Sprintf("%s: %s", msg, e.Msg)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

func (e *Error) Is(target error) bool { return target == e.Kind }

func (e *Error) Unwrap() error { return e.Err }

// ChecksumError is returned once every allowed attempt produced bytes that
// did not hash to Hash.
type ChecksumError struct {
	URL   string
	Hash  string
	Tries int
	Err   error // last attempt failure, if any
}

func (e *ChecksumError) Error() string {
	msg := fmt.Sprintf("checksum failure: %s did not match sha1 %s after %d tries", e.URL, e.Hash, e.Tries)
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

func (e *ChecksumError) Is(target error) bool { return target == ErrChecksum }

func (e *ChecksumError) Unwrap() error { return e.Err }

// ProcessError reports a spawn or wait failure of a child process.
type ProcessError struct {
	Process string
	Err     error
}

func (e *ProcessError) Error() string {
	return fmt.Sprintf("process failure: %s: %v", e.Process, e.Err)
}

func (e *ProcessError) Is(target error) bool { return target == ErrProcess }

func (e *ProcessError) Unwrap() error { return e.Err }

// FetchError reports a transport failure while fetching Item.
type FetchError struct {
	Item string
	Err  error
}

func (e *FetchError) Error() string {
	return fmt.Sprintf("unable to fetch %s: %v", e.Item, e.Err)
}

func (e *FetchError) Is(target error) bool { return target == ErrFetch }

func (e *FetchError) Unwrap() error { return e.Err }

func InvalidInputf(format string, args ...any) error {
	return &Error{Kind: ErrInvalidInput, Msg: fmt.Sprintf(format, args...)}
}

func Parsef(format string, args ...any) error {
	return &Error{Kind: ErrParse, Msg: fmt.Sprintf(format, args...)}
}

// Parse wraps a decoding failure of what.
func Parse(what string, err error) error {
	return &Error{Kind: ErrParse, Msg: what, Err: err}
}

// IO wraps a filesystem failure on path.
func IO(path string, err error) error {
	return &Error{Kind: ErrIO, Msg: path, Err: err}
}

// Task wraps a failure of a concurrent unit of work.
func Task(name string, err error) error {
	return &Error{Kind: ErrTask, Msg: name, Err: err}
}

func Fetch(item string, err error) error {
	return &FetchError{Item: item, Err: err}
}
