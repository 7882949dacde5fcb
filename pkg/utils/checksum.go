package utils

import (
	"crypto/sha1"
	"crypto/sha256"
	"encoding/hex"
	"io"
	"os"
	"strings"
)

func BytesSHA1(data []byte) string {
	h := sha1.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

func BytesSHA256(data []byte) string {
	h := sha256.New()
	h.Write(data)
	return hex.EncodeToString(h.Sum(nil))
}

// FileSHA1 hashes the file at path without loading it in memory.
func FileSHA1(path string) (string, error) {
	f, err := os.Open(path)
	if err != nil {
		return "", err
	}
	defer f.Close()
	return ReaderSHA1(f)
}

func ReaderSHA1(r io.Reader) (string, error) {
	h := sha1.New()
	if _, err := io.Copy(h, r); err != nil {
		return "", err
	}
	return hex.EncodeToString(h.Sum(nil)), nil
}

// SameHash compares hex digests case-insensitively.
func SameHash(a, b string) bool {
	return strings.EqualFold(a, b)
}

// HasFileWithSHA1 reports whether path exists and hashes to sha.
func HasFileWithSHA1(path, sha string) bool {
	actual, err := FileSHA1(path)
	if err != nil {
		return false
	}
	return SameHash(actual, sha)
}
