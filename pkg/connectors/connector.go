package connectors

import (
	"context"
	"errors"
	"fmt"
	"net/url"
	"sync"
	"time"
)

const (
	HTTPScheme  = "http"
	HTTPSScheme = "https"
	FileScheme  = "file"
	SFTPScheme  = "sftp"
)

// Fetcher retrieves the full content addressed by a URL.
type Fetcher interface {
	Fetch(ctx context.Context, rawURL string) ([]byte, error)
}

type Connector interface {
	Fetcher

	Scheme() string // http, file, sftp
	Close() error
}

var ErrUnsupportedScheme = errors.New("unsupported url scheme")

// Mux routes a fetch to the connector registered for the URL scheme.
// SFTP connectors are created per user@host:port on first use and kept
// open until Close.
type Mux struct {
	HTTP *HTTPConnector
	File *FileConnector

	SFTPPoolSize int

	mu   sync.Mutex
	sftp map[string]*SFTPConnector
}

func NewMux(timeout time.Duration, userAgent string) *Mux {
	return &Mux{
		HTTP:         NewHTTPConnector(timeout, userAgent),
		File:         &FileConnector{},
		SFTPPoolSize: defaultPoolSize,
		sftp:         make(map[string]*SFTPConnector),
	}
}

func (m *Mux) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	c, err := m.connectorFor(rawURL)
	if err != nil {
		return nil, err
	}
	return c.Fetch(ctx, rawURL)
}

func (m *Mux) connectorFor(rawURL string) (Connector, error) {
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parse url %q: %w", rawURL, err)
	}

	switch parsed.Scheme {
	case HTTPScheme, HTTPSScheme:
		return m.HTTP, nil
	case FileScheme:
		return m.File, nil
	case SFTPScheme:
		key := parsed.User.String() + "@" + parsed.Host
		m.mu.Lock()
		defer m.mu.Unlock()
		if m.sftp == nil {
			m.sftp = make(map[string]*SFTPConnector)
		}
		c, ok := m.sftp[key]
		if !ok {
			c = NewSFTPConnectorFromURL(parsed)
			if m.SFTPPoolSize > 0 {
				c.SetPoolSize(m.SFTPPoolSize)
			}
			m.sftp[key] = c
		}
		return c, nil
	}
	return nil, fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
}

// Close releases every open SFTP session.
func (m *Mux) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	var errs []error
	for key, c := range m.sftp {
		if err := c.Close(); err != nil {
			errs = append(errs, err)
		}
		delete(m.sftp, key)
	}
	return errors.Join(errs...)
}
