package connectors

import (
	"context"
	"fmt"
	"io"
	"net/url"
	"os"
	"path/filepath"
)

// FileConnector serves file:// URLs, which lets a mirror live on disk.
// A URL of the form file://./rel/path is resolved against BaseDir, or
// the working directory when BaseDir is empty.
type FileConnector struct {
	BaseDir string
}

func (c *FileConnector) Path(rawURL string) (string, error) {
	// Example: file:///path/to/file or file://./relative/file
	parsed, err := url.Parse(rawURL)
	if err != nil {
		return "", err
	}
	if parsed.Scheme != FileScheme {
		return "", fmt.Errorf("%w: %q", ErrUnsupportedScheme, parsed.Scheme)
	}

	switch parsed.Host {
	case "", "localhost":
		return filepath.FromSlash(parsed.Path), nil
	case ".":
		base := c.BaseDir
		if base == "" {
			if base, err = os.Getwd(); err != nil {
				return "", err
			}
		}
		return filepath.Join(base, filepath.FromSlash(parsed.Path)), nil
	}
	return "", fmt.Errorf("file url %q names a remote host", rawURL)
}

func (c *FileConnector) Fetch(ctx context.Context, rawURL string) ([]byte, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}

	p, err := c.Path(rawURL)
	if err != nil {
		return nil, err
	}

	f, err := os.Open(p)
	if err != nil {
		return nil, err
	}
	defer f.Close()

	// If we know the size, preallocate
	if st, err := f.Stat(); err == nil && st.Size() > 0 {
		buf := make([]byte, st.Size())
		if _, err := io.ReadFull(f, buf); err != nil {
			return nil, err
		}
		return buf, nil
	}
	return io.ReadAll(f)
}

func (c *FileConnector) Scheme() string {
	return FileScheme
}

func (c *FileConnector) Close() error {
	return nil
}
