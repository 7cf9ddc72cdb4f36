// Package safeio holds bounded I/O and path helpers shared by the network
// and report code.
package safeio

import (
	"errors"
	"fmt"
	"io"
	"net/url"
	"path/filepath"
	"strings"
)

// MaxResponseBody is the default cap for HTTP response body reads (1 MiB).
const MaxResponseBody int64 = 1 << 20

// ErrPathTraversal is returned when a file name escapes its base directory.
var ErrPathTraversal = errors.New("safeio: path traversal detected")

// ErrUnsafeScheme is returned when a page URL is not http or https.
var ErrUnsafeScheme = errors.New("safeio: only http and https schemes are allowed")

// LimitedReadAll reads at most maxBytes from r and fails if r holds more.
func LimitedReadAll(r io.Reader, maxBytes int64) ([]byte, error) {
	data, err := io.ReadAll(io.LimitReader(r, maxBytes+1))
	if err != nil {
		return nil, err
	}
	if int64(len(data)) > maxBytes {
		return nil, fmt.Errorf("safeio: body exceeds %d bytes", maxBytes)
	}
	return data, nil
}

// ValidatePageURL checks that rawURL is an absolute http(s) URL with a host.
func ValidatePageURL(rawURL string) error {
	u, err := url.Parse(rawURL)
	if err != nil {
		return fmt.Errorf("safeio: invalid URL: %w", err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return ErrUnsafeScheme
	}
	if u.Hostname() == "" {
		return errors.New("safeio: URL has no host")
	}
	return nil
}

// Join returns base/name, refusing names that leave base.
func Join(base, name string) (string, error) {
	if name == "" || strings.Contains(name, "..") || strings.ContainsAny(name, `/\`) {
		return "", ErrPathTraversal
	}
	return filepath.Join(base, name), nil
}
