package scraper

import (
	"errors"
	"fmt"
)

// HostMismatchError indicates a source link whose host has no registered adapter.
type HostMismatchError struct {
	URL  string
	Host string
}

func (e *HostMismatchError) Error() string {
	return fmt.Sprintf("no adapter for host %q: %s", e.Host, e.URL)
}

// HTTPError indicates a non-OK response from a source site.
type HTTPError struct {
	URL  string
	Code int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("HTTP %d: %s", e.Code, e.URL)
}

// ParseError indicates a page that fetched fine but could not be parsed into a
// price sample. Retrying the same document will not help.
type ParseError struct {
	URL  string
	What string
}

func (e *ParseError) Error() string {
	return fmt.Sprintf("parse %s: %s", e.What, e.URL)
}

// ConnectionError wraps transport-level failures, including timeouts.
type ConnectionError struct {
	URL string
	Err error
}

func (e *ConnectionError) Error() string {
	return fmt.Sprintf("connection failed: %s: %v", e.URL, e.Err)
}

func (e *ConnectionError) Unwrap() error { return e.Err }

// IsHostMismatch checks if an error is a host mismatch error.
func IsHostMismatch(err error) bool {
	var mismatch *HostMismatchError
	return errors.As(err, &mismatch)
}

// IsParseError checks if an error is a parse error.
func IsParseError(err error) bool {
	var parse *ParseError
	return errors.As(err, &parse)
}
