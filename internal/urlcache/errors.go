// ABOUTME: Error values returned by the URL normalizer and the URL cache
// ABOUTME: Sentinels are matched with errors.Is; URLError carries the offending URL

package urlcache

import (
	"errors"
	"fmt"
)

var (
	// ErrInvalidURL is returned when a URL is not a well-formed absolute URL.
	ErrInvalidURL = errors.New("invalid URL")

	// ErrNoDomain is returned when a URL parses but has no domain name.
	ErrNoDomain = errors.New("URL has no domain")

	// ErrStorageRead is returned by Load when stored state exists but cannot be read.
	ErrStorageRead = errors.New("reading URL cache")

	// ErrStorageWrite is returned by Save when state cannot be persisted.
	ErrStorageWrite = errors.New("writing URL cache")

	// ErrCacheState is returned when cache operations are called out of order.
	ErrCacheState = errors.New("URL cache used out of order")
)

// URLError reports a URL that could not be normalized.
type URLError struct {
	URL   string
	Err   error // ErrInvalidURL or ErrNoDomain
	Cause error // parser error, if any
}

func (e *URLError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%v: %q: %v", e.Err, e.URL, e.Cause)
	}
	return fmt.Sprintf("%v: %q", e.Err, e.URL)
}

func (e *URLError) Unwrap() []error {
	if e.Cause != nil {
		return []error{e.Err, e.Cause}
	}
	return []error{e.Err}
}
