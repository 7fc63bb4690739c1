package scraper

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// ErrorKind classifies a failed fetch.
type ErrorKind string

const (
	// KindTimeout is a request that exceeded its deadline.
	KindTimeout ErrorKind = "timeout"
	// KindConnection is a dial, reset or other network failure.
	KindConnection ErrorKind = "connection"
	// KindForbidden is a 403 response.
	KindForbidden ErrorKind = "forbidden"
	// KindNotFound is a 404 response.
	KindNotFound ErrorKind = "not_found"
	// KindRateLimited is a 429 response.
	KindRateLimited ErrorKind = "rate_limited"
	// KindServer is a 5xx response.
	KindServer ErrorKind = "server"
	// KindParse is a body that could not be read as HTML.
	KindParse ErrorKind = "parse"
	// KindOther is anything not covered above.
	KindOther ErrorKind = "other"
)

// FetchError is returned when a page could not be fetched or parsed.
type FetchError struct {
	Kind   ErrorKind
	URL    string
	Status int
	Err    error
}

func (e *FetchError) Error() string {
	if e.Status != 0 {
		return fmt.Sprintf("%s: %s (status %d): %v", e.Kind, e.URL, e.Status, e.Err)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.URL, e.Err)
}

func (e *FetchError) Unwrap() error {
	return e.Err
}

// Retryable reports whether another attempt could succeed.
func (e *FetchError) Retryable() bool {
	switch e.Kind {
	case KindTimeout, KindConnection, KindRateLimited, KindServer:
		return true
	default:
		return false
	}
}

func errorTypeLabel(err error) string {
	if err == nil {
		return "unknown"
	}
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return string(fetchErr.Kind)
	}
	return string(KindOther)
}

func classifyError(target string, err error, statusCode int) error {
	if err == nil && statusCode == 0 {
		return nil
	}

	wrapped := err
	if wrapped == nil {
		wrapped = fmt.Errorf("http status %d", statusCode)
	}
	fetchErr := &FetchError{URL: target, Status: statusCode, Err: wrapped, Kind: KindOther}

	var netErr net.Error
	var opErr *net.OpError
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		fetchErr.Kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		fetchErr.Kind = KindTimeout
	case errors.As(err, &opErr):
		fetchErr.Kind = KindConnection
	case statusCode == http.StatusForbidden:
		fetchErr.Kind = KindForbidden
	case statusCode == http.StatusNotFound:
		fetchErr.Kind = KindNotFound
	case statusCode == http.StatusTooManyRequests:
		fetchErr.Kind = KindRateLimited
	case statusCode >= http.StatusInternalServerError:
		fetchErr.Kind = KindServer
	}
	return fetchErr
}
