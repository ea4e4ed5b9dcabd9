package client

import (
	"errors"
	"fmt"

	"github.com/Sternrassler/results-ingest/pkg/endpoint"
	"github.com/Sternrassler/results-ingest/pkg/query"
)

// Common errors returned by the client.
var (
	// ErrRetryExhausted is wrapped by a PermanentFailure once every attempt failed.
	ErrRetryExhausted = errors.New("retry attempts exhausted")
)

// ErrorKind separates failures of the exchange from failures of the payload.
type ErrorKind string

const (
	// KindTransport covers connection failures, timeouts, body read failures and non-2xx statuses.
	KindTransport ErrorKind = "transport"

	// KindDecode covers bodies that are not a valid results document.
	KindDecode ErrorKind = "decode"
)

// ErrorClass is the finer classification used for logs and metrics.
type ErrorClass string

const (
	// ErrorClassNetwork represents network/timeout errors.
	ErrorClassNetwork ErrorClass = "network"

	// ErrorClassStatus represents non-2xx upstream responses.
	ErrorClassStatus ErrorClass = "status"

	// ErrorClassDecode represents bodies that are well-formed text but not a results document.
	ErrorClassDecode ErrorClass = "decode"

	// ErrorClassCorrupt represents byte-level malformed bodies (not UTF-8).
	ErrorClassCorrupt ErrorClass = "corrupt"

	// ErrorClassDiscovery represents a failed endpoint discovery.
	ErrorClassDiscovery ErrorClass = "discovery"

	// ErrorClassCancelled represents a run cancelled while retrying.
	ErrorClassCancelled ErrorClass = "cancelled"
)

// FetchError is the failure of a single fetch attempt.
type FetchError struct {
	Kind       ErrorKind
	Corrupt    bool
	StatusCode int
	Endpoint   string
	Query      string
	Err        error
}

// Error implements the error interface.
func (e *FetchError) Error() string {
	msg := fmt.Sprintf("fetch %s%s: %s error", e.Endpoint, e.Query, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Corrupt {
		msg += " (corrupt body)"
	}
	if e.Err != nil {
		msg += fmt.Sprintf(": %v", e.Err)
	}
	return msg
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *FetchError) Unwrap() error {
	return e.Err
}

// Class returns the error class for logs and metrics.
func (e *FetchError) Class() ErrorClass {
	switch {
	case e.Kind == KindDecode && e.Corrupt:
		return ErrorClassCorrupt
	case e.Kind == KindDecode:
		return ErrorClassDecode
	case e.StatusCode != 0:
		return ErrorClassStatus
	default:
		return ErrorClassNetwork
	}
}

// PermanentFailure reports that a query could not be fetched.
type PermanentFailure struct {
	Query    query.Query
	Attempts int
	Err      error
}

// Error implements the error interface.
func (e *PermanentFailure) Error() string {
	return fmt.Sprintf("query %s failed permanently after %d attempt(s): %v", e.Query.Path, e.Attempts, e.Err)
}

// Unwrap implements error unwrapping for errors.Is/As.
func (e *PermanentFailure) Unwrap() error {
	return e.Err
}

// Class returns the error class of the underlying cause.
func (e *PermanentFailure) Class() ErrorClass {
	return classOf(e.Err)
}

// shouldRetry reports whether a failed attempt may be retried on another endpoint.
// Corrupt bodies are not retried: the same content is served by every endpoint.
func shouldRetry(err error) bool {
	var fetchErr *FetchError
	if !errors.As(err, &fetchErr) {
		return false
	}
	return !(fetchErr.Kind == KindDecode && fetchErr.Corrupt)
}

func classOf(err error) ErrorClass {
	var fetchErr *FetchError
	if errors.As(err, &fetchErr) {
		return fetchErr.Class()
	}
	var discErr *endpoint.DiscoveryError
	if errors.As(err, &discErr) {
		return ErrorClassDiscovery
	}
	return ErrorClassCancelled
}
