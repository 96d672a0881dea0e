package parser

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

var (
	// ErrNotInitialized is returned without making a call when no generator
	// is configured.
	ErrNotInitialized = errors.New("parser not initialized")
	// ErrMalformed is returned when the response is not a JSON array of
	// complete items.
	ErrMalformed = errors.New("malformed parser response")
	// ErrMisaligned is returned when the response does not hold exactly one
	// item per input line.
	ErrMisaligned = errors.New("parser response does not match input lines")
)

// ErrorKind is the coarse classification recorded for every failed call.
type ErrorKind string

const (
	KindAuth           ErrorKind = "auth"
	KindRateLimit      ErrorKind = "rate_limit"
	KindNetwork        ErrorKind = "network"
	KindTimeout        ErrorKind = "timeout"
	KindMalformed      ErrorKind = "malformed_response"
	KindNotInitialized ErrorKind = "not_initialized"
	KindUpstream       ErrorKind = "upstream"
)

// Error is returned by Parse for every failure.
type Error struct {
	Kind ErrorKind
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("parser %s: %v", e.Kind, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// StatusError carries an HTTP status from a generator backend so callers
// can classify failures without knowing the SDK.
type StatusError struct {
	Code    int
	Message string
}

func (e *StatusError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("upstream status %d", e.Code)
	}
	return fmt.Sprintf("upstream status %d: %s", e.Code, e.Message)
}

// Classify maps an error to its ErrorKind.
func Classify(err error) ErrorKind {
	var pe *Error
	if errors.As(err, &pe) {
		return pe.Kind
	}

	switch {
	case errors.Is(err, ErrNotInitialized):
		return KindNotInitialized
	case errors.Is(err, ErrMalformed), errors.Is(err, ErrMisaligned):
		return KindMalformed
	case errors.Is(err, context.DeadlineExceeded):
		return KindTimeout
	}

	var se *StatusError
	if errors.As(err, &se) {
		switch se.Code {
		case http.StatusUnauthorized, http.StatusForbidden:
			return KindAuth
		case http.StatusTooManyRequests:
			return KindRateLimit
		case http.StatusRequestTimeout, http.StatusGatewayTimeout:
			return KindTimeout
		default:
			return KindUpstream
		}
	}

	var ne net.Error
	if errors.As(err, &ne) {
		if ne.Timeout() {
			return KindTimeout
		}
		return KindNetwork
	}
	return KindUpstream
}
