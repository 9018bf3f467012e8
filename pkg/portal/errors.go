package portal

import (
	"fmt"
	"net/http"
	"strings"

	"github.com/pkg/errors"
)

var (
	// ErrAuthentication means the credentials were rejected. Never retried.
	ErrAuthentication = errors.New("authentication failed")
	// ErrTooManyTokens means the request exceeds the model or service limits,
	// or is malformed. Never retried.
	ErrTooManyTokens = errors.New("too many tokens")
	// ErrServiceUnavailable means the retry budget was spent, or the account
	// quota is exhausted.
	ErrServiceUnavailable = errors.New("service unavailable")
	// ErrInvalidRequest means the call combines options that can not work,
	// such as an unknown transport.
	ErrInvalidRequest = errors.New("invalid request")
	// ErrMissingAPIKey is the construction error for an unresolvable key. It
	// also matches ErrInvalidRequest.
	ErrMissingAPIKey = errors.Wrap(ErrInvalidRequest, "missing API key")
)

// APIError is the classified failure of a completion call. Kind is one of the
// sentinel errors above, so errors.Is(err, ErrTooManyTokens) works on it.
type APIError struct {
	Kind       error
	StatusCode int
	Code       string
	Message    string
	// Attempts is the number of network attempts made before giving up.
	Attempts int
	Err      error
}

func (e *APIError) Error() string {
	var sb strings.Builder
	sb.WriteString(e.Kind.Error())
	if e.StatusCode != 0 {
		fmt.Fprintf(&sb, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		sb.WriteString(": ")
		sb.WriteString(e.Message)
	}
	if e.Attempts > 0 {
		fmt.Fprintf(&sb, " after %d attempt(s)", e.Attempts)
	}
	return sb.String()
}

func (e *APIError) Is(target error) bool {
	return target == e.Kind
}

func (e *APIError) Unwrap() error {
	return e.Err
}

// StatusError is a non-2xx response, as reported by either transport.
type StatusError struct {
	StatusCode int
	Code       string
	Type       string
	Message    string
}

func (e *StatusError) Error() string {
	msg := e.Message
	if msg == "" {
		msg = http.StatusText(e.StatusCode)
	}
	return fmt.Sprintf("status %d: %s", e.StatusCode, msg)
}

type failureClass int

const (
	failureTransient failureClass = iota
	failureRateLimited
	failureFatal
)

func (c failureClass) String() string {
	switch c {
	case failureRateLimited:
		return "rate-limited"
	case failureFatal:
		return "fatal"
	default:
		return "transient"
	}
}

// classify maps a transport error onto the retry policy. Fatal failures come
// back as *APIError; other errors are returned unchanged.
func classify(err error) (failureClass, error) {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return failureFatal, apiErr
	}

	var se *StatusError
	if !errors.As(err, &se) {
		return failureTransient, err
	}

	fatal := func(kind error, message string) (failureClass, error) {
		if se.Message != "" {
			message = message + ": " + se.Message
		}
		return failureFatal, &APIError{
			Kind:       kind,
			StatusCode: se.StatusCode,
			Code:       se.Code,
			Message:    message,
			Err:        se,
		}
	}

	switch se.StatusCode {
	case http.StatusBadRequest, http.StatusRequestEntityTooLarge, http.StatusUnprocessableEntity:
		return fatal(ErrTooManyTokens, "request rejected")
	case http.StatusUnauthorized:
		return fatal(ErrAuthentication, "incorrect or missing API key")
	case http.StatusForbidden:
		return fatal(ErrAuthentication, "operation not allowed")
	case http.StatusTooManyRequests:
		if se.Code == "insufficient_quota" || se.Type == "insufficient_quota" {
			return fatal(ErrServiceUnavailable, "quota exceeded")
		}
		return failureRateLimited, se
	}

	return failureTransient, se
}
