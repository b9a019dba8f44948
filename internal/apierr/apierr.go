// Package apierr defines typed errors with categories so callers can tell
// a bad construction argument from a failed remote call.
package apierr

import (
	"errors"
	"fmt"

	"github.com/hyperjump/aibridge/pkg/utils"
)

// Kind is a machine-readable error category.
type Kind string

const (
	// Config indicates invalid construction-time arguments.
	Config Kind = "config"
	// Transport indicates a network or HTTP-level failure.
	Transport Kind = "transport"
	// Decode indicates a remote payload that could not be interpreted.
	Decode Kind = "decode"
	// Unsupported indicates an operation the target index does not allow.
	Unsupported Kind = "unsupported"
)

// E wraps an error with kind and human-friendly message.
type E struct {
	Kind    Kind
	Message string
	Err     error
}

func (e *E) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %s: %v", e.Kind, e.Message, e.Err)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

func (e *E) Unwrap() error { return e.Err }

func Wrap(kind Kind, msg string, err error) *E { return &E{Kind: kind, Message: msg, Err: err} }
func New(kind Kind, msg string) *E             { return &E{Kind: kind, Message: msg} }

// Newf builds an E with a formatted message.
func Newf(kind Kind, format string, args ...any) *E {
	return &E{Kind: kind, Message: fmt.Sprintf(format, args...)}
}

// KindOf returns the kind of the first *E in err's chain, or "" when none.
func KindOf(err error) Kind {
	var e *E
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}

// IsKind reports whether err carries the given kind.
func IsKind(err error, kind Kind) bool {
	return KindOf(err) == kind
}

// maxBodyExcerpt bounds how much of an error response body is kept.
const maxBodyExcerpt = 512

// HTTPError is a non-2xx response from a remote endpoint.
type HTTPError struct {
	Method     string
	Path       string
	StatusCode int
	Body       string
}

func (e *HTTPError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("%s %s: status %d", e.Method, e.Path, e.StatusCode)
	}
	return fmt.Sprintf("%s %s: status %d: %s", e.Method, e.Path, e.StatusCode, e.Body)
}

// NewHTTPError returns a transport-kind error for a failed response.
func NewHTTPError(method, path string, status int, body []byte) error {
	httpErr := &HTTPError{
		Method:     method,
		Path:       path,
		StatusCode: status,
		Body:       utils.Truncate(string(body), maxBodyExcerpt),
	}
	return Wrap(Transport, "remote call failed", httpErr)
}
