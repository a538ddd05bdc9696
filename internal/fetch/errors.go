package fetch

import (
	"errors"
	"fmt"
)

// ErrorKind classifies fetch failures. The distinction matters to callers:
// both kinds abort a refresh, but the operator-facing summary names them
// differently.
type ErrorKind string

const (
	// KindFetchFailed covers transport errors, timeouts, non-2xx statuses,
	// local-file I/O errors, and unresolved ${VAR} placeholders.
	KindFetchFailed ErrorKind = "fetch_failed"
	// KindParseFailed means bytes were retrieved but were malformed.
	KindParseFailed ErrorKind = "parse_failed"
)

// Resource names for Error.Resource.
const (
	ResourcePlaylist = "playlist"
	ResourceGuide    = "guide"
)

// Error is a classified fetch failure.
type Error struct {
	Kind     ErrorKind
	Resource string
	Err      error
}

// Error implements the error interface.
func (e *Error) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Resource, e.Kind, e.Err)
}

// Unwrap returns the underlying error.
func (e *Error) Unwrap() error {
	return e.Err
}

// KindOf returns the fetch error kind of err, or empty when err is not a
// fetch error.
func KindOf(err error) ErrorKind {
	var fe *Error
	if errors.As(err, &fe) {
		return fe.Kind
	}
	return ""
}
