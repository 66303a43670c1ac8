package contentsync

import (
	"errors"
	"fmt"
	"net/http"
)

// ErrNotFound is returned by ResolveRevision when no object exists at the path.
// It is an expected outcome, not a failure.
var ErrNotFound = errors.New("content not found")

// Kind classifies a failed call against the content store.
type Kind int

const (
	// KindTransient covers timeouts, connection errors, 429 and 5xx responses.
	KindTransient Kind = iota
	// KindConflict is a stale or missing revision token on write.
	KindConflict
	// KindPermanent is a 4xx response other than 404 and 409.
	KindPermanent
	// KindMalformed is an unexpected or undecodable response, or content that
	// cannot be encoded in the requested mode.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindTransient:
		return "transient"
	case KindConflict:
		return "conflict"
	case KindPermanent:
		return "permanent"
	case KindMalformed:
		return "malformed"
	}
	return fmt.Sprintf("kind(%d)", int(k))
}

// Retryable reports whether an operation failing with this kind may be retried.
func (k Kind) Retryable() bool {
	return k == KindTransient || k == KindConflict
}

type Error struct {
	Kind       Kind
	Op         string
	Path       string
	StatusCode int
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s %s: %s", e.Op, e.Path, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (HTTP %d)", e.StatusCode)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// KindOf returns the Kind of err, and false if err is not an *Error.
func KindOf(err error) (Kind, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind, true
	}
	return 0, false
}

func kindForStatus(code int) Kind {
	switch {
	case code == http.StatusConflict:
		return KindConflict
	case code == http.StatusTooManyRequests || code >= 500:
		return KindTransient
	default:
		return KindPermanent
	}
}
