// Package domainerrors defines the coded error type used at every service
// boundary. Services return these instead of sentinel errors so transports
// can map a code to a status without string matching, and so metadata like
// blocking counts travels with the error instead of being re-queried.
package domainerrors

import (
	"errors"
	"fmt"
)

// Code classifies a domain error for callers.
type Code string

const (
	// CodeValidation marks malformed or out-of-range input.
	CodeValidation Code = "validation"
	// CodeNotFound marks a target entity that does not exist or was
	// removed between lookup and mutation.
	CodeNotFound Code = "not_found"
	// CodeInvariantViolation marks a cross-entity rule broken before any
	// write, e.g. a resolution bound to a phase of a different call.
	CodeInvariantViolation Code = "invariant_violation"
	// CodeRelationshipConflict marks a delete or purge blocked by
	// dependent records. Metadata carries the blocking count.
	CodeRelationshipConflict Code = "relationship_conflict"
	// CodeConcurrencyConflict marks a transactional serialization failure
	// that survived the bounded retry budget.
	CodeConcurrencyConflict Code = "concurrency_conflict"
	// CodeConflict marks a uniqueness collision (slug already taken).
	CodeConflict Code = "conflict"
	// CodeTimeout marks an operation abandoned because its context ended.
	CodeTimeout Code = "timeout"
	// CodeInternal marks infrastructure failures that are not business
	// errors; they propagate unchanged and are never retried here.
	CodeInternal Code = "internal"
)

// Error is the concrete coded error. Construct with New or Wrap.
type Error struct {
	Code    Code
	Message string
	cause   error
	meta    map[string]any
}

func (e *Error) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("%s: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap exposes the cause to errors.Is/As chains.
func (e *Error) Unwrap() error { return e.cause }

// New builds a coded error with no cause.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Newf builds a coded error with a formatted message.
func Newf(code Code, format string, args ...any) *Error {
	return &Error{Code: code, Message: fmt.Sprintf(format, args...)}
}

// Wrap attaches a code and message to an underlying error. A nil err
// returns nil so call sites can wrap unconditionally.
func Wrap(err error, code Code, message string) error {
	if err == nil {
		return nil
	}
	return &Error{Code: code, Message: message, cause: err}
}

// HasCode reports whether err (or anything it wraps) carries the code.
func HasCode(err error, code Code) bool {
	var de *Error
	for e := err; e != nil; {
		if errors.As(e, &de) {
			if de.Code == code {
				return true
			}
			e = de.Unwrap()
			continue
		}
		return false
	}
	return false
}

// CodeOf returns the outermost code carried by err, or CodeInternal when
// err is not a domain error.
func CodeOf(err error) Code {
	var de *Error
	if errors.As(err, &de) {
		return de.Code
	}
	return CodeInternal
}

// Add attaches a metadata key to the error and returns it. Only domain
// errors accept metadata; other errors pass through untouched.
func Add(err error, key string, value any) error {
	var de *Error
	if !errors.As(err, &de) {
		return err
	}
	if de.meta == nil {
		de.meta = make(map[string]any, 1)
	}
	de.meta[key] = value
	return err
}

// Load reads a metadata key from the error chain.
func Load(err error, key string) (any, bool) {
	var de *Error
	if !errors.As(err, &de) {
		return nil, false
	}
	v, ok := de.meta[key]
	return v, ok
}

// LoadInt reads an integer metadata key, returning 0 when absent.
func LoadInt(err error, key string) int {
	v, ok := Load(err, key)
	if !ok {
		return 0
	}
	n, _ := v.(int)
	return n
}
