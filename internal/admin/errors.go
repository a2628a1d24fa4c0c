package admin

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a facade failure.
type Kind int

const (
	KindTransport Kind = iota
	KindValidation
	KindAuthz
)

func (k Kind) String() string {
	switch k {
	case KindValidation:
		return "validation"
	case KindAuthz:
		return "authz"
	default:
		return "transport"
	}
}

// Sentinels for errors.Is against an *Error of the matching kind.
var (
	ErrValidation = errors.New("validation error")
	ErrAuthz      = errors.New("authorization error")
	ErrTransport  = errors.New("transport error")
)

// Error carries the human-readable message surfaced to the operator.
type Error struct {
	Kind Kind
	Msg  string
	Err  error
}

func (e *Error) Error() string { return e.Msg }

func (e *Error) Unwrap() error { return e.Err }

// Is matches the kind sentinels.
func (e *Error) Is(target error) bool {
	switch target {
	case ErrValidation:
		return e.Kind == KindValidation
	case ErrAuthz:
		return e.Kind == KindAuthz
	case ErrTransport:
		return e.Kind == KindTransport
	}
	return false
}

// Validation reports a local pre-flight failure; it never reaches the backend.
func Validation(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Msg: fmt.Sprintf(format, args...)}
}

// Authz reports that the backend rejected the caller.
func Authz(msg string, err error) *Error {
	return newError(KindAuthz, msg, err)
}

// Transport reports a network, backend, or response-shape failure.
func Transport(msg string, err error) *Error {
	return newError(KindTransport, msg, err)
}

func newError(kind Kind, msg string, err error) *Error {
	if strings.TrimSpace(msg) == "" {
		msg = Message(err)
	}
	return &Error{Kind: kind, Msg: msg, Err: err}
}

// KindOf returns the kind of err, treating unclassified errors as transport failures.
func KindOf(err error) Kind {
	switch {
	case errors.Is(err, ErrValidation):
		return KindValidation
	case errors.Is(err, ErrAuthz):
		return KindAuthz
	}
	return KindTransport
}

// Message renders err for the operator: its own message when it has one,
// otherwise a JSON rendering of the value.
func Message(err error) string {
	if err == nil {
		return ""
	}
	if msg := strings.TrimSpace(err.Error()); msg != "" {
		return msg
	}
	if b, jerr := json.Marshal(err); jerr == nil && string(b) != "{}" && string(b) != "null" {
		return string(b)
	}
	return fmt.Sprintf("%#v", err)
}
