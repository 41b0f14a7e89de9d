package types

import (
	"fmt"

	"github.com/pkg/errors"
)

// ErrorKind classifies failures by how far they reach.
type ErrorKind int

const (
	KindUnknown ErrorKind = iota
	// KindConnection ends the current session.
	KindConnection
	// KindProtocol ends the current session.
	KindProtocol
	// KindDecode drops a single tick.
	KindDecode
	// KindDispatch affects a single webhook target.
	KindDispatch
)

func (k ErrorKind) String() string {
	switch k {
	case KindConnection:
		return "ConnectionError"
	case KindProtocol:
		return "ProtocolError"
	case KindDecode:
		return "DecodeError"
	case KindDispatch:
		return "DispatchError"
	default:
		return "UnknownError"
	}
}

// Error is a classified failure. Op names the operation that failed.
type Error struct {
	Kind ErrorKind
	Op   string
	Err  error
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("%s: %s", e.Kind, e.Op)
	}
	return fmt.Sprintf("%s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

func (e *Error) Cause() error { return e.Err }

// Format keeps the wrapped stack trace visible under %+v.
func (e *Error) Format(s fmt.State, verb rune) {
	if verb == 'v' && s.Flag('+') && e.Err != nil {
		fmt.Fprintf(s, "%s: %s: %+v", e.Kind, e.Op, e.Err)
		return
	}
	fmt.Fprint(s, e.Error())
}

func newError(kind ErrorKind, op string, err error) error {
	if err == nil {
		err = errors.New(op)
	} else {
		err = errors.WithStack(err)
	}
	return &Error{Kind: kind, Op: op, Err: err}
}

func ConnectionError(op string, err error) error { return newError(KindConnection, op, err) }

func ProtocolError(op string, err error) error { return newError(KindProtocol, op, err) }

func DecodeError(op string, err error) error { return newError(KindDecode, op, err) }

func DispatchError(op string, err error) error { return newError(KindDispatch, op, err) }

// KindOf returns the kind of the first *Error in err's chain.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return KindUnknown
}

// IsSessionFatal reports whether err must end the current stream session.
// Unclassified errors are treated as fatal.
func IsSessionFatal(err error) bool {
	if err == nil {
		return false
	}
	switch KindOf(err) {
	case KindDecode, KindDispatch:
		return false
	default:
		return true
	}
}
