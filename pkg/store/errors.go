package store

import (
	"fmt"

	"github.com/go-errors/errors"
	"golang.org/x/xerrors"
)

// Kind classifies a store error so callers can dispatch on it without
// string matching.
type Kind int

const (
	// KindConfiguration covers unknown dialects, unknown spool
	// strategies, and missing credentials. Raised at construction time.
	KindConfiguration Kind = iota
	// KindNotFound covers selectMeta/selectData returning no row.
	KindNotFound
	// KindSQL covers any transport-level database/sql failure.
	KindSQL
	// KindCollision covers two committed rows sharing an id with
	// different lengths: a fatal digest collision.
	KindCollision
	// KindDigestUnavailable covers a digest that cannot be produced:
	// Put raises it when the write stream was not read to EOF.
	KindDigestUnavailable
)

func (k Kind) String() string {
	switch k {
	case KindConfiguration:
		return "configuration"
	case KindNotFound:
		return "not-found"
	case KindSQL:
		return "sql"
	case KindCollision:
		return "collision"
	case KindDigestUnavailable:
		return "digest-unavailable"
	default:
		return "unknown"
	}
}

// Error is the store's uniform error type. Every failure surfaced to a
// caller is wrapped into one of these, carrying the original cause and a
// stack frame for diagnostics.
type Error struct {
	Kind    Kind
	Message string
	Cause   error
	frame   xerrors.Frame
}

func newError(kind Kind, cause error, format string, args ...interface{}) *Error {
	return &Error{
		Kind:    kind,
		Message: fmt.Sprintf(format, args...),
		Cause:   cause,
		frame:   xerrors.Caller(1),
	}
}

// FormatError prints the kind, message, and a stack frame via xerrors,
// the same FormatError/Format split commands.ComplexError uses.
func (e *Error) FormatError(p xerrors.Printer) error {
	p.Printf("%s: %s", e.Kind, e.Message)
	e.frame.Format(p)
	return e.Cause
}

func (e *Error) Format(f fmt.State, c rune) {
	xerrors.FormatError(e, f, c)
}

func (e *Error) Error() string {
	return fmt.Sprint(e)
}

// Unwrap exposes the original cause to errors.Is / errors.As.
func (e *Error) Unwrap() error {
	return e.Cause
}

// HasKind reports whether err is a *Error of the given kind.
func HasKind(err error, kind Kind) bool {
	var se *Error
	if xerrors.As(err, &se) {
		return se.Kind == kind
	}
	return false
}

// WrapStack wraps err for the sake of printing a stack trace at the
// CLI's top level: go-errors/errors.Wrap returns nil only for a nil err.
func WrapStack(err error) error {
	if err == nil {
		return nil
	}
	return errors.Wrap(err, 0)
}
