package exec

import (
	"fmt"

	"github.com/pkg/errors"
)

var (
	// ErrBadFormat reports input that is not the container it claims to be.
	ErrBadFormat = errors.New("bad format")
	// ErrTruncated reports structures that run past the end of their buffer.
	ErrTruncated = errors.New("truncated")
	// ErrUnsupported reports a request a container cannot answer.
	ErrUnsupported = errors.New("unsupported")
	// ErrUsage reports bad arguments or caller-supplied state.
	ErrUsage = errors.New("usage")
)

// FormatError carries the offending offset and value for a parse failure.
type FormatError struct {
	Kind error
	Off  int64
	Msg  string
	Val  any
}

func (e *FormatError) Error() string {
	msg := e.Msg
	if e.Val != nil {
		msg += fmt.Sprintf(" '%v'", e.Val)
	}
	msg += fmt.Sprintf(" in record at byte %#x", e.Off)
	return fmt.Sprintf("%v: %s", e.Kind, msg)
}

func (e *FormatError) Unwrap() error { return e.Kind }

// Errorf builds an error of the given kind.
func Errorf(kind error, format string, args ...any) error {
	return errors.Wrapf(kind, format, args...)
}

// InvariantError is the panic value raised when an internal assumption is
// broken. It is never returned as an error.
type InvariantError struct {
	Msg string
}

func (e InvariantError) Error() string { return "invariant violated: " + e.Msg }

// Invariant panics with an InvariantError when cond is false.
func Invariant(cond bool, format string, args ...any) {
	if !cond {
		panic(InvariantError{Msg: fmt.Sprintf(format, args...)})
	}
}
