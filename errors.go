package subsidy

import (
	"errors"
	"fmt"

	"github.com/blockberries/subsidy/types"
)

// Error is a rejection with a stable result code. Every error
// returned by an engine operation is an *Error; the code is part of
// the external contract, the info text is not.
type Error struct {
	Code types.Code
	Info string

	cause error
}

func (e *Error) Error() string {
	if e.Info == "" {
		return fmt.Sprintf("%s (code %d)", e.Code, uint32(e.Code))
	}
	return fmt.Sprintf("%s (code %d): %s", e.Code, uint32(e.Code), e.Info)
}

// Unwrap exposes the wrapped cause, if any, for errors.Is/As.
func (e *Error) Unwrap() error { return e.cause }

// NewError creates a coded error.
func NewError(code types.Code, info string) *Error {
	return &Error{Code: code, Info: info}
}

// Errorf creates a coded error with a formatted info string.
func Errorf(code types.Code, format string, args ...any) *Error {
	return &Error{Code: code, Info: fmt.Sprintf(format, args...)}
}

// WrapError attaches a code to a collaborator failure, retaining the
// cause. If err is already coded it is returned unchanged: a coded
// error crossing a collaborator boundary keeps its original code.
func WrapError(code types.Code, err error) *Error {
	var coded *Error
	if errors.As(err, &coded) {
		return coded
	}
	return &Error{Code: code, Info: err.Error(), cause: err}
}

// AsError checks whether an error carries a result code and returns it.
func AsError(err error) (*Error, bool) {
	var e *Error
	if errors.As(err, &e) {
		return e, true
	}
	return nil, false
}

// CodeOf extracts the result code from an error. The second return
// is false when the error carries no code (or is nil).
func CodeOf(err error) (types.Code, bool) {
	if e, ok := AsError(err); ok {
		return e.Code, true
	}
	return types.CodeOK, false
}
