// Package types defines the error values shared by the evaluation engine and
// its transports.
package types

import (
	"errors"
	"fmt"
)

// Error tag constants.
const (
	TagDivideByZero        = "DivideByZero"
	TagMalformedExpression = "MalformedExpression"
)

// DivideByZeroMessage is the text shown in place of a result when a division
// has a zero right operand.
const DivideByZeroMessage = "cannot divide by zero!"

// EvalError is an evaluation failure with a tag identifying its kind.
type EvalError struct {
	Tag     string
	Message string
	// Pos is the byte offset in the source the error refers to, or -1.
	Pos int
}

// Sentinels for use with errors.Is.
var (
	ErrDivideByZero        = &EvalError{Tag: TagDivideByZero, Message: DivideByZeroMessage, Pos: -1}
	ErrMalformedExpression = &EvalError{Tag: TagMalformedExpression, Message: "malformed expression", Pos: -1}
)

// Error implements the error interface.
func (e *EvalError) Error() string {
	if e.Pos >= 0 {
		return fmt.Sprintf("%s at position %d", e.Message, e.Pos)
	}
	return e.Message
}

// Is reports whether target is an EvalError with the same tag, so that
// errors.Is(err, ErrDivideByZero) matches any divide-by-zero failure.
func (e *EvalError) Is(target error) bool {
	t, ok := target.(*EvalError)
	if !ok {
		return false
	}
	return t.Tag == e.Tag
}

// HasTag returns true if the error has the specified tag.
func (e *EvalError) HasTag(tag string) bool {
	return e.Tag == tag
}

// NewDivideByZeroError creates a DivideByZero error.
func NewDivideByZeroError() *EvalError {
	return &EvalError{Tag: TagDivideByZero, Message: DivideByZeroMessage, Pos: -1}
}

// NewMalformedError creates a MalformedExpression error. pos is the byte
// offset of the offending input, or -1 when there is none.
func NewMalformedError(msg string, pos int) *EvalError {
	return &EvalError{Tag: TagMalformedExpression, Message: msg, Pos: pos}
}

// TagOf returns the tag of the first *EvalError in err's chain, or "".
func TagOf(err error) string {
	var e *EvalError
	if errors.As(err, &e) {
		return e.Tag
	}
	return ""
}
