package main

import (
	"errors"
	"fmt"
	"strings"
)

// Error kinds. Every parse or translate failure wraps exactly one of these.
var (
	ErrSyntax                  = errors.New("syntax error")
	ErrUnknownVariable         = errors.New("unknown variable")
	ErrUnknownFunction         = errors.New("unknown function")
	ErrArityMismatch           = errors.New("arity mismatch")
	ErrInvalidAssignmentTarget = errors.New("invalid assignment target")
	ErrInvalidOperator         = errors.New("invalid binary operator")
	ErrEmptyBranch             = errors.New("empty branch")
	ErrMissingElseBranch       = errors.New("missing else branch")
	ErrRedefinition            = errors.New("redefinition of function")
	ErrVerificationFailed      = errors.New("verification failed")
)

// CompileError is a syntax or translation error tied to a source position.
type CompileError struct {
	Pos  Position
	Kind error // one of the Err* kinds above
	Msg  string
}

func (e *CompileError) Error() string {
	return fmt.Sprintf("%s: %s: %s", e.Pos, e.Kind, e.Msg)
}

func (e *CompileError) Unwrap() error {
	return e.Kind
}

func errorAt(pos Position, kind error, format string, args ...any) *CompileError {
	return &CompileError{Pos: pos, Kind: kind, Msg: fmt.Sprintf(format, args...)}
}

// ErrorCollection accumulates the errors of a session, one per failed unit.
type ErrorCollection struct {
	errors []error
}

func (ec *ErrorCollection) Add(err error) {
	ec.errors = append(ec.errors, err)
}

func (ec *ErrorCollection) HasErrors() bool {
	return len(ec.errors) > 0
}

func (ec *ErrorCollection) Count() int {
	return len(ec.errors)
}

// Errors returns the collected errors in the order they occurred.
func (ec *ErrorCollection) Errors() []error {
	return ec.errors
}

func (ec *ErrorCollection) String() string {
	var sb strings.Builder
	for i, err := range ec.errors {
		if i > 0 {
			sb.WriteString("\n")
		}
		sb.WriteString("error: ")
		sb.WriteString(err.Error())
	}
	return sb.String()
}
