package executor

import (
	"errors"
	"fmt"
)

var (
	ErrDuplicateTool   = errors.New("tool already registered")
	ErrUnknownTool     = errors.New("unknown tool")
	ErrRegistrySealed  = errors.New("tool registry is sealed")
	ErrInvalidToolSpec = errors.New("invalid tool spec")
	ErrMalformedAction = errors.New("malformed action")
	ErrAmbiguousAction = errors.New("ambiguous action")
)

// FailureKind classifies a failed step for the agent loop.
type FailureKind string

const (
	FailureParse         FailureKind = "ParseError"
	FailureToolNotFound  FailureKind = "ToolNotFoundError"
	FailureValidation    FailureKind = "ValidationError"
	FailureToolExecution FailureKind = "ToolExecutionError"
)

// ParseError wraps ErrMalformedAction or ErrAmbiguousAction with detail.
type ParseError struct {
	Err    error
	Detail string
}

func (e *ParseError) Error() string {
	if e.Detail == "" {
		return e.Err.Error()
	}
	return e.Err.Error() + ": " + e.Detail
}

func (e *ParseError) Unwrap() error { return e.Err }

func malformed(format string, args ...any) error {
	return &ParseError{Err: ErrMalformedAction, Detail: fmt.Sprintf(format, args...)}
}

func ambiguous(format string, args ...any) error {
	return &ParseError{Err: ErrAmbiguousAction, Detail: fmt.Sprintf(format, args...)}
}

// ValidationError reports the first parameter that breaks the tool contract.
type ValidationError struct {
	Tool     string
	Field    string
	Expected string
	Actual   string
	Reason   string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: parameter %q: %s (expected %s, got %s)", e.Tool, e.Field, e.Reason, e.Expected, e.Actual)
}

const (
	ReasonMissing    = "missing required parameter"
	ReasonUnexpected = "unexpected parameter"
	ReasonMismatch   = "type mismatch"
	ReasonSchema     = "schema violation"
)

// ToolExecutionError is a fault raised by the tool implementation itself.
type ToolExecutionError struct {
	Tool     string
	Err      error
	Panicked bool
}

func (e *ToolExecutionError) Error() string {
	if e.Panicked {
		return fmt.Sprintf("tool %s panicked: %v", e.Tool, e.Err)
	}
	return fmt.Sprintf("tool %s failed: %v", e.Tool, e.Err)
}

func (e *ToolExecutionError) Unwrap() error { return e.Err }
