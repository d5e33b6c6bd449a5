package executor

import (
	"encoding/json"
	"fmt"

	"github.com/google/uuid"
)

// StepState is the furthest pipeline state a step reached.
type StepState string

const (
	StateReceived         StepState = "received"
	StateParsed           StepState = "parsed"
	StateParseFailed      StepState = "parse_failed"
	StateNormalized       StepState = "normalized"
	StateValidated        StepState = "validated"
	StateValidationFailed StepState = "validation_failed"
	StateDispatched       StepState = "dispatched"
)

// Failure describes why a step produced no tool result.
type Failure struct {
	Kind           FailureKind `json:"kind"`
	Message        string      `json:"message"`
	OffendingField string      `json:"offending_field,omitempty"`
}

// Observation is the outcome of one step. Exactly one of ReturnValue or
// Failure is meaningful; the value is never modified after construction.
type Observation struct {
	ID          string    `json:"id"`
	ToolName    string    `json:"tool_name,omitempty"`
	State       StepState `json:"state"`
	ReturnValue any       `json:"return_value,omitempty"`
	Failure     *Failure  `json:"failure,omitempty"`
}

func NewSuccess(tool string, value any) Observation {
	return Observation{ID: uuid.NewString(), ToolName: tool, State: StateDispatched, ReturnValue: value}
}

func NewFailure(tool string, state StepState, kind FailureKind, field, message string) Observation {
	return Observation{
		ID:       uuid.NewString(),
		ToolName: tool,
		State:    state,
		Failure:  &Failure{Kind: kind, Message: message, OffendingField: field},
	}
}

func (o Observation) IsSuccess() bool { return o.Failure == nil }

// FailureKind returns the failure classification, or "" on success.
func (o Observation) FailureKind() FailureKind {
	if o.Failure == nil {
		return ""
	}
	return o.Failure.Kind
}

type renderedError struct {
	Kind  FailureKind `json:"kind"`
	Field string      `json:"field,omitempty"`
	Msg   string      `json:"message"`
}

type renderedObservation struct {
	Status string         `json:"status"`
	Tool   string         `json:"tool,omitempty"`
	Result any            `json:"result,omitempty"`
	Error  *renderedError `json:"error,omitempty"`
}

// Render produces the JSON handed back to the model.
func (o Observation) Render() string {
	r := renderedObservation{Status: "success", Tool: o.ToolName, Result: o.ReturnValue}
	if o.Failure != nil {
		r.Status = "failure"
		r.Result = nil
		r.Error = &renderedError{Kind: o.Failure.Kind, Field: o.Failure.OffendingField, Msg: o.Failure.Message}
	}
	data, err := json.Marshal(r)
	if err != nil {
		r.Result = fmt.Sprintf("%v", o.ReturnValue)
		data, _ = json.Marshal(r)
	}
	return string(data)
}
