package executor

import (
	"context"
	"fmt"

	"github.com/rs/zerolog"
)

// Dispatcher invokes the implementation bound to a validated call.
type Dispatcher struct {
	registry *ToolRegistry
	logger   zerolog.Logger
}

func NewDispatcher(registry *ToolRegistry, logger zerolog.Logger) *Dispatcher {
	return &Dispatcher{registry: registry, logger: logger}
}

// Dispatch calls the tool exactly once. Errors and panics raised by the
// implementation come back as a ToolExecutionError observation.
func (d *Dispatcher) Dispatch(ctx context.Context, spec ToolSpec, args Arguments) (obs Observation) {
	fn, ok := d.registry.binding(spec.Name)
	if !ok {
		return NewFailure(spec.Name, StateValidated, FailureToolNotFound, "tool",
			fmt.Sprintf("%v: %s", ErrUnknownTool, spec.Name))
	}

	defer func() {
		if r := recover(); r != nil {
			execErr := &ToolExecutionError{Tool: spec.Name, Err: fmt.Errorf("%v", r), Panicked: true}
			d.logger.Error().Str("tool", spec.Name).Interface("panic", r).Msg("tool panicked")
			obs = NewFailure(spec.Name, StateDispatched, FailureToolExecution, "", execErr.Error())
		}
	}()

	value, err := fn(ctx, newArgs(spec, args))
	if err != nil {
		execErr := &ToolExecutionError{Tool: spec.Name, Err: err}
		d.logger.Warn().Err(err).Str("tool", spec.Name).Msg("tool returned an error")
		return NewFailure(spec.Name, StateDispatched, FailureToolExecution, "", execErr.Error())
	}
	return NewSuccess(spec.Name, value)
}
