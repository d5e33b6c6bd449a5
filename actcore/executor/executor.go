package executor

import (
	"context"
	"errors"

	"github.com/rs/zerolog"

	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

// DefaultMaxOutputSize bounds the rendered observation handed back to the model.
const DefaultMaxOutputSize = 10000

// StepResult is everything one step produced. Request is nil when parsing
// failed; Arguments is nil unless validation succeeded.
type StepResult struct {
	RawText     string
	Request     *ActionRequest
	Arguments   Arguments
	Repairs     []Repair
	Observation Observation
	Rendered    string
}

// Executor runs the per-step pipeline: parse, normalize, validate,
// dispatch. Every path ends in exactly one Observation and at most one tool
// invocation.
type Executor struct {
	registry   *ToolRegistry
	parser     *ActionParser
	normalizer *ArgumentNormalizer
	validator  *TypeValidator
	dispatcher *Dispatcher
	guardrails *Guardrails
	tracer     ports.Tracer
	logger     zerolog.Logger
}

// Option configures an Executor.
type Option func(*Executor)

func WithTracer(t ports.Tracer) Option            { return func(e *Executor) { e.tracer = t } }
func WithGuardrails(g *Guardrails) Option         { return func(e *Executor) { e.guardrails = g } }
func WithNormalizer(n *ArgumentNormalizer) Option { return func(e *Executor) { e.normalizer = n } }
func WithLogger(l zerolog.Logger) Option          { return func(e *Executor) { e.logger = l } }

// NewExecutor seals registry and wires the pipeline around it.
func NewExecutor(registry *ToolRegistry, opts ...Option) *Executor {
	registry.Seal()
	e := &Executor{
		registry:   registry,
		parser:     NewActionParser(),
		normalizer: NewArgumentNormalizer(),
		validator:  NewTypeValidator(),
		guardrails: NewGuardrails(DefaultMaxOutputSize),
		tracer:     noOpTracer{},
		logger:     zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(e)
	}
	e.dispatcher = NewDispatcher(registry, e.logger)
	return e
}

func (e *Executor) Registry() *ToolRegistry { return e.registry }

// Step turns one piece of raw model output into an Observation.
func (e *Executor) Step(ctx context.Context, raw string) StepResult {
	ctx, finish := e.tracer.StartSpan(ctx, "executor.step", map[string]any{"raw_len": len(raw)})

	res := StepResult{RawText: raw}
	req, err := e.parser.Parse(raw)
	if err != nil {
		e.tracer.Event(ctx, "parse_failed", map[string]any{"error": err.Error(), "ambiguous": errors.Is(err, ErrAmbiguousAction)})
		res.Observation = NewFailure("", StateParseFailed, FailureParse, "", err.Error())
		res.Rendered = e.guardrails.Render(res.Observation)
		finish(err)
		return res
	}
	e.tracer.Event(ctx, "parsed", map[string]any{"tool": req.ToolName, "encoding": req.Encoding})

	res = e.execute(ctx, req, res)
	finish(observationErr(res.Observation))
	return res
}

// Execute runs the post-parse stages for a request that arrived already
// structured, such as a provider-native tool call.
func (e *Executor) Execute(ctx context.Context, req ActionRequest) StepResult {
	ctx, finish := e.tracer.StartSpan(ctx, "executor.execute", map[string]any{"tool": req.ToolName})
	res := e.execute(ctx, req, StepResult{})
	finish(observationErr(res.Observation))
	return res
}

func (e *Executor) execute(ctx context.Context, req ActionRequest, res StepResult) StepResult {
	res.Request = &req

	spec, err := e.registry.Lookup(req.ToolName)
	if err != nil {
		e.tracer.Event(ctx, "tool_not_found", map[string]any{"tool": req.ToolName})
		res.Observation = NewFailure(req.ToolName, StateParsed, FailureToolNotFound, "tool", err.Error())
		res.Rendered = e.guardrails.Render(res.Observation)
		return res
	}

	normalized, repairs := e.normalizer.NormalizeWithReport(spec, req.RawArguments)
	res.Repairs = repairs
	if len(repairs) > 0 {
		fields := make([]string, len(repairs))
		for i, r := range repairs {
			fields[i] = r.Parameter
		}
		e.tracer.Event(ctx, "normalized", map[string]any{"tool": spec.Name, "repaired": fields})
	}

	certified, err := e.validator.Validate(spec, normalized)
	if err != nil {
		var verr *ValidationError
		field := ""
		if errors.As(err, &verr) {
			field = verr.Field
		}
		e.tracer.Event(ctx, "validation_failed", map[string]any{"tool": spec.Name, "field": field, "error": err.Error()})
		res.Observation = NewFailure(spec.Name, StateValidationFailed, FailureValidation, field, err.Error())
		res.Rendered = e.guardrails.Render(res.Observation)
		return res
	}
	res.Arguments = certified

	dctx, done := e.tracer.StartSpan(ctx, "executor.dispatch", map[string]any{"tool": spec.Name})
	res.Observation = e.dispatcher.Dispatch(dctx, spec, certified)
	done(observationErr(res.Observation))

	res.Rendered = e.guardrails.Render(res.Observation)
	return res
}

func observationErr(o Observation) error {
	if o.Failure == nil {
		return nil
	}
	return errors.New(string(o.Failure.Kind) + ": " + o.Failure.Message)
}

type noOpTracer struct{}

func (noOpTracer) StartSpan(ctx context.Context, _ string, _ map[string]any) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (noOpTracer) Event(context.Context, string, map[string]any) {}
