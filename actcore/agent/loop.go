package agent

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"

	internal "github.com/ZanzyTHEbar/agent-actions/actcore"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

// ErrNoProvider is returned by Run when the loop was built without a model.
var ErrNoProvider = errors.New("agent: no provider configured")

// Policy controls one episode.
type Policy struct {
	MaxSteps         int
	FinalTool        string
	SystemPrompt     string
	TranscriptWindow int  // entries replayed into each prompt; 0 replays all
	NativeTools      bool // also hand schema declarations to providers with native tool calling
	Options          ports.Options
}

// DefaultPolicy returns sensible defaults.
func DefaultPolicy() Policy {
	return Policy{
		MaxSteps:         10,
		FinalTool:        internal.DefaultFinalTool,
		TranscriptWindow: 8,
		Options:          ports.Options{MaxNewTokens: 512, Temperature: 0.2},
	}
}

// Episode is one task handed to the loop. An empty ID gets a fresh uuid.
type Episode struct {
	ID   string
	Task string
}

// Outcome summarises a finished episode.
type Outcome struct {
	EpisodeID string
	Steps     []executor.StepResult
	Latencies []time.Duration // wall time per step, provider call included
	Finished  bool            // the final tool succeeded before MaxSteps
	Answer    string
	Usage     ports.Usage
}

// FailedSteps lists the 1-based steps whose observation was a failure.
func (o *Outcome) FailedSteps() []int {
	var out []int
	for i, s := range o.Steps {
		if !s.Observation.IsSuccess() {
			out = append(out, i+1)
		}
	}
	return out
}

// Loop drives the executor with a model provider, one step at a time.
type Loop struct {
	exec     *executor.Executor
	provider ports.Provider
	store    ports.TranscriptStore
	limiter  ports.RateLimiter
	tracer   ports.Tracer
	builder  *PromptBuilder
	policy   Policy
	logger   zerolog.Logger
}

type LoopOption func(*Loop)

func WithRateLimiter(l ports.RateLimiter) LoopOption { return func(lp *Loop) { lp.limiter = l } }
func WithTracer(t ports.Tracer) LoopOption           { return func(lp *Loop) { lp.tracer = t } }
func WithPolicy(p Policy) LoopOption                 { return func(lp *Loop) { lp.policy = p } }
func WithLogger(l zerolog.Logger) LoopOption         { return func(lp *Loop) { lp.logger = l } }

// NewLoop wires a loop. A nil store keeps transcripts out of persistence.
func NewLoop(exec *executor.Executor, provider ports.Provider, store ports.TranscriptStore, opts ...LoopOption) *Loop {
	lp := &Loop{
		exec:     exec,
		provider: provider,
		store:    store,
		limiter:  &noOpRateLimiter{},
		tracer:   &noOpTracer{},
		builder:  NewPromptBuilder(),
		policy:   DefaultPolicy(),
		logger:   zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(lp)
	}
	if lp.store == nil {
		lp.store = &noOpStore{}
	}
	return lp
}

// Run plays ep until the final tool succeeds or MaxSteps is reached. Hitting
// MaxSteps is not an error; Outcome.Finished reports it. Provider, rate
// limiter and transcript errors end the episode with an error and the partial
// outcome.
func (lp *Loop) Run(ctx context.Context, ep Episode) (*Outcome, error) {
	if lp.provider == nil {
		return nil, ErrNoProvider
	}
	if ep.ID == "" {
		ep.ID = uuid.NewString()
	}
	out := &Outcome{EpisodeID: ep.ID}

	ctx, finish := lp.tracer.StartSpan(ctx, "agent.episode", map[string]any{"episode_id": ep.ID})
	var runErr error
	defer func() { finish(runErr) }()

	var decls []ports.ToolDeclaration
	if lp.policy.NativeTools {
		var err error
		if decls, err = lp.exec.Registry().Declarations(); err != nil {
			runErr = fmt.Errorf("render tool declarations: %w", err)
			return out, runErr
		}
	}
	toolDocs := lp.exec.Registry().DescribeAll()

	for step := 1; step <= lp.policy.MaxSteps; step++ {
		started := time.Now()
		res, err := lp.step(ctx, ep, step, toolDocs, decls, out)
		if err != nil {
			runErr = err
			return out, runErr
		}
		out.Steps = append(out.Steps, res)
		out.Latencies = append(out.Latencies, time.Since(started))

		obs := res.Observation
		lp.logger.Debug().
			Str("episode_id", ep.ID).
			Int("step", step).
			Str("tool", obs.ToolName).
			Bool("success", obs.IsSuccess()).
			Msg("step executed")

		if obs.IsSuccess() && obs.ToolName == lp.policy.FinalTool {
			out.Finished = true
			out.Answer = fmt.Sprint(obs.ReturnValue)
			break
		}
	}

	if !out.Finished {
		lp.logger.Info().Str("episode_id", ep.ID).Int("max_steps", lp.policy.MaxSteps).Msg("episode ended without a final answer")
	}
	return out, nil
}

func (lp *Loop) step(ctx context.Context, ep Episode, step int, toolDocs string, decls []ports.ToolDeclaration, out *Outcome) (executor.StepResult, error) {
	history, err := lp.store.Load(ctx, ep.ID, lp.policy.TranscriptWindow)
	if err != nil {
		return executor.StepResult{}, fmt.Errorf("load transcript: %w", err)
	}

	prompt := lp.builder.Build(lp.policy.SystemPrompt, toolDocs, ep.Task, decls, history, map[string]string{
		"episode_id": ep.ID,
		"step":       strconv.Itoa(step),
	})

	release, err := lp.limiter.Acquire(ctx, "provider")
	if err != nil {
		return executor.StepResult{}, fmt.Errorf("rate limit: %w", err)
	}
	completion, err := lp.provider.Complete(ctx, prompt, lp.policy.Options)
	release()
	if err != nil {
		return executor.StepResult{}, fmt.Errorf("provider completion at step %d: %w", step, err)
	}
	if u := completion.Usage; u != nil {
		out.Usage.PromptTokens += u.PromptTokens
		out.Usage.CompletionTokens += u.CompletionTokens
		out.Usage.TotalTokens += u.TotalTokens
	}

	res := lp.exec.Step(ctx, completion.Text)

	entry, err := transcriptEntry(ep.ID, step, res)
	if err != nil {
		return res, err
	}
	if err := lp.store.Append(ctx, entry); err != nil {
		return res, fmt.Errorf("append transcript: %w", err)
	}
	return res, nil
}

func transcriptEntry(episodeID string, step int, res executor.StepResult) (ports.TranscriptEntry, error) {
	var (
		request []byte
		err     error
	)
	if res.Request != nil {
		request, err = json.Marshal(res.Request)
	} else {
		request, err = json.Marshal(map[string]string{"raw_text": res.RawText})
	}
	if err != nil {
		return ports.TranscriptEntry{}, fmt.Errorf("encode request: %w", err)
	}

	// a truncated rendering is no longer JSON; keep it as a string
	observation := []byte(res.Rendered)
	if !json.Valid(observation) {
		if observation, err = json.Marshal(res.Rendered); err != nil {
			return ports.TranscriptEntry{}, fmt.Errorf("encode observation: %w", err)
		}
	}

	return ports.TranscriptEntry{
		EpisodeID:   episodeID,
		Step:        step,
		ToolName:    res.Observation.ToolName,
		Request:     request,
		Observation: observation,
		Success:     res.Observation.IsSuccess(),
		FailureKind: string(res.Observation.FailureKind()),
		CreatedAt:   time.Now().UTC(),
	}, nil
}

type noOpRateLimiter struct{}

func (r *noOpRateLimiter) Acquire(context.Context, string) (func(), error) { return func() {}, nil }

type noOpTracer struct{}

func (t *noOpTracer) StartSpan(ctx context.Context, _ string, _ map[string]any) (context.Context, func(error)) {
	return ctx, func(error) {}
}

func (t *noOpTracer) Event(context.Context, string, map[string]any) {}

type noOpStore struct{}

func (s *noOpStore) Append(context.Context, ports.TranscriptEntry) error { return nil }

func (s *noOpStore) Load(context.Context, string, int) ([]ports.TranscriptEntry, error) {
	return nil, nil
}

var (
	_ ports.RateLimiter     = (*noOpRateLimiter)(nil)
	_ ports.Tracer          = (*noOpTracer)(nil)
	_ ports.TranscriptStore = (*noOpStore)(nil)
)
