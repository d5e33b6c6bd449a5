// Package runner plays scripted scenarios through the agent loop in
// parallel over one shared executor.
package runner

import (
	"context"
	"math"
	"slices"
	"time"

	"github.com/RoaringBitmap/roaring"
	"github.com/rs/zerolog"
	"github.com/sourcegraph/conc/pool"
	"gonum.org/v1/gonum/stat"

	"github.com/ZanzyTHEbar/agent-actions/actcore/agent"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/adapters"
	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
)

const defaultConcurrency = 4

// EpisodeReport is the outcome of one scenario.
type EpisodeReport struct {
	Scenario    string
	EpisodeID   string
	Steps       int
	Finished    bool
	Answer      string
	Passed      bool
	Mismatch    string // why Passed is false; empty on success
	Err         error
	FailedSteps *roaring.Bitmap
	FailureKind map[executor.FailureKind]int
	Latencies   []time.Duration
	Usage       ports.Usage
}

// LatencyStats summarises step wall times across every episode.
type LatencyStats struct {
	Samples int
	Mean    time.Duration
	StdDev  time.Duration
	P95     time.Duration
}

// Report aggregates a run. Episodes keep scenario order.
type Report struct {
	Episodes []EpisodeReport
	Passed   int
	Failed   int
	// StepsFailing holds every step number that failed in at least one episode.
	StepsFailing *roaring.Bitmap
	Latency      LatencyStats
}

// Runner executes scenarios on a bounded worker pool. The executor, and so
// its sealed registry, is shared by every episode; each episode gets its own
// scripted provider and transcript store.
type Runner struct {
	exec        *executor.Executor
	concurrency int
	policy      agent.Policy
	newStore    func() ports.TranscriptStore
	loopOpts    []agent.LoopOption
	logger      zerolog.Logger
}

type Option func(*Runner)

func WithConcurrency(n int) Option     { return func(r *Runner) { r.concurrency = n } }
func WithPolicy(p agent.Policy) Option { return func(r *Runner) { r.policy = p } }
func WithStoreFactory(f func() ports.TranscriptStore) Option {
	return func(r *Runner) { r.newStore = f }
}
func WithLoopOptions(opts ...agent.LoopOption) Option { return func(r *Runner) { r.loopOpts = opts } }
func WithLogger(l zerolog.Logger) Option              { return func(r *Runner) { r.logger = l } }

func New(exec *executor.Executor, opts ...Option) *Runner {
	r := &Runner{
		exec:        exec,
		concurrency: defaultConcurrency,
		policy:      agent.DefaultPolicy(),
		newStore:    func() ports.TranscriptStore { return adapters.NewMemoryTranscriptStore() },
		logger:      zerolog.Nop(),
	}
	for _, opt := range opts {
		opt(r)
	}
	if r.concurrency < 1 {
		r.concurrency = 1
	}
	return r
}

// Run plays every scenario and waits for all of them. Episode errors are
// recorded in their report rather than aborting the run.
func (r *Runner) Run(ctx context.Context, scenarios []Scenario) *Report {
	reports := make([]EpisodeReport, len(scenarios))

	p := pool.New().WithMaxGoroutines(r.concurrency)
	for i, sc := range scenarios {
		i, sc := i, sc
		p.Go(func() {
			reports[i] = r.runOne(ctx, sc)
		})
	}
	p.Wait()

	return summarise(reports)
}

func (r *Runner) runOne(ctx context.Context, sc Scenario) EpisodeReport {
	policy := r.policy
	if sc.MaxSteps > 0 {
		policy.MaxSteps = sc.MaxSteps
	}
	opts := append(slices.Clone(r.loopOpts), agent.WithPolicy(policy))

	loop := agent.NewLoop(r.exec, NewScriptedProvider(sc.Responses...), r.newStore(), opts...)
	out, err := loop.Run(ctx, agent.Episode{Task: sc.Task})

	rep := EpisodeReport{
		Scenario:    sc.Name,
		Err:         err,
		FailedSteps: roaring.New(),
		FailureKind: map[executor.FailureKind]int{},
	}
	if out != nil {
		rep.EpisodeID = out.EpisodeID
		rep.Steps = len(out.Steps)
		rep.Finished = out.Finished
		rep.Answer = out.Answer
		rep.Latencies = out.Latencies
		rep.Usage = out.Usage
		for _, step := range out.FailedSteps() {
			rep.FailedSteps.Add(uint32(step))
		}
		for _, s := range out.Steps {
			if k := s.Observation.FailureKind(); k != "" {
				rep.FailureKind[k]++
			}
		}
	}
	rep.Passed, rep.Mismatch = check(sc.Expect, rep)

	r.logger.Info().
		Str("scenario", sc.Name).
		Str("episode_id", rep.EpisodeID).
		Int("steps", rep.Steps).
		Bool("passed", rep.Passed).
		Err(err).
		Msg("scenario finished")
	return rep
}

func check(want Expectation, got EpisodeReport) (bool, string) {
	if got.Err != nil {
		return false, "episode error: " + got.Err.Error()
	}
	finished := true
	if want.Finished != nil {
		finished = *want.Finished
	}
	if got.Finished != finished {
		if finished {
			return false, "episode did not reach the final tool"
		}
		return false, "episode finished unexpectedly"
	}
	if want.Answer != "" && got.Answer != want.Answer {
		return false, "answer " + quote(got.Answer) + " != " + quote(want.Answer)
	}
	if want.FailedSteps != nil {
		expected := roaring.New()
		for _, s := range want.FailedSteps {
			expected.Add(uint32(s))
		}
		if !expected.Equals(got.FailedSteps) {
			return false, "failed steps " + got.FailedSteps.String() + " != " + expected.String()
		}
	}
	return true, ""
}

func quote(s string) string { return `"` + s + `"` }

func summarise(reports []EpisodeReport) *Report {
	rep := &Report{Episodes: reports}

	bitmaps := make([]*roaring.Bitmap, 0, len(reports))
	var samples []float64
	for _, e := range reports {
		if e.Passed {
			rep.Passed++
		} else {
			rep.Failed++
		}
		bitmaps = append(bitmaps, e.FailedSteps)
		for _, d := range e.Latencies {
			samples = append(samples, float64(d))
		}
	}
	rep.StepsFailing = roaring.FastOr(bitmaps...)
	rep.Latency = latencyStats(samples)
	return rep
}

func latencyStats(samples []float64) LatencyStats {
	out := LatencyStats{Samples: len(samples)}
	if len(samples) == 0 {
		return out
	}

	mean, std := stat.MeanStdDev(samples, nil)
	if math.IsNaN(std) {
		std = 0
	}
	sorted := slices.Clone(samples)
	slices.Sort(sorted)

	out.Mean = time.Duration(mean)
	out.StdDev = time.Duration(std)
	out.P95 = time.Duration(stat.Quantile(0.95, stat.Empirical, sorted, nil))
	return out
}
