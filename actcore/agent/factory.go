package agent

import (
	"database/sql"
	"errors"
	"fmt"

	"github.com/rs/zerolog"

	"github.com/ZanzyTHEbar/agent-actions/actcore/config"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/adapters"
	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/tools"
	"github.com/ZanzyTHEbar/agent-actions/actcore/fscache"
)

// ErrNoDatabase is returned when the libsql transcript backend is selected
// without a database handle.
var ErrNoDatabase = errors.New("agent: libsql transcript backend needs a database")

// Factory creates and wires components from configuration.
type Factory struct {
	cfg    *config.Config
	db     *sql.DB // optional, for the libsql transcript store
	logger zerolog.Logger
}

func NewFactory(cfg *config.Config, db *sql.DB, logger zerolog.Logger) *Factory {
	return &Factory{cfg: cfg, db: db, logger: logger}
}

func (f *Factory) CreateTracer() ports.Tracer {
	if !f.cfg.Executor.Trace {
		return &noOpTracer{}
	}
	return adapters.NewZerologTracer(f.logger)
}

func (f *Factory) CreateRateLimiter() ports.RateLimiter {
	if !f.cfg.Agent.RateLimitEnabled {
		return &noOpRateLimiter{}
	}
	return adapters.NewTokenBucket(f.cfg.Agent.RateLimitCapacity, f.cfg.Agent.RateLimitRefillRate)
}

// CreateStore returns the configured transcript store.
func (f *Factory) CreateStore() (ports.TranscriptStore, error) {
	switch f.cfg.Transcript.Backend {
	case config.BackendLibSQL:
		if f.db == nil {
			return nil, ErrNoDatabase
		}
		return adapters.NewLibSQLTranscriptStore(f.db), nil
	case config.BackendMemory, "":
		return adapters.NewMemoryTranscriptStore(), nil
	}
	return nil, fmt.Errorf("unknown transcript backend %q", f.cfg.Transcript.Backend)
}

// CreateGuardrails builds the output filter from the executor section.
func (f *Factory) CreateGuardrails() (*executor.Guardrails, error) {
	g := executor.NewGuardrails(f.cfg.Executor.MaxOutputSize)
	if !f.cfg.Executor.RedactSecrets {
		g.ResetFilters()
	}
	for _, pattern := range f.cfg.Executor.ExtraRedactions {
		if err := g.AddFilter(pattern); err != nil {
			return nil, err
		}
	}
	return g, nil
}

// CreateFileCache returns nil when the file tools are disabled.
func (f *Factory) CreateFileCache() *fscache.Cache {
	if !f.cfg.Files.Enabled {
		return nil
	}
	return fscache.New(
		adapters.NewLRUCache(f.cfg.Files.StatCacheCapacity),
		fscache.WithGitignore(f.cfg.Files.RespectGitignore),
		fscache.WithStatTTL(f.cfg.Files.StatCacheTTLSeconds),
		fscache.WithLogger(f.logger.With().Str("component", "fscache").Logger()),
	)
}

// CreateRegistry registers the built-in tools. files may be nil.
func (f *Factory) CreateRegistry(sink tools.MessageSink, files *fscache.Cache) (*executor.ToolRegistry, error) {
	r := executor.NewToolRegistry()
	if err := tools.RegisterBuiltins(r, tools.Builtins{Sink: sink, Files: files, FilesRoot: f.cfg.Files.Root}); err != nil {
		return nil, fmt.Errorf("register builtins: %w", err)
	}
	return r, nil
}

// CreateExecutor seals registry and wires the executor around it.
func (f *Factory) CreateExecutor(registry *executor.ToolRegistry) (*executor.Executor, error) {
	g, err := f.CreateGuardrails()
	if err != nil {
		return nil, err
	}
	return executor.NewExecutor(registry,
		executor.WithGuardrails(g),
		executor.WithTracer(f.CreateTracer()),
		executor.WithLogger(f.logger.With().Str("component", "executor").Logger()),
	), nil
}

// CreatePolicy maps the agent section onto a Policy.
func (f *Factory) CreatePolicy() Policy {
	a := f.cfg.Agent
	p := DefaultPolicy()
	p.MaxSteps = a.MaxSteps
	p.FinalTool = a.FinalTool
	p.SystemPrompt = a.SystemPrompt
	p.TranscriptWindow = a.TranscriptWindow
	p.NativeTools = a.NativeTools
	p.Options.MaxNewTokens = a.MaxNewTokens
	p.Options.Temperature = a.Temperature

	if p.MaxSteps < 1 {
		p.MaxSteps = 1
		f.logger.Warn().Int("max_steps", a.MaxSteps).Msg("MaxSteps clamped to minimum of 1")
	}
	return p
}

// CreateLoop wires a loop around exec. The provider is injected by the
// caller since inference is outside this module.
func (f *Factory) CreateLoop(exec *executor.Executor, provider ports.Provider, store ports.TranscriptStore, limiter ports.RateLimiter) *Loop {
	if limiter == nil {
		limiter = f.CreateRateLimiter()
	}
	return NewLoop(exec, provider, store,
		WithPolicy(f.CreatePolicy()),
		WithRateLimiter(limiter),
		WithTracer(f.CreateTracer()),
		WithLogger(f.logger.With().Str("component", "agent").Logger()),
	)
}
