package command

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/urfave/cli/v2"

	internal "github.com/ZanzyTHEbar/agent-actions/actcore"
	"github.com/ZanzyTHEbar/agent-actions/actcore/agent"
	"github.com/ZanzyTHEbar/agent-actions/actcore/config"
	"github.com/ZanzyTHEbar/agent-actions/actcore/db"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/adapters"
	ports "github.com/ZanzyTHEbar/agent-actions/actcore/executor/ports"
	"github.com/ZanzyTHEbar/agent-actions/actcore/executor/tools"
	"github.com/ZanzyTHEbar/agent-actions/actcore/runner"
)

type Deps struct {
	LoadConfig func(path string) (*config.Config, error)
	Stdin      io.Reader
	Stdout     io.Writer
	Stderr     io.Writer
}

func BuildApp(deps Deps) *cli.App {
	deps = withDefaults(deps)
	return &cli.App{
		Name:      internal.DefaultAppName,
		Usage:     "parse, check and run agent tool calls",
		Reader:    deps.Stdin,
		Writer:    deps.Stdout,
		ErrWriter: deps.Stderr,
		Flags: []cli.Flag{
			&cli.StringFlag{Name: "config", Aliases: []string{"c"}, Usage: "path to a config file"},
			&cli.StringFlag{Name: "log-level", Usage: "override log.level"},
		},
		Commands: []*cli.Command{
			{
				Name:      "describe",
				Usage:     "print the model-facing documentation of the built-in tools",
				ArgsUsage: "[tool]",
				Flags: []cli.Flag{
					&cli.BoolFlag{Name: "schema", Usage: "print JSON schemas instead of prose"},
				},
				Action: func(c *cli.Context) error {
					return runDescribe(c, deps)
				},
			},
			{
				Name:  "exec",
				Usage: "run one step on model text from --text or stdin and print the observation",
				Flags: []cli.Flag{
					&cli.StringFlag{Name: "text", Usage: "model output to execute"},
				},
				Action: func(c *cli.Context) error {
					return runExec(c, deps)
				},
			},
			{
				Name:      "run",
				Usage:     "play a scenario file through the agent loop",
				ArgsUsage: "<scenarios.yaml>",
				Action: func(c *cli.Context) error {
					return runScenarios(c, deps)
				},
			},
			{
				Name:  "migrate",
				Usage: "manage the transcript database",
				Subcommands: []*cli.Command{
					{
						Name:  "up",
						Usage: "apply pending migrations",
						Action: func(c *cli.Context) error {
							return runMigrate(c, deps, db.Migrate)
						},
					},
					{
						Name:  "down",
						Usage: "roll back the latest migration",
						Action: func(c *cli.Context) error {
							return runMigrate(c, deps, func(ctx context.Context, conn *sql.DB, _ zerolog.Logger) (int64, error) {
								return db.Rollback(ctx, conn)
							})
						},
					},
					{
						Name:  "status",
						Usage: "print the schema version",
						Action: func(c *cli.Context) error {
							return runMigrate(c, deps, func(ctx context.Context, conn *sql.DB, _ zerolog.Logger) (int64, error) {
								return db.Status(ctx, conn)
							})
						},
					},
				},
			},
		},
	}
}

func withDefaults(deps Deps) Deps {
	if deps.LoadConfig == nil {
		deps.LoadConfig = config.LoadConfig
	}
	if deps.Stdin == nil {
		deps.Stdin = os.Stdin
	}
	if deps.Stdout == nil {
		deps.Stdout = os.Stdout
	}
	if deps.Stderr == nil {
		deps.Stderr = os.Stderr
	}
	return deps
}

// session is what every command needs: config, a logger and a factory.
type session struct {
	cfg     *config.Config
	logger  zerolog.Logger
	factory *agent.Factory
	conn    *sql.DB
}

func newSession(c *cli.Context, deps Deps, withDB bool) (*session, error) {
	cfg, err := deps.LoadConfig(c.String("config"))
	if err != nil {
		return nil, err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	s := &session{cfg: cfg, logger: NewLogger(cfg.Log, deps.Stderr)}

	if withDB && cfg.Transcript.Backend == config.BackendLibSQL {
		if s.conn, err = openDB(c.Context, cfg, s.logger); err != nil {
			return nil, err
		}
	}
	s.factory = agent.NewFactory(cfg, s.conn, s.logger)
	return s, nil
}

func (s *session) Close() {
	if s.conn != nil {
		_ = s.conn.Close()
	}
}

// executor builds the registry and executor. The file cache watches its
// root for the lifetime of ctx when files.watch is set.
func (s *session) executor(ctx context.Context, sink tools.MessageSink) (*executor.Executor, error) {
	files := s.factory.CreateFileCache()
	if files != nil && s.cfg.Files.Watch {
		if err := files.Watch(ctx, s.cfg.Files.Root); err != nil {
			s.logger.Warn().Err(err).Str("root", s.cfg.Files.Root).Msg("file watching disabled")
		}
	}
	registry, err := s.factory.CreateRegistry(sink, files)
	if err != nil {
		return nil, err
	}
	return s.factory.CreateExecutor(registry)
}

func openDB(ctx context.Context, cfg *config.Config, logger zerolog.Logger) (*sql.DB, error) {
	conn, err := db.ConnectToDB(cfg.Transcript.DSN, logger)
	if err != nil {
		return nil, err
	}
	if _, err := db.Migrate(ctx, conn, logger); err != nil {
		_ = conn.Close()
		return nil, err
	}
	return conn, nil
}

// NewLogger builds the process logger from the log section.
func NewLogger(cfg config.LogConfig, w io.Writer) zerolog.Logger {
	level, err := zerolog.ParseLevel(cfg.Level)
	if err != nil || cfg.Level == "" {
		level = zerolog.InfoLevel
	}
	out := w
	if cfg.Pretty {
		out = zerolog.ConsoleWriter{Out: w, TimeFormat: time.Kitchen}
	}
	return zerolog.New(out).Level(level).With().Timestamp().Str("app", internal.DefaultAppName).Logger()
}

func runDescribe(c *cli.Context, deps Deps) error {
	s, err := newSession(c, deps, false)
	if err != nil {
		return err
	}
	defer s.Close()

	exec, err := s.executor(c.Context, nil)
	if err != nil {
		return err
	}
	registry := exec.Registry()

	names := registry.Names()
	if c.Args().Present() {
		names = []string{c.Args().First()}
	}

	if !c.Bool("schema") {
		if !c.Args().Present() {
			_, err = fmt.Fprintln(deps.Stdout, registry.DescribeAll())
			return err
		}
		doc, err := registry.Describe(names[0])
		if err != nil {
			return err
		}
		_, err = fmt.Fprintln(deps.Stdout, doc)
		return err
	}

	for _, name := range names {
		schema, err := registry.JSONSchema(name)
		if err != nil {
			return err
		}
		if _, err := fmt.Fprintf(deps.Stdout, "%s\n", schema); err != nil {
			return err
		}
	}
	return nil
}

func runExec(c *cli.Context, deps Deps) error {
	text := c.String("text")
	if !c.IsSet("text") {
		raw, err := io.ReadAll(deps.Stdin)
		if err != nil {
			return fmt.Errorf("read stdin: %w", err)
		}
		text = string(raw)
	}
	if strings.TrimSpace(text) == "" {
		return errors.New("exec: no model output given")
	}

	s, err := newSession(c, deps, false)
	if err != nil {
		return err
	}
	defer s.Close()

	sink := tools.NewMemorySink()
	exec, err := s.executor(c.Context, sink)
	if err != nil {
		return err
	}

	res := exec.Step(c.Context, text)
	for _, msg := range sink.Messages() {
		s.logger.Info().Str("content", msg).Msg("message to user")
	}
	_, err = fmt.Fprintln(deps.Stdout, res.Rendered)
	return err
}

func runScenarios(c *cli.Context, deps Deps) error {
	if c.NArg() != 1 {
		return errors.New("run: expected exactly one scenario file")
	}
	scenarios, err := runner.LoadScenarios(c.Args().First())
	if err != nil {
		return err
	}

	s, err := newSession(c, deps, true)
	if err != nil {
		return err
	}
	defer s.Close()

	exec, err := s.executor(c.Context, nil)
	if err != nil {
		return err
	}

	var newStore func() ports.TranscriptStore
	if s.cfg.Transcript.Backend == config.BackendLibSQL {
		shared, err := s.factory.CreateStore()
		if err != nil {
			return err
		}
		newStore = func() ports.TranscriptStore { return shared }
	} else {
		newStore = func() ports.TranscriptStore { return adapters.NewMemoryTranscriptStore() }
	}

	r := runner.New(exec,
		runner.WithConcurrency(s.cfg.Runner.Concurrency),
		runner.WithPolicy(s.factory.CreatePolicy()),
		runner.WithStoreFactory(newStore),
		runner.WithLoopOptions(
			agent.WithRateLimiter(s.factory.CreateRateLimiter()),
			agent.WithTracer(s.factory.CreateTracer()),
			agent.WithLogger(s.logger.With().Str("component", "agent").Logger()),
		),
		runner.WithLogger(s.logger.With().Str("component", "runner").Logger()),
	)
	report := r.Run(c.Context, scenarios)

	out, err := report.YAML()
	if err != nil {
		return err
	}
	if _, err := deps.Stdout.Write(out); err != nil {
		return err
	}
	if report.Failed > 0 {
		return fmt.Errorf("%d of %d scenarios failed", report.Failed, len(report.Episodes))
	}
	return nil
}

func runMigrate(c *cli.Context, deps Deps, op func(context.Context, *sql.DB, zerolog.Logger) (int64, error)) error {
	cfg, err := deps.LoadConfig(c.String("config"))
	if err != nil {
		return err
	}
	if lvl := c.String("log-level"); lvl != "" {
		cfg.Log.Level = lvl
	}
	logger := NewLogger(cfg.Log, deps.Stderr)

	conn, err := db.ConnectToDB(cfg.Transcript.DSN, logger)
	if err != nil {
		return err
	}
	defer conn.Close()

	version, err := op(c.Context, conn, logger)
	if err != nil {
		return err
	}
	_, err = fmt.Fprintf(deps.Stdout, "schema version %d\n", version)
	return err
}
