package config

import (
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	validation "github.com/go-ozzo/ozzo-validation/v4"
	"github.com/spf13/viper"

	internal "github.com/ZanzyTHEbar/agent-actions/actcore"
)

// Config stores all configuration of the application.
// The values are read by viper from a config file or environment variables.
type Config struct {
	Executor   ExecutorConfig   `mapstructure:"executor"`
	Agent      AgentConfig      `mapstructure:"agent"`
	Transcript TranscriptConfig `mapstructure:"transcript"`
	Files      FilesConfig      `mapstructure:"files"`
	Runner     RunnerConfig     `mapstructure:"runner"`
	Log        LogConfig        `mapstructure:"log"`
}

// ExecutorConfig controls the step pipeline.
type ExecutorConfig struct {
	MaxOutputSize   int      `mapstructure:"max_output_size"`  // bytes of rendered observation
	RedactSecrets   bool     `mapstructure:"redact_secrets"`   // apply the secret filters
	ExtraRedactions []string `mapstructure:"extra_redactions"` // additional regex filters
	Trace           bool     `mapstructure:"trace"`            // log stage spans
}

// AgentConfig controls the reference agent loop.
type AgentConfig struct {
	MaxSteps            int           `mapstructure:"max_steps"`
	FinalTool           string        `mapstructure:"final_tool"`
	SystemPrompt        string        `mapstructure:"system_prompt"`
	TranscriptWindow    int           `mapstructure:"transcript_window"` // entries replayed into the prompt
	NativeTools         bool          `mapstructure:"native_tools"`      // send schema declarations to the provider
	MaxNewTokens        int           `mapstructure:"max_new_tokens"`
	Temperature         float32       `mapstructure:"temperature"`
	RateLimitEnabled    bool          `mapstructure:"rate_limit_enabled"`
	RateLimitCapacity   int           `mapstructure:"rate_limit_capacity"`
	RateLimitRefillRate time.Duration `mapstructure:"rate_limit_refill_rate"`
}

// TranscriptConfig selects where transcripts are kept.
type TranscriptConfig struct {
	Backend string `mapstructure:"backend"` // "memory" or "libsql"
	DSN     string `mapstructure:"dsn"`
}

// FilesConfig configures the shared filesystem cache behind the file tools.
type FilesConfig struct {
	Enabled             bool   `mapstructure:"enabled"`
	Root                string `mapstructure:"root"`
	Watch               bool   `mapstructure:"watch"`
	RespectGitignore    bool   `mapstructure:"respect_gitignore"`
	StatCacheCapacity   int    `mapstructure:"stat_cache_capacity"`
	StatCacheTTLSeconds int    `mapstructure:"stat_cache_ttl_seconds"`
}

type RunnerConfig struct {
	Concurrency int `mapstructure:"concurrency"`
}

type LogConfig struct {
	Level  string `mapstructure:"level"`
	Pretty bool   `mapstructure:"pretty"`
}

const (
	BackendMemory = "memory"
	BackendLibSQL = "libsql"
)

func setDefaults(v *viper.Viper) {
	v.SetDefault("executor.max_output_size", 10000)
	v.SetDefault("executor.redact_secrets", true)
	v.SetDefault("executor.extra_redactions", []string{})
	v.SetDefault("executor.trace", false)

	v.SetDefault("agent.max_steps", 10)
	v.SetDefault("agent.final_tool", internal.DefaultFinalTool)
	v.SetDefault("agent.system_prompt", "You are a careful assistant that acts by calling exactly one tool per turn.")
	v.SetDefault("agent.transcript_window", 8)
	v.SetDefault("agent.native_tools", false)
	v.SetDefault("agent.max_new_tokens", 512)
	v.SetDefault("agent.temperature", 0.2)
	v.SetDefault("agent.rate_limit_enabled", true)
	v.SetDefault("agent.rate_limit_capacity", 10)
	v.SetDefault("agent.rate_limit_refill_rate", "1s")

	v.SetDefault("transcript.backend", BackendMemory)
	v.SetDefault("transcript.dsn", internal.DefaultDatabaseDSN)

	v.SetDefault("files.enabled", true)
	v.SetDefault("files.root", ".")
	v.SetDefault("files.watch", false)
	v.SetDefault("files.respect_gitignore", true)
	v.SetDefault("files.stat_cache_capacity", 1024)
	v.SetDefault("files.stat_cache_ttl_seconds", 60)

	v.SetDefault("runner.concurrency", 4)

	v.SetDefault("log.level", "info")
	v.SetDefault("log.pretty", true)
}

// LoadConfig reads configuration from file or environment variables. A
// missing config file is not an error; defaults apply.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()
	if configPath != "" {
		v.SetConfigFile(configPath)
	} else {
		v.AddConfigPath(".")
		v.AddConfigPath(filepath.Join("etc", internal.DefaultAppName))
		v.AddConfigPath(internal.DefaultConfigPath)
		v.SetConfigName("config")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	// ACTCORE_AGENT_MAX_STEPS overrides agent.max_steps
	v.SetEnvPrefix(internal.DefaultAppName)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unable to decode into struct: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return &cfg, nil
}

func (c Config) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Executor),
		validation.Field(&c.Agent),
		validation.Field(&c.Transcript),
		validation.Field(&c.Files),
		validation.Field(&c.Runner),
		validation.Field(&c.Log),
	)
}

func (c ExecutorConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxOutputSize, validation.Min(0)),
	)
}

func (c AgentConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.MaxSteps, validation.Required, validation.Min(1)),
		validation.Field(&c.FinalTool, validation.Required),
		validation.Field(&c.TranscriptWindow, validation.Min(0)),
		validation.Field(&c.RateLimitCapacity, validation.When(c.RateLimitEnabled, validation.Required, validation.Min(1))),
		validation.Field(&c.RateLimitRefillRate, validation.When(c.RateLimitEnabled, validation.Required)),
	)
}

func (c TranscriptConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Backend, validation.Required, validation.In(BackendMemory, BackendLibSQL)),
		validation.Field(&c.DSN, validation.When(c.Backend == BackendLibSQL, validation.Required)),
	)
}

func (c FilesConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Root, validation.When(c.Enabled, validation.Required)),
		validation.Field(&c.StatCacheCapacity, validation.When(c.Enabled, validation.Required, validation.Min(1))),
		validation.Field(&c.StatCacheTTLSeconds, validation.Min(0)),
	)
}

func (c RunnerConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Concurrency, validation.Required, validation.Min(1)),
	)
}

func (c LogConfig) Validate() error {
	return validation.ValidateStruct(&c,
		validation.Field(&c.Level, validation.In("trace", "debug", "info", "warn", "error", "disabled")),
	)
}
