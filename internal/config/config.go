package config

import (
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/caarlos0/env/v11"

	"github.com/jwebster45206/lingua-quest/pkg/contract"
	"github.com/jwebster45206/lingua-quest/pkg/state"
	"github.com/jwebster45206/lingua-quest/pkg/turn"
)

// Supported LLM providers
const (
	ProviderGemini    = "gemini"
	ProviderAnthropic = "anthropic"
	ProviderOllama    = "ollama"
)

var ErrMissingConfig = errors.New("missing required configuration")

// MissingConfigError names the environment variable that must be set.
type MissingConfigError struct {
	Key    string
	Reason string
}

func (e *MissingConfigError) Error() string {
	if e.Reason == "" {
		return fmt.Sprintf("%s: %s", ErrMissingConfig, e.Key)
	}
	return fmt.Sprintf("%s: %s (%s)", ErrMissingConfig, e.Key, e.Reason)
}

func (e *MissingConfigError) Unwrap() error {
	return ErrMissingConfig
}

type Config struct {
	Port         string     `env:"PORT" envDefault:"8080"`
	Environment  string     `env:"ENVIRONMENT" envDefault:"development"`
	LogLevelName string     `env:"LOG_LEVEL" envDefault:"info"`
	LogLevel     slog.Level // derived from LogLevelName

	LLMProvider     string `env:"LLM_PROVIDER" envDefault:"gemini"`
	ModelName       string `env:"MODEL_NAME"`
	GoogleAPIKey    string `env:"GOOGLE_API_KEY"`
	AnthropicAPIKey string `env:"ANTHROPIC_API_KEY"`
	OllamaURL       string `env:"OLLAMA_URL" envDefault:"http://localhost:11434"`

	RedisURL   string        `env:"REDIS_URL" envDefault:"redis://localhost:6379"`
	SessionTTL time.Duration `env:"SESSION_TTL" envDefault:"24h"`
	WorkerID   string        `env:"WORKER_ID"`

	// Turn policy
	ResponseContract string        `env:"RESPONSE_CONTRACT" envDefault:"evaluator.v2"`
	TurnTimeout      time.Duration `env:"TURN_TIMEOUT" envDefault:"60s"`
	LLMMaxAttempts   int           `env:"LLM_MAX_ATTEMPTS" envDefault:"3"`
	LLMRetryBackoff  time.Duration `env:"LLM_RETRY_BACKOFF" envDefault:"500ms"`

	// Session seed; empty values fall back to the game defaults
	TargetLanguage string `env:"TARGET_LANGUAGE"`
	LanguageLevel  string `env:"LANGUAGE_LEVEL"`
	StartLocation  string `env:"START_LOCATION"`
	StartMission   string `env:"START_MISSION"`
}

// Load reads the configuration from the process environment.
func Load() (*Config, error) {
	return parse(env.Options{})
}

// LoadFrom reads the configuration from the given variables only.
func LoadFrom(environ map[string]string) (*Config, error) {
	return parse(env.Options{Environment: environ})
}

func parse(opts env.Options) (*Config, error) {
	var cfg Config
	if err := env.ParseWithOptions(&cfg, opts); err != nil {
		return nil, fmt.Errorf("parse env: %w", err)
	}
	cfg.LLMProvider = strings.ToLower(strings.TrimSpace(cfg.LLMProvider))
	cfg.LogLevel = parseLogLevel(cfg.LogLevelName)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks provider credentials and turn policy values.
func (c *Config) Validate() error {
	switch c.LLMProvider {
	case ProviderGemini:
		if c.GoogleAPIKey == "" {
			return &MissingConfigError{Key: "GOOGLE_API_KEY", Reason: "required by the gemini provider"}
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return &MissingConfigError{Key: "ANTHROPIC_API_KEY", Reason: "required by the anthropic provider"}
		}
	case ProviderOllama:
		if c.ModelName == "" {
			return &MissingConfigError{Key: "MODEL_NAME", Reason: "required by the ollama provider"}
		}
	default:
		return fmt.Errorf("invalid LLM_PROVIDER %q (supported: %s, %s, %s)",
			c.LLMProvider, ProviderGemini, ProviderAnthropic, ProviderOllama)
	}

	if c.RedisURL == "" {
		return &MissingConfigError{Key: "REDIS_URL"}
	}
	if _, err := contract.Lookup(c.ResponseContract); err != nil {
		return fmt.Errorf("invalid RESPONSE_CONTRACT: %w", err)
	}
	if c.LLMMaxAttempts < 1 {
		return fmt.Errorf("LLM_MAX_ATTEMPTS must be at least 1, got %d", c.LLMMaxAttempts)
	}
	if c.TurnTimeout < 0 || c.LLMRetryBackoff < 0 {
		return fmt.Errorf("TURN_TIMEOUT and LLM_RETRY_BACKOFF cannot be negative")
	}
	return nil
}

// Seed is the starting state for new sessions.
func (c *Config) Seed() state.Seed {
	return state.Seed{
		TargetLanguage: c.TargetLanguage,
		LanguageLevel:  c.LanguageLevel,
		Location:       c.StartLocation,
		Mission:        c.StartMission,
	}
}

// TurnOptions carries the retry and timeout policy into a turn.Orchestrator.
func (c *Config) TurnOptions() []turn.Option {
	return []turn.Option{
		turn.WithRetry(c.LLMMaxAttempts, c.LLMRetryBackoff),
		turn.WithTimeout(c.TurnTimeout),
	}
}

func parseLogLevel(level string) slog.Level {
	switch strings.ToLower(level) {
	case "debug":
		return slog.LevelDebug
	case "info":
		return slog.LevelInfo
	case "warn", "warning":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}
