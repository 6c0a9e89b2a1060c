// Package config loads runtime settings from .env, an optional YAML file and
// the environment (highest precedence). API keys are only read from the
// environment.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

const (
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
)

const (
	DefaultOpenAIModel    = "gpt-4o-mini"
	DefaultAnthropicModel = "claude-3-7-sonnet-latest"
)

type Config struct {
	Provider      string   `yaml:"provider"`
	Model         string   `yaml:"model"`
	OpenAIBaseURL string   `yaml:"openai_base_url"`
	SystemPrompt  string   `yaml:"system_prompt"`
	Temperature   *float64 `yaml:"temperature"`
	MaxTokens     int64    `yaml:"max_tokens"`
	Stream        bool     `yaml:"stream"`

	// MaxToolRounds bounds tool-call rounds per user turn.
	MaxToolRounds int           `yaml:"max_tool_rounds"`
	ToolTimeout   time.Duration `yaml:"tool_timeout"`
	// ModelTimeout of 0 leaves model calls bounded only by the caller's context.
	ModelTimeout time.Duration `yaml:"model_timeout"`
	// TokenBudget of 0 sends the full history on every call.
	TokenBudget int `yaml:"token_budget"`

	ListenAddr string `yaml:"listen_addr"`
	// MaxSessions caps live web chat sessions; the least recently used is
	// dropped beyond it. SessionTTL drops sessions idle for longer.
	MaxSessions int           `yaml:"max_sessions"`
	SessionTTL  time.Duration `yaml:"session_ttl"`

	OpenAIAPIKey      string `yaml:"-"`
	AnthropicAPIKey   string `yaml:"-"`
	NaverClientID     string `yaml:"-"`
	NaverClientSecret string `yaml:"-"`
}

// Default returns the built-in settings before any file or env is applied.
func Default() *Config {
	return &Config{
		Provider:      ProviderOpenAI,
		MaxTokens:     1024,
		Stream:        true,
		MaxToolRounds: 8,
		ToolTimeout:   30 * time.Second,
		ListenAddr:    ":8080",
		MaxSessions:   1000,
		SessionTTL:    30 * time.Minute,
	}
}

// LoadDotEnv loads KEY=VALUE files into the process environment without
// overriding variables that are already set. Missing files are ignored.
func LoadDotEnv(files ...string) error {
	if len(files) == 0 {
		files = []string{".env"}
	}
	for _, f := range files {
		if err := godotenv.Load(f); err != nil && !errors.Is(err, os.ErrNotExist) {
			return fmt.Errorf("load %s: %w", f, err)
		}
	}
	return nil
}

// Load builds the config: defaults, then the YAML file at path (or
// $CHATLOOP_CONFIG when path is empty), then environment variables.
func Load(path string) (*Config, error) {
	cfg := Default()
	if path == "" {
		path = os.Getenv("CHATLOOP_CONFIG")
	}
	if path != "" {
		b, err := os.ReadFile(path)
		if err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
		if err := yaml.Unmarshal(b, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(); err != nil {
		return nil, err
	}
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	if cfg.Model == "" {
		cfg.Model = defaultModel(cfg.Provider)
	}
	return cfg, nil
}

// Validate reports settings that make a session impossible to start.
func (c *Config) Validate() error {
	switch c.Provider {
	case ProviderOpenAI:
		if c.OpenAIAPIKey == "" {
			return errors.New("OPENAI_API_KEY not set; export it or add it to .env")
		}
	case ProviderAnthropic:
		if c.AnthropicAPIKey == "" {
			return errors.New("ANTHROPIC_API_KEY not set; export it or add it to .env")
		}
	default:
		return fmt.Errorf("unknown provider %q (want %q or %q)", c.Provider, ProviderOpenAI, ProviderAnthropic)
	}
	if c.MaxToolRounds <= 0 {
		return fmt.Errorf("max tool rounds must be positive, got %d", c.MaxToolRounds)
	}
	if c.TokenBudget < 0 {
		return fmt.Errorf("token budget must not be negative, got %d", c.TokenBudget)
	}
	if c.MaxSessions <= 0 {
		return fmt.Errorf("max sessions must be positive, got %d", c.MaxSessions)
	}
	return nil
}

// NewsSearchEnabled reports whether Naver credentials are configured.
func (c *Config) NewsSearchEnabled() bool {
	return c.NaverClientID != "" && c.NaverClientSecret != ""
}

func defaultModel(provider string) string {
	if provider == ProviderAnthropic {
		return DefaultAnthropicModel
	}
	return DefaultOpenAIModel
}

func (c *Config) applyEnv() error {
	setString(&c.Provider, "CHATLOOP_PROVIDER")
	setString(&c.Model, "CHATLOOP_MODEL")
	setString(&c.OpenAIBaseURL, "OPENAI_BASE_URL")
	setString(&c.SystemPrompt, "CHATLOOP_SYSTEM_PROMPT")
	setString(&c.ListenAddr, "CHATLOOP_LISTEN_ADDR")
	setString(&c.OpenAIAPIKey, "OPENAI_API_KEY")
	setString(&c.AnthropicAPIKey, "ANTHROPIC_API_KEY")
	setString(&c.NaverClientID, "Naver_Client_ID", "NAVER_CLIENT_ID")
	setString(&c.NaverClientSecret, "Naver_Client_Secret", "NAVER_CLIENT_SECRET")

	if v := os.Getenv("CHATLOOP_TEMPERATURE"); v != "" {
		f, err := strconv.ParseFloat(v, 64)
		if err != nil {
			return fmt.Errorf("invalid CHATLOOP_TEMPERATURE %q: %w", v, err)
		}
		c.Temperature = &f
	}
	if v := os.Getenv("CHATLOOP_MAX_TOKENS"); v != "" {
		n, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			return fmt.Errorf("invalid CHATLOOP_MAX_TOKENS %q: %w", v, err)
		}
		c.MaxTokens = n
	}
	if v := os.Getenv("CHATLOOP_STREAM"); v != "" {
		b, err := strconv.ParseBool(v)
		if err != nil {
			return fmt.Errorf("invalid CHATLOOP_STREAM %q: %w", v, err)
		}
		c.Stream = b
	}
	if err := setInt(&c.MaxToolRounds, "CHATLOOP_MAX_TOOL_ROUNDS"); err != nil {
		return err
	}
	if err := setInt(&c.TokenBudget, "CHATLOOP_TOKEN_BUDGET"); err != nil {
		return err
	}
	if err := setInt(&c.MaxSessions, "CHATLOOP_MAX_SESSIONS"); err != nil {
		return err
	}
	if err := setDuration(&c.SessionTTL, "CHATLOOP_SESSION_TTL"); err != nil {
		return err
	}
	if err := setDuration(&c.ToolTimeout, "CHATLOOP_TOOL_TIMEOUT"); err != nil {
		return err
	}
	return setDuration(&c.ModelTimeout, "CHATLOOP_MODEL_TIMEOUT")
}

// setString assigns the first non-empty variable among keys.
func setString(dst *string, keys ...string) {
	for _, k := range keys {
		if v := os.Getenv(k); v != "" {
			*dst = v
			return
		}
	}
}

func setInt(dst *int, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = n
	return nil
}

func setDuration(dst *time.Duration, key string) error {
	v := os.Getenv(key)
	if v == "" {
		return nil
	}
	d, err := time.ParseDuration(v)
	if err != nil {
		return fmt.Errorf("invalid %s %q: %w", key, v, err)
	}
	*dst = d
	return nil
}
