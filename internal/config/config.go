// Package config loads the voice controller's settings from defaults, an
// optional TOML file, a .env file and the environment, in that order.
package config

import (
	"errors"
	"fmt"
	"io/fs"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/joho/godotenv"

	"github.com/chriscow/utero-voice/internal/logging"
	"github.com/chriscow/utero-voice/pkg/agent"
	"github.com/chriscow/utero-voice/pkg/ai"
	"github.com/chriscow/utero-voice/pkg/models"
)

// ErrInvalid is wrapped by every validation failure.
var ErrInvalid = errors.New("invalid configuration")

// DefaultFile is read when no file is named and it exists in the working directory.
const DefaultFile = "utero.toml"

// Duration is a time.Duration written as "2.5s" in files and the environment.
type Duration time.Duration

// UnmarshalText parses a Go duration string.
func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(strings.TrimSpace(string(b)))
	if err != nil {
		return err
	}
	*d = Duration(v)
	return nil
}

// MarshalText formats the duration.
func (d Duration) MarshalText() ([]byte, error) {
	return []byte(time.Duration(d).String()), nil
}

// Config is the complete application configuration.
type Config struct {
	Log        LogConfig        `toml:"log"`
	Server     ServerConfig     `toml:"server"`
	Completion CompletionConfig `toml:"completion"`
	Voice      VoiceConfig      `toml:"voice"`
	Turn       TurnConfig       `toml:"turn"`
	Messages   agent.Messages   `toml:"messages"`

	// Models replaces the built-in catalogue when set.
	Models []models.Model `toml:"models"`
}

type LogConfig struct {
	Level  string `toml:"level"`
	Format string `toml:"format"` // json or console
}

type ServerConfig struct {
	Addr           string   `toml:"addr"`
	AllowedOrigins []string `toml:"allowed_origins"`
}

// CompletionConfig selects and configures the completion provider plugin.
type CompletionConfig struct {
	Provider         string   `toml:"provider"` // proxy, openai or fake
	URL              string   `toml:"url"`      // proxy endpoint
	APIKey           string   `toml:"api_key"`
	BaseURL          string   `toml:"base_url"`
	GroqAPIKey       string   `toml:"groq_api_key"`
	OpenRouterAPIKey string   `toml:"openrouter_api_key"`
	Model            string   `toml:"model"`
	SystemPrompt     string   `toml:"system_prompt"`
	Timeout          Duration `toml:"timeout"`
}

type VoiceConfig struct {
	Language string  `toml:"language"`
	Rate     float64 `toml:"rate"`
	Pitch    float64 `toml:"pitch"`
	Volume   float64 `toml:"volume"`
}

// TurnConfig tunes turn taking and capture recovery.
type TurnConfig struct {
	DebounceDelay  Duration `toml:"debounce_delay"`
	MaxRetries     int      `toml:"max_retries"`
	RetryBaseDelay Duration `toml:"retry_base_delay"`
	HistoryLimit   int      `toml:"history_limit"`
}

// Default returns the built-in configuration.
func Default() *Config {
	return &Config{
		Log: LogConfig{Level: "info", Format: logging.FormatJSON},
		Server: ServerConfig{
			Addr: ":8080",
		},
		Completion: CompletionConfig{
			Provider: "proxy",
			URL:      "http://localhost:3000/api/chat",
			Timeout:  Duration(60 * time.Second),
		},
		Voice: VoiceConfig{
			Language: "id-ID",
			Rate:     1,
			Pitch:    1,
			Volume:   1,
		},
		Turn: TurnConfig{
			DebounceDelay:  Duration(agent.DefaultDebounceDelay),
			MaxRetries:     ai.DefaultRetryConfig.MaxRetries,
			RetryBaseDelay: Duration(ai.DefaultRetryConfig.BaseDelay),
			HistoryLimit:   agent.DefaultHistoryLimit,
		},
	}
}

// Load builds the configuration. path names a TOML file; when empty,
// DefaultFile is used if present. A .env file in the working directory is
// loaded into the environment without overriding variables already set.
func Load(path string) (*Config, error) {
	cfg := Default()

	if path == "" {
		if _, err := os.Stat(DefaultFile); err == nil {
			path = DefaultFile
		}
	}
	if path != "" {
		if _, err := toml.DecodeFile(path, cfg); err != nil {
			return nil, fmt.Errorf("load %s: %w", path, err)
		}
	}

	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}
	if err := cfg.ApplyEnv(os.LookupEnv); err != nil {
		return nil, err
	}
	return cfg, nil
}

// ApplyEnv overrides fields from environment variables.
func (c *Config) ApplyEnv(lookup func(string) (string, bool)) error {
	str := func(key string, dst *string) {
		if v, ok := lookup(key); ok && v != "" {
			*dst = v
		}
	}
	var errs []error
	num := func(key string, dst *float64) {
		if v, ok := lookup(key); ok && v != "" {
			f, err := strconv.ParseFloat(v, 64)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
				return
			}
			*dst = f
		}
	}
	integer := func(key string, dst *int) {
		if v, ok := lookup(key); ok && v != "" {
			n, err := strconv.Atoi(v)
			if err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
				return
			}
			*dst = n
		}
	}
	duration := func(key string, dst *Duration) {
		if v, ok := lookup(key); ok && v != "" {
			if err := dst.UnmarshalText([]byte(v)); err != nil {
				errs = append(errs, fmt.Errorf("%w: %s: %v", ErrInvalid, key, err))
			}
		}
	}

	str("UTERO_LOG_LEVEL", &c.Log.Level)
	str("UTERO_LOG_FORMAT", &c.Log.Format)
	str("UTERO_ADDR", &c.Server.Addr)
	if v, ok := lookup("UTERO_ALLOWED_ORIGINS"); ok && v != "" {
		c.Server.AllowedOrigins = splitList(v)
	}

	str("UTERO_COMPLETION_PROVIDER", &c.Completion.Provider)
	str("UTERO_PROXY_URL", &c.Completion.URL)
	str("OPENAI_API_KEY", &c.Completion.APIKey)
	str("OPENAI_BASE_URL", &c.Completion.BaseURL)
	str("GROQ_API_KEY", &c.Completion.GroqAPIKey)
	str("OPENROUTER_API_KEY", &c.Completion.OpenRouterAPIKey)
	str("UTERO_MODEL", &c.Completion.Model)
	str("UTERO_SYSTEM_PROMPT", &c.Completion.SystemPrompt)
	duration("UTERO_COMPLETION_TIMEOUT", &c.Completion.Timeout)

	str("UTERO_LANGUAGE", &c.Voice.Language)
	num("UTERO_VOICE_RATE", &c.Voice.Rate)
	num("UTERO_VOICE_PITCH", &c.Voice.Pitch)
	num("UTERO_VOICE_VOLUME", &c.Voice.Volume)

	duration("UTERO_DEBOUNCE_DELAY", &c.Turn.DebounceDelay)
	integer("UTERO_MAX_RETRIES", &c.Turn.MaxRetries)
	duration("UTERO_RETRY_BASE_DELAY", &c.Turn.RetryBaseDelay)
	integer("UTERO_HISTORY_LIMIT", &c.Turn.HistoryLimit)

	return errors.Join(errs...)
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if part = strings.TrimSpace(part); part != "" {
			out = append(out, part)
		}
	}
	return out
}

// Validate checks the configuration. Every problem is reported, each
// wrapping ErrInvalid.
func (c *Config) Validate() error {
	var errs []error
	fail := func(format string, args ...any) {
		errs = append(errs, fmt.Errorf("%w: %s", ErrInvalid, fmt.Sprintf(format, args...)))
	}

	if _, err := logging.ParseLevel(c.Log.Level); err != nil {
		fail("log.level: %v", err)
	}
	switch strings.ToLower(c.Log.Format) {
	case logging.FormatJSON, logging.FormatConsole:
	default:
		fail("log.format %q: want json or console", c.Log.Format)
	}

	if c.Completion.Provider == "" {
		fail("completion.provider is required")
	}
	if c.Completion.Provider == "proxy" {
		u, err := url.Parse(c.Completion.URL)
		if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
			fail("completion.url %q: want an absolute http(s) URL", c.Completion.URL)
		}
	}
	if c.Completion.Timeout < 0 {
		fail("completion.timeout cannot be negative")
	}

	if strings.TrimSpace(c.Voice.Language) == "" {
		fail("voice.language is required")
	}
	if c.Voice.Rate < 0.1 || c.Voice.Rate > 10 {
		fail("voice.rate %v: want 0.1 to 10", c.Voice.Rate)
	}
	if c.Voice.Pitch <= 0 || c.Voice.Pitch > 2 {
		fail("voice.pitch %v: want above 0 up to 2", c.Voice.Pitch)
	}
	if c.Voice.Volume <= 0 || c.Voice.Volume > 1 {
		fail("voice.volume %v: want above 0 up to 1", c.Voice.Volume)
	}

	if c.Turn.DebounceDelay <= 0 {
		fail("turn.debounce_delay must be positive")
	}
	if c.Turn.MaxRetries < 0 {
		fail("turn.max_retries cannot be negative")
	}
	if c.Turn.RetryBaseDelay <= 0 {
		fail("turn.retry_base_delay must be positive")
	}
	if c.Turn.HistoryLimit <= 0 {
		fail("turn.history_limit must be positive")
	}

	if _, err := c.Registry(); err != nil {
		fail("models: %v", err)
	}
	return errors.Join(errs...)
}

// Registry returns the model catalogue: the configured models, or the
// built-in one. The selected model must be part of it.
func (c *Config) Registry() (*models.Registry, error) {
	var reg *models.Registry
	if len(c.Models) == 0 {
		reg = models.Default()
	} else {
		def := c.Completion.Model
		if def == "" {
			def = c.Models[0].ID
		}
		r, err := models.NewRegistry(def, c.Models...)
		if err != nil {
			return nil, err
		}
		reg = r
	}
	if c.Completion.Model != "" {
		if _, ok := reg.Lookup(c.Completion.Model); !ok {
			return nil, fmt.Errorf("model %q: %w", c.Completion.Model, models.ErrUnknownModel)
		}
	}
	return reg, nil
}

// PluginConfig returns the settings handed to the completion provider factory.
func (c *Config) PluginConfig() map[string]any {
	cfg := map[string]any{
		"url":           c.Completion.URL,
		"system_prompt": c.Completion.SystemPrompt,
		"model":         c.Completion.Model,
		"api_key":       c.Completion.APIKey,
		"base_url":      c.Completion.BaseURL,
	}
	if c.Completion.Timeout > 0 {
		cfg["timeout"] = time.Duration(c.Completion.Timeout)
	}
	if c.Completion.GroqAPIKey != "" {
		cfg["groq_api_key"] = c.Completion.GroqAPIKey
	}
	if c.Completion.OpenRouterAPIKey != "" {
		cfg["openrouter_api_key"] = c.Completion.OpenRouterAPIKey
	}
	return cfg
}

// AgentConfig returns the controller settings. Engines, the completion
// provider and callbacks are left for the caller.
func (c *Config) AgentConfig() (agent.Config, error) {
	reg, err := c.Registry()
	if err != nil {
		return agent.Config{}, err
	}
	return agent.Config{
		Models:        reg,
		Model:         c.Completion.Model,
		Language:      c.Voice.Language,
		Rate:          c.Voice.Rate,
		Pitch:         c.Voice.Pitch,
		Volume:        c.Voice.Volume,
		DebounceDelay: time.Duration(c.Turn.DebounceDelay),
		Retry: &ai.RetryConfig{
			MaxRetries: c.Turn.MaxRetries,
			BaseDelay:  time.Duration(c.Turn.RetryBaseDelay),
		},
		HistoryLimit: c.Turn.HistoryLimit,
		Messages:     c.Messages,
	}, nil
}
