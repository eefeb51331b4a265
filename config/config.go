// Package config reads runtime settings from the environment and an
// optional .env file.
package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"

	"github.com/hupe1980/dialogmesh/logging"
)

// Providers accepted in DIALOG_PROVIDER.
const (
	ProviderAuto      = "auto"
	ProviderOpenAI    = "openai"
	ProviderAnthropic = "anthropic"
	ProviderEcho      = "echo"
)

// Config holds the settings shared by the CLI and the examples.
type Config struct {
	Provider          string
	Model             string
	OpenAIKey         string
	AnthropicKey      string
	ModelTimeout      time.Duration
	ForceExecuteOnYes bool
	SessionIdleTTL    time.Duration
	LogLevel          logging.LogLevel
}

// Options configures Load.
type Options struct {
	// EnvFiles are read in order; missing files are skipped. Variables set
	// in the process environment win over file values.
	EnvFiles []string
	// LookupEnv reads the process environment.
	LookupEnv func(key string) (string, bool)
	Logger    logging.Logger
}

// Load builds a Config. Malformed values are reported together.
func Load(optFns ...func(o *Options)) (*Config, error) {
	opts := Options{
		EnvFiles:  []string{".env"},
		LookupEnv: os.LookupEnv,
		Logger:    logging.NoOpLogger{},
	}
	for _, fn := range optFns {
		fn(&opts)
	}

	file := map[string]string{}
	for _, name := range opts.EnvFiles {
		values, err := godotenv.Read(name)
		if err != nil {
			if errors.Is(err, os.ErrNotExist) {
				opts.Logger.Debug("config.envfile.missing", "file", name)
				continue
			}
			return nil, fmt.Errorf("read %s: %w", name, err)
		}
		for k, v := range values {
			if _, seen := file[k]; !seen {
				file[k] = v
			}
		}
		opts.Logger.Debug("config.envfile.loaded", "file", name, "keys", len(values))
	}

	e := env{lookup: opts.LookupEnv, file: file}
	cfg := &Config{
		Provider:          strings.ToLower(e.str("DIALOG_PROVIDER", ProviderAuto)),
		Model:             e.str("DIALOG_MODEL", ""),
		OpenAIKey:         e.str("OPENAI_API_KEY", ""),
		AnthropicKey:      e.str("ANTHROPIC_API_KEY", ""),
		ModelTimeout:      e.duration("DIALOG_MODEL_TIMEOUT", 15*time.Second),
		ForceExecuteOnYes: e.boolean("FORCE_EXECUTE_ON_YES", true),
		SessionIdleTTL:    e.duration("DIALOG_SESSION_IDLE_TTL", 0),
		LogLevel:          logging.ParseLevel(e.str("DIALOG_LOG_LEVEL", "info")),
	}

	switch cfg.Provider {
	case ProviderAuto, ProviderOpenAI, ProviderAnthropic, ProviderEcho:
	default:
		e.errs = append(e.errs, fmt.Errorf("DIALOG_PROVIDER: unknown provider %q", cfg.Provider))
	}
	if err := errors.Join(e.errs...); err != nil {
		return nil, err
	}

	opts.Logger.Debug("config.loaded",
		"provider", cfg.Provider,
		"model", cfg.Model,
		"openai_key_set", cfg.OpenAIKey != "",
		"anthropic_key_set", cfg.AnthropicKey != "",
		"model_timeout", cfg.ModelTimeout,
		"force_execute_on_yes", cfg.ForceExecuteOnYes,
	)
	return cfg, nil
}

// ResolveProvider maps "auto" to the first provider with a key, falling back
// to the offline echo model.
func (c *Config) ResolveProvider() string {
	if c.Provider != ProviderAuto && c.Provider != "" {
		return c.Provider
	}
	switch {
	case c.OpenAIKey != "":
		return ProviderOpenAI
	case c.AnthropicKey != "":
		return ProviderAnthropic
	default:
		return ProviderEcho
	}
}

type env struct {
	lookup func(string) (string, bool)
	file   map[string]string
	errs   []error
}

func (e *env) str(key, def string) string {
	if v, ok := e.lookup(key); ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	if v, ok := e.file[key]; ok && strings.TrimSpace(v) != "" {
		return strings.TrimSpace(v)
	}
	return def
}

func (e *env) duration(key string, def time.Duration) time.Duration {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return d
}

func (e *env) boolean(key string, def bool) bool {
	raw := e.str(key, "")
	if raw == "" {
		return def
	}
	b, err := strconv.ParseBool(raw)
	if err != nil {
		e.errs = append(e.errs, fmt.Errorf("%s: %w", key, err))
		return def
	}
	return b
}
