// Package config loads the user settings: a TOML file overlaid with
// environment variables.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/BurntSushi/toml"
	"github.com/caarlos0/env/v11"

	"dictate/hotkey"
	"dictate/mode"
)

const (
	ProviderGroq   = "groq"
	ProviderOpenAI = "openai"
)

const (
	InjectAuto  = "auto"
	InjectType  = "type"
	InjectPaste = "paste"
)

var ErrMissingCredentials = errors.New("no API key configured for provider")

// Duration is a time.Duration that reads and writes as "300ms" in TOML.
type Duration struct{ time.Duration }

func (d *Duration) UnmarshalText(b []byte) error {
	v, err := time.ParseDuration(string(b))
	if err != nil {
		return err
	}
	d.Duration = v
	return nil
}

func (d Duration) MarshalText() ([]byte, error) {
	return []byte(d.Duration.String()), nil
}

type CustomMode struct {
	Name   string `toml:"name"`
	Prompt string `toml:"prompt"`
}

type Config struct {
	Provider       string `toml:"provider"`
	GroqAPIKey     string `toml:"groq_api_key"`
	OpenAIAPIKey   string `toml:"openai_api_key"`
	TriggerKey     string `toml:"trigger_key"`
	TargetLanguage string `toml:"default_target_language"`
	DefaultMode    string `toml:"default_mode"`
	Language       string `toml:"transcription_language"`
	Device         string `toml:"device"`
	InjectStrategy string `toml:"inject_strategy"`
	LogPath        string `toml:"log_path"`

	MinRecording      Duration `toml:"min_recording"`
	TranscribeTimeout Duration `toml:"transcribe_timeout"`
	ProcessTimeout    Duration `toml:"process_timeout"`
	SilenceWarning    Duration `toml:"silence_warning"`

	CustomModes []CustomMode `toml:"custom_modes"`
}

func Default() Config {
	return Config{
		Provider:          ProviderGroq,
		TriggerKey:        hotkey.CapsLock.String(),
		TargetLanguage:    mode.DefaultTargetLanguage,
		DefaultMode:       "normal",
		InjectStrategy:    InjectAuto,
		MinRecording:      Duration{300 * time.Millisecond},
		TranscribeTimeout: Duration{30 * time.Second},
		ProcessTimeout:    Duration{20 * time.Second},
		SilenceWarning:    Duration{3 * time.Second},
	}
}

// DefaultPath is config.toml under the OS user config directory.
func DefaultPath() (string, error) {
	d, err := os.UserConfigDir()
	if err != nil {
		return "", err
	}
	return filepath.Join(d, "dictate", "config.toml"), nil
}

// Load reads path over the defaults, then applies environment overrides.
// A missing file is not an error.
func Load(path string) (Config, error) {
	cfg := Default()
	if path != "" {
		if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
			return Config{}, fmt.Errorf("read %s: %w", path, err)
		}
	}
	var o overrides
	if err := env.Parse(&o); err != nil {
		return Config{}, fmt.Errorf("parse env: %w", err)
	}
	o.apply(&cfg)
	cfg.Provider = strings.ToLower(strings.TrimSpace(cfg.Provider))
	return cfg, nil
}

// overrides are the environment variables that win over the file. Empty
// values leave the file setting alone.
type overrides struct {
	Provider       string `env:"DICTATE_PROVIDER"`
	GroqAPIKey     string `env:"GROQ_API_KEY"`
	OpenAIAPIKey   string `env:"OPENAI_API_KEY"`
	TriggerKey     string `env:"DICTATE_TRIGGER_KEY"`
	TargetLanguage string `env:"DICTATE_TARGET_LANGUAGE"`
	Language       string `env:"DICTATE_LANGUAGE"`
	Device         string `env:"DICTATE_DEVICE"`
	InjectStrategy string `env:"DICTATE_INJECT"`
	LogPath        string `env:"DICTATE_LOG_PATH"`
}

func (o overrides) apply(c *Config) {
	set := func(dst *string, v string) {
		if v != "" {
			*dst = v
		}
	}
	set(&c.Provider, o.Provider)
	set(&c.GroqAPIKey, o.GroqAPIKey)
	set(&c.OpenAIAPIKey, o.OpenAIAPIKey)
	set(&c.TriggerKey, o.TriggerKey)
	set(&c.TargetLanguage, o.TargetLanguage)
	set(&c.Language, o.Language)
	set(&c.Device, o.Device)
	set(&c.InjectStrategy, o.InjectStrategy)
	set(&c.LogPath, o.LogPath)
}

// Save writes cfg to path, creating the directory. API keys that came from
// the environment are written too, so callers that care should clear them.
func Save(path string, cfg Config) error {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return err
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_TRUNC|os.O_WRONLY, 0600)
	if err != nil {
		return err
	}
	if err := toml.NewEncoder(f).Encode(cfg); err != nil {
		f.Close()
		return err
	}
	return f.Close()
}

// Update applies fn to the settings stored in path, without environment
// overrides, and writes the result back.
func Update(path string, fn func(*Config)) error {
	cfg := Default()
	if _, err := toml.DecodeFile(path, &cfg); err != nil && !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("read %s: %w", path, err)
	}
	fn(&cfg)
	return Save(path, cfg)
}

func (c Config) Validate() error {
	var errs []error
	switch c.Provider {
	case ProviderGroq, ProviderOpenAI:
	default:
		errs = append(errs, fmt.Errorf("unknown provider %q", c.Provider))
	}
	if _, err := hotkey.ParseTrigger(c.TriggerKey); err != nil {
		errs = append(errs, err)
	}
	switch c.InjectStrategy {
	case InjectAuto, InjectType, InjectPaste:
	default:
		errs = append(errs, fmt.Errorf("unknown inject_strategy %q", c.InjectStrategy))
	}
	for name, d := range map[string]Duration{
		"min_recording":      c.MinRecording,
		"transcribe_timeout": c.TranscribeTimeout,
		"process_timeout":    c.ProcessTimeout,
	} {
		if d.Duration <= 0 {
			errs = append(errs, fmt.Errorf("%s must be positive", name))
		}
	}
	if _, ok := c.StartMode(); !ok {
		errs = append(errs, fmt.Errorf("default_mode %q is not a known mode", c.DefaultMode))
	}
	for i, m := range c.CustomModes {
		if strings.TrimSpace(m.Name) == "" || strings.TrimSpace(m.Prompt) == "" {
			errs = append(errs, fmt.Errorf("custom_modes[%d]: name and prompt are required", i))
		}
	}
	return errors.Join(errs...)
}

// APIKey returns the key for the selected provider.
func (c Config) APIKey() string {
	if c.Provider == ProviderOpenAI {
		return c.OpenAIAPIKey
	}
	return c.GroqAPIKey
}

// Credentials reports ErrMissingCredentials when the selected provider has
// no key.
func (c Config) Credentials() error {
	if c.APIKey() == "" {
		return fmt.Errorf("%w %q", ErrMissingCredentials, c.Provider)
	}
	return nil
}

func (c Config) Trigger() hotkey.Trigger {
	t, err := hotkey.ParseTrigger(c.TriggerKey)
	if err != nil {
		return hotkey.CapsLock
	}
	return t
}

// Cycle builds the mode cycle from the configured language and custom modes.
func (c Config) Cycle() mode.Cycle {
	custom := make([]mode.Mode, 0, len(c.CustomModes))
	for _, m := range c.CustomModes {
		custom = append(custom, mode.NewCustom(strings.TrimSpace(m.Name), m.Prompt))
	}
	return mode.NewCycle(c.TargetLanguage, custom)
}

// StartMode is the mode a new session starts in, matched by label
// ignoring case. ok is false when the name matches nothing, in which case
// Normal is returned.
func (c Config) StartMode() (m mode.Mode, ok bool) {
	name := strings.TrimSpace(c.DefaultMode)
	if name == "" {
		return mode.NewNormal(), true
	}
	cycle := c.Cycle()
	for _, cm := range cycle.Modes() {
		if strings.EqualFold(cm.Label(), name) || (cm.Kind != mode.Custom && strings.EqualFold(cm.Kind.String(), name)) {
			return cm, true
		}
	}
	return mode.NewNormal(), false
}

// Clone returns a deep copy safe to hand to another goroutine.
func (c Config) Clone() Config {
	out := c
	out.CustomModes = append([]CustomMode(nil), c.CustomModes...)
	return out
}
