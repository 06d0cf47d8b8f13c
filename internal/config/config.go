// Package config loads the orchestrator's own YAML configuration through a
// lazy Manager with an explicit Validate step.
package config

import (
	"fmt"
	"os"
	"sync"
	"time"

	"gopkg.in/yaml.v3"
)

// Duration wraps time.Duration so config files write "300s"/"5m" instead of
// raw nanosecond integers.
type Duration struct {
	time.Duration
}

func (d *Duration) UnmarshalYAML(value *yaml.Node) error {
	var s string
	if err := value.Decode(&s); err != nil {
		return fmt.Errorf("duration must be a string like \"300s\": %w", err)
	}
	parsed, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("invalid duration %q: %w", s, err)
	}
	d.Duration = parsed
	return nil
}

func (d Duration) MarshalYAML() (interface{}, error) {
	return d.Duration.String(), nil
}

type ServerConfig struct {
	Port int `yaml:"port"`
}

type EscalationConfig struct {
	EvaluatorModel string `yaml:"evaluatorModel"`
	// ConfidenceThreshold is read but never consulted by the evaluator or
	// pipeline: the LLM's own confident boolean is authoritative.
	ConfidenceThreshold float64  `yaml:"confidenceThreshold"`
	TelegramTimeout     Duration `yaml:"telegramTimeout"`
}

type TelegramConfig struct {
	Enabled              bool `yaml:"enabled"`
	NotifyOnStart        bool `yaml:"notifyOnStart"`
	NotifyOnComplete     bool `yaml:"notifyOnComplete"`
	NotifyOnError        bool `yaml:"notifyOnError"`
	DenialAlertThreshold int  `yaml:"denialAlertThreshold"`
}

type StopConfig struct {
	RetryOnError       bool `yaml:"retryOnError"`
	MaxRetries         int  `yaml:"maxRetries"`
	EscalateToTelegram bool `yaml:"escalateToTelegram"`
}

type Config struct {
	Server     ServerConfig     `yaml:"server"`
	Escalation EscalationConfig `yaml:"escalation"`
	Telegram   TelegramConfig   `yaml:"telegram"`
	Stop       StopConfig       `yaml:"stop"`
}

// Default returns the config populated with every stated default.
// Decoding a user file happens on top of this literal, never via a
// post-decode zero-value sweep (zero is a legal explicit value for several
// fields, e.g. maxRetries: 0).
func Default() *Config {
	return &Config{
		Server: ServerConfig{Port: 7080},
		Escalation: EscalationConfig{
			EvaluatorModel:      "claude-haiku-4-5-20251001",
			ConfidenceThreshold: 0.8,
			TelegramTimeout:     Duration{300 * time.Second},
		},
		Telegram: TelegramConfig{
			Enabled:              false,
			NotifyOnStart:        false,
			NotifyOnComplete:     false,
			NotifyOnError:        false,
			DenialAlertThreshold: 3,
		},
		Stop: StopConfig{
			RetryOnError:       true,
			MaxRetries:         2,
			EscalateToTelegram: true,
		},
	}
}

func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server.port out of range: %d", c.Server.Port)
	}
	if c.Escalation.EvaluatorModel == "" {
		return fmt.Errorf("escalation.evaluatorModel must not be empty")
	}
	if c.Escalation.TelegramTimeout.Duration <= 0 {
		return fmt.Errorf("escalation.telegramTimeout must be positive")
	}
	if c.Telegram.DenialAlertThreshold < 0 {
		return fmt.Errorf("telegram.denialAlertThreshold must not be negative")
	}
	if c.Stop.MaxRetries < 0 {
		return fmt.Errorf("stop.maxRetries must not be negative")
	}
	return nil
}

// Manager lazily loads and caches the config exactly once.
type Manager struct {
	path string
	once sync.Once
	cfg  *Config
	err  error
}

func NewManager(path string) *Manager {
	return &Manager{path: path}
}

// Get loads the config on first call, returning Default() unmodified when
// the file does not exist — an orchestrator config is optional.
func (m *Manager) Get() (*Config, error) {
	m.once.Do(func() {
		cfg := Default()
		f, err := os.Open(m.path)
		if err != nil {
			if os.IsNotExist(err) {
				m.cfg = cfg
				return
			}
			m.err = fmt.Errorf("open config %s: %w", m.path, err)
			return
		}
		defer f.Close()

		dec := yaml.NewDecoder(f)
		dec.KnownFields(true)
		if err := dec.Decode(cfg); err != nil {
			m.err = fmt.Errorf("parse config %s: %w", m.path, err)
			return
		}
		if err := cfg.Validate(); err != nil {
			m.err = fmt.Errorf("validate config %s: %w", m.path, err)
			return
		}
		m.cfg = cfg
	})
	return m.cfg, m.err
}
