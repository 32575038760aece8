package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"post-judge/model"
)

// Config holds all application configuration.
type Config struct {
	DBPath    string                    `yaml:"db_path"`
	LogLevel  string                    `yaml:"log_level"`
	Timezone  string                    `yaml:"timezone"`
	Judging   JudgingConfig             `yaml:"judging"`
	Providers map[string]ProviderConfig `yaml:"providers"`
	Recovery  RecoveryConfig            `yaml:"recovery"`
	Telegram  TelegramConfig            `yaml:"telegram"`
}

// JudgingConfig bounds retries and worker waits.
type JudgingConfig struct {
	MaxRetries     *int     `yaml:"max_retries"`
	BaseDelay      Duration `yaml:"base_delay"`
	PerTaskTimeout Duration `yaml:"per_task_timeout"`
	OverallTimeout Duration `yaml:"overall_timeout"`
	HTTPTimeout    Duration `yaml:"http_timeout"`
	ShutdownGrace  Duration `yaml:"shutdown_grace"`
}

// ProviderConfig selects the AI backend for one persona.
type ProviderConfig struct {
	Kind        string  `yaml:"kind"`
	Model       string  `yaml:"model"`
	BaseURL     string  `yaml:"base_url"`
	Temperature float32 `yaml:"temperature"`
	MaxTokens   int     `yaml:"max_tokens"`
	APIKeyEnv   string  `yaml:"api_key_env"`
}

// RecoveryConfig controls the stale-post sweeper.
type RecoveryConfig struct {
	Schedule   string   `yaml:"schedule"`
	StaleAfter Duration `yaml:"stale_after"`
	BatchSize  int      `yaml:"batch_size"`
}

// TelegramConfig enables announcements when Token is set.
type TelegramConfig struct {
	Token  string `yaml:"token"`
	ChatID int64  `yaml:"chat_id"`
	TopN   int    `yaml:"top_n"`
}

// Enabled reports whether announcements should be sent.
func (t TelegramConfig) Enabled() bool {
	return t.Token != ""
}

// Duration is a time.Duration written as a Go duration string ("90s").
type Duration time.Duration

// UnmarshalYAML parses a duration string.
func (d *Duration) UnmarshalYAML(node *yaml.Node) error {
	var s string
	if err := node.Decode(&s); err != nil {
		return fmt.Errorf("line %d: duration must be a string: %w", node.Line, err)
	}
	v, err := time.ParseDuration(s)
	if err != nil {
		return fmt.Errorf("line %d: %w", node.Line, err)
	}
	*d = Duration(v)
	return nil
}

// Std returns d as a time.Duration.
func (d Duration) Std() time.Duration {
	return time.Duration(d)
}

var defaultProviders = map[string]ProviderConfig{
	string(model.PersonaHiroyuki): {
		Kind:      "openai",
		Model:     "gpt-4o-mini",
		MaxTokens: 300,
		APIKeyEnv: "OPENAI_API_KEY",
	},
	string(model.PersonaDewi): {
		Kind:      "gemini",
		Model:     "gemini-2.0-flash",
		MaxTokens: 300,
		APIKeyEnv: "GEMINI_API_KEY",
	},
	string(model.PersonaNakao): {
		Kind:      "openai",
		Model:     "anthropic/claude-3.5-haiku",
		BaseURL:   "https://openrouter.ai/api/v1",
		MaxTokens: 300,
		APIKeyEnv: "OPENROUTER_API_KEY",
	},
}

var logLevels = map[string]bool{"debug": true, "info": true, "warn": true, "error": true}

// Load reads configuration from a YAML file, loads a sibling .env file
// into the environment and applies defaults.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read config file: %w", err)
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parse config yaml: %w", err)
	}

	if err := loadDotEnv(filepath.Join(filepath.Dir(path), ".env")); err != nil {
		return nil, err
	}

	applyDefaults(cfg)
	applyEnvironmentOverrides(cfg)

	if err := validate(cfg); err != nil {
		return nil, fmt.Errorf("validate config: %w", err)
	}

	return cfg, nil
}

// GetConfigPath returns the config file path from environment or default.
func GetConfigPath() string {
	if path := os.Getenv("POST_JUDGE_CONFIG"); path != "" {
		return path
	}
	return "./config.yaml"
}

// loadDotEnv exports variables from path without overriding ones already
// set. A missing file is fine.
func loadDotEnv(path string) error {
	err := godotenv.Load(path)
	if err == nil || errors.Is(err, os.ErrNotExist) {
		return nil
	}
	return fmt.Errorf("load %s: %w", path, err)
}

func applyDefaults(cfg *Config) {
	if cfg.DBPath == "" {
		cfg.DBPath = "./post-judge.db"
	}
	if cfg.LogLevel == "" {
		cfg.LogLevel = "info"
	}
	if cfg.Timezone == "" {
		cfg.Timezone = "UTC"
	}

	j := &cfg.Judging
	if j.MaxRetries == nil {
		n := 2
		j.MaxRetries = &n
	}
	setDuration(&j.BaseDelay, time.Second)
	setDuration(&j.PerTaskTimeout, 70*time.Second)
	setDuration(&j.OverallTimeout, 90*time.Second)
	setDuration(&j.HTTPTimeout, 60*time.Second)
	setDuration(&j.ShutdownGrace, 5*time.Second)

	if cfg.Providers == nil {
		cfg.Providers = make(map[string]ProviderConfig)
	}
	for persona, def := range defaultProviders {
		p, ok := cfg.Providers[persona]
		if !ok {
			cfg.Providers[persona] = def
			continue
		}
		if p.Kind == "" {
			p.Kind = def.Kind
			if p.BaseURL == "" {
				p.BaseURL = def.BaseURL
			}
		}
		if p.Model == "" {
			p.Model = def.Model
		}
		if p.MaxTokens == 0 {
			p.MaxTokens = def.MaxTokens
		}
		if p.APIKeyEnv == "" {
			p.APIKeyEnv = def.APIKeyEnv
		}
		cfg.Providers[persona] = p
	}

	if cfg.Recovery.Schedule == "" {
		cfg.Recovery.Schedule = "@every 5m"
	}
	setDuration(&cfg.Recovery.StaleAfter, 10*time.Minute)
	if cfg.Recovery.BatchSize == 0 {
		cfg.Recovery.BatchSize = 20
	}

	if cfg.Telegram.TopN == 0 {
		cfg.Telegram.TopN = 10
	}
}

func setDuration(d *Duration, def time.Duration) {
	if *d == 0 {
		*d = Duration(def)
	}
}

func applyEnvironmentOverrides(cfg *Config) {
	if dbPath := os.Getenv("POST_JUDGE_DB"); dbPath != "" {
		cfg.DBPath = dbPath
	}
	if level := os.Getenv("POST_JUDGE_LOG_LEVEL"); level != "" {
		cfg.LogLevel = strings.ToLower(level)
	}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		cfg.Telegram.Token = token
	}
}

func validate(cfg *Config) error {
	if !logLevels[cfg.LogLevel] {
		return fmt.Errorf("log_level must be one of debug, info, warn, error, got %q", cfg.LogLevel)
	}
	if _, err := time.LoadLocation(cfg.Timezone); err != nil {
		return fmt.Errorf("invalid timezone %q: %w", cfg.Timezone, err)
	}

	j := cfg.Judging
	if *j.MaxRetries < 0 {
		return fmt.Errorf("judging.max_retries must not be negative, got %d", *j.MaxRetries)
	}
	for name, d := range map[string]Duration{
		"base_delay":       j.BaseDelay,
		"per_task_timeout": j.PerTaskTimeout,
		"overall_timeout":  j.OverallTimeout,
		"http_timeout":     j.HTTPTimeout,
		"shutdown_grace":   j.ShutdownGrace,
	} {
		if d < 0 {
			return fmt.Errorf("judging.%s must not be negative", name)
		}
	}

	for name, p := range cfg.Providers {
		if !model.Persona(name).Valid() {
			return fmt.Errorf("providers: unknown persona %q", name)
		}
		if p.Kind != "openai" && p.Kind != "gemini" {
			return fmt.Errorf("providers.%s.kind must be openai or gemini, got %q", name, p.Kind)
		}
		if p.Temperature < 0 || p.Temperature > 2 {
			return fmt.Errorf("providers.%s.temperature must be within [0, 2], got %v", name, p.Temperature)
		}
	}

	if cfg.Recovery.BatchSize < 0 {
		return fmt.Errorf("recovery.batch_size must not be negative, got %d", cfg.Recovery.BatchSize)
	}
	if cfg.Recovery.StaleAfter < 0 {
		return fmt.Errorf("recovery.stale_after must not be negative")
	}

	if cfg.Telegram.Enabled() && cfg.Telegram.ChatID == 0 {
		return fmt.Errorf("telegram.chat_id is required when telegram.token is set")
	}
	if cfg.Telegram.TopN < 0 {
		return fmt.Errorf("telegram.top_n must not be negative, got %d", cfg.Telegram.TopN)
	}
	return nil
}
