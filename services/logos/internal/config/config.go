package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"
)

// ConfigPath is the file read when no path is given.
const ConfigPath = "config.yaml"

// BreakerConfig tunes the generation circuit breaker.
type BreakerConfig struct {
	MaxRequests      uint32  `yaml:"maxRequests"`
	Interval         string  `yaml:"interval"`
	Timeout          string  `yaml:"timeout"`
	FailureThreshold float64 `yaml:"failureThreshold"`
	MinRequests      uint32  `yaml:"minRequests"`
}

// QuotaConfig caps generations per window. Limit 0 disables the quota.
type QuotaConfig struct {
	Limit  int    `yaml:"limit"`
	Window string `yaml:"window"`
}

// FileConfig represents configuration loaded from YAML.
type FileConfig struct {
	LogLevel           string        `yaml:"logLevel"`
	GenerationProvider string        `yaml:"generationProvider"`
	GenerationBaseURL  string        `yaml:"generationBaseURL"`
	GenerationAPIKey   string        `yaml:"generationAPIKey"`
	GeminiAPIKey       string        `yaml:"geminiAPIKey"`
	GenerationModel    string        `yaml:"generationModel"`
	ChatModel          string        `yaml:"chatModel"`
	RequestTimeout     string        `yaml:"requestTimeout"`
	MaxAttempts        int           `yaml:"maxAttempts"`
	SessionBackend     string        `yaml:"sessionBackend"`
	RedisAddr          string        `yaml:"redisAddr"`
	RedisPassword      string        `yaml:"redisPassword"`
	RedisPrefix        string        `yaml:"redisPrefix"`
	SessionTTL         string        `yaml:"sessionTTL"`
	SessionID          string        `yaml:"sessionID"`
	DurableDSN         string        `yaml:"durableDSN"`
	HistoryLimit       int           `yaml:"historyLimit"`
	MetricsAddr        string        `yaml:"metricsAddr"`
	GoogleClientID     string        `yaml:"googleClientID"`
	GoogleJWKSURL      string        `yaml:"googleJWKSURL"`
	Breaker            BreakerConfig `yaml:"breaker"`
	GenerationQuota    QuotaConfig   `yaml:"generationQuota"`
}

// Load reads config from path (defaults to config.yaml). A missing default
// file is not an error: defaults and environment overrides still apply.
func Load(path string) (FileConfig, error) {
	cfg := FileConfig{}
	explicit := path != ""
	if path == "" {
		path = ConfigPath
	}
	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config: %w", err)
		}
	case errors.Is(err, os.ErrNotExist) && !explicit:
	default:
		return cfg, fmt.Errorf("read config: %w", err)
	}
	applyEnv(&cfg)
	applyDefaults(&cfg)
	if err := validateConfig(cfg); err != nil {
		return cfg, err
	}
	return cfg, nil
}

func applyEnv(cfg *FileConfig) {
	if v := os.Getenv("LOGOS_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v := os.Getenv("GEMINI_API_KEY"); v != "" {
		cfg.GeminiAPIKey = v
	}
	if v := os.Getenv("LOGOS_GENERATION_PROVIDER"); v != "" {
		cfg.GenerationProvider = v
	}
	if v := os.Getenv("LOGOS_GENERATION_MODEL"); v != "" {
		cfg.GenerationModel = v
	}
	if v := os.Getenv("LOGOS_GENERATION_API_KEY"); v != "" {
		cfg.GenerationAPIKey = v
	}
	if v := os.Getenv("LOGOS_MAX_ATTEMPTS"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.MaxAttempts = n
		}
	}
	if v := os.Getenv("LOGOS_SESSION_BACKEND"); v != "" {
		cfg.SessionBackend = v
	}
	if v := os.Getenv("LOGOS_REDIS_ADDR"); v != "" {
		cfg.RedisAddr = v
	}
	if v := os.Getenv("LOGOS_REDIS_PASSWORD"); v != "" {
		cfg.RedisPassword = v
	}
	if v := os.Getenv("LOGOS_SESSION"); v != "" {
		cfg.SessionID = v
	}
	if v := os.Getenv("LOGOS_DURABLE_DSN"); v != "" {
		cfg.DurableDSN = v
	}
	if v := os.Getenv("LOGOS_METRICS_ADDR"); v != "" {
		cfg.MetricsAddr = v
	}
	if v := os.Getenv("LOGOS_GENERATION_QUOTA"); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			cfg.GenerationQuota.Limit = n
		}
	}
}

func applyDefaults(cfg *FileConfig) {
	if cfg.LogLevel == "" {
		cfg.LogLevel = "warn"
	}
	cfg.GenerationProvider = strings.ToLower(strings.TrimSpace(cfg.GenerationProvider))
	if cfg.GenerationProvider == "" {
		cfg.GenerationProvider = "gemini"
	}
	if cfg.GenerationModel == "" && cfg.GenerationProvider == "gemini" {
		cfg.GenerationModel = "gemini-2.5-flash"
	}
	if cfg.RequestTimeout == "" {
		cfg.RequestTimeout = "60s"
	}
	if cfg.MaxAttempts == 0 {
		cfg.MaxAttempts = 1
	}
	cfg.SessionBackend = strings.ToLower(strings.TrimSpace(cfg.SessionBackend))
	if cfg.SessionBackend == "" {
		cfg.SessionBackend = "memory"
	}
	if cfg.RedisPrefix == "" {
		cfg.RedisPrefix = "logos:session"
	}
	if cfg.SessionTTL == "" {
		cfg.SessionTTL = "12h"
	}
	if cfg.DurableDSN == "" {
		cfg.DurableDSN = defaultDurableDSN()
	}
	if cfg.HistoryLimit == 0 {
		cfg.HistoryLimit = 365
	}
	if cfg.GenerationQuota.Window == "" {
		cfg.GenerationQuota.Window = "24h"
	}
}

func defaultDurableDSN() string {
	home, err := os.UserHomeDir()
	if err != nil || home == "" {
		return filepath.Join(".logos", "logos.db")
	}
	return filepath.Join(home, ".logos", "logos.db")
}

func validateConfig(cfg FileConfig) error {
	switch cfg.GenerationProvider {
	case "gemini", "ollama", "openai-compat":
	default:
		return fmt.Errorf("config: unknown generationProvider %q (gemini, ollama or openai-compat)", cfg.GenerationProvider)
	}
	if cfg.GenerationProvider == "openai-compat" && strings.TrimSpace(cfg.GenerationBaseURL) == "" {
		return errors.New("config: generationBaseURL is required for openai-compat")
	}
	if cfg.GenerationProvider != "gemini" && strings.TrimSpace(cfg.GenerationModel) == "" {
		return errors.New("config: generationModel is required (set in config.yaml or LOGOS_GENERATION_MODEL)")
	}
	if cfg.MaxAttempts < 1 || cfg.MaxAttempts > 10 {
		return errors.New("config: maxAttempts must be between 1 and 10")
	}
	switch cfg.SessionBackend {
	case "memory":
	case "redis":
		if strings.TrimSpace(cfg.RedisAddr) == "" {
			return errors.New("config: redisAddr is required when sessionBackend=redis (set in config.yaml or LOGOS_REDIS_ADDR)")
		}
	default:
		return fmt.Errorf("config: unknown sessionBackend %q (memory or redis)", cfg.SessionBackend)
	}
	if cfg.HistoryLimit < 1 || cfg.HistoryLimit > 365 {
		return errors.New("config: historyLimit must be between 1 and 365")
	}
	if strings.TrimSpace(cfg.GoogleJWKSURL) != "" && strings.TrimSpace(cfg.GoogleClientID) == "" {
		return errors.New("config: googleClientID is required when googleJWKSURL is set")
	}
	if cfg.Breaker.FailureThreshold < 0 || cfg.Breaker.FailureThreshold > 1 {
		return errors.New("config: breaker.failureThreshold must be between 0 and 1")
	}
	if cfg.GenerationQuota.Limit < 0 {
		return errors.New("config: generationQuota.limit must not be negative")
	}
	for name, raw := range map[string]string{
		"requestTimeout":         cfg.RequestTimeout,
		"sessionTTL":             cfg.SessionTTL,
		"breaker.interval":       cfg.Breaker.Interval,
		"breaker.timeout":        cfg.Breaker.Timeout,
		"generationQuota.window": cfg.GenerationQuota.Window,
	} {
		if _, err := ParseDuration(raw); err != nil {
			return fmt.Errorf("config: %s: %w", name, err)
		}
	}
	return nil
}

// ParseDuration parses a Go duration string; empty means zero.
func ParseDuration(raw string) (time.Duration, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0, nil
	}
	d, err := time.ParseDuration(raw)
	if err != nil {
		return 0, fmt.Errorf("invalid duration %q", raw)
	}
	if d < 0 {
		return 0, fmt.Errorf("duration %q must not be negative", raw)
	}
	return d, nil
}

// APIKey returns the credential for the configured provider.
func (c FileConfig) APIKey() string {
	if c.GenerationProvider == "gemini" && strings.TrimSpace(c.GeminiAPIKey) != "" {
		return c.GeminiAPIKey
	}
	return c.GenerationAPIKey
}

// Timeout returns the parsed requestTimeout.
func (c FileConfig) Timeout() time.Duration {
	d, _ := ParseDuration(c.RequestTimeout)
	return d
}

// TTL returns the parsed sessionTTL.
func (c FileConfig) TTL() time.Duration {
	d, _ := ParseDuration(c.SessionTTL)
	return d
}
