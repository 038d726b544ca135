package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/pelletier/go-toml/v2"
)

// Config holds all tabpulse configuration.
type Config struct {
	Server    ServerConfig    `toml:"server"`
	Storage   StorageConfig   `toml:"storage"`
	Log       LogConfig       `toml:"log"`
	Monitor   MonitorConfig   `toml:"monitor"`
	Health    HealthConfig    `toml:"health"`
	Predictor PredictorConfig `toml:"predictor"`
	Notify    NotifyConfig    `toml:"notify"`
}

type ServerConfig struct {
	Bind string `toml:"bind"`
	Port int    `toml:"port"`
}

type StorageConfig struct {
	Backend           string `toml:"backend"` // "sqlite", "redis"
	Path              string `toml:"path"`
	RedisAddr         string `toml:"redis_addr"`
	RedisPassword     string `toml:"redis_password"`
	RedisDB           int    `toml:"redis_db"`
	RedisPrefix       string `toml:"redis_prefix"`
	MaxPatterns       int    `toml:"max_patterns"`
	MaxSnapshots      int    `toml:"max_snapshots"`
	MaxAccessPatterns int    `toml:"max_access_patterns"`
	MaxLeaks          int    `toml:"max_leaks"`
}

type LogConfig struct {
	Level      string `toml:"level"`
	Format     string `toml:"format"` // "console", "json"
	File       string `toml:"file"`   // empty logs to stderr
	MaxSizeMB  int    `toml:"max_size_mb"`
	MaxBackups int    `toml:"max_backups"`
}

type MonitorConfig struct {
	SampleIntervalMinutes float64 `toml:"sample_interval_minutes"`
	HistorySize           int     `toml:"history_size"`
	HistoryMinSize        int     `toml:"history_min_size"`
	GrowthThreshold       float64 `toml:"growth_threshold"`
	SampleSource          string  `toml:"sample_source"` // "tab", "system"
	TotalMemoryAlertMB    float64 `toml:"total_memory_alert_mb"`
	// LeakAlertOnce announces a leak once per growth episode; false
	// announces every pass that detects it.
	LeakAlertOnce bool `toml:"leak_alert_once"`
}

type HealthConfig struct {
	MemoryPenaltyThreshold float64 `toml:"memory_penalty_threshold"`
	MemoryPenaltyStep      float64 `toml:"memory_penalty_step"`
	MemoryPenaltyPoints    int     `toml:"memory_penalty_points"`
	MemoryPenaltyMax       int     `toml:"memory_penalty_max"`
	TimePenaltyPoints      int     `toml:"time_penalty_points"`
	TimePenaltyMax         int     `toml:"time_penalty_max"`
	ActiveTabBonus         int     `toml:"active_tab_bonus"`
}

type PredictorConfig struct {
	RecencyWeight    float64 `toml:"recency_weight"`
	FrequencyWeight  float64 `toml:"frequency_weight"`
	TimeWeight       float64 `toml:"time_weight"`
	DayWeight        float64 `toml:"day_weight"`
	HighConfidence   float64 `toml:"high_confidence"`
	MediumConfidence float64 `toml:"medium_confidence"`
	KeepThreshold    float64 `toml:"keep_threshold"`
	DecayRate        float64 `toml:"decay_rate"`
	CacheSize        int     `toml:"cache_size"`
}

type NotifyConfig struct {
	Provider   string `toml:"provider"` // "log", "command", "webhook", "none"
	Command    string `toml:"command"`
	WebhookURL string `toml:"webhook_url"`
}

// Default returns a Config with sensible defaults.
func Default() Config {
	return Config{
		Server: ServerConfig{
			Bind: "127.0.0.1",
			Port: 37778,
		},
		Storage: StorageConfig{
			Backend:           "sqlite",
			Path:              "", // resolved at runtime via store.DefaultDBPath()
			RedisAddr:         "127.0.0.1:6379",
			RedisPrefix:       "tabpulse:",
			MaxPatterns:       2000,
			MaxSnapshots:      500,
			MaxAccessPatterns: 500,
			MaxLeaks:          500,
		},
		Log: LogConfig{
			Level:      "info",
			Format:     "console",
			MaxSizeMB:  10,
			MaxBackups: 3,
		},
		Monitor: MonitorConfig{
			SampleIntervalMinutes: 0.5,
			HistorySize:           10,
			HistoryMinSize:        5,
			GrowthThreshold:       0.7,
			SampleSource:          "tab",
			TotalMemoryAlertMB:    2048,
			LeakAlertOnce:         true,
		},
		Health: HealthConfig{
			MemoryPenaltyThreshold: 100,
			MemoryPenaltyStep:      50,
			MemoryPenaltyPoints:    10,
			MemoryPenaltyMax:       40,
			TimePenaltyPoints:      5,
			TimePenaltyMax:         30,
			ActiveTabBonus:         10,
		},
		Predictor: PredictorConfig{
			RecencyWeight:    0.35,
			FrequencyWeight:  0.30,
			TimeWeight:       0.20,
			DayWeight:        0.15,
			HighConfidence:   0.7,
			MediumConfidence: 0.4,
			KeepThreshold:    0.5,
			DecayRate:        0.115,
			CacheSize:        1000,
		},
		Notify: NotifyConfig{
			Provider: "log",
			Command:  "notify-send",
		},
	}
}

// DefaultPath returns the default config file path: ~/.tabpulse/config.toml
func DefaultPath() (string, error) {
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("get home dir: %w", err)
	}
	return filepath.Join(home, ".tabpulse", "config.toml"), nil
}

// Load reads defaults, overlays the TOML file at path (a missing file is not
// an error), then applies TABPULSE_* environment overrides, including any
// found in a .env file in the working directory.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		switch {
		case errors.Is(err, os.ErrNotExist):
		case err != nil:
			return cfg, fmt.Errorf("read config: %w", err)
		default:
			if err := toml.Unmarshal(data, &cfg); err != nil {
				return cfg, fmt.Errorf("parse config %s: %w", path, err)
			}
		}
	}

	// .env is optional
	_ = godotenv.Load()
	cfg.applyEnv()

	if err := cfg.Validate(); err != nil {
		return cfg, fmt.Errorf("config validation failed: %w", err)
	}
	return cfg, nil
}

func (c *Config) applyEnv() {
	c.Server.Bind = getEnv("TABPULSE_BIND", c.Server.Bind)
	c.Server.Port = getIntEnv("TABPULSE_PORT", c.Server.Port)
	c.Storage.Backend = getEnv("TABPULSE_STORAGE", c.Storage.Backend)
	c.Storage.Path = getEnv("TABPULSE_DB", c.Storage.Path)
	c.Storage.RedisAddr = getEnv("TABPULSE_REDIS_ADDR", c.Storage.RedisAddr)
	c.Storage.RedisPassword = getEnv("TABPULSE_REDIS_PASSWORD", c.Storage.RedisPassword)
	c.Log.Level = getEnv("TABPULSE_LOG_LEVEL", c.Log.Level)
	c.Log.Format = getEnv("TABPULSE_LOG_FORMAT", c.Log.Format)
	c.Log.File = getEnv("TABPULSE_LOG_FILE", c.Log.File)
	c.Notify.Provider = getEnv("TABPULSE_NOTIFY", c.Notify.Provider)
	c.Notify.WebhookURL = getEnv("TABPULSE_WEBHOOK_URL", c.Notify.WebhookURL)
	c.Monitor.SampleSource = getEnv("TABPULSE_SAMPLE_SOURCE", c.Monitor.SampleSource)
}

// Validate rejects configurations the engine cannot run with.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("server port %d out of range", c.Server.Port)
	}
	switch c.Storage.Backend {
	case "sqlite", "redis":
	default:
		return fmt.Errorf("unknown storage backend %q", c.Storage.Backend)
	}
	if c.Storage.MaxPatterns <= 0 || c.Storage.MaxSnapshots <= 0 ||
		c.Storage.MaxAccessPatterns <= 0 || c.Storage.MaxLeaks <= 0 {
		return fmt.Errorf("storage caps must be positive")
	}
	m := c.Monitor
	if m.SampleIntervalMinutes <= 0 {
		return fmt.Errorf("sample interval must be positive")
	}
	if m.HistoryMinSize < 2 || m.HistorySize < m.HistoryMinSize {
		return fmt.Errorf("history sizes invalid: min %d, max %d", m.HistoryMinSize, m.HistorySize)
	}
	if m.GrowthThreshold <= 0 || m.GrowthThreshold > 1 {
		return fmt.Errorf("growth threshold must be in (0,1]")
	}
	switch m.SampleSource {
	case "tab", "system":
	default:
		return fmt.Errorf("unknown sample source %q", m.SampleSource)
	}
	if c.Health.MemoryPenaltyStep <= 0 {
		return fmt.Errorf("memory penalty step must be positive")
	}
	p := c.Predictor
	if p.RecencyWeight < 0 || p.FrequencyWeight < 0 || p.TimeWeight < 0 || p.DayWeight < 0 {
		return fmt.Errorf("predictor weights must be non-negative")
	}
	if sum := p.RecencyWeight + p.FrequencyWeight + p.TimeWeight + p.DayWeight; sum < 0.999 || sum > 1.001 {
		return fmt.Errorf("predictor weights sum to %.3f, want 1", sum)
	}
	return nil
}

// ListenAddr returns the bind:port address string.
func (c *Config) ListenAddr() string {
	return fmt.Sprintf("%s:%d", c.Server.Bind, c.Server.Port)
}

// SampleInterval returns the sampling period as a duration.
func (m MonitorConfig) SampleInterval() time.Duration {
	return time.Duration(m.SampleIntervalMinutes * float64(time.Minute))
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntEnv(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intVal, err := strconv.Atoi(value); err == nil {
			return intVal
		}
	}
	return defaultValue
}
