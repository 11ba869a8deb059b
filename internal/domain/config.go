package domain

import (
	"os"
	"strconv"
)

// Config holds the complete Vigilant configuration.
type Config struct {
	Server ServerConfig `json:"server"`

	Repository RepositoryConfig `json:"repository"`
	Cache      CacheConfig      `json:"cache"`
	EventBus   EventBusConfig   `json:"eventBus"`
	Model      ModelConfig      `json:"model"`
	Scoring    ScoringConfig    `json:"scoring"`

	Logging LoggingConfig `json:"logging"`
}

// ServerConfig holds HTTP server settings.
type ServerConfig struct {
	Host         string `json:"host"`
	Port         int    `json:"port"`
	ReadTimeout  int    `json:"readTimeout"`  // seconds
	WriteTimeout int    `json:"writeTimeout"` // seconds
}

// ModelConfig locates the optional pre-trained anomaly model artifacts.
// Absence of the artifacts is not fatal: the adapter degrades to a
// rule-only mode that never reports an anomaly.
type ModelConfig struct {
	// Dir is the well-known artifact directory.
	Dir string `json:"dir"`
}

// ScoringConfig holds the fixed pipeline thresholds.
type ScoringConfig struct {
	// HistoryLimit bounds the account profile window.
	HistoryLimit int `json:"historyLimit"`

	// VelocityWindowSecs is the trailing window for the velocity rule.
	VelocityWindowSecs int `json:"velocityWindowSecs"`

	// VelocityThreshold is the count at which the velocity rule fires.
	VelocityThreshold int `json:"velocityThreshold"`

	// HighAmountThreshold is currency-unit-agnostic, a known simplification.
	HighAmountThreshold float64 `json:"highAmountThreshold"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level  string `json:"level"`  // debug, info, warn, error
	Format string `json:"format"` // json, text
}

// DefaultConfig returns the default configuration: SQLite storage, local
// LRU cache, in-process channel bus.
func DefaultConfig() *Config {
	return &Config{
		Server: ServerConfig{
			Host:         "0.0.0.0",
			Port:         8080,
			ReadTimeout:  30,
			WriteTimeout: 30,
		},
		Repository: RepositoryConfig{
			Driver:     "sqlite",
			SQLitePath: "./vigilant.db",
		},
		Cache: CacheConfig{
			Type:         "memory",
			LocalMaxSize: 10000,
		},
		EventBus: EventBusConfig{
			Type:              "channel",
			ChannelBufferSize: 1000,
		},
		Model: ModelConfig{
			Dir: "./models",
		},
		Scoring: ScoringConfig{
			HistoryLimit:        50,
			VelocityWindowSecs:  300,
			VelocityThreshold:   3,
			HighAmountThreshold: 10000,
		},
		Logging: LoggingConfig{
			Level:  "info",
			Format: "json",
		},
	}
}

// FromEnv overlays environment variables onto the default configuration.
func FromEnv() *Config {
	cfg := DefaultConfig()

	if v := os.Getenv("VIGILANT_HOST"); v != "" {
		cfg.Server.Host = v
	}
	if v := os.Getenv("VIGILANT_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = port
		}
	}
	if v := os.Getenv("VIGILANT_DB_DRIVER"); v != "" {
		cfg.Repository.Driver = v
	}
	if v := os.Getenv("VIGILANT_SQLITE_PATH"); v != "" {
		cfg.Repository.SQLitePath = v
	}
	if v := os.Getenv("VIGILANT_POSTGRES_HOST"); v != "" {
		cfg.Repository.PostgresHost = v
	}
	if v := os.Getenv("VIGILANT_POSTGRES_PORT"); v != "" {
		if port, err := strconv.Atoi(v); err == nil {
			cfg.Repository.PostgresPort = port
		}
	}
	if v := os.Getenv("VIGILANT_POSTGRES_USER"); v != "" {
		cfg.Repository.PostgresUser = v
	}
	if v := os.Getenv("VIGILANT_POSTGRES_PASSWORD"); v != "" {
		cfg.Repository.PostgresPassword = v
	}
	if v := os.Getenv("VIGILANT_POSTGRES_DB"); v != "" {
		cfg.Repository.PostgresDB = v
	}
	if v := os.Getenv("VIGILANT_CACHE"); v != "" {
		cfg.Cache.Type = v
	}
	if v := os.Getenv("VIGILANT_REDIS_ADDR"); v != "" {
		cfg.Cache.RedisAddr = v
	}
	if v := os.Getenv("VIGILANT_REDIS_PASSWORD"); v != "" {
		cfg.Cache.RedisPassword = v
	}
	if v := os.Getenv("VIGILANT_BUS"); v != "" {
		cfg.EventBus.Type = v
	}
	if v := os.Getenv("VIGILANT_NATS_URL"); v != "" {
		cfg.EventBus.NATSUrl = v
	}
	if v := os.Getenv("VIGILANT_MODEL_DIR"); v != "" {
		cfg.Model.Dir = v
	}
	if v := os.Getenv("VIGILANT_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("VIGILANT_LOG_FORMAT"); v != "" {
		cfg.Logging.Format = v
	}

	return cfg
}
