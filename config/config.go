package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/joho/godotenv"
)

// Config is the full application configuration, loaded from config.json
// with environment variable overrides taking precedence.
type Config struct {
	ServerConfig   ServerConfig   `json:"server"`
	DatabaseConfig DatabaseConfig `json:"database"`
	RedisConfig    RedisConfig    `json:"redis"`
	FeedConfig     FeedConfig     `json:"feed"`
	EngineConfig   EngineConfig   `json:"engine"`
	LoggingConfig  LoggingConfig  `json:"logging"`
	OutcomeConfig  OutcomeConfig  `json:"outcome"`
}

// ServerConfig holds HTTP API settings.
type ServerConfig struct {
	Host string `json:"host"`
	Port int    `json:"port"`
}

// DatabaseConfig holds PostgreSQL settings for the weights store and the
// outcome repository. Enabled=false runs the engine with static weights.
type DatabaseConfig struct {
	Enabled  bool   `json:"enabled"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	Database string `json:"database"`
	SSLMode  string `json:"ssl_mode"`
}

// RedisConfig holds analysis-cache settings.
type RedisConfig struct {
	Enabled    bool   `json:"enabled"`
	Addr       string `json:"addr"`
	Password   string `json:"password"`
	DB         int    `json:"db"`
	TTLSeconds int    `json:"ttl_seconds"`
}

// FeedConfig holds the websocket candle feed settings.
type FeedConfig struct {
	Enabled  bool   `json:"enabled"`
	BaseURL  string `json:"base_url"`
	Symbol   string `json:"symbol"`
	Interval string `json:"interval"`
}

// EngineConfig holds signal-engine settings.
type EngineConfig struct {
	EnableSessionOpenFilter bool    `json:"enable_session_open_filter"`
	SizeMultiplier          float64 `json:"size_multiplier"`
	MaxSignals              int     `json:"max_signals"`
}

// LoggingConfig holds zerolog settings.
type LoggingConfig struct {
	Level  string `json:"level"`
	Pretty bool   `json:"pretty"`
}

// OutcomeConfig holds the trade-outcome webhook settings.
type OutcomeConfig struct {
	WebhookURL string `json:"webhook_url"`
}

// Load reads config.json when present and applies environment overrides.
// A .env file in the working directory is honored.
func Load() (*Config, error) {
	_ = godotenv.Load()

	cfg, err := loadFromFile("config.json")
	if err != nil {
		cfg = defaultConfig()
	}

	applyEnvOverrides(cfg)
	return cfg, nil
}

func defaultConfig() *Config {
	return &Config{
		ServerConfig: ServerConfig{Host: "0.0.0.0", Port: 8080},
		DatabaseConfig: DatabaseConfig{
			Host: "localhost", Port: 5432, User: "postgres", Database: "smc_engine", SSLMode: "disable",
		},
		RedisConfig:   RedisConfig{Addr: "localhost:6379", TTLSeconds: 60},
		FeedConfig:    FeedConfig{BaseURL: "wss://stream.binance.com:9443/ws", Symbol: "BTCUSDT", Interval: "5m"},
		EngineConfig:  EngineConfig{SizeMultiplier: 1},
		LoggingConfig: LoggingConfig{Level: "info"},
	}
}

func loadFromFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	cfg := defaultConfig()
	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}
	return cfg, nil
}

func applyEnvOverrides(cfg *Config) {
	cfg.ServerConfig.Host = getEnvOrDefault("SERVER_HOST", cfg.ServerConfig.Host)
	cfg.ServerConfig.Port = getEnvIntOrDefault("SERVER_PORT", cfg.ServerConfig.Port)

	cfg.DatabaseConfig.Enabled = getEnvBoolOrDefault("DB_ENABLED", cfg.DatabaseConfig.Enabled)
	cfg.DatabaseConfig.Host = getEnvOrDefault("DB_HOST", cfg.DatabaseConfig.Host)
	cfg.DatabaseConfig.Port = getEnvIntOrDefault("DB_PORT", cfg.DatabaseConfig.Port)
	cfg.DatabaseConfig.User = getEnvOrDefault("DB_USER", cfg.DatabaseConfig.User)
	cfg.DatabaseConfig.Password = getEnvOrDefault("DB_PASSWORD", cfg.DatabaseConfig.Password)
	cfg.DatabaseConfig.Database = getEnvOrDefault("DB_NAME", cfg.DatabaseConfig.Database)
	cfg.DatabaseConfig.SSLMode = getEnvOrDefault("DB_SSLMODE", cfg.DatabaseConfig.SSLMode)

	cfg.RedisConfig.Enabled = getEnvBoolOrDefault("REDIS_ENABLED", cfg.RedisConfig.Enabled)
	cfg.RedisConfig.Addr = getEnvOrDefault("REDIS_ADDR", cfg.RedisConfig.Addr)
	cfg.RedisConfig.Password = getEnvOrDefault("REDIS_PASSWORD", cfg.RedisConfig.Password)
	cfg.RedisConfig.DB = getEnvIntOrDefault("REDIS_DB", cfg.RedisConfig.DB)
	cfg.RedisConfig.TTLSeconds = getEnvIntOrDefault("REDIS_TTL_SECONDS", cfg.RedisConfig.TTLSeconds)

	cfg.FeedConfig.Enabled = getEnvBoolOrDefault("FEED_ENABLED", cfg.FeedConfig.Enabled)
	cfg.FeedConfig.BaseURL = getEnvOrDefault("FEED_BASE_URL", cfg.FeedConfig.BaseURL)
	cfg.FeedConfig.Symbol = getEnvOrDefault("FEED_SYMBOL", cfg.FeedConfig.Symbol)
	cfg.FeedConfig.Interval = getEnvOrDefault("FEED_INTERVAL", cfg.FeedConfig.Interval)

	cfg.EngineConfig.EnableSessionOpenFilter = getEnvBoolOrDefault("ENGINE_SESSION_OPEN_FILTER", cfg.EngineConfig.EnableSessionOpenFilter)
	cfg.EngineConfig.MaxSignals = getEnvIntOrDefault("ENGINE_MAX_SIGNALS", cfg.EngineConfig.MaxSignals)

	cfg.LoggingConfig.Level = getEnvOrDefault("LOG_LEVEL", cfg.LoggingConfig.Level)
	cfg.LoggingConfig.Pretty = getEnvBoolOrDefault("LOG_PRETTY", cfg.LoggingConfig.Pretty)

	cfg.OutcomeConfig.WebhookURL = getEnvOrDefault("OUTCOME_WEBHOOK_URL", cfg.OutcomeConfig.WebhookURL)
}

func getEnvOrDefault(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getEnvIntOrDefault(key string, fallback int) int {
	if v := os.Getenv(key); v != "" {
		if n, err := strconv.Atoi(v); err == nil {
			return n
		}
	}
	return fallback
}

func getEnvBoolOrDefault(key string, fallback bool) bool {
	if v := os.Getenv(key); v != "" {
		return v == "true" || v == "1"
	}
	return fallback
}
