package config

import (
	"encoding/json"
	"fmt"
	"os"

	"github.com/xxxsen/common/logger"
)

const (
	BackendMemory   = "memory"
	BackendRedis    = "redis"
	BackendPostgres = "postgres"
)

type Config struct {
	Port             int                `json:"port"`
	JWTSecret        string             `json:"jwt_secret"`
	JWTTTLHours      int                `json:"jwt_ttl_hours"`
	LogConfig        logger.LogConfig   `json:"log_config"`
	Database         DatabaseConfig     `json:"database"`
	Redis            RedisConfig        `json:"redis"`
	Mail             MailConfig         `json:"mail"`
	Verification     VerificationConfig `json:"verification"`
	CORSAllowlist    []string           `json:"cors_allowlist"`
	RateLimitSeconds int                `json:"rate_limit_seconds"`
	CleanupCron      string             `json:"cleanup_cron"`
}

type DatabaseConfig struct {
	DSN      string `json:"dsn"`
	Host     string `json:"host"`
	Port     int    `json:"port"`
	User     string `json:"user"`
	Password string `json:"password"`
	DBName   string `json:"dbname"`
	SSLMode  string `json:"sslmode"`
}

type RedisConfig struct {
	Addr     string `json:"addr"`
	Password string `json:"password"`
	DB       int    `json:"db"`
	Prefix   string `json:"prefix"`
}

type MailConfig struct {
	Host           string `json:"host"`
	Port           int    `json:"port"`
	Username       string `json:"username"`
	Password       string `json:"password"`
	From           string `json:"from"`
	TimeoutSeconds int    `json:"timeout_seconds"`
}

type VerificationConfig struct {
	Backend         string `json:"backend"`
	TTLSeconds      int    `json:"ttl_seconds"`
	CooldownSeconds int    `json:"cooldown_seconds"`
	MaxAttempts     int    `json:"max_attempts"`
	MemoryCapacity  int    `json:"memory_capacity"`
}

func Load(path string) (*Config, error) {
	file, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open config: %w", err)
	}
	defer file.Close()

	var cfg Config
	if err := json.NewDecoder(file).Decode(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.normalize(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

func (cfg *Config) normalize() error {
	if cfg.JWTSecret == "" {
		return fmt.Errorf("jwt_secret is required")
	}
	if cfg.Port == 0 {
		return fmt.Errorf("port is required")
	}
	if cfg.JWTTTLHours == 0 {
		cfg.JWTTTLHours = 72
	}
	if cfg.LogConfig.Level == "" {
		cfg.LogConfig.Level = "info"
	}
	if cfg.Database.DSN == "" && cfg.Database.Host == "" {
		return fmt.Errorf("database.dsn or database.host is required")
	}
	if cfg.Database.Port == 0 {
		cfg.Database.Port = 5432
	}
	if cfg.Mail.TimeoutSeconds <= 0 {
		cfg.Mail.TimeoutSeconds = 10
	}
	if cfg.CleanupCron == "" {
		cfg.CleanupCron = "*/10 * * * *"
	}
	v := &cfg.Verification
	if v.Backend == "" {
		v.Backend = BackendMemory
	}
	if v.TTLSeconds <= 0 {
		v.TTLSeconds = 300
	}
	if v.CooldownSeconds <= 0 {
		v.CooldownSeconds = 60
	}
	if v.MaxAttempts <= 0 {
		v.MaxAttempts = 5
	}
	if v.MemoryCapacity <= 0 {
		v.MemoryCapacity = 100000
	}
	switch v.Backend {
	case BackendMemory, BackendPostgres:
	case BackendRedis:
		if cfg.Redis.Addr == "" {
			return fmt.Errorf("redis.addr is required for redis verification backend")
		}
	default:
		return fmt.Errorf("verification.backend must be memory, redis or postgres")
	}
	return nil
}
