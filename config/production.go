// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database DatabaseConfig `json:"database"`
	Server   ServerConfig   `json:"server"`
	Queue    QueueConfig    `json:"queue"`
	Cache    CacheConfig    `json:"cache"`
	Provider ProviderConfig `json:"provider"`
	Secrets  SecretsConfig  `json:"secrets"`
	Paging   PagingConfig   `json:"paging"`
	Dispatch DispatchConfig `json:"dispatch"`
	Logging  LoggingConfig  `json:"logging"`
}

type DatabaseConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	EnableMetrics   bool          `json:"enable_metrics"`
	// CallbackAuthCode is embedded in the status-callback URL handed to the
	// delivery provider; callbacks missing it are rejected.
	CallbackAuthCode string `json:"callback_auth_code"`
}

// QueueConfig configures the NATS JetStream event transport
type QueueConfig struct {
	URL           string        `json:"url"`
	Stream        string        `json:"stream"`
	Subject       string        `json:"subject"`
	Durable       string        `json:"durable"`
	MaxDeliver    int           `json:"max_deliver"`
	AckWait       time.Duration `json:"ack_wait"`
	DeadLetterSub string        `json:"dead_letter_subject"`
}

type CacheConfig struct {
	Enabled  bool   `json:"enabled"`
	RedisURL string `json:"redis_url"`
	RedisDB  int    `json:"redis_db"`
	// DedupTTL bounds how long a consumed event ID blocks redelivery.
	DedupTTL time.Duration `json:"dedup_ttl"`
}

// ProviderConfig configures the SMS/MMS delivery provider API
type ProviderConfig struct {
	APIDomain   string        `json:"api_domain"`
	Timeout     time.Duration `json:"timeout"`
	CallbackURL string        `json:"callback_url"`
	Mock        bool          `json:"mock"`
}

// SecretsConfig locates the directory secret blob
type SecretsConfig struct {
	Source string `json:"source"` // "env" or "file"
	Env    string `json:"env"`    // env var holding the JSON blob
	Path   string `json:"path"`   // file path when source is "file"
}

// PagingConfig carries the public-facing link settings used in page bodies
type PagingConfig struct {
	LinkDomain      string `json:"link_domain"`
	DefaultIdentity string `json:"default_identity"`
	// MaxInboundBodyLen bounds inbound texts accepted for broadcast.
	MaxInboundBodyLen int `json:"max_inbound_body_len"`
}

// DispatchConfig bounds recipient fan-out
type DispatchConfig struct {
	WorkerPoolSize int `json:"worker_pool_size"`
	// EscalationEvery raises an admin alert when a member's consecutive
	// failure count reaches a positive multiple of this value.
	EscalationEvery int `json:"escalation_every"`
}

type LoggingConfig struct {
	Level      string `json:"level"`
	FilePath   string `json:"file_path"`
	MaxSizeMB  int    `json:"max_size_mb"`
	MaxBackups int    `json:"max_backups"`
	MaxAgeDays int    `json:"max_age_days"`
}

// LoadProductionConfig loads configuration from environment variables (and an
// optional .env file) and validates it
func LoadProductionConfig() (*ProductionConfig, error) {
	if err := loadEnvFile(); err != nil {
		return nil, err
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "heimdall"),
			User:            getEnvString("DB_USER", ""),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 25),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 5),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 5*time.Minute),
		},
		Server: ServerConfig{
			Host:             getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:             getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:      getEnvDuration("SERVER_READ_TIMEOUT", 15*time.Second),
			WriteTimeout:     getEnvDuration("SERVER_WRITE_TIMEOUT", 15*time.Second),
			IdleTimeout:      getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout:  getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			EnableMetrics:    getEnvBool("SERVER_ENABLE_METRICS", true),
			CallbackAuthCode: getEnvString("SERVER_CALLBACK_AUTH_CODE", ""),
		},
		Queue: QueueConfig{
			URL:           getEnvString("QUEUE_URL", "nats://localhost:4222"),
			Stream:        getEnvString("QUEUE_STREAM", "HEIMDALL"),
			Subject:       getEnvString("QUEUE_SUBJECT", "heimdall.events"),
			Durable:       getEnvString("QUEUE_DURABLE", "heimdall-dispatch"),
			MaxDeliver:    getEnvInt("QUEUE_MAX_DELIVER", 3),
			AckWait:       getEnvDuration("QUEUE_ACK_WAIT", 2*time.Minute),
			DeadLetterSub: getEnvString("QUEUE_DEAD_LETTER_SUBJECT", "heimdall.dlq"),
		},
		Cache: CacheConfig{
			Enabled:  getEnvBool("CACHE_ENABLED", false),
			RedisURL: getEnvString("CACHE_REDIS_URL", ""),
			RedisDB:  getEnvInt("CACHE_REDIS_DB", 0),
			DedupTTL: getEnvDuration("CACHE_DEDUP_TTL", 6*time.Hour),
		},
		Provider: ProviderConfig{
			APIDomain:   getEnvString("PROVIDER_API_DOMAIN", "api.twilio.com"),
			Timeout:     getEnvDuration("PROVIDER_TIMEOUT", 15*time.Second),
			CallbackURL: getEnvString("PROVIDER_CALLBACK_URL", ""),
			Mock:        getEnvBool("PROVIDER_MOCK", false),
		},
		Secrets: SecretsConfig{
			Source: getEnvString("SECRETS_SOURCE", "env"),
			Env:    getEnvString("SECRETS_ENV", "DIRECTORY_JSON"),
			Path:   getEnvString("SECRETS_PATH", ""),
		},
		Paging: PagingConfig{
			LinkDomain:        getEnvString("PAGING_LINK_DOMAIN", ""),
			DefaultIdentity:   getEnvString("PAGING_DEFAULT_IDENTITY", "alert"),
			MaxInboundBodyLen: getEnvInt("PAGING_MAX_INBOUND_BODY_LEN", 1250),
		},
		Dispatch: DispatchConfig{
			WorkerPoolSize:  getEnvInt("DISPATCH_WORKER_POOL_SIZE", 10),
			EscalationEvery: getEnvInt("DISPATCH_ESCALATION_EVERY", 10),
		},
		Logging: LoggingConfig{
			Level:      getEnvString("LOG_LEVEL", "info"),
			FilePath:   getEnvString("LOG_FILE_PATH", "data/consumer.log"),
			MaxSizeMB:  getEnvInt("LOG_MAX_SIZE_MB", 50),
			MaxBackups: getEnvInt("LOG_MAX_BACKUPS", 5),
			MaxAgeDays: getEnvInt("LOG_MAX_AGE_DAYS", 30),
		},
	}

	if err := ValidateProductionConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// loadEnvFile loads environment variables from .env file if it exists
func loadEnvFile() error {
	envFile := ".env"

	if _, err := os.Stat(envFile); os.IsNotExist(err) {
		return nil
	}

	file, err := os.Open(envFile)
	if err != nil {
		return fmt.Errorf("failed to open .env file: %w", err)
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())

		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		if strings.Contains(line, "=") {
			parts := strings.SplitN(line, "=", 2)
			if len(parts) == 2 {
				key := strings.TrimSpace(parts[0])
				value := strings.TrimSpace(parts[1])

				if (strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
					(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`)) {
					value = value[1 : len(value)-1]
				}

				if os.Getenv(key) == "" {
					os.Setenv(key, value)
				}
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("error reading .env file: %w", err)
	}

	return nil
}

// Helper functions for environment variable parsing
func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.Atoi(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if parsed, err := strconv.ParseBool(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if parsed, err := time.ParseDuration(value); err == nil {
			return parsed
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	if cfg.Database.Host == "" {
		errors = append(errors, "DB_HOST is required")
	}
	if cfg.Database.Port <= 0 || cfg.Database.Port > 65535 {
		errors = append(errors, "DB_PORT must be between 1 and 65535")
	}
	if cfg.Database.Name == "" {
		errors = append(errors, "DB_NAME is required")
	}
	if cfg.Database.User == "" {
		errors = append(errors, "DB_USER is required")
	}
	if cfg.Database.Password == "" {
		errors = append(errors, "DB_PASSWORD is required")
	}

	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.CallbackAuthCode == "" {
		errors = append(errors, "SERVER_CALLBACK_AUTH_CODE is required")
	}

	if cfg.Queue.URL == "" {
		errors = append(errors, "QUEUE_URL is required")
	}
	if cfg.Queue.Stream == "" {
		errors = append(errors, "QUEUE_STREAM is required")
	}
	if cfg.Queue.MaxDeliver <= 0 {
		errors = append(errors, "QUEUE_MAX_DELIVER must be positive")
	}

	if cfg.Cache.Enabled && cfg.Cache.RedisURL == "" {
		errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled")
	}

	if !cfg.Provider.Mock && cfg.Provider.APIDomain == "" {
		errors = append(errors, "PROVIDER_API_DOMAIN is required")
	}

	switch cfg.Secrets.Source {
	case "env":
		if cfg.Secrets.Env == "" {
			errors = append(errors, "SECRETS_ENV is required when SECRETS_SOURCE is env")
		}
	case "file":
		if cfg.Secrets.Path == "" {
			errors = append(errors, "SECRETS_PATH is required when SECRETS_SOURCE is file")
		}
	default:
		errors = append(errors, "SECRETS_SOURCE must be env or file")
	}

	if cfg.Paging.LinkDomain == "" {
		errors = append(errors, "PAGING_LINK_DOMAIN is required")
	}
	if cfg.Paging.DefaultIdentity == "" {
		errors = append(errors, "PAGING_DEFAULT_IDENTITY is required")
	}

	if cfg.Dispatch.WorkerPoolSize <= 0 {
		errors = append(errors, "DISPATCH_WORKER_POOL_SIZE must be positive")
	}
	if cfg.Dispatch.EscalationEvery <= 0 {
		errors = append(errors, "DISPATCH_ESCALATION_EVERY must be positive")
	}

	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		valid := false
		for _, level := range validLevels {
			if cfg.Logging.Level == level {
				valid = true
				break
			}
		}
		if !valid {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}

	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
