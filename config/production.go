// Package config provides configuration management and environment variable handling for the application
package config

import (
	"bufio"
	"fmt"
	"os"
	"slices"
	"strconv"
	"strings"
	"time"
)

// ProductionConfig holds all configuration for production environment
type ProductionConfig struct {
	Database   DatabaseConfig   `json:"database"`
	Server     ServerConfig     `json:"server"`
	Security   SecurityConfig   `json:"security"`
	JWT        JWTConfig        `json:"jwt"`
	Logging    LoggingConfig    `json:"logging"`
	Metrics    MetricsConfig    `json:"metrics"`
	Cache      CacheConfig      `json:"cache"`
	Registry   RegistryConfig   `json:"registry"`
	Events     EventsConfig     `json:"events"`
	Deployment DeploymentConfig `json:"deployment"`
}

type DatabaseConfig struct {
	Driver          string        `json:"driver"` // postgres, sqlite
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	Name            string        `json:"name"`
	User            string        `json:"user"`
	Password        string        `json:"password"`
	SSLMode         string        `json:"ssl_mode"`
	SQLitePath      string        `json:"sqlite_path"`
	MaxOpenConns    int           `json:"max_open_conns"`
	MaxIdleConns    int           `json:"max_idle_conns"`
	ConnMaxLifetime time.Duration `json:"conn_max_lifetime"`
	ConnMaxIdleTime time.Duration `json:"conn_max_idle_time"`
	SlowQueryLog    bool          `json:"slow_query_log"`
	SlowQueryTime   time.Duration `json:"slow_query_time"`
}

type ServerConfig struct {
	Host            string        `json:"host"`
	Port            int           `json:"port"`
	ReadTimeout     time.Duration `json:"read_timeout"`
	WriteTimeout    time.Duration `json:"write_timeout"`
	IdleTimeout     time.Duration `json:"idle_timeout"`
	ShutdownTimeout time.Duration `json:"shutdown_timeout"`
	BodyLimit       int           `json:"body_limit"`
}

type SecurityConfig struct {
	// CORS
	AllowedOrigins   []string `json:"allowed_origins"`
	AllowCredentials bool     `json:"allow_credentials"`
	CORSMaxAge       int      `json:"cors_max_age"`

	// Rate Limiting
	GlobalRateLimit int           `json:"global_rate_limit"` // requests per window
	RateLimitWindow time.Duration `json:"rate_limit_window"`
}

type JWTConfig struct {
	SecretKey      string        `json:"secret_key"`
	AccessTokenTTL time.Duration `json:"access_token_ttl"`
	Issuer         string        `json:"issuer"`
	Audience       string        `json:"audience"`
}

type LoggingConfig struct {
	Level            string `json:"level"`  // debug, info, warn, error
	Format           string `json:"format"` // json, text
	Output           string `json:"output"` // stdout, file, both
	FilePath         string `json:"file_path"`
	MaxSize          int    `json:"max_size"` // MB
	MaxBackups       int    `json:"max_backups"`
	MaxAge           int    `json:"max_age"` // days
	Compress         bool   `json:"compress"`
	EnableCaller     bool   `json:"enable_caller"`
	EnableStacktrace bool   `json:"enable_stacktrace"`
	EnableAccessLog  bool   `json:"enable_access_log"`
}

type MetricsConfig struct {
	Enabled bool   `json:"enabled"`
	Path    string `json:"path"`
}

// CacheConfig configures Redis. HealthInterval is how often the connection
// is pinged.
type CacheConfig struct {
	Enabled        bool          `json:"enabled"`
	Provider       string        `json:"provider"` // redis, memory
	RedisURL       string        `json:"redis_url"`
	RedisDB        int           `json:"redis_db"`
	HealthInterval time.Duration `json:"health_interval"`
}

// RegistryConfig configures the campaign registry
type RegistryConfig struct {
	Owner                  string        `json:"owner"`
	Authority              string        `json:"authority"`
	MaxApplicationDuration time.Duration `json:"max_application_duration"`
	MinActivityDuration    time.Duration `json:"min_activity_duration"`
	FallbackGracePeriod    time.Duration `json:"fallback_grace_period"`
	FallbackEnabled        bool          `json:"fallback_enabled"`
	FallbackCron           string        `json:"fallback_cron"`
}

// EventsConfig configures where registry events go
type EventsConfig struct {
	Persist      bool   `json:"persist"`
	Log          bool   `json:"log"`
	RedisChannel string `json:"redis_channel"`
}

type DeploymentConfig struct {
	Environment string `json:"environment"`
	Version     string `json:"version"`
	CommitHash  string `json:"commit_hash"`
	BuildTime   string `json:"build_time"`
}

// LoadProductionConfig loads and validates configuration from environment variables
func LoadProductionConfig() (*ProductionConfig, error) {
	// Load environment variables from .env file
	if err := loadEnvFile(); err != nil {
		return nil, fmt.Errorf("failed to load .env file: %w", err)
	}

	cfg := &ProductionConfig{
		Database: DatabaseConfig{
			Driver:          getEnvString("DB_DRIVER", "postgres"),
			Host:            getEnvString("DB_HOST", "localhost"),
			Port:            getEnvInt("DB_PORT", 5432),
			Name:            getEnvString("DB_NAME", "likebounty"),
			User:            getEnvString("DB_USER", "postgres"),
			Password:        getEnvString("DB_PASSWORD", ""),
			SSLMode:         getEnvString("DB_SSL_MODE", "require"),
			SQLitePath:      getEnvString("DB_SQLITE_PATH", "likebounty.db"),
			MaxOpenConns:    getEnvInt("DB_MAX_OPEN_CONNS", 50),
			MaxIdleConns:    getEnvInt("DB_MAX_IDLE_CONNS", 10),
			ConnMaxLifetime: getEnvDuration("DB_CONN_MAX_LIFETIME", 30*time.Minute),
			ConnMaxIdleTime: getEnvDuration("DB_CONN_MAX_IDLE_TIME", 15*time.Minute),
			SlowQueryLog:    getEnvBool("DB_SLOW_QUERY_LOG", true),
			SlowQueryTime:   getEnvDuration("DB_SLOW_QUERY_TIME", 1*time.Second),
		},
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "0.0.0.0"),
			Port:            getEnvInt("SERVER_PORT", 8080),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 30*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 120*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
			BodyLimit:       getEnvInt("SERVER_BODY_LIMIT", 1024*1024), // 1MB
		},
		Security: SecurityConfig{
			AllowedOrigins:   getEnvStringSlice("CORS_ALLOWED_ORIGINS", []string{"http://localhost:3000"}),
			AllowCredentials: getEnvBool("CORS_ALLOW_CREDENTIALS", false),
			CORSMaxAge:       getEnvInt("CORS_MAX_AGE", 86400),
			GlobalRateLimit:  getEnvInt("GLOBAL_RATE_LIMIT", 1000),
			RateLimitWindow:  getEnvDuration("RATE_LIMIT_WINDOW", 1*time.Minute),
		},
		JWT: JWTConfig{
			SecretKey:      getEnvString("JWT_SECRET_KEY", ""),
			AccessTokenTTL: getEnvDuration("JWT_ACCESS_TOKEN_TTL", 24*time.Hour),
			Issuer:         getEnvString("JWT_ISSUER", "likebounty"),
			Audience:       getEnvString("JWT_AUDIENCE", "likebounty-api"),
		},
		Logging: LoggingConfig{
			Level:            getEnvString("LOG_LEVEL", "info"),
			Format:           getEnvString("LOG_FORMAT", "json"),
			Output:           getEnvString("LOG_OUTPUT", "stdout"),
			FilePath:         getEnvString("LOG_FILE_PATH", "/var/log/likebounty/app.log"),
			MaxSize:          getEnvInt("LOG_MAX_SIZE", 100),
			MaxBackups:       getEnvInt("LOG_MAX_BACKUPS", 10),
			MaxAge:           getEnvInt("LOG_MAX_AGE", 30),
			Compress:         getEnvBool("LOG_COMPRESS", true),
			EnableCaller:     getEnvBool("LOG_ENABLE_CALLER", true),
			EnableStacktrace: getEnvBool("LOG_ENABLE_STACKTRACE", true),
			EnableAccessLog:  getEnvBool("LOG_ENABLE_ACCESS", true),
		},
		Metrics: MetricsConfig{
			Enabled: getEnvBool("METRICS_ENABLED", true),
			Path:    getEnvString("METRICS_PATH", "/metrics"),
		},
		Cache: CacheConfig{
			Enabled:        getEnvBool("CACHE_ENABLED", false),
			Provider:       getEnvString("CACHE_PROVIDER", "redis"),
			RedisURL:       getEnvString("CACHE_REDIS_URL", "redis://localhost:6379"),
			RedisDB:        getEnvInt("CACHE_REDIS_DB", 0),
			HealthInterval: getEnvDuration("CACHE_HEALTH_INTERVAL", 30*time.Second),
		},
		Registry: RegistryConfig{
			Owner:                  getEnvString("REGISTRY_OWNER", ""),
			Authority:              getEnvString("REGISTRY_AUTHORITY", "registry"),
			MaxApplicationDuration: getEnvDuration("REGISTRY_MAX_APPLICATION_DURATION", 30*24*time.Hour),
			MinActivityDuration:    getEnvDuration("REGISTRY_MIN_ACTIVITY_DURATION", 1*time.Hour),
			FallbackGracePeriod:    getEnvDuration("REGISTRY_FALLBACK_GRACE_PERIOD", 24*time.Hour),
			FallbackEnabled:        getEnvBool("REGISTRY_FALLBACK_ENABLED", true),
			FallbackCron:           getEnvString("REGISTRY_FALLBACK_CRON", "0 */5 * * * *"),
		},
		Events: EventsConfig{
			Persist:      getEnvBool("EVENTS_PERSIST", true),
			Log:          getEnvBool("EVENTS_LOG", true),
			RedisChannel: getEnvString("EVENTS_REDIS_CHANNEL", "likebounty:events"),
		},
		Deployment: DeploymentConfig{
			Environment: getEnvString("APP_ENV", "production"),
			Version:     getEnvString("VERSION", "1.0.0"),
			CommitHash:  getEnvString("COMMIT_HASH", "unknown"),
			BuildTime:   getEnvString("BUILD_TIME", "unknown"),
		},
	}

	// Validate the loaded configuration
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

		// Skip empty lines and comments
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}

		key, value, ok := strings.Cut(line, "=")
		if !ok {
			continue
		}
		key = strings.TrimSpace(key)
		value = strings.TrimSpace(value)

		// Remove quotes if present
		if len(value) >= 2 && ((strings.HasPrefix(value, `"`) && strings.HasSuffix(value, `"`)) ||
			(strings.HasPrefix(value, `'`) && strings.HasSuffix(value, `'`))) {
			value = value[1 : len(value)-1]
		}

		// Set environment variable if not already set
		if os.Getenv(key) == "" {
			os.Setenv(key, value)
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

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var result []string
		for _, item := range strings.Split(value, ",") {
			if trimmed := strings.TrimSpace(item); trimmed != "" {
				result = append(result, trimmed)
			}
		}
		if len(result) > 0 {
			return result
		}
	}
	return defaultValue
}

// ValidateProductionConfig validates the production configuration
func ValidateProductionConfig(cfg *ProductionConfig) error {
	var errors []string

	// Validate database configuration
	switch cfg.Database.Driver {
	case "postgres":
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
	case "sqlite":
		if cfg.Database.SQLitePath == "" {
			errors = append(errors, "DB_SQLITE_PATH is required for the sqlite driver")
		}
	default:
		errors = append(errors, "DB_DRIVER must be one of: postgres, sqlite")
	}

	// Validate JWT configuration
	if len(cfg.JWT.SecretKey) < 32 {
		errors = append(errors, "JWT_SECRET_KEY must be at least 32 characters long")
	}
	if cfg.JWT.AccessTokenTTL <= 0 {
		errors = append(errors, "JWT_ACCESS_TOKEN_TTL must be positive")
	}
	if cfg.JWT.Issuer == "" {
		errors = append(errors, "JWT_ISSUER is required")
	}
	if cfg.JWT.Audience == "" {
		errors = append(errors, "JWT_AUDIENCE is required")
	}

	// Validate server configuration
	if cfg.Server.Port <= 0 || cfg.Server.Port > 65535 {
		errors = append(errors, "SERVER_PORT must be between 1 and 65535")
	}
	if cfg.Server.ReadTimeout <= 0 {
		errors = append(errors, "SERVER_READ_TIMEOUT must be positive")
	}
	if cfg.Server.WriteTimeout <= 0 {
		errors = append(errors, "SERVER_WRITE_TIMEOUT must be positive")
	}
	if cfg.Server.IdleTimeout <= 0 {
		errors = append(errors, "SERVER_IDLE_TIMEOUT must be positive")
	}

	// Validate registry configuration
	if cfg.Registry.Owner == "" {
		errors = append(errors, "REGISTRY_OWNER is required")
	}
	if cfg.Registry.Authority == "" {
		errors = append(errors, "REGISTRY_AUTHORITY is required")
	}
	if cfg.Registry.Owner != "" && cfg.Registry.Owner == cfg.Registry.Authority {
		errors = append(errors, "REGISTRY_AUTHORITY must differ from REGISTRY_OWNER")
	}
	if cfg.Registry.MaxApplicationDuration <= 0 {
		errors = append(errors, "REGISTRY_MAX_APPLICATION_DURATION must be positive")
	}
	if cfg.Registry.MinActivityDuration < 0 {
		errors = append(errors, "REGISTRY_MIN_ACTIVITY_DURATION must not be negative")
	}
	if cfg.Registry.FallbackGracePeriod < 0 {
		errors = append(errors, "REGISTRY_FALLBACK_GRACE_PERIOD must not be negative")
	}
	if cfg.Registry.FallbackEnabled && cfg.Registry.FallbackCron == "" {
		errors = append(errors, "REGISTRY_FALLBACK_CRON is required when fallback selection is enabled")
	}

	// Validate logging configuration
	if cfg.Logging.Level != "" {
		validLevels := []string{"debug", "info", "warn", "error"}
		if !slices.Contains(validLevels, cfg.Logging.Level) {
			errors = append(errors, fmt.Sprintf("LOG_LEVEL must be one of: %v", validLevels))
		}
	}
	if (cfg.Logging.Output == "file" || cfg.Logging.Output == "both") && cfg.Logging.FilePath == "" {
		errors = append(errors, "LOG_FILE_PATH is required when logging to a file")
	}

	// Validate cache configuration if enabled
	if cfg.Cache.Enabled {
		if cfg.Cache.Provider == "redis" && cfg.Cache.RedisURL == "" {
			errors = append(errors, "CACHE_REDIS_URL is required when cache is enabled with redis provider")
		}
	}

	// Return validation errors if any
	if len(errors) > 0 {
		return fmt.Errorf("configuration validation failed: %s", strings.Join(errors, "; "))
	}

	return nil
}
