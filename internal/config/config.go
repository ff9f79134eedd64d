package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

type Config struct {
	Server   ServerConfig
	Dataset  DatasetConfig
	Upload   UploadConfig
	Forecast ForecastConfig
	Logger   LoggerConfig
	Security SecurityConfig
}

type ServerConfig struct {
	Host            string
	Port            int
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	IdleTimeout     time.Duration
	ShutdownTimeout time.Duration
}

// DatasetConfig selects the startup dataset. File, when set, wins over the
// generator.
type DatasetConfig struct {
	Seed     uint64
	Start    time.Time
	End      time.Time
	File     string
	CacheDir string
}

type UploadConfig struct {
	MaxBytes int64
}

type ForecastConfig struct {
	HorizonDays int
	MinPoints   int
}

type LoggerConfig struct {
	Level  string
	Format string
}

type SecurityConfig struct {
	EnableRateLimit bool
	RateLimitRPS    int
	RateLimitBurst  int
	// Per-client budget for dataset uploads, on top of the general limit.
	UploadsPerMinute int
	UploadBurst      int
	AllowedOrigins   []string
	TrustedProxies   []string
}

func Load() (*Config, error) {
	cfg := &Config{
		Server: ServerConfig{
			Host:            getEnvString("SERVER_HOST", "localhost"),
			Port:            getEnvInt("SERVER_PORT", 8084),
			ReadTimeout:     getEnvDuration("SERVER_READ_TIMEOUT", 10*time.Second),
			WriteTimeout:    getEnvDuration("SERVER_WRITE_TIMEOUT", 10*time.Second),
			IdleTimeout:     getEnvDuration("SERVER_IDLE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getEnvDuration("SERVER_SHUTDOWN_TIMEOUT", 30*time.Second),
		},
		Dataset: DatasetConfig{
			Seed:     uint64(getEnvInt("DATASET_SEED", 42)),
			Start:    getEnvDate("DATASET_START", time.Date(2023, 1, 1, 0, 0, 0, 0, time.UTC)),
			End:      getEnvDate("DATASET_END", time.Date(2024, 12, 31, 0, 0, 0, 0, time.UTC)),
			File:     getEnvString("DATASET_FILE", ""),
			CacheDir: getEnvString("DATASET_CACHE_DIR", ".cache"),
		},
		Upload: UploadConfig{
			MaxBytes: int64(getEnvInt("UPLOAD_MAX_BYTES", 32<<20)),
		},
		Forecast: ForecastConfig{
			HorizonDays: getEnvInt("FORECAST_HORIZON_DAYS", 30),
			MinPoints:   getEnvInt("FORECAST_MIN_POINTS", 30),
		},
		Logger: LoggerConfig{
			Level:  getEnvString("LOG_LEVEL", "info"),
			Format: getEnvString("LOG_FORMAT", "json"),
		},
		Security: SecurityConfig{
			EnableRateLimit:  getEnvBool("SECURITY_RATE_LIMIT_ENABLED", true),
			RateLimitRPS:     getEnvInt("SECURITY_RATE_LIMIT_RPS", 100),
			RateLimitBurst:   getEnvInt("SECURITY_RATE_LIMIT_BURST", 10),
			UploadsPerMinute: getEnvInt("SECURITY_UPLOADS_PER_MINUTE", 6),
			UploadBurst:      getEnvInt("SECURITY_UPLOAD_BURST", 2),
			AllowedOrigins:   getEnvStringSlice("SECURITY_ALLOWED_ORIGINS", []string{"http://localhost:8084"}),
			TrustedProxies:   getEnvStringSlice("SECURITY_TRUSTED_PROXIES", []string{"127.0.0.1"}),
		},
	}

	if err := cfg.validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}

	return cfg, nil
}

func (c *Config) validate() error {
	if c.Server.Port < 1 || c.Server.Port > 65535 {
		return fmt.Errorf("server port must be between 1 and 65535, got %d", c.Server.Port)
	}

	if c.Server.ReadTimeout <= 0 {
		return fmt.Errorf("server read timeout must be positive")
	}

	if c.Server.WriteTimeout <= 0 {
		return fmt.Errorf("server write timeout must be positive")
	}

	if c.Dataset.End.Before(c.Dataset.Start) {
		return fmt.Errorf("dataset end date %s is before start date %s",
			c.Dataset.End.Format("2006-01-02"), c.Dataset.Start.Format("2006-01-02"))
	}

	if c.Upload.MaxBytes <= 0 {
		return fmt.Errorf("upload max bytes must be positive")
	}

	if c.Forecast.HorizonDays <= 0 {
		return fmt.Errorf("forecast horizon must be positive")
	}

	if c.Forecast.MinPoints < 2 {
		return fmt.Errorf("forecast min points must be at least 2, got %d", c.Forecast.MinPoints)
	}

	validLogLevels := []string{"debug", "info", "warn", "error"}
	if !contains(validLogLevels, c.Logger.Level) {
		return fmt.Errorf("invalid log level %q, must be one of: %s", c.Logger.Level, strings.Join(validLogLevels, ", "))
	}

	validLogFormats := []string{"json", "text"}
	if !contains(validLogFormats, c.Logger.Format) {
		return fmt.Errorf("invalid log format %q, must be one of: %s", c.Logger.Format, strings.Join(validLogFormats, ", "))
	}

	if c.Security.RateLimitRPS <= 0 {
		return fmt.Errorf("rate limit RPS must be positive")
	}

	if c.Security.RateLimitBurst <= 0 {
		return fmt.Errorf("rate limit burst must be positive")
	}

	if c.Security.UploadsPerMinute <= 0 || c.Security.UploadBurst <= 0 {
		return fmt.Errorf("upload rate limit and burst must be positive")
	}

	return nil
}

func getEnvString(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if duration, err := time.ParseDuration(value); err == nil {
			return duration
		}
	}
	return defaultValue
}

func getEnvDate(key string, defaultValue time.Time) time.Time {
	if value := os.Getenv(key); value != "" {
		if date, err := time.Parse("2006-01-02", value); err == nil {
			return date
		}
	}
	return defaultValue
}

func getEnvStringSlice(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		return strings.Split(value, ",")
	}
	return defaultValue
}

func contains(slice []string, item string) bool {
	for _, s := range slice {
		if s == item {
			return true
		}
	}
	return false
}

func (c *Config) Address() string {
	return fmt.Sprintf("%s:%d", c.Server.Host, c.Server.Port)
}
