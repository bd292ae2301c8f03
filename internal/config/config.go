package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/joho/godotenv"
)

type Config struct {
	Server   ServerConfig
	Scraper  ScraperConfig
	Browser  BrowserConfig
	Output   OutputConfig
	Database DatabaseConfig
	Redis    RedisConfig
	Logging  LoggingConfig
}

type ServerConfig struct {
	Port            string
	Host            string
	ReadTimeout     time.Duration
	WriteTimeout    time.Duration
	ShutdownTimeout time.Duration
	AllowedOrigins  []string
}

type ScraperConfig struct {
	Workers        int
	NavTimeout     time.Duration
	AuthWait       time.Duration
	MaxReviewPages int
}

type BrowserConfig struct {
	Headless       bool
	ViewportWidth  int
	ViewportHeight int
	UserAgent      string
	AcceptLanguage string
	TimezoneID     string
	Locale         string
	ProxyServer    string
}

type OutputConfig struct {
	Dir string
}

type DatabaseConfig struct {
	Enabled  bool
	Host     string
	Port     int
	User     string
	Password string
	DBName   string
	SSLMode  string
	MaxConns int32

	// Outbox relay; only runs when Redis is enabled too.
	OutboxPollInterval time.Duration
	OutboxBatchSize    int
}

// DSN returns the pgx connection string.
func (d DatabaseConfig) DSN() string {
	u := url.URL{
		Scheme:   "postgres",
		User:     url.UserPassword(d.User, d.Password),
		Host:     fmt.Sprintf("%s:%d", d.Host, d.Port),
		Path:     d.DBName,
		RawQuery: "sslmode=" + url.QueryEscape(d.SSLMode),
	}
	return u.String()
}

type RedisConfig struct {
	Enabled  bool
	Addr     string
	Password string
	DB       int
	Stream   string

	BatchStream string
}

type LoggingConfig struct {
	Level  string
	Format string
}

// Load reads the environment. A missing env file is not an error.
func Load(envFile string) (*Config, error) {
	if envFile != "" {
		if err := godotenv.Load(envFile); err != nil && !errors.Is(err, os.ErrNotExist) {
			return nil, fmt.Errorf("failed to load %s: %w", envFile, err)
		}
	}

	cfg := &Config{
		Server: ServerConfig{
			Port:            getEnvOrDefault("SERVER_PORT", "5000"),
			Host:            getEnvOrDefault("SERVER_HOST", "0.0.0.0"),
			ReadTimeout:     getDurationOrDefault("SERVER_READ_TIMEOUT", 30*time.Second),
			WriteTimeout:    getDurationOrDefault("SERVER_WRITE_TIMEOUT", 60*time.Second),
			ShutdownTimeout: getDurationOrDefault("SERVER_SHUTDOWN_TIMEOUT", 10*time.Second),
			AllowedOrigins:  getStringSliceOrDefault("SERVER_ALLOWED_ORIGINS", []string{"*"}),
		},
		Scraper: ScraperConfig{
			Workers:        getIntOrDefault("SCRAPER_WORKERS", 2),
			NavTimeout:     getDurationOrDefault("SCRAPER_NAV_TIMEOUT", 60*time.Second),
			AuthWait:       getDurationOrDefault("SCRAPER_AUTH_WAIT", 10*time.Minute),
			MaxReviewPages: getIntOrDefault("SCRAPER_MAX_REVIEW_PAGES", 50),
		},
		Browser: BrowserConfig{
			Headless:       getBoolOrDefault("BROWSER_HEADLESS", false),
			ViewportWidth:  getIntOrDefault("BROWSER_VIEWPORT_WIDTH", 1920),
			ViewportHeight: getIntOrDefault("BROWSER_VIEWPORT_HEIGHT", 1080),
			UserAgent:      getEnvOrDefault("BROWSER_USER_AGENT", ""),
			AcceptLanguage: getEnvOrDefault("BROWSER_ACCEPT_LANGUAGE", "en-IN,en;q=0.9"),
			TimezoneID:     getEnvOrDefault("BROWSER_TIMEZONE", "Asia/Kolkata"),
			Locale:         getEnvOrDefault("BROWSER_LOCALE", "en-IN"),
			ProxyServer:    getEnvOrDefault("BROWSER_PROXY", ""),
		},
		Output: OutputConfig{
			Dir: getEnvOrDefault("OUTPUT_DIR", "output"),
		},
		Database: DatabaseConfig{
			Enabled:  getBoolOrDefault("DB_ENABLED", false),
			Host:     getEnvOrDefault("DB_HOST", "localhost"),
			Port:     getIntOrDefault("DB_PORT", 5432),
			User:     getEnvOrDefault("DB_USER", "postgres"),
			Password: getEnvOrDefault("DB_PASSWORD", ""),
			DBName:   getEnvOrDefault("DB_NAME", "ecommerce_scraper"),
			SSLMode:  getEnvOrDefault("DB_SSL_MODE", "disable"),
			MaxConns: int32(getIntOrDefault("DB_MAX_CONNS", 10)),

			OutboxPollInterval: getDurationOrDefault("DB_OUTBOX_POLL_INTERVAL", 5*time.Second),
			OutboxBatchSize:    getIntOrDefault("DB_OUTBOX_BATCH_SIZE", 100),
		},
		Redis: RedisConfig{
			Enabled:  getBoolOrDefault("REDIS_ENABLED", false),
			Addr:     getEnvOrDefault("REDIS_ADDR", "localhost:6379"),
			Password: getEnvOrDefault("REDIS_PASSWORD", ""),
			DB:       getIntOrDefault("REDIS_DB", 0),
			Stream:   getEnvOrDefault("REDIS_STREAM", "stream:scrape_jobs"),

			BatchStream: getEnvOrDefault("REDIS_BATCH_STREAM", "stream:scrape_batches"),
		},
		Logging: LoggingConfig{
			Level:  getEnvOrDefault("LOG_LEVEL", "info"),
			Format: getEnvOrDefault("LOG_FORMAT", "json"),
		},
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

func (c *Config) Validate() error {
	if port, err := strconv.Atoi(c.Server.Port); err != nil || port <= 0 || port > 65535 {
		return fmt.Errorf("invalid SERVER_PORT: %q", c.Server.Port)
	}

	if c.Scraper.Workers < 1 {
		return fmt.Errorf("SCRAPER_WORKERS must be at least 1")
	}

	if c.Scraper.NavTimeout <= 0 {
		return fmt.Errorf("SCRAPER_NAV_TIMEOUT must be positive")
	}

	if c.Scraper.MaxReviewPages < 1 {
		return fmt.Errorf("SCRAPER_MAX_REVIEW_PAGES must be at least 1")
	}

	if c.Output.Dir == "" {
		return fmt.Errorf("OUTPUT_DIR must not be empty")
	}

	if c.Database.Enabled && c.Database.Host == "" {
		return fmt.Errorf("DB_HOST is required when DB_ENABLED is set")
	}

	if c.Redis.Enabled && c.Redis.Addr == "" {
		return fmt.Errorf("REDIS_ADDR is required when REDIS_ENABLED is set")
	}

	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("invalid LOG_LEVEL: %q", c.Logging.Level)
	}

	return nil
}

// Addr is the listen address of the HTTP server.
func (s ServerConfig) Addr() string {
	return s.Host + ":" + s.Port
}

func getEnvOrDefault(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getIntOrDefault(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if i, err := strconv.Atoi(value); err == nil {
			return i
		}
	}
	return defaultValue
}

func getBoolOrDefault(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if b, err := strconv.ParseBool(value); err == nil {
			return b
		}
	}
	return defaultValue
}

func getDurationOrDefault(key string, defaultValue time.Duration) time.Duration {
	if value := os.Getenv(key); value != "" {
		if d, err := time.ParseDuration(value); err == nil {
			return d
		}
	}
	return defaultValue
}

func getStringSliceOrDefault(key string, defaultValue []string) []string {
	if value := os.Getenv(key); value != "" {
		var out []string
		for _, part := range strings.Split(value, ",") {
			if p := strings.TrimSpace(part); p != "" {
				out = append(out, p)
			}
		}
		return out
	}
	return defaultValue
}
