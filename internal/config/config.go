package config

import (
	"fmt"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"github.com/spf13/viper"
)

const (
	EnvDevelopment = "development"
	EnvProduction  = "production"
)

type Config struct {
	// HTTP Server
	Port               string   `mapstructure:"PORT"`
	AppEnv             string   `mapstructure:"APP_ENV"`
	RateLimitPerMinute int      `mapstructure:"RATE_LIMIT_PER_MINUTE"`
	CORSAllowedOrigins []string `mapstructure:"CORS_ALLOWED_ORIGINS"`

	// Backend selection
	DataBackend    string        `mapstructure:"DATA_BACKEND"`
	StoreTimeout   time.Duration `mapstructure:"STORE_TIMEOUT"`
	ConnectTimeout time.Duration `mapstructure:"CONNECT_TIMEOUT"`

	// MongoDB
	MongoURI      string `mapstructure:"MONGODB_URI"`
	MongoDatabase string `mapstructure:"MONGODB_DATABASE"`

	// SQLite
	SQLiteDBPath string `mapstructure:"SQLITE_DB_PATH"`

	// Identity
	IdentityMode string        `mapstructure:"IDENTITY_MODE"`
	JWTSecret    string        `mapstructure:"JWT_SECRET"`
	TokenTTL     time.Duration `mapstructure:"TOKEN_TTL"`
	BcryptCost   int           `mapstructure:"BCRYPT_COST"`

	// AMQP (optional)
	AMQPURL      string `mapstructure:"AMQP_URL"`
	AMQPExchange string `mapstructure:"AMQP_EXCHANGE"`
	AMQPQueue    string `mapstructure:"AMQP_QUEUE"`

	// Logging
	LogLevel  string `mapstructure:"LOG_LEVEL"`
	LogFormat string `mapstructure:"LOG_FORMAT"`
}

var defaults = map[string]any{
	"PORT":                  "5000",
	"APP_ENV":               EnvProduction,
	"RATE_LIMIT_PER_MINUTE": 120,
	"CORS_ALLOWED_ORIGINS":  "*",
	"DATA_BACKEND":          "mongo",
	"STORE_TIMEOUT":         "5s",
	"CONNECT_TIMEOUT":       "10s",
	"MONGODB_URI":           "mongodb://localhost:27017",
	"MONGODB_DATABASE":      "expense-manager",
	"SQLITE_DB_PATH":        "./data/expenses.db",
	"IDENTITY_MODE":         "device",
	"JWT_SECRET":            "",
	"TOKEN_TTL":             "120h",
	"BCRYPT_COST":           10,
	"AMQP_URL":              "",
	"AMQP_EXCHANGE":         "expenses",
	"AMQP_QUEUE":            "expense_events",
	"LOG_LEVEL":             "info",
	"LOG_FORMAT":            "text",
}

// Load reads configuration from the environment. When CONFIG_FILE is set the
// file is read first and environment variables override its values.
func Load() (*Config, error) {
	v := viper.New()
	for key, value := range defaults {
		v.SetDefault(key, value)
	}
	v.AutomaticEnv()

	if path := os.Getenv("CONFIG_FILE"); path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}
	cfg.CORSAllowedOrigins = splitList(cfg.CORSAllowedOrigins)
	cfg.DataBackend = strings.ToLower(strings.TrimSpace(cfg.DataBackend))
	cfg.IdentityMode = strings.ToLower(strings.TrimSpace(cfg.IdentityMode))
	return &cfg, nil
}

// IsDevelopment reports whether error bodies may carry internal detail.
func (c *Config) IsDevelopment() bool {
	return c.AppEnv == EnvDevelopment
}

// Validate validates the configuration and returns an error if invalid
func (c *Config) Validate() error {
	var errs []string

	// Validate port
	if port, err := strconv.Atoi(c.Port); err != nil {
		errs = append(errs, fmt.Sprintf("invalid port '%s': must be a number", c.Port))
	} else if port < 1 || port > 65535 {
		errs = append(errs, fmt.Sprintf("invalid port %d: must be between 1 and 65535", port))
	}

	if c.AppEnv != EnvDevelopment && c.AppEnv != EnvProduction {
		errs = append(errs, fmt.Sprintf("invalid app env '%s': must be one of [development production]", c.AppEnv))
	}

	// Validate data backend
	validBackends := []string{"memory", "sqlite", "mongo"}
	isValidBackend := false
	for _, backend := range validBackends {
		if c.DataBackend == backend {
			isValidBackend = true
			break
		}
	}
	if !isValidBackend {
		errs = append(errs, fmt.Sprintf("invalid data backend '%s': must be one of %v", c.DataBackend, validBackends))
	}

	if c.DataBackend == "mongo" {
		if c.MongoURI == "" {
			errs = append(errs, "MongoDB URI cannot be empty when using mongo backend")
		} else if u, err := url.Parse(c.MongoURI); err != nil || (u.Scheme != "mongodb" && u.Scheme != "mongodb+srv") {
			errs = append(errs, fmt.Sprintf("invalid MongoDB URI '%s': scheme must be 'mongodb' or 'mongodb+srv'", redact(c.MongoURI)))
		}
		if c.MongoDatabase == "" {
			errs = append(errs, "MongoDB database name cannot be empty when using mongo backend")
		}
	}

	// Validate SQLite configuration if backend is sqlite
	if c.DataBackend == "sqlite" {
		if c.SQLiteDBPath == "" {
			errs = append(errs, "SQLite database path cannot be empty when using sqlite backend")
		} else {
			dir := filepath.Dir(c.SQLiteDBPath)
			if dir != "." && dir != "" {
				if err := os.MkdirAll(dir, 0o755); err != nil {
					errs = append(errs, fmt.Sprintf("cannot create SQLite database directory '%s': %v", dir, err))
				}
			}
		}
	}

	// Validate identity
	switch c.IdentityMode {
	case "token":
		if c.JWTSecret == "" {
			errs = append(errs, "JWT secret is required when identity mode is token")
		}
	case "device", "open":
	default:
		errs = append(errs, fmt.Sprintf("invalid identity mode '%s': must be one of [token device open]", c.IdentityMode))
	}
	if c.TokenTTL < time.Minute {
		errs = append(errs, fmt.Sprintf("invalid token ttl %v: must be at least 1 minute", c.TokenTTL))
	}
	if c.BcryptCost < 4 || c.BcryptCost > 31 {
		errs = append(errs, fmt.Sprintf("invalid bcrypt cost %d: must be between 4 and 31", c.BcryptCost))
	}

	// Zero disables the per-operation timeout.
	if c.StoreTimeout != 0 && c.StoreTimeout < 10*time.Millisecond {
		errs = append(errs, fmt.Sprintf("invalid store timeout %v: must be 0 or at least 10ms", c.StoreTimeout))
	}
	if c.ConnectTimeout < time.Second {
		errs = append(errs, fmt.Sprintf("invalid connect timeout %v: must be at least 1 second", c.ConnectTimeout))
	}

	// Validate AMQP URL if provided
	if c.AMQPURL != "" {
		if parsedURL, err := url.Parse(c.AMQPURL); err != nil {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL '%s': %v", redact(c.AMQPURL), err))
		} else if parsedURL.Scheme != "amqp" && parsedURL.Scheme != "amqps" {
			errs = append(errs, fmt.Sprintf("invalid AMQP URL scheme '%s': must be 'amqp' or 'amqps'", parsedURL.Scheme))
		}
		if c.AMQPExchange == "" {
			errs = append(errs, "AMQP exchange name cannot be empty when AMQP URL is provided")
		}
		if c.AMQPQueue == "" {
			errs = append(errs, "AMQP queue name cannot be empty when AMQP URL is provided")
		}
	}

	if c.RateLimitPerMinute < 1 {
		errs = append(errs, fmt.Sprintf("invalid rate limit %d: must be at least 1 request per minute", c.RateLimitPerMinute))
	}
	if len(c.CORSAllowedOrigins) == 0 {
		errs = append(errs, "CORS allowed origins cannot be empty")
	}

	switch strings.ToLower(c.LogLevel) {
	case "debug", "info", "warn", "error":
	default:
		errs = append(errs, fmt.Sprintf("invalid log level '%s': must be one of [debug info warn error]", c.LogLevel))
	}
	if c.LogFormat != "text" && c.LogFormat != "json" {
		errs = append(errs, fmt.Sprintf("invalid log format '%s': must be 'text' or 'json'", c.LogFormat))
	}

	// Return combined errors
	if len(errs) > 0 {
		return fmt.Errorf("configuration validation failed:\n- %s", strings.Join(errs, "\n- "))
	}

	return nil
}

// splitList flattens comma separated entries coming from the environment.
func splitList(in []string) []string {
	var out []string
	for _, item := range in {
		for _, part := range strings.Split(item, ",") {
			if part = strings.TrimSpace(part); part != "" {
				out = append(out, part)
			}
		}
	}
	return out
}

// redact strips credentials from a connection URL before it is logged.
func redact(raw string) string {
	u, err := url.Parse(raw)
	if err != nil || u.User == nil {
		return raw
	}
	return u.Redacted()
}
