package config

import (
	"errors"
	"fmt"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/franciscosanchezn/gin-recipe-api/internal/database"
	"github.com/franciscosanchezn/gin-recipe-api/internal/storage"
	"github.com/sirupsen/logrus"
	"github.com/spf13/viper"
)

// Create a new instance of the logger
// Configure it to log at the desired level
// and format it as JSON for structured logging
var log = logrus.New()

func init() {
	log.SetFormatter(&logrus.JSONFormatter{})
	environment := GetEnvWithDefault("APP_ENV", "development")
	switch environment {
	case "development":
		log.SetLevel(logrus.DebugLevel)
	case "production":
		log.SetLevel(logrus.ErrorLevel)
	default:
		log.SetLevel(logrus.InfoLevel)
	}
}

// EnvPrefix is prepended to every environment override, e.g. RECIPES_SERVER_PORT.
const EnvPrefix = "RECIPES"

// Config is the application configuration. Values are layered:
// defaults, config/config.yaml, config/config.<env>.yaml, then environment variables.
type Config struct {
	Env string `mapstructure:"env" json:"env"`

	Server    ServerConfig            `mapstructure:"server" json:"server"`
	Database  database.DatabaseConfig `mapstructure:"database" json:"database"`
	Log       LogConfig               `mapstructure:"log" json:"log"`
	Security  SecurityConfig          `mapstructure:"security" json:"security"`
	Redis     RedisConfig             `mapstructure:"redis" json:"redis"`
	Storage   storage.Settings        `mapstructure:"storage" json:"storage"`
	Reconcile ReconcileConfig         `mapstructure:"reconcile" json:"reconcile"`
}

type ServerConfig struct {
	Host            string        `mapstructure:"host" json:"host"`
	Port            int           `mapstructure:"port" json:"port"`
	ReadTimeout     time.Duration `mapstructure:"read_timeout" json:"read_timeout"`
	WriteTimeout    time.Duration `mapstructure:"write_timeout" json:"write_timeout"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" json:"shutdown_timeout"`
}

// Addr returns host:port for net/http.
func (s ServerConfig) Addr() string {
	return fmt.Sprintf("%s:%d", s.Host, s.Port)
}

type LogConfig struct {
	Level string `mapstructure:"level" json:"level"`
}

// SecurityConfig configures token issuance. ClientID/ClientSecret identify the
// first-party OAuth2 client used by the JSON login endpoints.
type SecurityConfig struct {
	JWTSecret       string        `mapstructure:"jwt_secret" json:"-"`
	JWTIssuer       string        `mapstructure:"jwt_issuer" json:"jwt_issuer"`
	AccessTokenTTL  time.Duration `mapstructure:"access_token_ttl" json:"access_token_ttl"`
	RefreshTokenTTL time.Duration `mapstructure:"refresh_token_ttl" json:"refresh_token_ttl"`
	ClientID        string        `mapstructure:"client_id" json:"client_id"`
	ClientSecret    string        `mapstructure:"client_secret" json:"-"`
	// TokenStore selects where issued tokens live: "database" or "redis".
	TokenStore       string `mapstructure:"token_store" json:"token_store"`
	MaxLoginAttempts int    `mapstructure:"max_login_attempts" json:"max_login_attempts"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" json:"addr"`
	Password string `mapstructure:"password" json:"-"`
	DB       int    `mapstructure:"db" json:"db"`
}

// Enabled reports whether a Redis address is configured.
func (r RedisConfig) Enabled() bool {
	return r.Addr != ""
}

type ReconcileConfig struct {
	Interval    time.Duration `mapstructure:"interval" json:"interval"`
	GracePeriod time.Duration `mapstructure:"grace_period" json:"grace_period"`
	BatchSize   int           `mapstructure:"batch_size" json:"batch_size"`
}

// String returns a string representation of Config with sensitive data masked
func (c *Config) String() string {
	return fmt.Sprintf("Config{Env: %s, Addr: %s, Database: %s, DatabaseURL: %s, LogLevel: %s, JWTSecret: [REDACTED], TokenStore: %s, Redis: %s, StorageClients: %d, StorageProfiles: %d}",
		c.Env, c.Server.Addr(), c.Database.String(), maskDatabaseURL(c.Database.URL), c.Log.Level,
		c.Security.TokenStore, c.Redis.Addr, len(c.Storage.Clients), len(c.Storage.Profiles))
}

// maskDatabaseURL masks password in database URL
func maskDatabaseURL(dbURL string) string {
	if dbURL == "" {
		return ""
	}

	parsed, err := url.Parse(dbURL)
	if err != nil {
		return "[REDACTED_INVALID_URL]"
	}

	if parsed.User != nil {
		parsed.User = url.UserPassword(parsed.User.Username(), "[REDACTED]")
	}

	return parsed.String()
}

// LoadConfig reads configuration from CONFIG_DIR (default "config") for APP_ENV.
func LoadConfig() (*Config, error) {
	return LoadConfigFrom(GetEnvWithDefault("CONFIG_DIR", "config"), GetEnvWithDefault("APP_ENV", "development"))
}

// LoadConfigFrom reads config.yaml and config.<env>.yaml from dir, applies
// environment overrides and validates the result.
// Missing files are not an error; defaults and environment variables still apply.
func LoadConfigFrom(dir, env string) (*Config, error) {
	log.WithFields(logrus.Fields{"config_dir": dir, "env": env}).Info("Loading configuration")

	v := viper.New()
	setDefaults(v)
	v.Set("env", env)

	v.SetConfigType("yaml")
	v.AddConfigPath(dir)
	v.SetConfigName("config")
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
		log.Warn("No config.yaml found, using defaults and environment variables")
	}

	v.SetConfigName("config." + env)
	if err := v.MergeInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("merge config for %s: %w", env, err)
		}
		log.Debugf("No config.%s.yaml overlay found", env)
	}

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Conventional names used by container platforms.
	_ = v.BindEnv("database.url", EnvPrefix+"_DATABASE_URL", "DATABASE_URL")
	_ = v.BindEnv("server.port", EnvPrefix+"_SERVER_PORT", "APP_PORT")
	_ = v.BindEnv("security.jwt_secret", EnvPrefix+"_SECURITY_JWT_SECRET", "JWT_SECRET")

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	log.Infof("Configuration loaded: %s", cfg.String())
	return &cfg, nil
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("server.host", "0.0.0.0")
	v.SetDefault("server.port", 8080)
	v.SetDefault("server.read_timeout", "15s")
	v.SetDefault("server.write_timeout", "30s")
	v.SetDefault("server.shutdown_timeout", "10s")

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.url", "")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", "5432")
	v.SetDefault("database.user", "recipes")
	v.SetDefault("database.password", "")
	v.SetDefault("database.name", "recipes")
	v.SetDefault("database.sslmode", "disable")
	v.SetDefault("database.path", "recipes.sqlite")

	v.SetDefault("log.level", "info")

	v.SetDefault("security.jwt_secret", "")
	v.SetDefault("security.jwt_issuer", "gin-recipe-api")
	v.SetDefault("security.access_token_ttl", "30m")
	v.SetDefault("security.refresh_token_ttl", "168h")
	v.SetDefault("security.client_id", "recipes-web")
	v.SetDefault("security.client_secret", "")
	v.SetDefault("security.token_store", "database")
	v.SetDefault("security.max_login_attempts", 5)

	v.SetDefault("redis.addr", "")
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)

	v.SetDefault("storage.default_client", "default")
	v.SetDefault("storage.upload_concurrency", storage.DefaultUploadConcurrency)
	v.SetDefault("storage.upload_retries", storage.DefaultUploadRetries)
	v.SetDefault("storage.retry_wait", "1s")

	v.SetDefault("reconcile.interval", "1h")
	v.SetDefault("reconcile.grace_period", "24h")
	v.SetDefault("reconcile.batch_size", 100)
}

// Validate checks values that cannot be defaulted.
func (c *Config) Validate() error {
	if c.Server.Port <= 0 || c.Server.Port > 65535 {
		return fmt.Errorf("invalid server port: %d", c.Server.Port)
	}
	if c.Security.JWTSecret == "" {
		return errors.New("security.jwt_secret (JWT_SECRET) is required")
	}
	if c.Env == "production" && len(c.Security.JWTSecret) < 32 {
		return errors.New("security.jwt_secret must be at least 32 characters in production")
	}
	switch c.Security.TokenStore {
	case "database":
	case "redis":
		if !c.Redis.Enabled() {
			return errors.New("security.token_store=redis requires redis.addr")
		}
	default:
		return fmt.Errorf("unsupported token store: %s (supported: database, redis)", c.Security.TokenStore)
	}
	if c.Database.URL != "" {
		if _, err := url.ParseRequestURI(c.Database.URL); err != nil {
			return fmt.Errorf("invalid database url: %w", err)
		}
	}
	return c.Storage.Validate()
}

// LogLevel parses Log.Level, falling back to info.
func (c *Config) LogLevel() logrus.Level {
	level, err := logrus.ParseLevel(c.Log.Level)
	if err != nil {
		return logrus.InfoLevel
	}
	return level
}

// Helper to get environment with default values
func GetEnvWithDefault(key, defaultValue string) string {
	log.Tracef("Getting environment variable: %s", key)
	value := os.Getenv(key)
	if value == "" {
		log.Debugf("Environment variable %s not set, using default value: %s", key, defaultValue)
		return defaultValue
	}
	return value
}

// GetEnvAsType retrieves an environment variable and converts it to the specified type
// using generic type handling.
func GetEnvAsType[T any](key string, defaultValue T) T {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue
	}

	var result T
	switch any(result).(type) {
	case int:
		intValue, err := strconv.Atoi(value)
		if err != nil {
			return defaultValue
		}
		return any(intValue).(T)
	case string:
		return any(value).(T)
	case bool:
		boolValue, err := strconv.ParseBool(value)
		if err != nil {
			return defaultValue
		}
		return any(boolValue).(T)
	case time.Duration:
		d, err := time.ParseDuration(value)
		if err != nil {
			return defaultValue
		}
		return any(d).(T)
	default:
		return defaultValue
	}
}
