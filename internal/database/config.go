package database

import (
	"fmt"
	"strings"
)

// DatabaseConfig holds database connection configuration
type DatabaseConfig struct {
	// Driver specifies the database driver (postgres, sqlite)
	Driver string `mapstructure:"driver" json:"driver"`

	// URL takes precedence over the discrete PostgreSQL fields when set.
	URL string `mapstructure:"url" json:"-"`

	// PostgreSQL-specific configuration
	Host     string `mapstructure:"host" json:"host"`
	Port     string `mapstructure:"port" json:"port"`
	User     string `mapstructure:"user" json:"user"`
	Password string `mapstructure:"password" json:"-"`
	Name     string `mapstructure:"name" json:"name"`
	SSLMode  string `mapstructure:"sslmode" json:"sslmode"`

	// SQLite-specific configuration
	Path string `mapstructure:"path" json:"path"`

	// Pool tuning, zero means the built-in default.
	MaxOpenConns int `mapstructure:"max_open_conns" json:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns" json:"max_idle_conns"`

	// Debug turns on gorm SQL logging.
	Debug bool `mapstructure:"debug" json:"debug"`
}

// String returns a string representation with sensitive data masked
func (c *DatabaseConfig) String() string {
	return fmt.Sprintf("DatabaseConfig{Driver: %s, Host: %s, Port: %s, User: %s, Password: [REDACTED], Name: %s, SSLMode: %s, Path: %s}",
		c.Driver, c.Host, c.Port, c.User, c.Name, c.SSLMode, c.Path)
}

// NormalizedDriver returns the lower-cased driver with aliases folded.
func (c *DatabaseConfig) NormalizedDriver() string {
	switch d := strings.ToLower(c.Driver); d {
	case "postgresql":
		return "postgres"
	case "":
		return "sqlite"
	default:
		return d
	}
}

// DSN builds a Data Source Name string based on the driver
func (c *DatabaseConfig) DSN() string {
	switch c.NormalizedDriver() {
	case "postgres":
		if c.URL != "" {
			return c.URL
		}
		return fmt.Sprintf("host=%s user=%s password=%s dbname=%s port=%s sslmode=%s",
			c.Host, c.User, c.Password, c.Name, c.Port, c.SSLMode)
	case "sqlite":
		if c.Path == ":memory:" {
			return c.Path
		}
		return c.Path + "?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on"
	default:
		return ""
	}
}
