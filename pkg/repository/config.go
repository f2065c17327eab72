package repository

import (
	"errors"
	"fmt"
	"net"
	"net/url"
	"os"
	"path/filepath"
	"strconv"
)

// DatabaseType selects the SQLStore backend.
type DatabaseType string

const (
	DatabaseTypeSQLite   DatabaseType = "sqlite"   // single process, default
	DatabaseTypePostgres DatabaseType = "postgres" // shared library across machines
)

// SQLiteConfig locates the SQLite file. Empty Path means
// $XDG_CONFIG_HOME/tiercache/repository.db.
type SQLiteConfig struct {
	Path string `mapstructure:"path" yaml:"path"`
}

// PostgresConfig addresses a PostgreSQL server.
type PostgresConfig struct {
	Host     string `mapstructure:"host" yaml:"host"`
	Port     int    `mapstructure:"port" yaml:"port"`
	Database string `mapstructure:"database" yaml:"database"`
	User     string `mapstructure:"user" yaml:"user"`
	Password string `mapstructure:"password" yaml:"password,omitempty"`

	// SSLMode is passed through: disable, require, verify-ca, verify-full.
	SSLMode string `mapstructure:"sslmode" yaml:"sslmode"`

	MaxOpenConns int `mapstructure:"max_open_conns" yaml:"max_open_conns"`
	MaxIdleConns int `mapstructure:"max_idle_conns" yaml:"max_idle_conns"`
}

// DSN returns a postgres:// URL understood by pgx, GORM and golang-migrate.
// Credentials are escaped.
func (c *PostgresConfig) DSN() string {
	u := url.URL{
		Scheme: "postgres",
		Host:   net.JoinHostPort(c.Host, strconv.Itoa(c.Port)),
		Path:   "/" + c.Database,
	}
	if c.Password != "" {
		u.User = url.UserPassword(c.User, c.Password)
	} else if c.User != "" {
		u.User = url.User(c.User)
	}
	if c.SSLMode != "" {
		u.RawQuery = url.Values{"sslmode": {c.SSLMode}}.Encode()
	}
	return u.String()
}

// Config selects and configures the SQLStore backend.
type Config struct {
	Type     DatabaseType   `mapstructure:"type" yaml:"type" validate:"omitempty,oneof=sqlite postgres"`
	SQLite   SQLiteConfig   `mapstructure:"sqlite" yaml:"sqlite"`
	Postgres PostgresConfig `mapstructure:"postgres" yaml:"postgres"`
}

// ApplyDefaults fills in the backend-specific zero values.
func (c *Config) ApplyDefaults() {
	if c.Type == "" {
		c.Type = DatabaseTypeSQLite
	}

	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			c.SQLite.Path = filepath.Join(defaultDataDir(), "repository.db")
		}
	case DatabaseTypePostgres:
		pg := &c.Postgres
		if pg.Port == 0 {
			pg.Port = 5432
		}
		if pg.SSLMode == "" {
			pg.SSLMode = "disable"
		}
		if pg.MaxOpenConns == 0 {
			pg.MaxOpenConns = 10
		}
		if pg.MaxIdleConns == 0 {
			pg.MaxIdleConns = 2
		}
	}
}

func defaultDataDir() string {
	base := os.Getenv("XDG_CONFIG_HOME")
	if base == "" {
		home, _ := os.UserHomeDir()
		base = filepath.Join(home, ".config")
	}
	return filepath.Join(base, "tiercache")
}

// Validate checks the fields the selected backend cannot do without.
func (c *Config) Validate() error {
	switch c.Type {
	case DatabaseTypeSQLite:
		if c.SQLite.Path == "" {
			return errors.New("sqlite.path is required")
		}
	case DatabaseTypePostgres:
		var missing []error
		for field, v := range map[string]string{
			"postgres.host":     c.Postgres.Host,
			"postgres.database": c.Postgres.Database,
			"postgres.user":     c.Postgres.User,
		} {
			if v == "" {
				missing = append(missing, fmt.Errorf("%s is required", field))
			}
		}
		return errors.Join(missing...)
	default:
		return fmt.Errorf("unsupported repository type %q", c.Type)
	}
	return nil
}
