package config

import (
	"fmt"

	"github.com/spf13/viper"
)

// Supported database/sql drivers
const (
	DriverPostgres = "postgres"
	DriverPgx      = "pgx"
)

// DatabaseConfig holds database configuration
type DatabaseConfig struct {
	URL          string
	Driver       string
	MaxOpenConns int
}

// NewDatabaseConfig creates a new database configuration using Viper
func NewDatabaseConfig() *DatabaseConfig {
	return &DatabaseConfig{
		URL:          viper.GetString(DBURL),
		Driver:       viper.GetString(DBDriver),
		MaxOpenConns: viper.GetInt(DBMaxOpenConns),
	}
}

// GetConnectionString returns the PostgreSQL connection string
func (c *DatabaseConfig) GetConnectionString() string {
	return c.URL
}

// DriverName returns the database/sql driver to open, lib/pq unless pgx was asked for
func (c *DatabaseConfig) DriverName() string {
	if c.Driver == DriverPgx {
		return DriverPgx
	}
	return DriverPostgres
}

func (c *DatabaseConfig) validate() error {
	switch c.Driver {
	case "", DriverPostgres, DriverPgx:
		return nil
	}
	return fmt.Errorf("unsupported database driver %q", c.Driver)
}
