package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/viper"
)

type Config struct {
	Database DatabaseConfig `mapstructure:"database"`
	Export   ExportConfig   `mapstructure:"export"`
}

type DatabaseConfig struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Name     string `mapstructure:"name"`
	PoolSize int    `mapstructure:"pool_size"`
	Path     string `mapstructure:"path"` // directory for SQLite database files
}

type ExportConfig struct {
	Directory string `mapstructure:"directory"`
}

// DSN returns the driver-specific data source name.
func (d DatabaseConfig) DSN() string {
	if d.Driver == "postgres" {
		return fmt.Sprintf("postgres://%s:%s@%s:%d/%s?sslmode=disable",
			d.User, d.Password, d.Host, d.Port, d.Name)
	}
	return filepath.Join(d.Path, d.Name+".db")
}

// IsSQLite returns true if the driver is sqlite.
func (d DatabaseConfig) IsSQLite() bool {
	return d.Driver == "" || d.Driver == "sqlite"
}

// Load reads varman.yaml from the working directory or ~/.varman, applying
// defaults and VARMAN_* environment overrides. A missing config file is not
// an error; defaults place the catalog under ~/.varman.
func Load() (*Config, error) {
	home, _ := os.UserHomeDir()
	dataDir := filepath.Join(home, ".varman")

	v := viper.New()
	v.SetConfigName("varman")
	v.SetConfigType("yaml")
	v.AddConfigPath(".")
	v.AddConfigPath(dataDir)

	v.SetDefault("database.driver", "sqlite")
	v.SetDefault("database.host", "localhost")
	v.SetDefault("database.port", 5432)
	v.SetDefault("database.pool_size", 5)
	v.SetDefault("database.name", "varman")
	v.SetDefault("database.path", dataDir)
	v.SetDefault("export.directory", filepath.Join(dataDir, "exports"))

	v.SetEnvPrefix("VARMAN")
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("read config: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("unmarshal config: %w", err)
	}

	return &cfg, nil
}

// EnsureDataDir creates the sqlite data directory if needed.
func (c *Config) EnsureDataDir() error {
	if !c.Database.IsSQLite() {
		return nil
	}
	if err := os.MkdirAll(c.Database.Path, 0o755); err != nil {
		return fmt.Errorf("create data dir: %w", err)
	}
	return nil
}
