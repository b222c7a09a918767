// Package config loads connection and logging settings for the asyncdb
// command from asyncdb.yaml, ASYNCDB_ environment variables and .env files.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/joho/godotenv"
	"github.com/mitchellh/go-homedir"
	"github.com/spf13/afero"
	"github.com/spf13/viper"
	"github.com/tianxinzizhen/asyncdb/backend"
	"github.com/tianxinzizhen/asyncdb/internal/logger"
)

// AppFs is the file system configuration files are read from.
var AppFs = afero.NewOsFs()

type Config struct {
	Driver   string `mapstructure:"driver"`
	Host     string `mapstructure:"host"`
	Port     int    `mapstructure:"port"`
	User     string `mapstructure:"user"`
	Password string `mapstructure:"password"`
	Database string `mapstructure:"database"`
	// DSN overrides the fields above.
	DSN string `mapstructure:"dsn"`

	MultiStatements bool `mapstructure:"multi_statements"`
	FoundRows       bool `mapstructure:"found_rows"`
	Compress        bool `mapstructure:"compress"`

	Log logger.Config `mapstructure:"log"`
}

// Load reads the configuration. Files in dirs are searched before the
// working directory and $HOME/.config/asyncdb.
func Load(dirs ...string) (*Config, error) {
	if err := loadDotenv(".env", false); err != nil {
		return nil, err
	}
	if err := loadDotenv(".env.local", true); err != nil {
		return nil, err
	}

	v := viper.New()
	v.SetFs(AppFs)
	v.SetConfigName("asyncdb")
	v.SetConfigType("yaml")
	for _, dir := range dirs {
		v.AddConfigPath(dir)
	}
	v.AddConfigPath(".")
	if home, err := homedir.Dir(); err == nil {
		v.AddConfigPath(filepath.Join(home, ".config", "asyncdb"))
	}

	v.SetEnvPrefix("ASYNCDB")
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	v.SetDefault("driver", "mysql")
	v.SetDefault("host", "127.0.0.1")
	v.SetDefault("port", 0)
	v.SetDefault("user", "")
	v.SetDefault("password", "")
	v.SetDefault("database", "")
	v.SetDefault("dsn", "")
	v.SetDefault("multi_statements", false)
	v.SetDefault("found_rows", false)
	v.SetDefault("compress", false)
	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
	v.SetDefault("log.file", "")
	v.SetDefault("log.max_size", 10)
	v.SetDefault("log.max_backups", 5)
	v.SetDefault("log.max_age", 7)
	v.SetDefault("log.compress", false)

	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("config: %w", err)
		}
	}

	cfg := &Config{}
	if err := v.Unmarshal(cfg); err != nil {
		return nil, fmt.Errorf("config: %w", err)
	}
	return cfg, nil
}

// loadDotenv exports the variables of name. Variables already set are kept
// unless override is set.
func loadDotenv(name string, override bool) error {
	f, err := AppFs.Open(name)
	if err != nil {
		return nil
	}
	defer f.Close()
	vars, err := godotenv.Parse(f)
	if err != nil {
		return fmt.Errorf("config: %s: %w", name, err)
	}
	for k, val := range vars {
		if _, set := os.LookupEnv(k); set && !override {
			continue
		}
		os.Setenv(k, val)
	}
	return nil
}

// Backend converts c into the settings a backend.Driver connects with.
func (c *Config) Backend() backend.Config {
	var flags backend.Flags
	if c.MultiStatements {
		flags |= backend.FlagMultiStatements
	}
	if c.FoundRows {
		flags |= backend.FlagFoundRows
	}
	if c.Compress {
		flags |= backend.FlagCompress
	}
	return backend.Config{
		Host:     c.Host,
		Port:     c.Port,
		User:     c.User,
		Password: c.Password,
		Database: c.Database,
		Flags:    flags,
		DSN:      c.DSN,
	}
}
