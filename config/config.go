// Package config loads application settings from defaults, an optional
// YAML file, and TASKS_ prefixed environment variables, in that order.
package config

import (
	"os"
	"strings"
	"time"

	"github.com/goliatone/go-errors"
	"github.com/knadh/koanf/parsers/yaml"
	"github.com/knadh/koanf/providers/env"
	"github.com/knadh/koanf/providers/file"
	"github.com/knadh/koanf/v2"
)

// EnvPrefix namespaces the environment variables the loader reads.
// TASKS_SERVER__ADDR maps to server.addr.
const EnvPrefix = "TASKS_"

type App struct {
	Name    string `koanf:"name"`
	BaseURL string `koanf:"base_url"`
}

type Server struct {
	Addr string `koanf:"addr"`
}

type Database struct {
	DSN string `koanf:"dsn"`
}

type Auth struct {
	SigningKey        string `koanf:"signing_key"`
	TokenExpiration   int    `koanf:"token_expiration"`
	Issuer            string `koanf:"issuer"`
	Scheme            string `koanf:"scheme"`
	PasswordMinLength int    `koanf:"password_min_length"`
	ResetWindowMins   int    `koanf:"reset_window_minutes"`
	// DeterministicIDs derives new account ids from the email instead
	// of random UUIDs, so re-registering after a wipe keeps the id.
	DeterministicIDs bool `koanf:"deterministic_ids"`
}

type SMTP struct {
	Enabled  bool   `koanf:"enabled"`
	Host     string `koanf:"host"`
	Port     int    `koanf:"port"`
	Username string `koanf:"username"`
	Password string `koanf:"password"`
	From     string `koanf:"from"`
	FromName string `koanf:"from_name"`
}

type Logging struct {
	Level  string `koanf:"level"`
	Pretty bool   `koanf:"pretty"`
}

type Config struct {
	App      App      `koanf:"app"`
	Server   Server   `koanf:"server"`
	Database Database `koanf:"database"`
	Auth     Auth     `koanf:"auth"`
	SMTP     SMTP     `koanf:"smtp"`
	Logging  Logging  `koanf:"logging"`
}

// Default returns the configuration used when no file or environment
// override is present.
func Default() *Config {
	return &Config{
		App: App{
			Name: "go-tasks",
		},
		Server: Server{
			Addr: ":3000",
		},
		Database: Database{
			DSN: "file:tasks.db?cache=shared&_pragma=foreign_keys(1)",
		},
		Auth: Auth{
			TokenExpiration:   72,
			Issuer:            "go-tasks",
			Scheme:            "Bearer",
			PasswordMinLength: 6,
			ResetWindowMins:   10,
		},
		Logging: Logging{
			Level:  "info",
			Pretty: true,
		},
	}
}

// Load reads configuration from the given YAML file, if any, then
// applies environment overrides. A missing file is only an error when
// the path was given explicitly.
func Load(path string) (*Config, error) {
	cfg := Default()

	k := koanf.New(".")

	if path != "" {
		if _, err := os.Stat(path); err == nil {
			if err := k.Load(file.Provider(path), yaml.Parser()); err != nil {
				return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load config file").
					WithMetadata(map[string]any{"path": path})
			}
		} else if !os.IsNotExist(err) {
			return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to stat config file").
				WithMetadata(map[string]any{"path": path})
		}
	}

	err := k.Load(env.Provider(EnvPrefix, ".", func(s string) string {
		s = strings.TrimPrefix(s, EnvPrefix)
		s = strings.ToLower(s)
		return strings.ReplaceAll(s, "__", ".")
	}), nil)
	if err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to load environment config")
	}

	if err := k.Unmarshal("", cfg); err != nil {
		return nil, errors.Wrap(err, errors.CategoryBadInput, "failed to unmarshal config")
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks the settings a running server cannot do without.
func (c *Config) Validate() error {
	if c.Auth.SigningKey == "" {
		return errors.New("auth.signing_key is required", errors.CategoryBadInput)
	}

	if c.Auth.TokenExpiration <= 0 {
		return errors.New("auth.token_expiration must be positive", errors.CategoryBadInput)
	}

	if c.Database.DSN == "" {
		return errors.New("database.dsn is required", errors.CategoryBadInput)
	}

	return nil
}

// The getters below satisfy the auth configuration interface.

func (c *Config) GetSigningKey() string {
	return c.Auth.SigningKey
}

func (c *Config) GetTokenExpiration() int {
	return c.Auth.TokenExpiration
}

func (c *Config) GetIssuer() string {
	return c.Auth.Issuer
}

func (c *Config) GetAuthScheme() string {
	return c.Auth.Scheme
}

func (c *Config) GetPasswordMinLength() int {
	return c.Auth.PasswordMinLength
}

func (c *Config) GetResetTokenWindow() time.Duration {
	if c.Auth.ResetWindowMins <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(c.Auth.ResetWindowMins) * time.Minute
}
