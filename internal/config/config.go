// Package config loads the server configuration.
//
// Values are resolved in three layers, later layers winning:
//
//  1. struct-tag defaults (`default:"..."`)
//  2. the optional YAML file
//  3. environment variables (PORT, DB_PATH, DATABASE_DSN, JWT_SECRET,
//     PERPLEXITY_API_KEY)
//
// Load validates the result once; components receive their own section
// and never read the environment themselves.
package config

import (
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/creasty/defaults"
	"github.com/go-playground/validator/v10"
	"github.com/pkg/errors"
	"gopkg.in/yaml.v3"
)

type Config struct {
	Server   ServerConfig   `yaml:"server"`
	Database DatabaseConfig `yaml:"database"`
	Security SecurityConfig `yaml:"security"`
	Chat     ChatConfig     `yaml:"chat"`
	Log      LogConfig      `yaml:"log"`
}

type ServerConfig struct {
	// Port is a bare port ("8080") or host:port ("127.0.0.1:8080").
	Port string `yaml:"port" default:"8080" validate:"required,port|hostname_port"`
	// StaticDir, when set, is served under /static/.
	StaticDir       string        `yaml:"static-dir"`
	CORSOrigins     []string      `yaml:"cors-origins" default:"[\"*\"]"`
	ReadTimeout     time.Duration `yaml:"read-timeout" default:"15s" validate:"gt=0"`
	WriteTimeout    time.Duration `yaml:"write-timeout" default:"15s" validate:"gt=0"`
	IdleTimeout     time.Duration `yaml:"idle-timeout" default:"60s" validate:"gt=0"`
	ShutdownTimeout time.Duration `yaml:"shutdown-timeout" default:"30s" validate:"gt=0"`
}

type DatabaseConfig struct {
	Type string `yaml:"type" default:"sqlite" validate:"oneof=sqlite postgres mysql"`
	// Path is the SQLite database file.
	Path string `yaml:"path" default:"data/mindflow.db" validate:"required_if=Type sqlite"`
	// DSN is the connection string for postgres and mysql.
	DSN             string        `yaml:"dsn" validate:"required_unless=Type sqlite"`
	MaxOpenConns    int           `yaml:"max-open-conns" default:"10" validate:"gte=1"`
	MaxIdleConns    int           `yaml:"max-idle-conns" default:"5" validate:"gte=0"`
	ConnMaxLifetime time.Duration `yaml:"conn-max-lifetime" default:"1h"`
}

type SecurityConfig struct {
	// JWTSecret signs access tokens. Empty means a random per-process secret,
	// which invalidates every token on restart.
	JWTSecret   string        `yaml:"jwt-secret" validate:"omitempty,min=16"`
	TokenExpiry time.Duration `yaml:"token-expiry" default:"1h" validate:"gt=0"`
	BcryptCost  int           `yaml:"bcrypt-cost" default:"12" validate:"gte=4,lte=31"`
}

type ChatConfig struct {
	// APIKey for the completions provider. Chat answers 500 while it is unset.
	APIKey         string `yaml:"api-key"`
	BaseURL        string `yaml:"base-url" default:"https://api.perplexity.ai" validate:"required,url"`
	Model          string `yaml:"model" default:"sonar-pro" validate:"required"`
	InitialCredits int    `yaml:"initial-credits" default:"10" validate:"gte=0"`
	ContextLimit   int    `yaml:"context-limit" default:"3" validate:"gte=1"`
	PreviewLength  int    `yaml:"preview-length" default:"100" validate:"gte=1"`
	// RateLimit is chat requests per minute per user; 0 disables the limit.
	RateLimit int `yaml:"rate-limit" default:"20" validate:"gte=0"`
}

type LogConfig struct {
	Level  string `yaml:"level" default:"info" validate:"oneof=debug info warn error"`
	Format string `yaml:"format" default:"text" validate:"oneof=text json"`
}

// SlogLevel converts Level for slog.HandlerOptions.
func (c LogConfig) SlogLevel() slog.Level {
	var lvl slog.Level
	if err := lvl.UnmarshalText([]byte(c.Level)); err != nil {
		return slog.LevelInfo
	}
	return lvl
}

// Load builds a Config from defaults, the file at path (skipped when path
// is empty) and the process environment.
func Load(path string) (*Config, error) {
	return load(path, os.LookupEnv)
}

func load(path string, lookup func(string) (string, bool)) (*Config, error) {
	c := &Config{}
	if err := defaults.Set(c); err != nil {
		return nil, errors.Wrap(err, "config: applying defaults")
	}

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return nil, errors.Wrapf(err, "config: reading %s", path)
		}
		if err := yaml.Unmarshal(data, c); err != nil {
			return nil, errors.Wrapf(err, "config: parsing %s", path)
		}
	}

	c.applyEnv(lookup)

	if err := c.Validate(); err != nil {
		return nil, err
	}
	return c, nil
}

func (c *Config) applyEnv(lookup func(string) (string, bool)) {
	if v, ok := lookup("PORT"); ok && v != "" {
		c.Server.Port = v
	}
	if v, ok := lookup("DB_PATH"); ok && v != "" {
		c.Database.Path = v
	}
	if v, ok := lookup("DATABASE_DSN"); ok && v != "" {
		c.Database.DSN = v
	}
	if v, ok := lookup("JWT_SECRET"); ok && v != "" {
		c.Security.JWTSecret = v
	}
	if v, ok := lookup("PERPLEXITY_API_KEY"); ok && v != "" {
		c.Chat.APIKey = v
	}
}

var validate = validator.New(validator.WithRequiredStructEnabled())

// Validate checks every section against its `validate` tags.
func (c *Config) Validate() error {
	if err := validate.Struct(c); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) {
			msgs := make([]string, 0, len(verrs))
			for _, fe := range verrs {
				msgs = append(msgs, fe.Namespace()+" failed "+fe.Tag())
			}
			return errors.Errorf("config: invalid: %s", strings.Join(msgs, "; "))
		}
		return errors.Wrap(err, "config: validating")
	}
	return nil
}

// Addr is the listen address for the HTTP server.
func (c ServerConfig) Addr() string {
	if strings.Contains(c.Port, ":") {
		return c.Port
	}
	return ":" + c.Port
}
