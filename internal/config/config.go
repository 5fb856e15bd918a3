// Package config loads the service configuration from an optional YAML file,
// DHARMA_* environment variables and command line flags.
package config

import (
	"log/slog"
	"time"

	"github.com/arvindjonn09/dharma-mini/internal/session"
)

// Store backends.
const (
	BackendFile   = "file"
	BackendSqlite = "sqlite"
	BackendRedis  = "redis"
	BackendMemory = "memory"
)

type Config struct {
	Session SessionConfig `mapstructure:"session" yaml:"session"`
	Store   StoreConfig   `mapstructure:"store" yaml:"store"`
	Redis   RedisConfig   `mapstructure:"redis" yaml:"redis"`
	Admin   AdminConfig   `mapstructure:"admin" yaml:"admin"`
	Server  ServerConfig  `mapstructure:"server" yaml:"server"`
	Log     LogConfig     `mapstructure:"log" yaml:"log"`
}

type SessionConfig struct {
	// TTLMinutes is the fixed session lifetime counted from creation.
	// SESSION_TTL_MINUTES is honoured as well as DHARMA_SESSION_TTL_MINUTES.
	TTLMinutes     int    `mapstructure:"ttl_minutes" yaml:"ttl_minutes" validate:"gte=1"`
	WarningMinutes int    `mapstructure:"warning_minutes" yaml:"warning_minutes" validate:"gte=0,ltefield=TTLMinutes"`
	TokenBytes     int    `mapstructure:"token_bytes" yaml:"token_bytes" validate:"gte=16,lte=64"`
	OrphanPolicy   string `mapstructure:"orphan_policy" yaml:"orphan_policy" validate:"oneof=keep purge"`
}

func (c SessionConfig) TTL() time.Duration {
	return time.Duration(c.TTLMinutes) * time.Minute
}

// WarningLead is the expiry warning window. Zero minutes turns warnings off.
func (c SessionConfig) WarningLead() time.Duration {
	if c.WarningMinutes == 0 {
		return session.NoWarning
	}
	return time.Duration(c.WarningMinutes) * time.Minute
}

type StoreConfig struct {
	// Backend holds the sessions. Users live in sqlite when it is sqlite, in UsersFile otherwise.
	Backend      string `mapstructure:"backend" yaml:"backend" validate:"oneof=file sqlite redis memory"`
	SessionsFile string `mapstructure:"sessions_file" yaml:"sessions_file" validate:"required_if=Backend file"`
	UsersFile    string `mapstructure:"users_file" yaml:"users_file"`
	SqlitePath   string `mapstructure:"sqlite_path" yaml:"sqlite_path" validate:"required_if=Backend sqlite"`
}

type RedisConfig struct {
	Addr     string `mapstructure:"addr" yaml:"addr" validate:"omitempty,hostname_port"`
	Password string `mapstructure:"password" yaml:"password"`
	DB       int    `mapstructure:"db" yaml:"db" validate:"gte=0"`
	Prefix   string `mapstructure:"prefix" yaml:"prefix"`
}

type AdminConfig struct {
	Username string `mapstructure:"username" yaml:"username"`
	Password string `mapstructure:"password" yaml:"password"`
}

type ServerConfig struct {
	Addr            string        `mapstructure:"addr" yaml:"addr" validate:"required"`
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" yaml:"shutdown_timeout" validate:"gte=0"`
	CookieSecure    bool          `mapstructure:"cookie_secure" yaml:"cookie_secure"`
}

type LogConfig struct {
	Level  string `mapstructure:"level" yaml:"level" validate:"oneof=debug info warn error"`
	Format string `mapstructure:"format" yaml:"format" validate:"oneof=text json"`
}

// SlogLevel maps the configured level name.
func (c LogConfig) SlogLevel() slog.Level {
	switch c.Level {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// Defaults returns the configuration used when nothing is set.
func Defaults() Config {
	return Config{
		Session: SessionConfig{
			TTLMinutes:     40,
			WarningMinutes: 10,
			TokenBytes:     16,
			OrphanPolicy:   "keep",
		},
		Store: StoreConfig{
			Backend:      BackendFile,
			SessionsFile: "data/sessions.json",
			UsersFile:    "data/users.json",
			SqlitePath:   "data/dharma.db",
		},
		Redis: RedisConfig{
			Addr:   "localhost:6379",
			Prefix: "dharma:session:",
		},
		Server: ServerConfig{
			Addr:            ":8080",
			ShutdownTimeout: 10 * time.Second,
		},
		Log: LogConfig{
			Level:  "info",
			Format: "text",
		},
	}
}
