package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/viper"
)

// EnvPrefix namespaces environment overrides: DHARMA_STORE_BACKEND sets store.backend.
const EnvPrefix = "DHARMA"

// NewViper returns a viper instance with defaults and environment bindings.
// If configFile is empty, dharma.yaml/.yml is searched for in the working
// directory and /etc/dharma; a missing file is not an error.
func NewViper(configFile string) *viper.Viper {
	v := viper.New()

	if configFile != "" {
		v.SetConfigFile(configFile)
	} else if found := findConfigFile([]string{".", "/etc/dharma"}); found != "" {
		v.SetConfigFile(found)
	} else {
		v.SetConfigName("dharma")
		v.SetConfigType("yaml")
	}

	setDefaults(v)

	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_", "-", "_"))
	v.AutomaticEnv()
	bindEnvKeys(v)

	return v
}

func findConfigFile(dirs []string) string {
	for _, dir := range dirs {
		for _, ext := range []string{".yaml", ".yml"} {
			path := filepath.Join(dir, "dharma"+ext)
			if _, err := os.Stat(path); err == nil {
				return path
			}
		}
	}
	return ""
}

func setDefaults(v *viper.Viper) {
	d := Defaults()
	v.SetDefault("session.ttl_minutes", d.Session.TTLMinutes)
	v.SetDefault("session.warning_minutes", d.Session.WarningMinutes)
	v.SetDefault("session.token_bytes", d.Session.TokenBytes)
	v.SetDefault("session.orphan_policy", d.Session.OrphanPolicy)
	v.SetDefault("store.backend", d.Store.Backend)
	v.SetDefault("store.sessions_file", d.Store.SessionsFile)
	v.SetDefault("store.users_file", d.Store.UsersFile)
	v.SetDefault("store.sqlite_path", d.Store.SqlitePath)
	v.SetDefault("redis.addr", d.Redis.Addr)
	v.SetDefault("redis.password", "")
	v.SetDefault("redis.db", 0)
	v.SetDefault("redis.prefix", d.Redis.Prefix)
	v.SetDefault("admin.username", "")
	v.SetDefault("admin.password", "")
	v.SetDefault("server.addr", d.Server.Addr)
	v.SetDefault("server.shutdown_timeout", d.Server.ShutdownTimeout)
	v.SetDefault("server.cookie_secure", d.Server.CookieSecure)
	v.SetDefault("log.level", d.Log.Level)
	v.SetDefault("log.format", d.Log.Format)
}

// bindEnvKeys binds keys whose environment names differ from the automatic mapping.
func bindEnvKeys(v *viper.Viper) {
	// the session lifetime keeps its historical unprefixed name
	_ = v.BindEnv("session.ttl_minutes", EnvPrefix+"_SESSION_TTL_MINUTES", "SESSION_TTL_MINUTES")
	// admin credentials are commonly provided by the deployment environment
	_ = v.BindEnv("admin.username", EnvPrefix+"_ADMIN_USERNAME", "ADMIN_USERNAME")
	_ = v.BindEnv("admin.password", EnvPrefix+"_ADMIN_PASSWORD", "ADMIN_PASSWORD")
}

// Load reads the configuration file if present, applies environment and flag
// overrides bound to v, and validates the result.
func Load(v *viper.Viper) (*Config, error) {
	if err := v.ReadInConfig(); err != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(err, &notFound) {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("failed to unmarshal config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("config validation failed: %w", err)
	}
	return &cfg, nil
}
