package config

import (
	"fmt"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

// flagKeys maps CLI flag names onto config keys.
var flagKeys = map[string]string{
	"host":   "rules_api.host",
	"port":   "rules_api.port",
	"db-url": "database.url",
}

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
// flags may be nil; only flags the user actually set take effect.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*RulesAPIConfig, error) {
	v := viper.New()

	def := DefaultRulesAPIConfig()
	v.SetDefault("rules_api.host", def.Host)
	v.SetDefault("rules_api.port", def.Port)
	v.SetDefault("rules_api.max_connections", def.MaxConnections)
	v.SetDefault("rules_api.request_timeout", def.RequestTimeout.String())
	v.SetDefault("rules_api.max_message_size", def.MaxMessageSize)
	v.SetDefault("rules_api.cache_enabled", def.CacheEnabled)
	v.SetDefault("database.url", "")

	// HK_RULES_API_PORT, HK_DATABASE_URL, ...
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}
	}

	// Secrets are environment-only.
	if err := validateNoSecretsInConfig(v); err != nil {
		return nil, err
	}

	if flags != nil {
		for name, key := range flagKeys {
			if f := flags.Lookup(name); f != nil && f.Changed {
				if err := v.BindPFlag(key, f); err != nil {
					return nil, fmt.Errorf("failed to bind flag %s: %w", name, err)
				}
			}
		}
	}

	cfg := &RulesAPIConfig{
		Host:           v.GetString("rules_api.host"),
		Port:           v.GetInt("rules_api.port"),
		MaxConnections: v.GetInt("rules_api.max_connections"),
		RequestTimeout: v.GetDuration("rules_api.request_timeout"),
		MaxMessageSize: v.GetInt("rules_api.max_message_size"),
		CacheEnabled:   v.GetBool("rules_api.cache_enabled"),
		DatabaseURL:    v.GetString("database.url"),
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks port range and positive limits.
func validateConfig(cfg *RulesAPIConfig) error {
	if cfg.Port <= 0 || cfg.Port > 65535 {
		return fmt.Errorf("port must be between 1 and 65535, got %d", cfg.Port)
	}
	if cfg.MaxConnections <= 0 {
		return fmt.Errorf("max_connections must be positive, got %d", cfg.MaxConnections)
	}
	if cfg.RequestTimeout <= 0 {
		return fmt.Errorf("request_timeout must be positive, got %v", cfg.RequestTimeout)
	}
	if cfg.MaxMessageSize <= 0 {
		return fmt.Errorf("max_message_size must be positive, got %d", cfg.MaxMessageSize)
	}
	return nil
}

func validateNoSecretsInConfig(v *viper.Viper) error {
	if v.InConfig("hmac_secret") || v.InConfig("rules_api.hmac_secret") {
		return fmt.Errorf("HMAC secrets not allowed in config files (use HK_HMAC_SECRET environment variable)")
	}
	return nil
}
