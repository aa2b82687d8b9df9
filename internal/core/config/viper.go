package config

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/robfig/cron/v3"
	"github.com/spf13/viper"

	"github.com/apptentive/engagekit/internal/core/logging"
)

// EnvPrefix prefixes every environment variable, e.g. EK_STORE_DB_URL.
const EnvPrefix = "EK"

// LoadConfig loads configuration from file using viper.
// CLI flags > environment > config file > defaults precedence.
func LoadConfig(configPath string) (*Config, error) {
	v := viper.New()

	// Set defaults matching DefaultConfig
	def := DefaultConfig()
	v.SetDefault("engine.manifest_path", def.Engine.ManifestPath)
	v.SetDefault("engine.override_path", def.Engine.OverridePath)
	v.SetDefault("engine.trace", def.Engine.Trace)
	v.SetDefault("engine.watch_debounce", def.Engine.WatchDebounce.String())
	v.SetDefault("store.db_url", def.Store.DBURL)
	v.SetDefault("store.retention", def.Store.Retention.String())
	v.SetDefault("store.prune_schedule", def.Store.PruneSchedule)
	v.SetDefault("metrics.namespace", def.Metrics.Namespace)
	v.SetDefault("log.level", def.Log.Level)
	v.SetDefault("log.format", def.Log.Format)

	// Bind environment variables with EK_ prefix
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	// Load config file if provided
	if configPath != "" {
		v.SetConfigFile(configPath)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("failed to read config file: %w", err)
		}

		// Credentials must come from the environment, never from a file
		if err := validateNoSecretsInConfig(configPath); err != nil {
			return nil, err
		}
	}

	cfg := &Config{
		Engine: EngineConfig{
			ManifestPath:  v.GetString("engine.manifest_path"),
			OverridePath:  v.GetString("engine.override_path"),
			Trace:         v.GetBool("engine.trace"),
			WatchDebounce: v.GetDuration("engine.watch_debounce"),
		},
		Store: StoreConfig{
			DBURL:         v.GetString("store.db_url"),
			Retention:     v.GetDuration("store.retention"),
			PruneSchedule: v.GetString("store.prune_schedule"),
		},
		Metrics: MetricsConfig{
			Namespace: v.GetString("metrics.namespace"),
		},
		Log: LogConfig{
			Level:  v.GetString("log.level"),
			Format: v.GetString("log.format"),
		},
	}

	if err := validateConfig(cfg); err != nil {
		return nil, err
	}

	return cfg, nil
}

// validateConfig checks durations, the prune schedule, the database scheme and
// log settings.
func validateConfig(cfg *Config) error {
	if cfg.Engine.WatchDebounce <= 0 {
		return fmt.Errorf("watch_debounce must be positive, got %v", cfg.Engine.WatchDebounce)
	}
	if cfg.Store.Retention <= 0 {
		return fmt.Errorf("retention must be positive, got %v", cfg.Store.Retention)
	}
	if _, err := cron.ParseStandard(cfg.Store.PruneSchedule); err != nil {
		return fmt.Errorf("invalid prune_schedule %q: %w", cfg.Store.PruneSchedule, err)
	}
	if cfg.Store.DBURL != "" {
		u, err := url.Parse(cfg.Store.DBURL)
		if err != nil {
			return fmt.Errorf("invalid db_url: %w", err)
		}
		if u.Scheme != "sqlite" && u.Scheme != "postgres" {
			return fmt.Errorf("db_url scheme must be sqlite or postgres, got %q", u.Scheme)
		}
	}
	if cfg.Metrics.Namespace == "" {
		return fmt.Errorf("metrics namespace must not be empty")
	}
	if _, err := logging.ParseLevel(cfg.Log.Level); err != nil {
		return err
	}
	if f := strings.ToLower(cfg.Log.Format); f != "json" && f != "text" {
		return fmt.Errorf("log format must be json or text, got %q", cfg.Log.Format)
	}
	return nil
}

// validateNoSecretsInConfig rejects a database password in the config file.
// The file is read on its own so environment values are not mistaken for it.
func validateNoSecretsInConfig(configPath string) error {
	file := viper.New()
	file.SetConfigFile(configPath)
	if err := file.ReadInConfig(); err != nil {
		return fmt.Errorf("failed to read config file: %w", err)
	}

	raw := file.GetString("store.db_url")
	if raw == "" {
		return nil
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil // reported by validateConfig
	}
	if _, hasPassword := u.User.Password(); hasPassword {
		return fmt.Errorf("database passwords not allowed in config files (use EK_STORE_DB_URL environment variable)")
	}
	return nil
}
