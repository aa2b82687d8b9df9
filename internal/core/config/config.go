// Package config provides configuration management for engagekit commands.
package config

import (
	"time"
)

// Config is the complete engagekit configuration.
type Config struct {
	Engine  EngineConfig
	Store   StoreConfig
	Metrics MetricsConfig
	Log     LogConfig
}

// EngineConfig locates manifests and controls evaluation diagnostics.
type EngineConfig struct {
	ManifestPath  string
	OverridePath  string
	Trace         bool
	WatchDebounce time.Duration
}

// StoreConfig configures the manifest revision store.
type StoreConfig struct {
	DBURL         string
	Retention     time.Duration
	PruneSchedule string
}

// MetricsConfig configures Prometheus metric names.
type MetricsConfig struct {
	Namespace string
}

// LogConfig configures the process logger.
type LogConfig struct {
	Level  string
	Format string
}

// DefaultConfig returns configuration with default values.
func DefaultConfig() *Config {
	return &Config{
		Engine: EngineConfig{
			WatchDebounce: 100 * time.Millisecond,
		},
		Store: StoreConfig{
			Retention:     30 * 24 * time.Hour,
			PruneSchedule: "@daily",
		},
		Metrics: MetricsConfig{
			Namespace: "engagekit",
		},
		Log: LogConfig{
			Level:  "info",
			Format: "json",
		},
	}
}
