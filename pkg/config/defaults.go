package config

import (
	"strings"
	"time"
)

// DefaultShutdownTimeout bounds how long each unit may take to stop.
const DefaultShutdownTimeout = 30 * time.Second

// ApplyDefaults sets default values for any unspecified settings.
//
// Zero values are replaced with defaults; explicit values are preserved.
func ApplyDefaults(s *Settings) {
	applyLoggingDefaults(&s.Logging)
	applyTelemetryDefaults(&s.Telemetry)
	applyMetricsDefaults(&s.Metrics)

	if s.ShutdownTimeout == 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	if s.Thrift != nil {
		applyThriftDefaults(s.Thrift)
	}
}

// applyLoggingDefaults sets logging defaults and normalizes values.
func applyLoggingDefaults(cfg *LoggingConfig) {
	if cfg.Level == "" {
		cfg.Level = "INFO"
	}
	cfg.Level = strings.ToUpper(cfg.Level)

	if cfg.Format == "" {
		cfg.Format = "text"
	}
	if cfg.Output == "" {
		cfg.Output = "stdout"
	}
}

func applyTelemetryDefaults(cfg *TelemetryConfig) {
	if cfg.Endpoint == "" {
		cfg.Endpoint = "localhost:4317"
	}
	if cfg.SampleRate == 0 {
		cfg.SampleRate = 1.0
	}

	if cfg.Profiling.Endpoint == "" {
		cfg.Profiling.Endpoint = "http://localhost:4040"
	}
	if len(cfg.Profiling.ProfileTypes) == 0 {
		cfg.Profiling.ProfileTypes = []string{
			"cpu",
			"alloc_objects",
			"alloc_space",
			"inuse_objects",
			"inuse_space",
			"goroutines",
		}
	}
}

func applyMetricsDefaults(cfg *MetricsConfig) {
	if cfg.Port == 0 {
		cfg.Port = 9090
	}
}

func applyThriftDefaults(cfg *ThriftConfig) {
	if cfg.ShutdownTimeoutMillis == 0 {
		cfg.ShutdownTimeoutMillis = 10000
	}
}

// GetDefaultSettings returns Settings with all default values applied.
func GetDefaultSettings() *Settings {
	s := &Settings{}
	ApplyDefaults(s)
	return s
}
