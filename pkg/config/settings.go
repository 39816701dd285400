package config

import (
	"fmt"
	"time"

	"github.com/marmos91/rpcboot/internal/logger"
)

// Settings are the process-level settings of an application, read from the
// "<app>." namespace.
//
// RPC servers read their own keys ("<name>.thrift.*") directly; Thrift is
// only populated when present and exists so sample files and the schema
// describe it.
type Settings struct {
	// Logging controls log output behavior
	Logging LoggingConfig `mapstructure:"logging" yaml:"logging" json:"logging"`

	// Telemetry controls OpenTelemetry distributed tracing
	Telemetry TelemetryConfig `mapstructure:"telemetry" yaml:"telemetry" json:"telemetry"`

	// Metrics contains Prometheus metrics server configuration
	Metrics MetricsConfig `mapstructure:"metrics" yaml:"metrics" json:"metrics"`

	// ShutdownTimeout bounds how long each lifecycle unit may take to stop
	ShutdownTimeout time.Duration `mapstructure:"shutdown_timeout" validate:"required,gt=0" yaml:"shutdown_timeout" json:"shutdown_timeout"`

	// Watch reloads the configuration file when it changes
	Watch bool `mapstructure:"watch" yaml:"watch" json:"watch"`

	// Thrift is the RPC server section of the application
	Thrift *ThriftConfig `mapstructure:"thrift" yaml:"thrift,omitempty" json:"thrift,omitempty"`
}

// LoggingConfig controls logging behavior.
type LoggingConfig struct {
	// Level is the minimum log level to output
	// Valid values: DEBUG, INFO, WARN, ERROR (case-insensitive, normalized to uppercase)
	Level string `mapstructure:"level" validate:"required,oneof=DEBUG INFO WARN ERROR debug info warn error" yaml:"level" json:"level"`

	// Format specifies the log output format
	// Valid values: text, json
	Format string `mapstructure:"format" validate:"required,oneof=text json" yaml:"format" json:"format"`

	// Output specifies where logs are written
	// Valid values: stdout, stderr, or a file path
	Output string `mapstructure:"output" validate:"required" yaml:"output" json:"output"`
}

// LoggerConfig converts the section to the logger's configuration.
func (c LoggingConfig) LoggerConfig() logger.Config {
	return logger.Config{Level: c.Level, Format: c.Format, Output: c.Output}
}

// TelemetryConfig controls OpenTelemetry distributed tracing.
type TelemetryConfig struct {
	// Enabled controls whether distributed tracing is enabled
	// Default: false (opt-in for telemetry)
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Endpoint is the OTLP collector endpoint (host:port)
	// Default: "localhost:4317"
	Endpoint string `mapstructure:"endpoint" yaml:"endpoint" json:"endpoint"`

	// Insecure controls whether to use insecure (non-TLS) connection
	Insecure bool `mapstructure:"insecure" yaml:"insecure" json:"insecure"`

	// SampleRate controls the trace sampling rate (0.0 to 1.0)
	SampleRate float64 `mapstructure:"sample_rate" validate:"omitempty,gte=0,lte=1" yaml:"sample_rate" json:"sample_rate"`

	// Profiling contains Pyroscope continuous profiling configuration
	Profiling ProfilingConfig `mapstructure:"profiling" yaml:"profiling" json:"profiling"`
}

// ProfilingConfig controls Pyroscope continuous profiling.
type ProfilingConfig struct {
	// Enabled controls whether continuous profiling is enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Endpoint is the Pyroscope server endpoint (URL)
	// Default: "http://localhost:4040"
	Endpoint string `mapstructure:"endpoint" validate:"omitempty,url" yaml:"endpoint" json:"endpoint"`

	// ProfileTypes specifies which profile types to collect
	ProfileTypes []string `mapstructure:"profile_types" validate:"dive,oneof=cpu alloc_objects alloc_space inuse_objects inuse_space goroutines mutex_count mutex_duration block_count block_duration" yaml:"profile_types" json:"profile_types"`
}

// MetricsConfig configures the Prometheus metrics HTTP server.
// When Enabled is false, no metrics are collected.
type MetricsConfig struct {
	// Enabled controls whether metrics collection and HTTP server are enabled
	Enabled bool `mapstructure:"enabled" yaml:"enabled" json:"enabled"`

	// Port is the HTTP port for the metrics endpoint
	// Default: 9090
	Port int `mapstructure:"port" validate:"omitempty,min=1,max=65535" yaml:"port" json:"port"`
}

// ThriftConfig is the RPC server section "<name>.thrift".
type ThriftConfig struct {
	// ListenPort is the TCP port to serve on; 0 picks a free port
	ListenPort int `mapstructure:"listenPort" validate:"min=0,max=65535" yaml:"listenPort" json:"listenPort"`

	// BindAddress is the interface to listen on
	// Default: all interfaces
	BindAddress string `mapstructure:"bindAddress" yaml:"bindAddress,omitempty" json:"bindAddress,omitempty"`

	// SelectorThreads is the number of connection-serving workers (0 = library default)
	SelectorThreads int `mapstructure:"selectorThreads" validate:"min=0" yaml:"selectorThreads" json:"selectorThreads"`

	// WorkerThreads bounds concurrently running handlers (0 = unbounded)
	WorkerThreads int `mapstructure:"workerThreads" validate:"min=0" yaml:"workerThreads" json:"workerThreads"`

	// ShutdownTimeoutMillis bounds the graceful stop
	ShutdownTimeoutMillis int `mapstructure:"shutdownTimeoutMillis" validate:"min=0" yaml:"shutdownTimeoutMillis" json:"shutdownTimeoutMillis"`
}

// LoadSettings decodes, defaults and validates the settings of the store's
// application.
func LoadSettings(s *Store) (*Settings, error) {
	var settings Settings
	if err := s.Decode(s.AppName(), &settings); err != nil {
		return nil, err
	}

	ApplyDefaults(&settings)

	if err := Validate(&settings); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %w", err)
	}
	return &settings, nil
}
