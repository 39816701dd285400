package logger

import (
	"log/slog"
	"time"
)

// Standard field keys for structured logging.
// Use these keys consistently across all log statements for log aggregation and querying.
const (
	// ========================================================================
	// Boot
	// ========================================================================
	KeyBootID = "boot_id" // Unique identifier of one process boot
	KeyApp    = "app"     // Application identifier (default config namespace)
	KeyPhase  = "phase"   // Orchestrator state
	KeyFrom   = "from"    // Previous orchestrator state
	KeyTo     = "to"      // Next orchestrator state

	// ========================================================================
	// Distributed Tracing
	// ========================================================================
	KeyTraceID = "trace_id"
	KeySpanID  = "span_id"

	// ========================================================================
	// Lifecycle
	// ========================================================================
	KeyUnit     = "unit"     // Lifecycle unit name
	KeyUnits    = "units"    // Number of units in a composite
	KeyPosition = "position" // Index of a unit within its composite
	KeyState    = "state"    // Unit state: stopped, running, failed

	// ========================================================================
	// Discovery & Binding
	// ========================================================================
	KeyScope          = "scope"          // Discovery scope (import path prefix)
	KeyCapability     = "capability"     // Capability type name
	KeyContract       = "contract"       // Contract declaration name
	KeyHandler        = "handler"        // Handler interface declaration name
	KeyWrapper        = "wrapper"        // Wrapper/processor declaration name
	KeyImplementation = "implementation" // Handler implementation declaration name
	KeyCandidates     = "candidates"     // Number of candidates found

	// ========================================================================
	// RPC Server
	// ========================================================================
	KeyService = "service" // Service name (config key prefix)
	KeyRPCName = "rpc"     // Fully qualified RPC service name
	KeyAddress = "address" // Listen address
	KeyPort    = "port"    // Listen port

	// ========================================================================
	// Configuration
	// ========================================================================
	KeyConfigKey  = "config_key"  // Configuration key
	KeyConfigFile = "config_file" // Configuration file path

	// ========================================================================
	// Operation Metadata
	// ========================================================================
	KeyDurationMs = "duration_ms"
	KeyTimeout    = "timeout"
	KeyError      = "error"
	KeyReason     = "reason"
)

// UnitName returns a slog.Attr for a lifecycle unit name
func UnitName(name string) slog.Attr {
	return slog.String(KeyUnit, name)
}

// Scope returns a slog.Attr for a discovery scope
func Scope(scope string) slog.Attr {
	return slog.String(KeyScope, scope)
}

// Contract returns a slog.Attr for a contract declaration
func Contract(name string) slog.Attr {
	return slog.String(KeyContract, name)
}

// Service returns a slog.Attr for an RPC service name
func Service(name string) slog.Attr {
	return slog.String(KeyService, name)
}

// Port returns a slog.Attr for a listen port
func Port(port int) slog.Attr {
	return slog.Int(KeyPort, port)
}

// ConfigKey returns a slog.Attr for a configuration key
func ConfigKey(key string) slog.Attr {
	return slog.String(KeyConfigKey, key)
}

// DurationMs returns a slog.Attr with the milliseconds elapsed since start
func DurationMs(start time.Time) slog.Attr {
	return slog.Float64(KeyDurationMs, Duration(start))
}

// Err returns a slog.Attr for an error; nil errors produce an empty attr
func Err(err error) slog.Attr {
	if err == nil {
		return slog.Attr{}
	}
	return slog.String(KeyError, err.Error())
}
