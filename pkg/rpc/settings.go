package rpc

import (
	"fmt"
	"time"

	"github.com/marmos91/rpcboot/pkg/config"
)

// Configuration keys, relative to "<name>.thrift".
const (
	KeyListenPort            = "listenPort"
	KeyBindAddress           = "bindAddress"
	KeySelectorThreads       = "selectorThreads"
	KeyWorkerThreads         = "workerThreads"
	KeyShutdownTimeoutMillis = "shutdownTimeoutMillis"
)

// DefaultShutdownTimeout bounds the graceful stop when
// shutdownTimeoutMillis is not set.
const DefaultShutdownTimeout = 10 * time.Second

// Settings of one server, read when it starts.
type Settings struct {
	ListenPort      int
	BindAddress     string
	SelectorThreads int
	WorkerThreads   int
	ShutdownTimeout time.Duration
}

// Prefix returns the key prefix of the server called name.
func Prefix(name string) string {
	return name + ".thrift"
}

// LoadSettings reads the settings of the server called name. listenPort is
// mandatory; everything else has a default.
func LoadSettings(cfg config.Reader, name string) (Settings, error) {
	key := func(k string) string { return Prefix(name) + "." + k }

	var s Settings
	var err error

	if s.ListenPort, err = config.RequireInt(cfg, key(KeyListenPort)); err != nil {
		return Settings{}, err
	}
	if s.ListenPort < 0 || s.ListenPort > 65535 {
		return Settings{}, fmt.Errorf("%s: port %d out of range", key(KeyListenPort), s.ListenPort)
	}

	s.BindAddress, _ = cfg.String(key(KeyBindAddress))

	if s.SelectorThreads, err = config.IntOr(cfg, key(KeySelectorThreads), 0); err != nil {
		return Settings{}, err
	}
	if s.WorkerThreads, err = config.IntOr(cfg, key(KeyWorkerThreads), 0); err != nil {
		return Settings{}, err
	}
	if s.SelectorThreads < 0 || s.WorkerThreads < 0 {
		return Settings{}, fmt.Errorf("%s: thread counts must not be negative", Prefix(name))
	}

	millis, err := config.IntOr(cfg, key(KeyShutdownTimeoutMillis), int(DefaultShutdownTimeout/time.Millisecond))
	if err != nil {
		return Settings{}, err
	}
	s.ShutdownTimeout = time.Duration(millis) * time.Millisecond
	if s.ShutdownTimeout <= 0 {
		s.ShutdownTimeout = DefaultShutdownTimeout
	}
	return s, nil
}
