// Package prometheus implements the metrics interfaces of the lifecycle,
// binder and rpc packages on top of the process registry.
package prometheus

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	instancesMu sync.Mutex
	instances   = map[*prometheus.Registry]map[string]any{}
)

// shared returns the collector set called name for reg, building it on
// first use. Collectors can only be registered once per registry.
func shared[T any](reg *prometheus.Registry, name string, build func() T) T {
	instancesMu.Lock()
	defer instancesMu.Unlock()

	byName, ok := instances[reg]
	if !ok {
		byName = map[string]any{}
		instances[reg] = byName
	}
	if v, ok := byName[name]; ok {
		return v.(T)
	}
	v := build()
	byName[name] = v
	return v
}
