package prometheus

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/rpcboot/pkg/binder"
	"github.com/marmos91/rpcboot/pkg/metrics"
)

type bindingMetrics struct {
	passes   *prometheus.CounterVec
	bindings *prometheus.GaugeVec
}

// NewBindingMetrics creates contract binding metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewBindingMetrics() binder.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return shared(reg, "binder", func() *bindingMetrics {
		return &bindingMetrics{
			passes: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "rpcboot_bind_passes_total",
					Help: "Total number of contract binding passes by outcome",
				},
				[]string{"scope", "outcome"},
			),
			bindings: promauto.With(reg).NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "rpcboot_bindings",
					Help: "Number of bindings produced by the last pass over a scope",
				},
				[]string{"scope"},
			),
		}
	})
}

// ObserveBind implements binder.Metrics.
func (m *bindingMetrics) ObserveBind(scope, outcome string, bindings int) {
	m.passes.WithLabelValues(scope, outcome).Inc()
	m.bindings.WithLabelValues(scope).Set(float64(bindings))
}
