package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/rpcboot/pkg/lifecycle"
	"github.com/marmos91/rpcboot/pkg/metrics"
)

// lifecycleMetrics is the Prometheus implementation of lifecycle.Metrics.
type lifecycleMetrics struct {
	transitions *prometheus.CounterVec
	duration    *prometheus.HistogramVec
	running     *prometheus.GaugeVec
}

// NewLifecycleMetrics creates lifecycle unit metrics.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewLifecycleMetrics() lifecycle.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return shared(reg, "lifecycle", func() *lifecycleMetrics {
		return &lifecycleMetrics{
			transitions: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "rpcboot_unit_transitions_total",
					Help: "Total number of lifecycle unit start and stop calls by outcome",
				},
				[]string{"unit", "action", "result"},
			),
			duration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "rpcboot_unit_transition_duration_milliseconds",
					Help: "Duration of lifecycle unit start and stop calls in milliseconds",
					Buckets: []float64{
						1,     // 1ms - in-process units
						10,    // 10ms
						50,    // 50ms - listener binds
						100,   // 100ms
						500,   // 500ms
						1000,  // 1s - exporters dialing out
						5000,  // 5s
						30000, // 30s - graceful drains
					},
				},
				[]string{"unit", "action"},
			),
			running: promauto.With(reg).NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "rpcboot_unit_running",
					Help: "Whether a lifecycle unit is running (1) or not (0)",
				},
				[]string{"unit"},
			),
		}
	})
}

// ObserveStart implements lifecycle.Metrics.
func (m *lifecycleMetrics) ObserveStart(unit string, d time.Duration, err error) {
	m.observe(unit, "start", d, err)
	if err == nil {
		m.running.WithLabelValues(unit).Set(1)
	}
}

// ObserveStop implements lifecycle.Metrics.
func (m *lifecycleMetrics) ObserveStop(unit string, d time.Duration, err error) {
	m.observe(unit, "stop", d, err)
	m.running.WithLabelValues(unit).Set(0)
}

func (m *lifecycleMetrics) observe(unit, action string, d time.Duration, err error) {
	m.transitions.WithLabelValues(unit, action, result(err)).Inc()
	m.duration.WithLabelValues(unit, action).Observe(float64(d.Microseconds()) / 1000)
}

func result(err error) string {
	if err != nil {
		return "error"
	}
	return "success"
}
