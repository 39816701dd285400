package prometheus

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"

	"github.com/marmos91/rpcboot/pkg/metrics"
	"github.com/marmos91/rpcboot/pkg/rpc"
)

type rpcMetrics struct {
	inFlight *prometheus.GaugeVec
	handled  *prometheus.CounterVec
	duration *prometheus.HistogramVec
}

// NewRPCMetrics creates RPC server metrics shared by every server of the
// process.
//
// Returns nil if metrics are not enabled (InitRegistry not called).
func NewRPCMetrics() rpc.Metrics {
	if !metrics.IsEnabled() {
		return nil
	}

	reg := metrics.GetRegistry()

	return shared(reg, "rpc", func() *rpcMetrics {
		return &rpcMetrics{
			inFlight: promauto.With(reg).NewGaugeVec(
				prometheus.GaugeOpts{
					Name: "rpcboot_rpc_in_flight",
					Help: "Number of RPCs currently being handled",
				},
				[]string{"service"},
			),
			handled: promauto.With(reg).NewCounterVec(
				prometheus.CounterOpts{
					Name: "rpcboot_rpc_handled_total",
					Help: "Total number of RPCs completed by status code",
				},
				[]string{"service", "method", "code"},
			),
			duration: promauto.With(reg).NewHistogramVec(
				prometheus.HistogramOpts{
					Name: "rpcboot_rpc_duration_milliseconds",
					Help: "Duration of RPC handling in milliseconds",
					Buckets: []float64{
						0.5, // 500us
						1,   // 1ms
						5,   // 5ms
						10,  // 10ms
						50,  // 50ms
						100, // 100ms
						500, // 500ms
						1000,
						5000,
					},
				},
				[]string{"service", "method"},
			),
		}
	})
}

// RequestStarted implements rpc.Metrics.
func (m *rpcMetrics) RequestStarted(service, _ string) {
	m.inFlight.WithLabelValues(service).Inc()
}

// RequestFinished implements rpc.Metrics.
func (m *rpcMetrics) RequestFinished(service, method, code string, d time.Duration) {
	m.inFlight.WithLabelValues(service).Dec()
	m.handled.WithLabelValues(service, method, code).Inc()
	m.duration.WithLabelValues(service, method).Observe(float64(d.Microseconds()) / 1000)
}
