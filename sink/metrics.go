package sink

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds per-endpoint Prometheus gauge/counter vectors,
// registered against a caller-supplied Registry rather than the global
// default: this is a library, not a singleton service, so it must not
// mutate global Prometheus state.
type Metrics struct {
	SessionsActive     *prometheus.GaugeVec
	PagesTotal         *prometheus.CounterVec
	PacketsReceived    *prometheus.CounterVec
	PacketsLost        *prometheus.CounterVec
	JitterMs           *prometheus.GaugeVec
	AudioRMSDb         *prometheus.GaugeVec
	AudioClippedTotal  *prometheus.CounterVec
	AudioGlitchesTotal *prometheus.CounterVec
}

// NewMetrics registers all pagewatch metrics against reg.
func NewMetrics(reg *prometheus.Registry) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		SessionsActive: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_sessions_active",
			Help: "Number of currently active page sessions.",
		}, []string{"endpoint"}),
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewatch_pages_total",
			Help: "Total number of completed pages.",
		}, []string{"endpoint"}),
		PacketsReceived: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewatch_packets_received_total",
			Help: "Total packets received.",
		}, []string{"endpoint"}),
		PacketsLost: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewatch_packets_lost_total",
			Help: "Total packets inferred lost from sequence gaps.",
		}, []string{"endpoint"}),
		JitterMs: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_jitter_ms",
			Help: "Current RFC 3550 interarrival jitter estimate in milliseconds.",
		}, []string{"endpoint"}),
		AudioRMSDb: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "pagewatch_audio_rms_db",
			Help: "Current audio RMS level in dBFS.",
		}, []string{"endpoint"}),
		AudioClippedTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewatch_audio_clipped_total",
			Help: "Total clipped samples observed.",
		}, []string{"endpoint"}),
		AudioGlitchesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "pagewatch_audio_glitches_total",
			Help: "Total glitch samples observed.",
		}, []string{"endpoint"}),
	}
}
