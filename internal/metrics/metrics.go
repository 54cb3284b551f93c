package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics exposes scan metrics that are safe to scrape via Prometheus.
type Metrics struct {
	registry      *prometheus.Registry
	probesTotal   prometheus.Counter
	probeDuration prometheus.Histogram
	openPorts     prometheus.Counter
	scanDuration  prometheus.Histogram
}

// New creates a fresh Metrics registry with probe and scan metrics
// registered.
func New() *Metrics {
	registry := prometheus.NewRegistry()

	probesTotal := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "svcscan",
		Name:      "probes_total",
		Help:      "Count of per-port probe tasks executed",
	})

	probeDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "svcscan",
		Name:      "probe_duration_seconds",
		Help:      "Duration of individual port probes",
		Buckets:   []float64{.01, .05, .1, .25, .5, 1, 2.5, 5, 10},
	})

	openPorts := prometheus.NewCounter(prometheus.CounterOpts{
		Namespace: "svcscan",
		Name:      "open_ports_total",
		Help:      "Count of ports classified as open",
	})

	scanDuration := prometheus.NewHistogram(prometheus.HistogramOpts{
		Namespace: "svcscan",
		Name:      "scan_duration_seconds",
		Help:      "Duration of whole scan runs from dispatch to drain",
		Buckets:   []float64{1, 5, 10, 30, 60, 120, 300, 600},
	})

	registry.MustRegister(
		probesTotal,
		probeDuration,
		openPorts,
		scanDuration,
	)

	return &Metrics{
		registry:      registry,
		probesTotal:   probesTotal,
		probeDuration: probeDuration,
		openPorts:     openPorts,
		scanDuration:  scanDuration,
	}
}

// ObserveProbe records one completed probe task.
func (m *Metrics) ObserveProbe(duration time.Duration) {
	if m == nil {
		return
	}
	m.probesTotal.Inc()
	m.probeDuration.Observe(duration.Seconds())
}

// IncOpenPort increments the open-port counter.
func (m *Metrics) IncOpenPort() {
	if m == nil {
		return
	}
	m.openPorts.Inc()
}

// ObserveScanDuration observes a full scan duration.
func (m *Metrics) ObserveScanDuration(duration time.Duration) {
	if m == nil {
		return
	}
	m.scanDuration.Observe(duration.Seconds())
}

// Handler exposes the Prometheus registry over HTTP.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
			w.WriteHeader(http.StatusServiceUnavailable)
			_, _ = w.Write([]byte("metrics unavailable"))
		})
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
