package app

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics owns a private registry so tests can build many Apps in one process.
// It satisfies session.Recorder.
type Metrics struct {
	reg *prometheus.Registry

	authTotal   *prometheus.CounterVec
	reapedTotal prometheus.Counter
	httpLatency *prometheus.HistogramVec
}

func NewMetrics() *Metrics {
	m := &Metrics{
		reg: prometheus.NewRegistry(),
		authTotal: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: "sidecar",
			Name:      "auth_operations_total",
			Help:      "Auth operations by operation and outcome code.",
		}, []string{"op", "outcome"}),
		reapedTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: "sidecar",
			Name:      "sessions_reaped_total",
			Help:      "Expired sessions deleted by the reaper.",
		}),
		httpLatency: prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: "sidecar",
			Name:      "http_request_duration_seconds",
			Help:      "HTTP request latency by route pattern.",
			Buckets:   []float64{.005, .01, .025, .05, .1, .25, .5, 1, 2.5},
		}, []string{"method", "route", "status_class"}),
	}

	m.reg.MustRegister(
		m.authTotal,
		m.reapedTotal,
		m.httpLatency,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

// ObserveAuth counts one service call. Outcome is "ok" or an error code.
func (m *Metrics) ObserveAuth(op, outcome string) {
	m.authTotal.WithLabelValues(op, outcome).Inc()
}

func (m *Metrics) ObserveReaped(n int64) {
	if n > 0 {
		m.reapedTotal.Add(float64(n))
	}
}

func (m *Metrics) observeHTTP(method, route string, status int, d time.Duration) {
	m.httpLatency.WithLabelValues(method, route, statusClass(status)).Observe(d.Seconds())
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.reg, promhttp.HandlerOpts{})
}

func statusClass(status int) string {
	if status < 100 || status > 599 {
		return "unknown"
	}
	return strconv.Itoa(status/100) + "xx"
}
