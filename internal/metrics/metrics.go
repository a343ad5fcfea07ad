// Package metrics collects Prometheus metrics for the console.
package metrics

import (
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics collects Prometheus metrics for the console.
type Metrics struct {
	generationsTotal    *prometheus.CounterVec
	generationDuration  prometheus.Histogram
	uploadsTotal        *prometheus.CounterVec
	uploadBytes         prometheus.Counter
	invoicedUSD         prometheus.Counter
	inFlightGenerations prometheus.Gauge
	backendHealthy      prometheus.Gauge
	liveSessions        prometheus.Gauge
}

var (
	metricsOnce sync.Once
	metricsInst *Metrics
)

// New creates the metrics collector. Registration happens once per process;
// repeated calls return the same instance.
func New() *Metrics {
	metricsOnce.Do(func() {
		metricsInst = &Metrics{
			generationsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "invoice_console_generations_total",
					Help: "Total invoice generation attempts by outcome",
				},
				[]string{"status"},
			),
			generationDuration: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "invoice_console_generation_duration_seconds",
					Help:    "Backend generation round-trip duration in seconds",
					Buckets: prometheus.DefBuckets,
				},
			),
			uploadsTotal: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "invoice_console_uploads_total",
					Help: "Total files staged by slot",
				},
				[]string{"slot"},
			),
			uploadBytes: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "invoice_console_upload_bytes_total",
					Help: "Total bytes of staged files",
				},
			),
			invoicedUSD: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "invoice_console_invoiced_usd_total",
					Help: "Sum of grand totals across successful generations",
				},
			),
			inFlightGenerations: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "invoice_console_generations_in_flight",
					Help: "Number of generation requests currently in flight",
				},
			),
			backendHealthy: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "invoice_console_backend_healthy",
					Help: "Invoice backend health status (1 = online, 0 = offline)",
				},
			),
			liveSessions: promauto.NewGauge(
				prometheus.GaugeOpts{
					Name: "invoice_console_sessions_live",
					Help: "Number of live console sessions",
				},
			),
		}
	})
	return metricsInst
}

// RecordGeneration records a completed generation attempt.
func (m *Metrics) RecordGeneration(status string, duration time.Duration, grandTotalUSD float64) {
	if m == nil {
		return
	}
	if status == "" {
		status = "unknown"
	}
	m.generationsTotal.WithLabelValues(status).Inc()
	m.generationDuration.Observe(duration.Seconds())
	if grandTotalUSD > 0 {
		m.invoicedUSD.Add(grandTotalUSD)
	}
}

// RecordUpload records one staged file.
func (m *Metrics) RecordUpload(slot string, bytes int64) {
	if m == nil {
		return
	}
	if slot == "" {
		slot = "unknown"
	}
	m.uploadsTotal.WithLabelValues(slot).Inc()
	if bytes > 0 {
		m.uploadBytes.Add(float64(bytes))
	}
}

// UpdateInFlight updates the in-flight generations gauge.
func (m *Metrics) UpdateInFlight(delta float64) {
	if m == nil {
		return
	}
	m.inFlightGenerations.Add(delta)
}

// UpdateBackendHealth updates the backend health gauge.
func (m *Metrics) UpdateBackendHealth(online bool) {
	if m == nil {
		return
	}
	if online {
		m.backendHealthy.Set(1)
	} else {
		m.backendHealthy.Set(0)
	}
}

// UpdateSessions updates the live-sessions gauge.
func (m *Metrics) UpdateSessions(count int) {
	if m == nil {
		return
	}
	m.liveSessions.Set(float64(count))
}
