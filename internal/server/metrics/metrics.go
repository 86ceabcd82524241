// Package metrics holds the Prometheus collectors of the server. All
// methods are safe on a nil *Metrics so callers and tests can leave it out.
package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "rentdesk"

type Metrics struct {
	registry      *prometheus.Registry
	notifications *prometheus.CounterVec
	uploads       *prometheus.CounterVec
	reviews       *prometheus.CounterVec
}

// New registers the server collectors plus the Go and process collectors
// on a private registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "notifications_total",
			Help:      "Notifications by kind and outcome (sent, failed, dropped).",
		}, []string{"kind", "outcome"}),
		uploads: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_uploads_total",
			Help:      "License uploads by license type and outcome (created, replaced).",
		}, []string{"license_type", "outcome"}),
		reviews: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "license_reviews_total",
			Help:      "License status changes by new status.",
		}, []string{"status"}),
	}

	m.registry.MustRegister(
		m.notifications,
		m.uploads,
		m.reviews,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return m
}

func (m *Metrics) Notification(kind, outcome string) {
	if m == nil {
		return
	}
	m.notifications.WithLabelValues(kind, outcome).Inc()
}

func (m *Metrics) Upload(licenseType, outcome string) {
	if m == nil {
		return
	}
	m.uploads.WithLabelValues(licenseType, outcome).Inc()
}

func (m *Metrics) Review(status string) {
	if m == nil {
		return
	}
	m.reviews.WithLabelValues(status).Inc()
}

// Handler exposes the registry in the Prometheus text format.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return http.NotFoundHandler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{})
}
