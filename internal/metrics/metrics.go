// Copyright (c) matt-FFFFFF 2025. All rights reserved.
// SPDX-License-Identifier: MIT

package metrics

import (
	"net/http"

	"github.com/matt-FFFFFF/lspbridge/internal/notify"
	"github.com/matt-FFFFFF/lspbridge/internal/progress"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "lspbridge"

var (
	_ notify.Observer   = (*Metrics)(nil)
	_ progress.Listener = (*Metrics)(nil)
)

// Metrics holds the collectors for one bridge process on a private registry.
type Metrics struct {
	registry      *prometheus.Registry
	notifications *prometheus.CounterVec
	active        prometheus.Gauge
	duration      *prometheus.HistogramVec
}

// New creates the collectors and registers them, together with the Go and
// process collectors, on a new registry.
func New() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		notifications: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "notifications_total",
				Help:      "Total number of routed notifications, labeled by method and outcome.",
			},
			[]string{"method", "outcome"},
		),
		active: prometheus.NewGauge(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "progress_active",
				Help:      "Number of progress indicators currently shown.",
			},
		),
		duration: prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "progress_duration_seconds",
				Help:      "Histogram of progress indicator lifetimes, labeled by finish reason.",
				Buckets:   []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60, 300},
			},
			[]string{"reason"},
		),
	}

	m.registry.MustRegister(
		m.notifications,
		m.active,
		m.duration,
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)

	return m
}

// Registry returns the registry the collectors live on.
func (m *Metrics) Registry() *prometheus.Registry {
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// ObserveNotification implements notify.Observer.
func (m *Metrics) ObserveNotification(method string, outcome notify.Outcome) {
	m.notifications.WithLabelValues(method, outcome.String()).Inc()
}

// OnEvent implements progress.Listener. Ticks are not recorded.
func (m *Metrics) OnEvent(event progress.Event) {
	switch event.Type {
	case progress.EventStarted:
		m.active.Inc()
	case progress.EventFinished:
		m.active.Dec()
		m.duration.WithLabelValues(event.Reason.String()).Observe(event.Elapsed.Seconds())
	}
}
