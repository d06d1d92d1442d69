// Prometheus instrumentation of pings, notifications and overdue scans. A nil *Metrics
// is valid and records nothing.
package hbmetrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"time"
)

// ping outcomes
const (
	PingCreated   = "created"
	PingRefreshed = "refreshed"
	PingRecovered = "recovered"
	PingRejected  = "rejected"
	PingFailed    = "failed"
)

// notification kinds
const (
	NotificationOverdue  = "overdue"
	NotificationRepeat   = "repeat"
	NotificationRecovery = "recovery"
)

type Metrics struct {
	pings         *prometheus.CounterVec
	notifications *prometheus.CounterVec
	scanResults   *prometheus.CounterVec
	scanDuration  prometheus.Histogram
}

func New(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		pings: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heartbeat_pings_total",
				Help: "Pings received, by outcome",
			},
			[]string{"outcome"},
		),
		notifications: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heartbeat_notifications_total",
				Help: "Notifications attempted, by kind and whether delivery succeeded",
			},
			[]string{"kind", "delivered"},
		),
		scanResults: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "heartbeat_scan_monitors_total",
				Help: "Overdue candidates seen by scans, by what happened to them",
			},
			[]string{"result"},
		),
		scanDuration: factory.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "heartbeat_scan_duration_seconds",
				Help:    "Duration of overdue scans",
				Buckets: prometheus.ExponentialBuckets(0.05, 2, 10), // 50ms .. 25.6s
			},
		),
	}
}

func (m *Metrics) ObservePing(outcome string) {
	if m == nil {
		return
	}

	m.pings.WithLabelValues(outcome).Inc()
}

func (m *Metrics) ObserveNotification(kind string, err error) {
	if m == nil {
		return
	}

	delivered := "true"
	if err != nil {
		delivered = "false"
	}

	m.notifications.WithLabelValues(kind, delivered).Inc()
}

func (m *Metrics) ObserveScan(duration time.Duration, alerted, skipped, raced, failed int) {
	if m == nil {
		return
	}

	m.scanDuration.Observe(duration.Seconds())

	m.scanResults.WithLabelValues("alerted").Add(float64(alerted))
	m.scanResults.WithLabelValues("skipped").Add(float64(skipped))
	m.scanResults.WithLabelValues("raced").Add(float64(raced))
	m.scanResults.WithLabelValues("failed").Add(float64(failed))
}
