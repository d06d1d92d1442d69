package hbmetrics

import (
	"errors"
	"github.com/function61/gokit/assert"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"testing"
	"time"
)

func TestMetrics(t *testing.T) {
	metrics := New(prometheus.NewRegistry())

	metrics.ObservePing(PingCreated)
	metrics.ObservePing(PingRefreshed)
	metrics.ObservePing(PingRefreshed)
	metrics.ObserveNotification(NotificationOverdue, nil)
	metrics.ObserveNotification(NotificationOverdue, errors.New("telegram down"))
	metrics.ObserveScan(time.Second, 3, 2, 1, 0)

	assert.Assert(t, testutil.ToFloat64(metrics.pings.WithLabelValues(PingRefreshed)) == 2)
	assert.Assert(t, testutil.ToFloat64(metrics.pings.WithLabelValues(PingCreated)) == 1)
	assert.Assert(t, testutil.ToFloat64(metrics.notifications.WithLabelValues(NotificationOverdue, "true")) == 1)
	assert.Assert(t, testutil.ToFloat64(metrics.notifications.WithLabelValues(NotificationOverdue, "false")) == 1)
	assert.Assert(t, testutil.ToFloat64(metrics.scanResults.WithLabelValues("alerted")) == 3)
	assert.Assert(t, testutil.ToFloat64(metrics.scanResults.WithLabelValues("raced")) == 1)
}

func TestNilMetricsIsNoop(t *testing.T) {
	var metrics *Metrics

	metrics.ObservePing(PingCreated)
	metrics.ObserveNotification(NotificationRecovery, nil)
	metrics.ObserveScan(time.Second, 1, 1, 1, 1)
}
