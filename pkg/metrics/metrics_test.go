package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
)

func TestMetrics_Recording(t *testing.T) {
	m := New(prometheus.NewRegistry())

	m.ObserveAction("APPROVE", "OK", 10*time.Millisecond)
	m.ObserveAction("APPROVE", "OK", 20*time.Millisecond)
	m.ObserveAction("REJECT", "FORBIDDEN", time.Millisecond)
	m.WorkflowFinished("COMPLETED")
	m.NotificationCreated("WORKFLOW_ACTION")
	m.TransactionConflict()

	assert.Equal(t, 2.0, testutil.ToFloat64(m.WorkflowActionsTotal.WithLabelValues("APPROVE", "OK")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowActionsTotal.WithLabelValues("REJECT", "FORBIDDEN")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.WorkflowsFinished.WithLabelValues("COMPLETED")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.NotificationsCreated.WithLabelValues("WORKFLOW_ACTION")))
	assert.Equal(t, 1.0, testutil.ToFloat64(m.DBTransactionConflicts))
}

func TestMetrics_IndependentRegistries(t *testing.T) {
	assert.NotPanics(t, func() {
		New(prometheus.NewRegistry())
		New(prometheus.NewRegistry())
	})
}

func TestMetrics_NilSafe(t *testing.T) {
	var m *Metrics
	assert.NotPanics(t, func() {
		m.ObserveAction("APPROVE", "OK", time.Second)
		m.WorkflowStarted()
		m.NotificationPublished("ok")
		m.ObserveHTTP("GET", "/health", "200", time.Millisecond)
	})
}
