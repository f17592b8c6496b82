package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics holds all Prometheus metrics for the application.
// All recording methods are safe on a nil receiver.
type Metrics struct {
	// HTTP Metrics
	HTTPRequestsTotal *prometheus.CounterVec
	HTTPDuration      *prometheus.HistogramVec

	// Workflow Metrics
	WorkflowActionsTotal   *prometheus.CounterVec
	WorkflowActionDuration *prometheus.HistogramVec
	WorkflowsStarted       prometheus.Counter
	WorkflowsFinished      *prometheus.CounterVec

	// Database Metrics
	DBTransactionConflicts prometheus.Counter

	// Notification Metrics
	NotificationsCreated   *prometheus.CounterVec
	NotificationsPublished *prometheus.CounterVec

	// Template cache
	TemplateCacheLookups *prometheus.CounterVec

	// Worker Metrics
	WorkerJobsProcessed *prometheus.CounterVec
	WorkerJobDuration   *prometheus.HistogramVec

	// Authentication Metrics
	AuthFailuresTotal *prometheus.CounterVec
}

// New creates all metrics and registers them with reg. Pass
// prometheus.DefaultRegisterer in production and a fresh registry in tests.
func New(reg prometheus.Registerer) *Metrics {
	f := promauto.With(reg)

	return &Metrics{
		HTTPRequestsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests",
			},
			[]string{"method", "path", "status"},
		),
		HTTPDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "HTTP request latency in seconds",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"method", "path"},
		),

		WorkflowActionsTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efiling_workflow_actions_total",
				Help: "Workflow actions processed, by action type and outcome code",
			},
			[]string{"action", "outcome"},
		),
		WorkflowActionDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "efiling_workflow_action_duration_seconds",
				Help:    "Time spent processing a workflow action including its transaction",
				Buckets: prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
			[]string{"action"},
		),
		WorkflowsStarted: f.NewCounter(
			prometheus.CounterOpts{
				Name: "efiling_workflows_started_total",
				Help: "Workflow instances started",
			},
		),
		WorkflowsFinished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efiling_workflows_finished_total",
				Help: "Workflow instances that reached a terminal status",
			},
			[]string{"status"},
		),

		DBTransactionConflicts: f.NewCounter(
			prometheus.CounterOpts{
				Name: "efiling_db_transaction_conflicts_total",
				Help: "Transactions aborted by a concurrent writer",
			},
		),

		NotificationsCreated: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efiling_notifications_created_total",
				Help: "Notification rows written, by type",
			},
			[]string{"type"},
		),
		NotificationsPublished: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efiling_notifications_published_total",
				Help: "Notification fan-out publishes, by status",
			},
			[]string{"status"},
		),

		TemplateCacheLookups: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "efiling_template_cache_lookups_total",
				Help: "Workflow template lookups, by tier and result",
			},
			[]string{"tier", "result"},
		),

		WorkerJobsProcessed: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "worker_jobs_processed_total",
				Help: "Total number of jobs processed by workers",
			},
			[]string{"worker_type", "status"},
		),
		WorkerJobDuration: f.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "worker_job_duration_seconds",
				Help:    "Worker job processing duration in seconds",
				Buckets: prometheus.ExponentialBuckets(0.01, 2, 10),
			},
			[]string{"worker_type"},
		),

		AuthFailuresTotal: f.NewCounterVec(
			prometheus.CounterOpts{
				Name: "auth_failures_total",
				Help: "Total number of authentication failures",
			},
			[]string{"reason"},
		),
	}
}

// ObserveAction records one processed workflow action
func (m *Metrics) ObserveAction(action, outcome string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WorkflowActionsTotal.WithLabelValues(action, outcome).Inc()
	m.WorkflowActionDuration.WithLabelValues(action).Observe(elapsed.Seconds())
}

// WorkflowStarted records a new workflow instance
func (m *Metrics) WorkflowStarted() {
	if m == nil {
		return
	}
	m.WorkflowsStarted.Inc()
}

// WorkflowFinished records a workflow reaching a terminal status
func (m *Metrics) WorkflowFinished(status string) {
	if m == nil {
		return
	}
	m.WorkflowsFinished.WithLabelValues(status).Inc()
}

// TransactionConflict records a transaction lost to a concurrent writer
func (m *Metrics) TransactionConflict() {
	if m == nil {
		return
	}
	m.DBTransactionConflicts.Inc()
}

// NotificationCreated records a persisted notification row
func (m *Metrics) NotificationCreated(kind string) {
	if m == nil {
		return
	}
	m.NotificationsCreated.WithLabelValues(kind).Inc()
}

// NotificationPublished records the outcome of a fan-out publish
func (m *Metrics) NotificationPublished(status string) {
	if m == nil {
		return
	}
	m.NotificationsPublished.WithLabelValues(status).Inc()
}

// TemplateLookup records a template cache lookup
func (m *Metrics) TemplateLookup(tier, result string) {
	if m == nil {
		return
	}
	m.TemplateCacheLookups.WithLabelValues(tier, result).Inc()
}

// ObserveWorkerJob records one worker run
func (m *Metrics) ObserveWorkerJob(worker, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.WorkerJobsProcessed.WithLabelValues(worker, status).Inc()
	m.WorkerJobDuration.WithLabelValues(worker).Observe(elapsed.Seconds())
}

// ObserveHTTP records one served request
func (m *Metrics) ObserveHTTP(method, path, status string, elapsed time.Duration) {
	if m == nil {
		return
	}
	m.HTTPRequestsTotal.WithLabelValues(method, path, status).Inc()
	m.HTTPDuration.WithLabelValues(method, path).Observe(elapsed.Seconds())
}

// AuthFailure records a rejected credential
func (m *Metrics) AuthFailure(reason string) {
	if m == nil {
		return
	}
	m.AuthFailuresTotal.WithLabelValues(reason).Inc()
}
