package workers

import (
	"context"
	"time"

	"github.com/davidmoltin/efiling-workflows/pkg/logger"
	"github.com/davidmoltin/efiling-workflows/pkg/metrics"
)

const slaReminderWorkerName = "sla_reminder"

// OverdueReminder sends reminders for workflows past their SLA deadline
type OverdueReminder interface {
	RemindOverdue(ctx context.Context, now time.Time, batch int) (int, error)
}

// SLAReminderWorker periodically reminds assignees of overdue files
type SLAReminderWorker struct {
	reminder      OverdueReminder
	logger        *logger.Logger
	metrics       *metrics.Metrics
	checkInterval time.Duration
	batch         int
	now           func() time.Time
	stopCh        chan struct{}
	doneCh        chan struct{}
}

// NewSLAReminderWorker creates a new SLA reminder worker
func NewSLAReminderWorker(
	reminder OverdueReminder,
	log *logger.Logger,
	m *metrics.Metrics,
	checkInterval time.Duration,
	batch int,
) *SLAReminderWorker {
	if checkInterval == 0 {
		checkInterval = 15 * time.Minute
	}
	if batch <= 0 {
		batch = 200
	}

	return &SLAReminderWorker{
		reminder:      reminder,
		logger:        log,
		metrics:       m,
		checkInterval: checkInterval,
		batch:         batch,
		now:           time.Now,
		stopCh:        make(chan struct{}),
		doneCh:        make(chan struct{}),
	}
}

// Start starts the worker in the background
func (w *SLAReminderWorker) Start(ctx context.Context) {
	w.logger.Info("Starting SLA reminder worker",
		logger.String("interval", w.checkInterval.String()),
		logger.Int("batch", w.batch),
	)

	go w.run(ctx)
}

// Stop stops the worker gracefully
func (w *SLAReminderWorker) Stop() {
	w.logger.Info("Stopping SLA reminder worker")
	close(w.stopCh)
	<-w.doneCh
	w.logger.Info("SLA reminder worker stopped")
}

func (w *SLAReminderWorker) run(ctx context.Context) {
	defer close(w.doneCh)

	ticker := time.NewTicker(w.checkInterval)
	defer ticker.Stop()

	// Run immediately on start
	w.checkOverdue(ctx)

	for {
		select {
		case <-ticker.C:
			w.checkOverdue(ctx)
		case <-w.stopCh:
			return
		case <-ctx.Done():
			return
		}
	}
}

func (w *SLAReminderWorker) checkOverdue(ctx context.Context) {
	started := time.Now()

	sent, err := w.reminder.RemindOverdue(ctx, w.now().UTC(), w.batch)
	if err != nil {
		w.metrics.ObserveWorkerJob(slaReminderWorkerName, "error", time.Since(started))
		w.logger.Errorf("Failed to send SLA reminders: %v", err)
		return
	}

	w.metrics.ObserveWorkerJob(slaReminderWorkerName, "success", time.Since(started))
	if sent > 0 {
		w.logger.Info("SLA reminders sent", logger.Int("count", sent))
	}
}
