package cache

import (
	"context"
	"sync"
	"time"

	"github.com/google/uuid"
)

// RedisReminderLedger remembers which stage visits were already reminded
// about, shared between worker replicas
type RedisReminderLedger struct {
	kv  KV
	ttl time.Duration
}

// NewRedisReminderLedger creates a ledger whose entries expire after ttl
func NewRedisReminderLedger(kv KV, ttl time.Duration) *RedisReminderLedger {
	return &RedisReminderLedger{kv: kv, ttl: ttl}
}

// Claim reports true the first time it is called for a visit key
func (l *RedisReminderLedger) Claim(ctx context.Context, workflowID, stageID uuid.UUID, visitStart time.Time) (bool, error) {
	return l.kv.SetNX(ctx, reminderKey(workflowID, stageID, visitStart), 1, l.ttl)
}

// MemoryReminderLedger is the single-process ledger used without Redis
type MemoryReminderLedger struct {
	mu      sync.Mutex
	claimed map[string]struct{}
}

// NewMemoryReminderLedger creates an in-process ledger
func NewMemoryReminderLedger() *MemoryReminderLedger {
	return &MemoryReminderLedger{claimed: make(map[string]struct{})}
}

// Claim reports true the first time it is called for a visit key
func (l *MemoryReminderLedger) Claim(ctx context.Context, workflowID, stageID uuid.UUID, visitStart time.Time) (bool, error) {
	key := reminderKey(workflowID, stageID, visitStart)

	l.mu.Lock()
	defer l.mu.Unlock()
	if _, ok := l.claimed[key]; ok {
		return false, nil
	}
	l.claimed[key] = struct{}{}
	return true, nil
}

func reminderKey(workflowID, stageID uuid.UUID, visitStart time.Time) string {
	return "efiling:sla-reminder:" + workflowID.String() + ":" + stageID.String() + ":" + visitStart.UTC().Format(time.RFC3339Nano)
}
