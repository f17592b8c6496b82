package testutil

import (
	"context"
	"testing"
	"time"
)

// DefaultTimeout bounds a single workflow scenario against a real database.
const DefaultTimeout = 30 * time.Second

// deadlineMargin leaves room for cleanup hooks to roll back after the
// context expires but before go test kills the binary.
const deadlineMargin = 2 * time.Second

// ContextWithTimeout returns a context cancelled after timeout or shortly
// before the test binary's own deadline, whichever comes first.
func ContextWithTimeout(t testing.TB, timeout time.Duration) context.Context {
	t.Helper()

	deadline := time.Now().Add(timeout)
	if d, ok := testDeadline(t); ok {
		if limit := d.Add(-deadlineMargin); limit.Before(deadline) {
			deadline = limit
		}
	}

	ctx, cancel := context.WithDeadline(context.Background(), deadline)
	t.Cleanup(cancel)
	return ctx
}

// Context returns a context bounded by DefaultTimeout.
func Context(t testing.TB) context.Context {
	t.Helper()
	return ContextWithTimeout(t, DefaultTimeout)
}

func testDeadline(t testing.TB) (time.Time, bool) {
	if dt, ok := t.(interface{ Deadline() (time.Time, bool) }); ok {
		return dt.Deadline()
	}
	return time.Time{}, false
}
