package testutil

import (
	"context"
	"testing"
	"time"
)

// GetTestContext returns a context bounded by the test binary's deadline
// and, when maxWait is nonzero, by maxWait from now, whichever comes first.
// With neither bound the context is a plain cancelable context.
func GetTestContext(t *testing.T, maxWait time.Duration) (context.Context, context.CancelFunc) {
	deadline, bounded := t.Deadline()

	if maxWait != 0 {
		capped := time.Now().Add(maxWait)
		if !bounded || capped.Before(deadline) {
			deadline = capped
			bounded = true
		}
	}

	if !bounded {
		return context.WithCancel(context.Background())
	}
	return context.WithDeadline(context.Background(), deadline)
}
