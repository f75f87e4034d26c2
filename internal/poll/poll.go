// Package poll provides the single "wait until predicate or timeout" helper
// used by callers that wait for asynchronously arriving data. The wire
// protocol has no request/response correlation, so responses are detected by
// polling shared state at a short fixed interval.
package poll

import (
	"context"
	"time"
)

// Until polls pred every interval until it returns true, the timeout elapses,
// or ctx is cancelled. It reports whether pred was satisfied. pred is always
// evaluated at least once.
func Until(ctx context.Context, interval, timeout time.Duration, pred func() bool) bool {
	if pred() {
		return true
	}

	deadline := time.NewTimer(timeout)
	defer deadline.Stop()
	tick := time.NewTicker(interval)
	defer tick.Stop()

	for {
		select {
		case <-ctx.Done():
			return false
		case <-deadline.C:
			return false
		case <-tick.C:
			if pred() {
				return true
			}
		}
	}
}
