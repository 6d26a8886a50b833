// Package safego launches the framework's fire-and-forget goroutines with
// panic isolation. A provider's PullAlerts runs third-party client code on the
// scheduler's goroutines, and a panic there would otherwise take down the
// whole pull loop; the same goes for async bookkeeping like API-key last-used
// updates.
package safego

import (
	"log/slog"
	"runtime/debug"
)

// Go runs fn in a new goroutine, recovering and logging any panic under the
// given task name instead of crashing the process.
func Go(task string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				slog.Error("background task panicked",
					"task", task, "panic", r, "stack", string(debug.Stack()))
			}
		}()
		fn()
	}()
}
