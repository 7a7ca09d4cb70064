package observability

import (
	"runtime/debug"
)

// RecoverPanic recovers from a panic in a defer statement and logs it with
// the full stack trace. The panic is not re-raised; use this for background
// goroutines (the sweeper, the pricing watcher) where a panic must not take
// down the process.
func RecoverPanic(logger *Logger, context string) {
	if r := recover(); r != nil {
		logger.WithField("panic", r).
			WithField("stack", string(debug.Stack())).
			WithField("context", context).
			Error("PANIC recovered")
	}
}
