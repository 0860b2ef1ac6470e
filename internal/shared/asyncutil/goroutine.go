// Package asyncutil runs the runtime's background loops (heartbeat
// monitors, delivery ticks, timers) behind panic recovery so a single
// misbehaving goroutine never takes the process down.
package asyncutil

import (
	"runtime/debug"

	"acr/internal/shared/logging"
)

// Go runs fn in a goroutine guarded by panic recovery.
func Go(logger logging.Logger, name string, fn func()) {
	go func() {
		defer Recover(logger, name)
		fn()
	}()
}

// Recover logs panic details without crashing the process. Call it directly
// via defer in loops that are not started through Go.
func Recover(logger logging.Logger, name string) {
	if r := recover(); r != nil {
		logger = logging.OrNop(logger)
		if name == "" {
			logger.Error("goroutine panic: %v, stack: %s", r, debug.Stack())
			return
		}
		logger.Error("goroutine panic [%s]: %v, stack: %s", name, r, debug.Stack())
	}
}
