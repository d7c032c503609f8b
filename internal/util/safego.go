package util

import (
	"runtime/debug"

	"github.com/stakemate/stakemate/internal/logging"
)

// SafeGo wraps a goroutine function with panic recovery and logging.
// Use this in place of bare `go` statements so a panic in a watcher or
// reload goroutine is logged with a stack trace instead of killing the
// process.
func SafeGo(fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logging.Error("goroutine panic recovered",
					"panic", r,
					"stack", string(stack),
				)
			}
		}()
		fn()
	}()
}

// SafeGoWithName is SafeGo with a descriptive name for the goroutine,
// included in the panic log for easier debugging.
func SafeGoWithName(name string, fn func()) {
	go func() {
		defer func() {
			if r := recover(); r != nil {
				stack := debug.Stack()
				logging.Error("goroutine panic recovered",
					"goroutine", name,
					"panic", r,
					"stack", string(stack),
				)
			}
		}()
		fn()
	}()
}
