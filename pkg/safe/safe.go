package safe

import (
	"log/slog"
	"runtime/debug"
)

// Run executes fn and swallows any panic after logging it with the stack.
// Background workers use this so one bad iteration cannot kill the process.
func Run(fn func()) {
	RunWithComponent(fn, "safe.Run")
}

func RunWithComponent(fn func(), component string) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("panic recovered",
				slog.Any("recover", r),
				slog.String("component", component),
				slog.String("stack", string(debug.Stack())),
			)
		}
	}()

	fn()
}
