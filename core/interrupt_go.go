//go:build !tinygo

package core

// State is a placeholder for interrupt state on hosted Go
type State uintptr

// disableInterrupts is a no-op on hosted Go. The tick task there is a
// goroutine, and GoroutineTicker.Disarm already excludes it.
func disableInterrupts() State {
	return 0
}

// restoreInterrupts is a no-op on hosted Go
func restoreInterrupts(state State) {
}
