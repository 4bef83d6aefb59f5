package core

import "sync/atomic"

// Timer frequency of the event clock. Targets feed it from a free-running
// microsecond counter.
const (
	TimerFreq = 1000000
)

var systemTicks atomic.Uint32

// GetTime returns the current system time in timer ticks
func GetTime() uint32 {
	return systemTicks.Load()
}

// SetTime sets the current system time. Tick sources call it before each
// tick so events carry a timestamp.
func SetTime(ticks uint32) {
	systemTicks.Store(ticks)
}

// TickPeriodUS returns the tick period for a rate in Hz, at least 1us
func TickPeriodUS(hz uint32) uint32 {
	if hz == 0 || hz > 1000000 {
		return 1
	}
	return 1000000 / hz
}
