package core

import "errors"

var (
	ErrArmed   = errors.New("tick source is armed")
	ErrBadRate = errors.New("tick rate must be between 1 and 1000000 Hz")
)

// MaxTickHz bounds the tick rate to the microsecond timer resolution
const MaxTickHz = 1000000

// TickSource is the periodic tick task that drives the pulse generator.
// Arm, Disarm and SetRate are called from the foreground only.
type TickSource interface {
	// Arm starts periodic ticks. Arming an armed source is a no-op.
	Arm()

	// Disarm stops ticks and returns only after any in-flight tick has
	// completed. Disarming a disarmed source is a no-op.
	Disarm()

	// Armed reports whether ticks are running
	Armed() bool

	// SetRate changes the tick rate. It fails with ErrArmed while armed.
	SetRate(hz uint32) error

	// Rate returns the current tick rate in Hz
	Rate() uint32
}

// ValidRate reports whether hz is a usable tick rate
func ValidRate(hz uint32) bool {
	return hz > 0 && hz <= MaxTickHz
}
