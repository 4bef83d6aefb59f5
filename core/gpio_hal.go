package core

// GPIOPin identifies a hardware GPIO line number
type GPIOPin uint32

// LineDriver is the abstract single-line I/O interface that core code uses.
// Platform-specific implementations handle actual hardware control.
// Writing one line must never perturb another.
type LineDriver interface {
	// ConfigureOutput configures a pin as a digital output
	ConfigureOutput(pin GPIOPin) error

	// ConfigureInputPullUp configures a pin as a digital input with pull-up resistor
	ConfigureInputPullUp(pin GPIOPin) error

	// ConfigureInputPullDown configures a pin as a digital input with pull-down resistor
	ConfigureInputPullDown(pin GPIOPin) error

	// SetPin sets the pin to high (true) or low (false)
	SetPin(pin GPIOPin, value bool)

	// ReadPin reads the current pin level
	ReadPin(pin GPIOPin) bool
}

// GroupDriver writes several output lines of one physical group in a single
// operation. Bits outside the mask are left untouched.
type GroupDriver interface {
	// SetMask drives every line in mask high
	SetMask(mask uint32)

	// ClearMask drives every line in mask low
	ClearMask(mask uint32)
}

// pinMask returns the group bit for a pin
func pinMask(pin GPIOPin) uint32 {
	return 1 << (uint32(pin) & 31)
}
