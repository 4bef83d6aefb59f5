package core

import "errors"

// AxisID identifies one of the fixed motor axes
type AxisID uint8

const (
	AxisX AxisID = iota
	AxisY
	AxisZ

	// NumAxes is the number of driven axes. A fourth (A) axis is reserved
	// on the output port but not implemented.
	NumAxes = 3
)

var ErrUnknownAxis = errors.New("unknown axis")

// String returns the axis letter
func (a AxisID) String() string {
	switch a {
	case AxisX:
		return "X"
	case AxisY:
		return "Y"
	case AxisZ:
		return "Z"
	}
	return "?"
}

// Valid reports whether a names a driven axis
func (a AxisID) Valid() bool {
	return a < NumAxes
}

// ParseAxis converts an axis letter (either case) to an AxisID
func ParseAxis(s string) (AxisID, error) {
	switch s {
	case "x", "X":
		return AxisX, nil
	case "y", "Y":
		return AxisY, nil
	case "z", "Z":
		return AxisZ, nil
	}
	return 0, ErrUnknownAxis
}

// Direction of travel for an axis. DirUnset is the reset value.
type Direction uint8

const (
	DirUnset Direction = iota
	DirPositive
	DirNegative
)

// Sign returns +1, -1 or 0
func (d Direction) Sign() int64 {
	switch d {
	case DirPositive:
		return 1
	case DirNegative:
		return -1
	}
	return 0
}

// Opposite returns the reverse direction (DirUnset stays unset)
func (d Direction) Opposite() Direction {
	switch d {
	case DirPositive:
		return DirNegative
	case DirNegative:
		return DirPositive
	}
	return DirUnset
}

func (d Direction) String() string {
	switch d {
	case DirPositive:
		return "+"
	case DirNegative:
		return "-"
	}
	return "unset"
}

// ParseDirection accepts "+", "-", "pos", "neg"
func ParseDirection(s string) (Direction, bool) {
	switch s {
	case "+", "pos", "positive":
		return DirPositive, true
	case "-", "neg", "negative":
		return DirNegative, true
	}
	return DirUnset, false
}

// FaultCode is the single most severe observed condition.
// Lower non-zero values are more severe; FaultNone is always least severe.
type FaultCode uint8

const (
	FaultNone FaultCode = iota
	FaultNoInit
	FaultEstopTripped
	FaultSpindle
	FaultLimitX
	FaultLimitY
	FaultLimitZ
	FaultSdError
	FaultFileError

	numFaultCodes
)

// Valid reports whether f is a known fault code
func (f FaultCode) Valid() bool {
	return f < numFaultCodes
}

// MoreSevere reports whether a outranks b
func MoreSevere(a, b FaultCode) bool {
	if a == FaultNone {
		return false
	}
	if b == FaultNone {
		return true
	}
	return a < b
}

// worst returns the more severe of a and b
func worst(a, b FaultCode) FaultCode {
	if MoreSevere(b, a) {
		return b
	}
	return a
}

func (f FaultCode) String() string {
	switch f {
	case FaultNone:
		return "none"
	case FaultNoInit:
		return "no_init"
	case FaultEstopTripped:
		return "estop"
	case FaultSpindle:
		return "spindle"
	case FaultLimitX:
		return "limit_x"
	case FaultLimitY:
		return "limit_y"
	case FaultLimitZ:
		return "limit_z"
	case FaultSdError:
		return "sd_error"
	case FaultFileError:
		return "file_error"
	}
	return "unknown"
}

// limitFault maps an axis to its limit fault code
func limitFault(a AxisID) FaultCode {
	return FaultLimitX + FaultCode(a)
}

// HomeCoordinates is one home-position record in signed step counts
type HomeCoordinates struct {
	X, Y, Z int32
}

// Get returns the coordinate for an axis
func (h HomeCoordinates) Get(a AxisID) int32 {
	switch a {
	case AxisX:
		return h.X
	case AxisY:
		return h.Y
	case AxisZ:
		return h.Z
	}
	return 0
}

// Set stores the coordinate for an axis
func (h *HomeCoordinates) Set(a AxisID, v int32) {
	switch a {
	case AxisX:
		h.X = v
	case AxisY:
		h.Y = v
	case AxisZ:
		h.Z = v
	}
}

// MenuChoice is one entry of the startup homing menu
type MenuChoice uint8

const (
	MenuLoadFromStorage MenuChoice = iota
	MenuSetHomeManual
	MenuSetHomeAuto

	numMenuChoices
)

var menuItems = [numMenuChoices]string{
	"XYZ from EEPROM",
	"Set HOME manual",
	"Set HOME auto",
}

// MenuItems returns the display strings of the homing menu
func MenuItems() []string {
	return menuItems[:]
}

// Valid reports whether m is a menu entry
func (m MenuChoice) Valid() bool {
	return m < numMenuChoices
}
