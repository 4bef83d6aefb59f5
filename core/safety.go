// Safety interlock monitor
// Samples emergency stop, spindle and limit inputs and derives the motion permission
package core

import "errors"

var ErrNotExternalFault = errors.New("fault code is not an external collaborator fault")

// InputLine describes one digital safety input
type InputLine struct {
	Pin        GPIOPin // Hardware line
	ActiveHigh bool    // Line level that means "asserted"
	PullUp     bool    // Pull-up (true) or pull-down (false) resistor
}

// SafetyInputs is the wiring of every monitored input
type SafetyInputs struct {
	Estop          InputLine
	SpindleFault   InputLine
	SpindleAtSpeed InputLine
	Limit          [NumAxes]InputLine

	// LimitSamples is the number of consecutive tripped samples needed
	// before a limit flag is raised (0 or 1 means no filtering)
	LimitSamples uint8
}

// lines returns every input line for aliasing checks
func (in SafetyInputs) lines() []GPIOPin {
	l := []GPIOPin{in.Estop.Pin, in.SpindleFault.Pin, in.SpindleAtSpeed.Pin}
	for _, lim := range in.Limit {
		l = append(l, lim.Pin)
	}
	return l
}

// SafetyFlags is one snapshot of the safety inputs
type SafetyFlags struct {
	Estop          bool
	SpindleFault   bool // Fault line asserted, or spindle required but not at speed
	SpindleAtSpeed bool
	Limit          [NumAxes]bool
}

// AxisMotion is the motion state of one axis as seen by the interlock
type AxisMotion struct {
	Active bool
	Dir    Direction
}

// MotionSet is the motion state of every axis
type MotionSet [NumAxes]AxisMotion

// LimitDirs gives, per axis, the direction of travel that runs into its
// limit/home switch. DirUnset means the switch blocks travel both ways.
type LimitDirs [NumAxes]Direction

// Evaluate derives the motion permission from a snapshot. Emergency stop
// dominates, then spindle fault, then the limit of the first axis that is
// moving toward its tripped switch. A tripped switch on an idle axis, or on
// an axis moving away from it, blocks nothing.
func Evaluate(flags SafetyFlags, motion MotionSet, limitDirs LimitDirs) (bool, FaultCode) {
	if flags.Estop {
		return false, FaultEstopTripped
	}
	if flags.SpindleFault {
		return false, FaultSpindle
	}
	for a := AxisID(0); a < NumAxes; a++ {
		if !flags.Limit[a] || !motion[a].Active {
			continue
		}
		if limitDirs[a] == DirUnset || motion[a].Dir == limitDirs[a] {
			return false, limitFault(a)
		}
	}
	return true, FaultNone
}

// SafetyMonitor owns the safety inputs. Sample and the fault bookkeeping run
// in the foreground; only EstopActive may be called from the tick task.
type SafetyMonitor struct {
	lines     LineDriver
	inputs    SafetyInputs
	limitDirs LimitDirs

	limitCount      [NumAxes]uint8
	initialized     bool
	spindleRequired bool
	external        FaultCode
	last            SafetyFlags
}

// NewSafetyMonitor validates and configures the input lines
func NewSafetyMonitor(lines LineDriver, inputs SafetyInputs, limitDirs LimitDirs) (*SafetyMonitor, error) {
	if err := ValidateLines(inputs.lines()...); err != nil {
		return nil, err
	}
	all := append([]InputLine{inputs.Estop, inputs.SpindleFault, inputs.SpindleAtSpeed}, inputs.Limit[:]...)
	for _, in := range all {
		var err error
		if in.PullUp {
			err = lines.ConfigureInputPullUp(in.Pin)
		} else {
			err = lines.ConfigureInputPullDown(in.Pin)
		}
		if err != nil {
			return nil, err
		}
	}
	if inputs.LimitSamples == 0 {
		inputs.LimitSamples = 1
	}
	return &SafetyMonitor{
		lines:     lines,
		inputs:    inputs,
		limitDirs: limitDirs,
	}, nil
}

// asserted reads one input and applies its active level
func (m *SafetyMonitor) asserted(in InputLine) bool {
	return m.lines.ReadPin(in.Pin) == in.ActiveHigh
}

// EstopActive is a single line read with no intermediate state. It is the
// only monitor method that is safe to call from the tick task.
func (m *SafetyMonitor) EstopActive() bool {
	return m.lines.ReadPin(m.inputs.Estop.Pin) == m.inputs.Estop.ActiveHigh
}

// Sample reads every input and returns a fresh snapshot
func (m *SafetyMonitor) Sample() SafetyFlags {
	var f SafetyFlags
	f.Estop = m.asserted(m.inputs.Estop)
	f.SpindleAtSpeed = m.asserted(m.inputs.SpindleAtSpeed)
	f.SpindleFault = m.asserted(m.inputs.SpindleFault) || (m.spindleRequired && !f.SpindleAtSpeed)

	for a := AxisID(0); a < NumAxes; a++ {
		if !m.asserted(m.inputs.Limit[a]) {
			m.limitCount[a] = 0
			continue
		}
		if m.limitCount[a] < m.inputs.LimitSamples {
			m.limitCount[a]++
		}
		f.Limit[a] = m.limitCount[a] >= m.inputs.LimitSamples
	}

	m.last = f
	return f
}

// Last returns the most recent snapshot without touching the inputs
func (m *SafetyMonitor) Last() SafetyFlags {
	return m.last
}

// Evaluate applies the interlock to a snapshot. Until MarkInitialized is
// called nothing is permitted and the fault is FaultNoInit.
func (m *SafetyMonitor) Evaluate(flags SafetyFlags, motion MotionSet) (bool, FaultCode) {
	if !m.initialized {
		return false, FaultNoInit
	}
	return Evaluate(flags, motion, m.limitDirs)
}

// Fault resolves the single reported fault, including any external
// collaborator fault, by severity
func (m *SafetyMonitor) Fault(flags SafetyFlags, motion MotionSet) FaultCode {
	_, f := m.Evaluate(flags, motion)
	return worst(f, m.external)
}

// LimitDirs returns the configured switch directions
func (m *SafetyMonitor) LimitDirs() LimitDirs {
	return m.limitDirs
}

// MarkInitialized clears the NoInit condition once the hardware is configured
func (m *SafetyMonitor) MarkInitialized() {
	m.initialized = true
}

// Initialized reports whether MarkInitialized has been called
func (m *SafetyMonitor) Initialized() bool {
	return m.initialized
}

// SetSpindleRequired makes "spindle not at speed" count as a spindle fault
func (m *SafetyMonitor) SetSpindleRequired(required bool) {
	m.spindleRequired = required
}

// SetExternalFault records the pass-through fault of the script/SD
// collaborator. Only FaultSdError, FaultFileError and FaultNone are accepted.
func (m *SafetyMonitor) SetExternalFault(code FaultCode) error {
	switch code {
	case FaultNone, FaultSdError, FaultFileError:
		m.external = code
		return nil
	}
	return ErrNotExternalFault
}

// ExternalFault returns the recorded collaborator fault
func (m *SafetyMonitor) ExternalFault() FaultCode {
	return m.external
}
