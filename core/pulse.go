package core

// Axis pulse generation
// One step edge per tick, cleared on the following tick, so each axis steps
// at half the tick rate with 50% duty.

import "sync/atomic"

// EstopSensor is the single-line emergency stop read available to the tick task
type EstopSensor interface {
	EstopActive() bool
}

// axisState is owned by the tick task while armed. dir and high are written
// by the foreground only while disarmed.
type axisState struct {
	dir      Direction
	high     bool // PulseHigh phase
	active   atomic.Bool
	position atomic.Int64
}

// PulseGenerator holds per-axis state and emits step edges from Tick
type PulseGenerator struct {
	port  Port
	estop EstopSensor
	axes  [NumAxes]axisState

	halted atomic.Bool   // Estop latch, cleared by Reset
	pulses atomic.Uint32 // Completed pulses, all axes
	ticks  atomic.Uint32
}

// NewPulseGenerator creates a generator driving port. estop may be nil.
func NewPulseGenerator(port Port, estop EstopSensor) *PulseGenerator {
	return &PulseGenerator{port: port, estop: estop}
}

// Tick advances every active axis by one half step period. It is the tick
// task body and touches only axis state and the port.
func (g *PulseGenerator) Tick() {
	g.ticks.Add(1)
	if g.halted.Load() {
		return
	}

	if g.estop != nil && g.estop.EstopActive() {
		g.port.ClearAllSteps()
		for a := range g.axes {
			g.completePulse(AxisID(a))
		}
		g.halted.Store(true)
		RecordEvent(EvtEstopHalt, 0, g.pulses.Load(), 0)
		return
	}

	for a := range g.axes {
		s := &g.axes[a]
		if s.high {
			g.port.ClearStep(AxisID(a))
			g.completePulse(AxisID(a))
			continue
		}
		if s.active.Load() && s.dir != DirUnset {
			g.port.SetStep(AxisID(a))
			s.high = true
		}
	}
}

// completePulse accounts a high pulse that has just been cleared
func (g *PulseGenerator) completePulse(axis AxisID) {
	s := &g.axes[axis]
	if !s.high {
		return
	}
	s.high = false
	s.position.Add(s.dir.Sign())
	g.pulses.Add(1)
}

// FinishPulse clears a pending high pulse on one axis. Disarmed only.
func (g *PulseGenerator) FinishPulse(axis AxisID) {
	if g.axes[axis].high {
		g.port.ClearStep(axis)
		g.completePulse(axis)
	}
}

// Halt clears every step line in one operation and accounts any pulse that
// was high. Disarmed only.
func (g *PulseGenerator) Halt() {
	g.port.ClearAllSteps()
	for a := range g.axes {
		g.completePulse(AxisID(a))
	}
}

// Reset clears the estop latch. Disarmed only.
func (g *PulseGenerator) Reset() {
	g.halted.Store(false)
}

// Halted reports whether the tick task latched an emergency stop
func (g *PulseGenerator) Halted() bool {
	return g.halted.Load()
}

// SetDirection stores the direction and drives the direction line. Disarmed only.
func (g *PulseGenerator) SetDirection(axis AxisID, dir Direction) {
	g.axes[axis].dir = dir
	g.port.SetDirection(axis, dir)
}

// ClearDirection returns the axis to the unspecified direction without
// touching the line. Disarmed only.
func (g *PulseGenerator) ClearDirection(axis AxisID) {
	g.axes[axis].dir = DirUnset
}

// Direction returns the stored direction of an axis
func (g *PulseGenerator) Direction(axis AxisID) Direction {
	return g.axes[axis].dir
}

// SetActive marks an axis as having a move request
func (g *PulseGenerator) SetActive(axis AxisID, active bool) {
	g.axes[axis].active.Store(active)
}

// Active reports whether an axis has a move request
func (g *PulseGenerator) Active(axis AxisID) bool {
	return g.axes[axis].active.Load()
}

// AnyActive reports whether any axis has a move request
func (g *PulseGenerator) AnyActive() bool {
	for a := range g.axes {
		if g.axes[a].active.Load() {
			return true
		}
	}
	return false
}

// Motion returns the interlock view of all axes
func (g *PulseGenerator) Motion() MotionSet {
	var m MotionSet
	for a := range g.axes {
		m[a] = AxisMotion{Active: g.axes[a].active.Load(), Dir: g.axes[a].dir}
	}
	return m
}

// Position returns the logical step count of an axis
func (g *PulseGenerator) Position(axis AxisID) int64 {
	return g.axes[axis].position.Load()
}

// SetPosition overwrites the logical step count of an axis
func (g *PulseGenerator) SetPosition(axis AxisID, pos int64) {
	g.axes[axis].position.Store(pos)
}

// Pulses returns the number of completed step pulses since start
func (g *PulseGenerator) Pulses() uint32 {
	return g.pulses.Load()
}

// Ticks returns the number of ticks seen since start
func (g *PulseGenerator) Ticks() uint32 {
	return g.ticks.Load()
}
