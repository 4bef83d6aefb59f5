// Port abstraction for the step/direction output lines
// Maps logical axis outputs to physical lines; every operation touches only its own line
package core

import "errors"

var (
	ErrAliasedLines   = errors.New("two signals share one line")
	ErrSplitStepGroup = errors.New("step lines span more than one port group")
)

// AxisPins is the output wiring of one axis
type AxisPins struct {
	Step      GPIOPin // Step pulse output
	Dir       GPIOPin // Direction output
	InvertDir bool    // Drive the direction line low for positive travel
}

// Port drives step and direction outputs for all axes.
// Implementations are infallible register operations.
type Port interface {
	SetStep(axis AxisID)
	ClearStep(axis AxisID)
	SetDirection(axis AxisID, dir Direction)

	// ClearAllSteps drops every step line in one operation, leaving
	// direction lines as they are
	ClearAllSteps()
}

// ValidateLines returns ErrAliasedLines if any line number repeats
func ValidateLines(lines ...GPIOPin) error {
	seen := make(map[GPIOPin]bool, len(lines))
	for _, l := range lines {
		if seen[l] {
			return ErrAliasedLines
		}
		seen[l] = true
	}
	return nil
}

// portLines flattens the axis wiring for validation
func portLines(pins [NumAxes]AxisPins) []GPIOPin {
	lines := make([]GPIOPin, 0, 2*NumAxes)
	for _, p := range pins {
		lines = append(lines, p.Step, p.Dir)
	}
	return lines
}

// dirLevel returns the line level for a direction after inversion
func dirLevel(p AxisPins, dir Direction) bool {
	level := dir == DirPositive
	if p.InvertDir {
		level = !level
	}
	return level
}

// LinePort drives each output through individual line writes
type LinePort struct {
	lines LineDriver
	pins  [NumAxes]AxisPins
}

// NewLinePort validates the wiring and configures every output low
func NewLinePort(lines LineDriver, pins [NumAxes]AxisPins) (*LinePort, error) {
	if err := ValidateLines(portLines(pins)...); err != nil {
		return nil, err
	}
	for _, p := range pins {
		for _, l := range []GPIOPin{p.Step, p.Dir} {
			if err := lines.ConfigureOutput(l); err != nil {
				return nil, err
			}
			lines.SetPin(l, false)
		}
	}
	return &LinePort{lines: lines, pins: pins}, nil
}

func (p *LinePort) SetStep(axis AxisID) {
	p.lines.SetPin(p.pins[axis].Step, true)
}

func (p *LinePort) ClearStep(axis AxisID) {
	p.lines.SetPin(p.pins[axis].Step, false)
}

func (p *LinePort) SetDirection(axis AxisID, dir Direction) {
	if dir == DirUnset {
		return
	}
	p.lines.SetPin(p.pins[axis].Dir, dirLevel(p.pins[axis], dir))
}

// ClearAllSteps writes the step lines one at a time, so the writes are
// made with interrupts masked to keep the tick from landing in between.
func (p *LinePort) ClearAllSteps() {
	state := disableInterrupts()
	for _, ap := range p.pins {
		p.lines.SetPin(ap.Step, false)
	}
	restoreInterrupts(state)
}

// GroupPort drives the step lines through a single group register so that
// ClearAllSteps is one write. Direction lines go through the line driver.
type GroupPort struct {
	group    GroupDriver
	lines    LineDriver
	pins     [NumAxes]AxisPins
	stepMask uint32
}

// NewGroupPort validates the wiring and drives every output low. All step
// lines must live in the same 32-line group; configuring them is left to the
// group driver, which may route them to a peripheral.
func NewGroupPort(group GroupDriver, lines LineDriver, pins [NumAxes]AxisPins) (*GroupPort, error) {
	if err := ValidateLines(portLines(pins)...); err != nil {
		return nil, err
	}
	gp := &GroupPort{group: group, lines: lines, pins: pins}
	for _, p := range pins {
		if p.Step>>5 != pins[0].Step>>5 {
			return nil, ErrSplitStepGroup
		}
		gp.stepMask |= pinMask(p.Step)
		if err := lines.ConfigureOutput(p.Dir); err != nil {
			return nil, err
		}
		lines.SetPin(p.Dir, false)
	}
	group.ClearMask(gp.stepMask)
	return gp, nil
}

func (p *GroupPort) SetStep(axis AxisID) {
	p.group.SetMask(pinMask(p.pins[axis].Step))
}

func (p *GroupPort) ClearStep(axis AxisID) {
	p.group.ClearMask(pinMask(p.pins[axis].Step))
}

func (p *GroupPort) SetDirection(axis AxisID, dir Direction) {
	if dir == DirUnset {
		return
	}
	p.lines.SetPin(p.pins[axis].Dir, dirLevel(p.pins[axis], dir))
}

func (p *GroupPort) ClearAllSteps() {
	p.group.ClearMask(p.stepMask)
}

// StepMask returns the group bits of the step lines
func (p *GroupPort) StepMask() uint32 {
	return p.stepMask
}
