//go:build rp2040

package main

// PIO step group
// A state machine owns the step lines and copies each FIFO word onto them
// with a single "out pins", so every step edge of one tick lands in the same
// PIO cycle. Direction lines stay on SIO.

import (
	"errors"
	"machine"

	rp2pio "github.com/tinygo-org/pio/rp2-pio"

	"cncmotion/core"
)

var (
	errStepsNotAdjacent = errors.New("pio step lines must be consecutive")
	errNoStateMachine   = errors.New("no free pio state machine")
)

// stepGroupOrigin loads the program at the start of instruction memory
const stepGroupOrigin = 0

// buildStepGroupProgram pulls one word and writes its low count bits to the
// step lines
func buildStepGroupProgram(count uint8) []uint16 {
	asm := rp2pio.AssemblerV0{SidesetBits: 0}
	return []uint16{
		// .wrap_target
		asm.Pull(false, true).Encode(),              // 0: pull block
		asm.Out(rp2pio.OutDestPins, count).Encode(), // 1: out pins, count
		// .wrap
	}
}

// PIOGroup is a GroupDriver for step lines routed to a PIO state machine.
// Masks use absolute line bits, like SIO.
type PIOGroup struct {
	pio    *rp2pio.PIO
	sm     rp2pio.StateMachine
	base   machine.Pin
	count  uint8
	shadow uint32 // Current level of every step line
}

// NewPIOGroup claims a state machine on PIO0 and routes the step lines to
// it. The lines must form one run of consecutive GPIOs.
func NewPIOGroup(pins [core.NumAxes]core.AxisPins) (*PIOGroup, error) {
	lo, hi := pins[0].Step, pins[0].Step
	for _, p := range pins[1:] {
		if p.Step < lo {
			lo = p.Step
		}
		if p.Step > hi {
			hi = p.Step
		}
	}
	if int(hi-lo)+1 != len(pins) {
		return nil, errStepsNotAdjacent
	}

	g := &PIOGroup{pio: rp2pio.PIO0, base: machine.Pin(lo), count: uint8(len(pins))}
	claimed := false
	for i := uint8(0); i < 4 && !claimed; i++ {
		g.sm = g.pio.StateMachine(i)
		claimed = g.sm.TryClaim()
	}
	if !claimed {
		return nil, errNoStateMachine
	}

	program := buildStepGroupProgram(g.count)
	offset, err := g.pio.AddProgram(program, stepGroupOrigin)
	if err != nil {
		return nil, err
	}

	for i := uint8(0); i < g.count; i++ {
		(g.base + machine.Pin(i)).Configure(machine.PinConfig{Mode: g.pio.PinMode()})
	}

	cfg := rp2pio.DefaultStateMachineConfig()
	cfg.SetOutPins(g.base, g.count)
	cfg.SetOutShift(true, false, 32)
	cfg.SetWrap(offset+uint8(len(program))-1, offset)
	cfg.SetClkDivIntFrac(1, 0)

	g.sm.Init(offset, cfg)
	g.sm.SetPindirsConsecutive(g.base, g.count, true)
	g.sm.SetPinsConsecutive(g.base, g.count, false)
	g.sm.SetEnabled(true)
	return g, nil
}

func (g *PIOGroup) SetMask(mask uint32) {
	g.shadow |= mask
	g.push()
}

func (g *PIOGroup) ClearMask(mask uint32) {
	g.shadow &^= mask
	g.push()
}

func (g *PIOGroup) push() {
	for g.sm.IsTxFIFOFull() {
	}
	g.sm.TxPut(g.shadow >> uint32(g.base))
}

// NewPIOPort builds the step/dir port on a PIO step group
func NewPIOPort(lines core.LineDriver, pins [core.NumAxes]core.AxisPins) (core.Port, error) {
	group, err := NewPIOGroup(pins)
	if err != nil {
		return nil, err
	}
	port, err := core.NewGroupPort(group, lines, pins)
	if err != nil {
		return nil, err
	}
	return port, nil
}
