//go:build rp2040

package main

import (
	"device/rp"
	"machine"

	"cncmotion/core"
)

// PinLines drives GPIO lines through machine.Pin. Line numbers are GPn.
type PinLines struct{}

func (PinLines) ConfigureOutput(pin core.GPIOPin) error {
	p := machine.Pin(pin)
	p.Configure(machine.PinConfig{Mode: machine.PinOutput})
	p.Low()
	return nil
}

func (PinLines) ConfigureInputPullUp(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPullup})
	return nil
}

func (PinLines) ConfigureInputPullDown(pin core.GPIOPin) error {
	machine.Pin(pin).Configure(machine.PinConfig{Mode: machine.PinInputPulldown})
	return nil
}

func (PinLines) SetPin(pin core.GPIOPin, value bool) {
	machine.Pin(pin).Set(value)
}

func (PinLines) ReadPin(pin core.GPIOPin) bool {
	return machine.Pin(pin).Get()
}

// SIOGroup writes bank 0 outputs through the SIO set/clear registers, so a
// group of step lines changes in one bus write
type SIOGroup struct{}

// NewSIOGroup configures the step lines as SIO outputs
func NewSIOGroup(pins [core.NumAxes]core.AxisPins) SIOGroup {
	for _, p := range pins {
		PinLines{}.ConfigureOutput(p.Step)
	}
	return SIOGroup{}
}

func (SIOGroup) SetMask(mask uint32) {
	rp.SIO.GPIO_OUT_SET.Set(mask)
}

func (SIOGroup) ClearMask(mask uint32) {
	rp.SIO.GPIO_OUT_CLR.Set(mask)
}
