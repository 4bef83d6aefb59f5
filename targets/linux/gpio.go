//go:build linux

package main

import (
	"github.com/stianeikeland/go-rpio/v4"

	"cncmotion/core"
)

// RPiLines drives Raspberry Pi header lines through go-rpio's mapped GPIO
// registers. Line numbers are BCM numbers.
type RPiLines struct{}

func (RPiLines) ConfigureOutput(pin core.GPIOPin) error {
	p := rpio.Pin(pin)
	p.Output()
	p.Low()
	return nil
}

func (RPiLines) ConfigureInputPullUp(pin core.GPIOPin) error {
	p := rpio.Pin(pin)
	p.Input()
	p.PullUp()
	return nil
}

func (RPiLines) ConfigureInputPullDown(pin core.GPIOPin) error {
	p := rpio.Pin(pin)
	p.Input()
	p.PullDown()
	return nil
}

func (RPiLines) SetPin(pin core.GPIOPin, value bool) {
	if value {
		rpio.Pin(pin).High()
	} else {
		rpio.Pin(pin).Low()
	}
}

func (RPiLines) ReadPin(pin core.GPIOPin) bool {
	return rpio.Pin(pin).Read() == rpio.High
}
