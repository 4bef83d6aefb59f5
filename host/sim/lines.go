// Package sim provides in-memory hardware for running the motion core
// without a board: a line bank, named input injection, a manual tick source
// and a recording display.
package sim

import (
	"errors"
	"sync"

	"cncmotion/core"
)

var ErrNotConfigured = errors.New("line not configured")

// Mode is the configured direction of a simulated line
type Mode uint8

const (
	Unconfigured Mode = iota
	Output
	InputPullUp
	InputPullDown
)

type line struct {
	mode   Mode
	level  bool
	driven bool // Input level set by Drive rather than the pull resistor
	rises  uint32
}

// Lines is a bank of simulated lines. It implements core.LineDriver and,
// for lines 0..31, core.GroupDriver. Inputs rest at their pull level until
// driven.
type Lines struct {
	mu    sync.Mutex
	lines map[core.GPIOPin]*line
}

// NewLines creates an empty bank
func NewLines() *Lines {
	return &Lines{lines: make(map[core.GPIOPin]*line)}
}

func (l *Lines) get(pin core.GPIOPin) *line {
	ln, ok := l.lines[pin]
	if !ok {
		ln = &line{}
		l.lines[pin] = ln
	}
	return ln
}

func (l *Lines) configure(pin core.GPIOPin, mode Mode) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln := l.get(pin)
	ln.mode = mode
	switch mode {
	case Output:
		ln.level = false
	case InputPullUp:
		if !ln.driven {
			ln.level = true
		}
	case InputPullDown:
		if !ln.driven {
			ln.level = false
		}
	}
	return nil
}

func (l *Lines) ConfigureOutput(pin core.GPIOPin) error {
	return l.configure(pin, Output)
}

func (l *Lines) ConfigureInputPullUp(pin core.GPIOPin) error {
	return l.configure(pin, InputPullUp)
}

func (l *Lines) ConfigureInputPullDown(pin core.GPIOPin) error {
	return l.configure(pin, InputPullDown)
}

// set writes an output level; callers hold mu
func (l *Lines) set(pin core.GPIOPin, value bool) {
	ln := l.get(pin)
	if value && !ln.level {
		ln.rises++
	}
	ln.level = value
}

func (l *Lines) SetPin(pin core.GPIOPin, value bool) {
	l.mu.Lock()
	l.set(pin, value)
	l.mu.Unlock()
}

func (l *Lines) ReadPin(pin core.GPIOPin) bool {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(pin).level
}

// SetMask drives every line in mask high under one lock
func (l *Lines) SetMask(mask uint32) {
	l.writeMask(mask, true)
}

// ClearMask drives every line in mask low under one lock
func (l *Lines) ClearMask(mask uint32) {
	l.writeMask(mask, false)
}

func (l *Lines) writeMask(mask uint32, value bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	for bit := core.GPIOPin(0); bit < 32; bit++ {
		if mask&(1<<bit) != 0 {
			l.set(bit, value)
		}
	}
}

// Drive sets the level seen on an input line, as external wiring would
func (l *Lines) Drive(pin core.GPIOPin, level bool) error {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln := l.get(pin)
	if ln.mode != InputPullUp && ln.mode != InputPullDown {
		return ErrNotConfigured
	}
	ln.level = level
	ln.driven = true
	return nil
}

// Release returns an input line to its pull level
func (l *Lines) Release(pin core.GPIOPin) {
	l.mu.Lock()
	defer l.mu.Unlock()
	ln := l.get(pin)
	ln.driven = false
	ln.level = ln.mode == InputPullUp
}

// Mode returns how a line was configured
func (l *Lines) Mode(pin core.GPIOPin) Mode {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(pin).mode
}

// Rises returns the number of low-to-high transitions written to a line
func (l *Lines) Rises(pin core.GPIOPin) uint32 {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.get(pin).rises
}
