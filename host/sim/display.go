package sim

import (
	"log"
	"sync"

	"cncmotion/core"
)

// Display records what the machine shows and optionally logs it
type Display struct {
	mu       sync.Mutex
	logger   *log.Logger
	fault    core.FaultCode
	message  string
	menu     []string
	position core.HomeCoordinates
	updates  int
}

// NewDisplay creates a display. logger may be nil.
func NewDisplay(logger *log.Logger) *Display {
	return &Display{logger: logger}
}

func (d *Display) ShowFault(code core.FaultCode, msg string) {
	d.mu.Lock()
	d.fault, d.message = code, msg
	d.updates++
	d.mu.Unlock()
	if d.logger != nil {
		d.logger.Printf("display: %s (%s)", msg, code)
	}
}

func (d *Display) ShowMenu(items []string, cursor int) {
	d.mu.Lock()
	d.menu = append(d.menu[:0], items...)
	d.mu.Unlock()
	if d.logger != nil && cursor < len(items) {
		d.logger.Printf("display: menu > %s", items[cursor])
	}
}

func (d *Display) ShowPosition(pos core.HomeCoordinates) {
	d.mu.Lock()
	d.position = pos
	d.mu.Unlock()
	if d.logger != nil {
		d.logger.Printf("display: %s", pos)
	}
}

// Fault returns the last fault shown
func (d *Display) Fault() (core.FaultCode, string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.fault, d.message
}

// Menu returns the last menu shown
func (d *Display) Menu() []string {
	d.mu.Lock()
	defer d.mu.Unlock()
	return append([]string(nil), d.menu...)
}

// Position returns the last position shown
func (d *Display) Position() core.HomeCoordinates {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.position
}

// Updates returns the number of fault updates shown
func (d *Display) Updates() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.updates
}
