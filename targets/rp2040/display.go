//go:build rp2040

package main

import (
	"strconv"

	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/hd44780i2c"

	"cncmotion/core"
)

// 16x2 character module behind a PCF8574 I2C backpack
const (
	lcdAddr = 0x27
	lcdCols = 16
	lcdRows = 2
)

// LCD shows faults, the homing menu and positions on an HD44780
type LCD struct {
	dev hd44780i2c.Device
}

// NewLCD configures the display on bus
func NewLCD(bus drivers.I2C) *LCD {
	l := &LCD{dev: hd44780i2c.New(bus, lcdAddr)}
	l.dev.Configure(hd44780i2c.Config{Width: lcdCols, Height: lcdRows})
	l.dev.ClearDisplay()
	return l
}

func (l *LCD) ShowFault(code core.FaultCode, msg string) {
	l.dev.ClearDisplay()
	l.line(0, msg)
	if code != core.FaultNone {
		l.line(1, "fault "+strconv.Itoa(int(code)))
	}
}

func (l *LCD) ShowMenu(items []string, cursor int) {
	l.dev.ClearDisplay()
	for row := 0; row < lcdRows && cursor+row < len(items); row++ {
		mark := " "
		if row == 0 {
			mark = ">"
		}
		l.line(uint8(row), mark+items[cursor+row])
	}
}

func (l *LCD) ShowPosition(pos core.HomeCoordinates) {
	l.dev.ClearDisplay()
	l.line(0, "X"+strconv.Itoa(int(pos.X))+" Y"+strconv.Itoa(int(pos.Y)))
	l.line(1, "Z"+strconv.Itoa(int(pos.Z)))
}

func (l *LCD) line(row uint8, s string) {
	if len(s) > lcdCols {
		s = s[:lcdCols]
	}
	l.dev.SetCursor(0, row)
	l.dev.Print([]byte(s))
}
