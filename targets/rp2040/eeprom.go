//go:build rp2040

package main

import (
	"tinygo.org/x/drivers"
	"tinygo.org/x/drivers/at24cx"
)

// AT24C32 geometry
const (
	eepromPageSize = 32
	eepromSize     = 4096
)

// NewEEPROM returns the home record device. at24cx.Device reads and writes
// at byte offsets, which is all core.ByteStore needs.
func NewEEPROM(bus drivers.I2C) *at24cx.Device {
	dev := at24cx.New(bus)
	dev.Configure(at24cx.Config{
		PageSize:        eepromPageSize,
		StartRAMAddress: 0,
		EndRAMAddress:   eepromSize,
	})
	return &dev
}
