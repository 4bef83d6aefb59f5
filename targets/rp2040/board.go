//go:build rp2040

package main

import "cncmotion/config"

// Pico wiring. Step lines GP2..GP4 are adjacent so the PIO backend can
// drive them as one group; GP0/GP1 carry I2C0 for the LCD and EEPROM.
func boardConfig() *config.MachineConfig {
	cfg := config.Default()
	cfg.Axes = config.AxesConfig{
		X: config.AxisConfig{StepPin: 2, DirPin: 5, HomeDir: "-"},
		Y: config.AxisConfig{StepPin: 3, DirPin: 6, HomeDir: "-"},
		Z: config.AxisConfig{StepPin: 4, DirPin: 7, HomeDir: "+"},
	}
	cfg.Estop = config.InputConfig{Pin: 8, Invert: true, PullUp: true}
	cfg.SpindleFault = config.InputConfig{Pin: 9, Invert: true, PullUp: true}
	cfg.SpindleAtSpeed = config.InputConfig{Pin: 10}
	cfg.Limits.X = config.InputConfig{Pin: 11, Invert: true, PullUp: true}
	cfg.Limits.Y = config.InputConfig{Pin: 12, Invert: true, PullUp: true}
	cfg.Limits.Z = config.InputConfig{Pin: 13, Invert: true, PullUp: true}
	cfg.Panel.XMinus, cfg.Panel.XPlus = 14, 15
	cfg.Panel.YMinus, cfg.Panel.YPlus = 16, 17
	cfg.Panel.ZMinus, cfg.Panel.ZPlus = 18, 19
	cfg.Panel.Start, cfg.Panel.Stop = 20, 21
	cfg.StepBackend = config.BackendPIO
	cfg.Store = config.StoreConfig{Offset: 0}
	return cfg
}
