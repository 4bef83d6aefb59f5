//go:build rp2040

// Command rp2040 is the motion controller firmware for a Raspberry Pi Pico.
// The host link is served on USB CDC.
package main

import (
	"machine"
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/protocol"
)

// Consecutive failed USB writes before the host is taken as gone
const maxWriteFailures = 10

var (
	pump *protocol.Pump

	usbWasDisconnected       bool
	consecutiveWriteFailures uint32
	msgerrors                uint32
)

func main() {
	// Clear any watchdog state left by a previous reset
	if err := machine.Watchdog.Configure(machine.WatchdogConfig{TimeoutMillis: 0}); err != nil {
		return
	}
	machine.Serial.Configure(machine.UARTConfig{})
	machine.I2C0.Configure(machine.I2CConfig{
		SDA:       machine.GP0,
		SCL:       machine.GP1,
		Frequency: 400 * machine.KHz,
	})

	cfg := boardConfig()
	lcd := NewLCD(machine.I2C0)
	lines := PinLines{}
	hw := config.Hardware{
		Lines:   lines,
		Ticker:  newTickSource,
		Store:   core.NewByteStore(NewEEPROM(machine.I2C0), cfg.Store.Offset),
		Display: lcd,
	}
	switch cfg.StepBackend {
	case config.BackendSIO:
		hw.Group = NewSIOGroup(cfg.AxisPins())
	case config.BackendPIO:
		port, err := NewPIOPort(lines, cfg.AxisPins())
		if err != nil {
			halt(lcd, err)
		}
		hw.Port = port
	}

	parts, err := cfg.Build(hw)
	if err != nil {
		halt(lcd, err)
	}
	m := parts.Machine

	var link *core.Link
	pump = protocol.NewPump(func(cmdID uint16, data *[]byte) error {
		return link.Dispatch(cmdID, data)
	})
	link = core.NewLink(m, pump.Transport())
	pump.Transport().SetResetCallback(func() {
		m.Submit(core.Request{Kind: core.ReqStopAll})
	})

	go usbReaderLoop()

	m.Init()
	period := time.Duration(cfg.CycleMS) * time.Millisecond
	for {
		start := time.Now()
		func() {
			defer func() {
				if r := recover(); r != nil {
					msgerrors++
					m.Controller().StopAll()
					pump.Reset()
				}
			}()
			UpdateSystemTime()
			pump.Process()
			m.Cycle(parts.Panel.Read())
			writeUSB()
		}()
		if d := period - time.Since(start); d > 0 {
			time.Sleep(d)
		}
	}
}

// usbReaderLoop moves received bytes into the pump
func usbReaderLoop() {
	defer func() {
		if r := recover(); r != nil {
			msgerrors++
			time.Sleep(100 * time.Millisecond)
			go usbReaderLoop()
		}
	}()

	var buf [64]byte
	for {
		n := 0
		for n < len(buf) && machine.Serial.Buffered() > 0 {
			b, err := machine.Serial.ReadByte()
			if err != nil {
				msgerrors++
				break
			}
			buf[n] = b
			n++
		}
		if n > 0 {
			// Fresh traffic after a lost host starts from a clean link
			if usbWasDisconnected {
				usbWasDisconnected = false
				consecutiveWriteFailures = 0
				pump.Reset()
			}
			pump.Write(buf[:n])
		}
		time.Sleep(100 * time.Microsecond)
	}
}

// writeUSB flushes queued ACKs and responses. Repeated failures mark the
// host as disconnected and drop what is queued.
func writeUSB() {
	if pump.Pending() == 0 {
		return
	}
	if err := pump.Flush(machine.Serial); err != nil {
		consecutiveWriteFailures++
		if consecutiveWriteFailures > maxWriteFailures {
			usbWasDisconnected = true
			consecutiveWriteFailures = 0
			pump.Reset()
		}
		return
	}
	consecutiveWriteFailures = 0
}

// halt leaves the outputs unconfigured and blinks the LED forever
func halt(d core.Display, err error) {
	d.ShowFault(core.FaultNoInit, err.Error())
	led := machine.LED
	led.Configure(machine.PinConfig{Mode: machine.PinOutput})
	for {
		led.Set(!led.Get())
		time.Sleep(250 * time.Millisecond)
	}
}
