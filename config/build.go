package config

import (
	"errors"

	"cncmotion/core"
)

var (
	ErrNoGroupDriver = errors.New("sio step backend needs a group driver")
	ErrNoStepPort    = errors.New("pio step backend needs a prebuilt port")
	ErrNoTicker      = errors.New("no tick source constructor")
)

// TickerFunc builds the target's tick source running tick at hz
type TickerFunc func(hz uint32, tick func()) (core.TickSource, error)

// Hardware is what a target supplies to build a machine
type Hardware struct {
	Lines   core.LineDriver
	Group   core.GroupDriver // sio backend
	Port    core.Port        // pio backend, already configured
	Ticker  TickerFunc
	Store   core.HomeStore // nil keeps the record in memory
	Display core.Display   // nil disables display output
}

// Parts is an assembled machine and the pieces the target loop drives
type Parts struct {
	Machine   *core.Machine
	Monitor   *core.SafetyMonitor
	Generator *core.PulseGenerator
	Ticker    core.TickSource
	Panel     *core.PanelReader
}

// Build validates cfg and assembles a machine on hw. The machine is not
// yet initialized; call Machine.Init once the target is ready to cycle.
func (c *MachineConfig) Build(hw Hardware) (*Parts, error) {
	if err := c.Validate(); err != nil {
		return nil, err
	}
	if hw.Ticker == nil {
		return nil, ErrNoTicker
	}
	dirs, err := c.HomeDirs()
	if err != nil {
		return nil, err
	}

	monitor, err := core.NewSafetyMonitor(hw.Lines, c.SafetyInputs(), dirs)
	if err != nil {
		return nil, err
	}
	monitor.SetSpindleRequired(c.SpindleRequired)

	port, err := c.buildPort(hw)
	if err != nil {
		return nil, err
	}
	gen := core.NewPulseGenerator(port, monitor)

	ticker, err := hw.Ticker(c.TickHz, gen.Tick)
	if err != nil {
		return nil, err
	}

	panel, err := core.NewPanelReader(hw.Lines, c.PanelLines(), c.Panel.Debounce)
	if err != nil {
		return nil, err
	}

	m := core.NewMachine(core.MachineParts{
		Monitor:   monitor,
		Generator: gen,
		Ticker:    ticker,
		Store:     hw.Store,
		Display:   hw.Display,
		HomingHz:  c.HomingTickHz,
	})
	return &Parts{Machine: m, Monitor: monitor, Generator: gen, Ticker: ticker, Panel: panel}, nil
}

func (c *MachineConfig) buildPort(hw Hardware) (core.Port, error) {
	switch c.StepBackend {
	case BackendSIO:
		if hw.Group == nil {
			return nil, ErrNoGroupDriver
		}
		p, err := core.NewGroupPort(hw.Group, hw.Lines, c.AxisPins())
		if err != nil {
			return nil, err
		}
		return p, nil
	case BackendPIO:
		if hw.Port == nil {
			return nil, ErrNoStepPort
		}
		return hw.Port, nil
	}
	p, err := core.NewLinePort(hw.Lines, c.AxisPins())
	if err != nil {
		return nil, err
	}
	return p, nil
}
