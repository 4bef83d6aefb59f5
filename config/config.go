// Package config holds the machine configuration: line assignments, input
// polarities, tick rates and the host-side settings of the Linux target.
package config

import (
	"cncmotion/core"
	"encoding/json"
	"errors"
)

var (
	ErrBadBackend   = errors.New("step backend must be sio, pio or lines")
	ErrBadHomeDir   = errors.New("home direction must be + or -")
	ErrBadCycleTime = errors.New("cycle time must be at least 1 ms")
)

// Step backends
const (
	BackendSIO   = "sio"   // Single-register group writes (rp2040 SIO)
	BackendPIO   = "pio"   // PIO state machine drives the step group
	BackendLines = "lines" // Per-line writes through the line driver
)

// AxisConfig is the output wiring of one axis
type AxisConfig struct {
	StepPin   uint32 `json:"step_pin" koanf:"step_pin" yaml:"step_pin"`
	DirPin    uint32 `json:"dir_pin" koanf:"dir_pin" yaml:"dir_pin"`
	InvertDir bool   `json:"invert_dir" koanf:"invert_dir" yaml:"invert_dir"`
	HomeDir   string `json:"home_dir" koanf:"home_dir" yaml:"home_dir"` // "+" or "-"
}

// InputConfig is one digital input. Inputs are active high unless Invert
// is set.
type InputConfig struct {
	Pin    uint32 `json:"pin" koanf:"pin" yaml:"pin"`
	Invert bool   `json:"invert" koanf:"invert" yaml:"invert"`
	PullUp bool   `json:"pull_up" koanf:"pull_up" yaml:"pull_up"`
}

// AxesConfig groups the three axes
type AxesConfig struct {
	X AxisConfig `json:"x" koanf:"x" yaml:"x"`
	Y AxisConfig `json:"y" koanf:"y" yaml:"y"`
	Z AxisConfig `json:"z" koanf:"z" yaml:"z"`
}

// LimitsConfig groups the limit/home switches
type LimitsConfig struct {
	X       InputConfig `json:"x" koanf:"x" yaml:"x"`
	Y       InputConfig `json:"y" koanf:"y" yaml:"y"`
	Z       InputConfig `json:"z" koanf:"z" yaml:"z"`
	Samples uint8       `json:"samples" koanf:"samples" yaml:"samples"`
}

// PanelConfig is the joystick panel wiring, in CNC.h button order
type PanelConfig struct {
	XMinus   uint32 `json:"x_minus" koanf:"x_minus" yaml:"x_minus"`
	XPlus    uint32 `json:"x_plus" koanf:"x_plus" yaml:"x_plus"`
	YMinus   uint32 `json:"y_minus" koanf:"y_minus" yaml:"y_minus"`
	YPlus    uint32 `json:"y_plus" koanf:"y_plus" yaml:"y_plus"`
	ZMinus   uint32 `json:"z_minus" koanf:"z_minus" yaml:"z_minus"`
	ZPlus    uint32 `json:"z_plus" koanf:"z_plus" yaml:"z_plus"`
	Start    uint32 `json:"start" koanf:"start" yaml:"start"`
	Stop     uint32 `json:"stop" koanf:"stop" yaml:"stop"`
	Invert   bool   `json:"invert" koanf:"invert" yaml:"invert"`
	PullUp   bool   `json:"pull_up" koanf:"pull_up" yaml:"pull_up"`
	Debounce uint8  `json:"debounce" koanf:"debounce" yaml:"debounce"` // Stable samples per change
}

// LinkConfig is the serial link to the controller
type LinkConfig struct {
	Port string `json:"port" koanf:"port" yaml:"port"`
	Baud int    `json:"baud" koanf:"baud" yaml:"baud"`
}

// PendantConfig is the HTTP pendant of the Linux target
type PendantConfig struct {
	Addr     string  `json:"addr" koanf:"addr" yaml:"addr"`
	JogRate  float64 `json:"jog_rate" koanf:"jog_rate" yaml:"jog_rate"` // Motion requests per second
	JogBurst int     `json:"jog_burst" koanf:"jog_burst" yaml:"jog_burst"`
}

// StoreConfig locates the home record
type StoreConfig struct {
	Path   string `json:"path" koanf:"path" yaml:"path"` // File backing the record (Linux)
	Offset int64  `json:"offset" koanf:"offset" yaml:"offset"`
}

// MachineConfig is the complete machine configuration
type MachineConfig struct {
	Axes            AxesConfig    `json:"axes" koanf:"axes" yaml:"axes"`
	Estop           InputConfig   `json:"estop" koanf:"estop" yaml:"estop"`
	SpindleFault    InputConfig   `json:"spindle_fault" koanf:"spindle_fault" yaml:"spindle_fault"`
	SpindleAtSpeed  InputConfig   `json:"spindle_at_speed" koanf:"spindle_at_speed" yaml:"spindle_at_speed"`
	SpindleRequired bool          `json:"spindle_required" koanf:"spindle_required" yaml:"spindle_required"`
	Limits          LimitsConfig  `json:"limits" koanf:"limits" yaml:"limits"`
	Panel           PanelConfig   `json:"panel" koanf:"panel" yaml:"panel"`
	TickHz          uint32        `json:"tick_hz" koanf:"tick_hz" yaml:"tick_hz"`
	HomingTickHz    uint32        `json:"homing_tick_hz" koanf:"homing_tick_hz" yaml:"homing_tick_hz"`
	CycleMS         uint32        `json:"cycle_ms" koanf:"cycle_ms" yaml:"cycle_ms"`
	StepBackend     string        `json:"step_backend" koanf:"step_backend" yaml:"step_backend"`
	Link            LinkConfig    `json:"link" koanf:"link" yaml:"link"`
	Pendant         PendantConfig `json:"pendant" koanf:"pendant" yaml:"pendant"`
	Store           StoreConfig   `json:"store" koanf:"store" yaml:"store"`
	Debug           bool          `json:"debug" koanf:"debug" yaml:"debug"`
}

// Default returns the CNC.h wiring: step/dir on port A lines 22..27, two
// per axis, estop 20, spindle fault 21, joystick 30..37, spindle at speed 38
// and home switches 39..41.
func Default() *MachineConfig {
	return &MachineConfig{
		Axes: AxesConfig{
			X: AxisConfig{StepPin: 22, DirPin: 23, HomeDir: "-"},
			Y: AxisConfig{StepPin: 24, DirPin: 25, HomeDir: "-"},
			Z: AxisConfig{StepPin: 26, DirPin: 27, HomeDir: "+"},
		},
		Estop:          InputConfig{Pin: 20, Invert: true, PullUp: true},
		SpindleFault:   InputConfig{Pin: 21, Invert: true, PullUp: true},
		SpindleAtSpeed: InputConfig{Pin: 38},
		Limits: LimitsConfig{
			X:       InputConfig{Pin: 39, Invert: true, PullUp: true},
			Y:       InputConfig{Pin: 40, Invert: true, PullUp: true},
			Z:       InputConfig{Pin: 41, Invert: true, PullUp: true},
			Samples: 2,
		},
		Panel: PanelConfig{
			XMinus: 30, XPlus: 31, YMinus: 32, YPlus: 33,
			ZMinus: 34, ZPlus: 35, Start: 36, Stop: 37,
			Invert: true, PullUp: true, Debounce: 3,
		},
		TickHz:       2000,
		HomingTickHz: 500,
		CycleMS:      5,
		StepBackend:  BackendLines,
		Link:         LinkConfig{Port: "/dev/ttyACM0", Baud: 250000},
		Pendant:      PendantConfig{Addr: ":8080", JogRate: 20, JogBurst: 5},
		Store:        StoreConfig{Path: "home.rec"},
	}
}

// LoadJSON parses a JSON configuration and applies defaults
func LoadJSON(data []byte) (*MachineConfig, error) {
	var cfg MachineConfig
	if err := json.Unmarshal(data, &cfg); err != nil {
		return nil, err
	}
	ApplyDefaults(&cfg)
	return &cfg, nil
}

// ApplyDefaults fills in missing values. Line numbers are taken as given;
// zero is a valid line.
func ApplyDefaults(cfg *MachineConfig) {
	def := Default()

	if cfg.TickHz == 0 {
		cfg.TickHz = def.TickHz
	}
	if cfg.HomingTickHz == 0 {
		cfg.HomingTickHz = def.HomingTickHz
	}
	if cfg.CycleMS == 0 {
		cfg.CycleMS = def.CycleMS
	}
	if cfg.StepBackend == "" {
		cfg.StepBackend = def.StepBackend
	}
	if cfg.Limits.Samples == 0 {
		cfg.Limits.Samples = 1
	}
	if cfg.Panel.Debounce == 0 {
		cfg.Panel.Debounce = 1
	}
	for _, ax := range []*AxisConfig{&cfg.Axes.X, &cfg.Axes.Y, &cfg.Axes.Z} {
		if ax.HomeDir == "" {
			ax.HomeDir = "-"
		}
	}
	if cfg.Link.Baud == 0 {
		cfg.Link.Baud = def.Link.Baud
	}
	if cfg.Pendant.Addr == "" {
		cfg.Pendant.Addr = def.Pendant.Addr
	}
	if cfg.Pendant.JogRate == 0 {
		cfg.Pendant.JogRate = def.Pendant.JogRate
	}
	if cfg.Pendant.JogBurst == 0 {
		cfg.Pendant.JogBurst = def.Pendant.JogBurst
	}
}

// axes returns the axis configs in AxisID order
func (c *MachineConfig) axes() [core.NumAxes]AxisConfig {
	return [core.NumAxes]AxisConfig{c.Axes.X, c.Axes.Y, c.Axes.Z}
}

// AxisPins returns the output wiring of every axis
func (c *MachineConfig) AxisPins() [core.NumAxes]core.AxisPins {
	var pins [core.NumAxes]core.AxisPins
	for a, ax := range c.axes() {
		pins[a] = core.AxisPins{
			Step:      core.GPIOPin(ax.StepPin),
			Dir:       core.GPIOPin(ax.DirPin),
			InvertDir: ax.InvertDir,
		}
	}
	return pins
}

// HomeDirs returns the direction each axis travels to reach its switch
func (c *MachineConfig) HomeDirs() (core.LimitDirs, error) {
	var dirs core.LimitDirs
	for a, ax := range c.axes() {
		d, ok := core.ParseDirection(ax.HomeDir)
		if !ok {
			return dirs, ErrBadHomeDir
		}
		dirs[a] = d
	}
	return dirs, nil
}

func (in InputConfig) line() core.InputLine {
	return core.InputLine{Pin: core.GPIOPin(in.Pin), ActiveHigh: !in.Invert, PullUp: in.PullUp}
}

// SafetyInputs returns the monitored input wiring
func (c *MachineConfig) SafetyInputs() core.SafetyInputs {
	return core.SafetyInputs{
		Estop:          c.Estop.line(),
		SpindleFault:   c.SpindleFault.line(),
		SpindleAtSpeed: c.SpindleAtSpeed.line(),
		Limit: [core.NumAxes]core.InputLine{
			c.Limits.X.line(),
			c.Limits.Y.line(),
			c.Limits.Z.line(),
		},
		LimitSamples: c.Limits.Samples,
	}
}

// PanelLines returns the panel inputs indexed by core.PanelButton
func (c *MachineConfig) PanelLines() [core.NumPanelButtons]core.InputLine {
	p := c.Panel
	pins := [core.NumPanelButtons]uint32{p.XMinus, p.XPlus, p.YMinus, p.YPlus, p.ZMinus, p.ZPlus, p.Start, p.Stop}
	var lines [core.NumPanelButtons]core.InputLine
	for i, pin := range pins {
		lines[i] = InputConfig{Pin: pin, Invert: p.Invert, PullUp: p.PullUp}.line()
	}
	return lines
}

// Lines returns every configured line, outputs first
func (c *MachineConfig) Lines() []core.GPIOPin {
	var lines []core.GPIOPin
	for _, p := range c.AxisPins() {
		lines = append(lines, p.Step, p.Dir)
	}
	in := c.SafetyInputs()
	lines = append(lines, in.Estop.Pin, in.SpindleFault.Pin, in.SpindleAtSpeed.Pin)
	for _, l := range in.Limit {
		lines = append(lines, l.Pin)
	}
	for _, l := range c.PanelLines() {
		lines = append(lines, l.Pin)
	}
	return lines
}

// Validate rejects shared lines and out-of-range settings
func (c *MachineConfig) Validate() error {
	if err := core.ValidateLines(c.Lines()...); err != nil {
		return err
	}
	if _, err := c.HomeDirs(); err != nil {
		return err
	}
	switch c.StepBackend {
	case BackendSIO, BackendPIO, BackendLines:
	default:
		return ErrBadBackend
	}
	if !core.ValidRate(c.TickHz) || !core.ValidRate(c.HomingTickHz) {
		return core.ErrBadRate
	}
	if c.CycleMS == 0 {
		return ErrBadCycleTime
	}
	return nil
}
