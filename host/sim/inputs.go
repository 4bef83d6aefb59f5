package sim

import (
	"errors"
	"sort"
	"strings"

	"cncmotion/core"
)

var ErrUnknownInput = errors.New("unknown input")

// Inputs maps operator-facing input names to simulated lines and drives
// them by asserted state, honouring each line's active level
type Inputs struct {
	lines *Lines
	named map[string]core.InputLine
}

// NewInputs names the safety inputs ("estop", "spindle_fault",
// "spindle_at_speed", "limit_x".."limit_z") and the panel buttons ("x-",
// "x+", ... "start", "stop")
func NewInputs(lines *Lines, safety core.SafetyInputs, panel [core.NumPanelButtons]core.InputLine) *Inputs {
	named := map[string]core.InputLine{
		"estop":            safety.Estop,
		"spindle_fault":    safety.SpindleFault,
		"spindle_at_speed": safety.SpindleAtSpeed,
	}
	for a := core.AxisID(0); a < core.NumAxes; a++ {
		named["limit_"+strings.ToLower(a.String())] = safety.Limit[a]
	}
	for b := core.PanelButton(0); b < core.NumPanelButtons; b++ {
		named[b.String()] = panel[b]
	}
	return &Inputs{lines: lines, named: named}
}

// Names returns the input names in sorted order
func (in *Inputs) Names() []string {
	names := make([]string, 0, len(in.named))
	for n := range in.named {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}

// Set asserts or releases a named input
func (in *Inputs) Set(name string, asserted bool) error {
	l, ok := in.named[name]
	if !ok {
		return ErrUnknownInput
	}
	return in.lines.Drive(l.Pin, asserted == l.ActiveHigh)
}

// Asserted reports whether a named input is currently asserted
func (in *Inputs) Asserted(name string) (bool, error) {
	l, ok := in.named[name]
	if !ok {
		return false, ErrUnknownInput
	}
	return in.lines.ReadPin(l.Pin) == l.ActiveHigh, nil
}
