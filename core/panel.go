package core

// Panel input reader
// Polls the eight panel buttons and debounces them into a PanelState.

// PanelReader samples the panel lines once per foreground cycle. A button
// changes state only after its line has read the new level for Debounce
// consecutive samples.
type PanelReader struct {
	lines    LineDriver
	buttons  [NumPanelButtons]InputLine
	debounce uint8

	state  PanelState
	counts [NumPanelButtons]uint8
}

// NewPanelReader configures the button lines. debounce 0 is treated as 1.
func NewPanelReader(lines LineDriver, buttons [NumPanelButtons]InputLine, debounce uint8) (*PanelReader, error) {
	pins := make([]GPIOPin, 0, NumPanelButtons)
	for _, b := range buttons {
		pins = append(pins, b.Pin)
	}
	if err := ValidateLines(pins...); err != nil {
		return nil, err
	}
	for _, b := range buttons {
		var err error
		if b.PullUp {
			err = lines.ConfigureInputPullUp(b.Pin)
		} else {
			err = lines.ConfigureInputPullDown(b.Pin)
		}
		if err != nil {
			return nil, err
		}
	}
	if debounce == 0 {
		debounce = 1
	}
	return &PanelReader{lines: lines, buttons: buttons, debounce: debounce}, nil
}

// Read samples every button and returns the debounced state
func (p *PanelReader) Read() PanelState {
	for i, b := range p.buttons {
		btn := PanelButton(i)
		pressed := p.lines.ReadPin(b.Pin) == b.ActiveHigh
		if pressed == p.state.Held(btn) {
			p.counts[i] = 0
			continue
		}
		p.counts[i]++
		if p.counts[i] < p.debounce {
			continue
		}
		p.counts[i] = 0
		if pressed {
			p.state = p.state.With(btn)
		} else {
			p.state = p.state.Without(btn)
		}
	}
	return p.state
}

// State returns the last debounced state
func (p *PanelReader) State() PanelState {
	return p.state
}
