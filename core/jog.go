package core

// Jog/input handling
// Turns debounced panel button state into continuous move requests.

// PanelButton is one of the eight panel inputs
type PanelButton uint8

const (
	ButtonXMinus PanelButton = iota
	ButtonXPlus
	ButtonYMinus
	ButtonYPlus
	ButtonZMinus
	ButtonZPlus
	ButtonStart
	ButtonStop

	NumPanelButtons = 8
)

var buttonNames = [NumPanelButtons]string{"x-", "x+", "y-", "y+", "z-", "z+", "start", "stop"}

func (b PanelButton) String() string {
	if b < NumPanelButtons {
		return buttonNames[b]
	}
	return "?"
}

// JogButton returns the button that jogs axis in dir
func JogButton(axis AxisID, dir Direction) PanelButton {
	b := PanelButton(axis) * 2
	if dir == DirPositive {
		b++
	}
	return b
}

// PanelState is a bitmask of held buttons, bit n = PanelButton n
type PanelState uint8

// Held reports whether b is held
func (s PanelState) Held(b PanelButton) bool {
	return s&(1<<b) != 0
}

// With returns s with b held
func (s PanelState) With(b PanelButton) PanelState {
	return s | 1<<b
}

// Without returns s with b released
func (s PanelState) Without(b PanelButton) PanelState {
	return s &^ (1 << b)
}

// AxisDirection returns the held direction of an axis, or DirUnset when
// neither or both of its buttons are held
func (s PanelState) AxisDirection(axis AxisID) Direction {
	minus := s.Held(JogButton(axis, DirNegative))
	plus := s.Held(JogButton(axis, DirPositive))
	switch {
	case plus && !minus:
		return DirPositive
	case minus && !plus:
		return DirNegative
	}
	return DirUnset
}

// Poll returns the first axis with exactly one direction held
func Poll(s PanelState) (AxisID, Direction, bool) {
	for a := AxisID(0); a < NumAxes; a++ {
		if d := s.AxisDirection(a); d != DirUnset {
			return a, d, true
		}
	}
	return 0, DirUnset, false
}

// Intents are the start/stop edges seen in one update
type Intents struct {
	Start bool
	Stop  bool
}

// Jog maps held panel directions to Controller requests
type Jog struct {
	ctl       *Controller
	prev      PanelState
	inhibited bool
	moving    [NumAxes]Direction
	blocked   [NumAxes]bool // Rejected or stopped; waits for release
}

// NewJog creates a jog handler over ctl
func NewJog(ctl *Controller) *Jog {
	return &Jog{ctl: ctl}
}

// Observe records the panel state and returns its edges without moving
// anything. Held directions are blocked until released.
func (j *Jog) Observe(s PanelState) Intents {
	in := j.edges(s)
	for a := AxisID(0); a < NumAxes; a++ {
		j.moving[a] = DirUnset
		j.blocked[a] = s.AxisDirection(a) != DirUnset
	}
	j.prev = s
	return in
}

func (j *Jog) edges(s PanelState) Intents {
	return Intents{
		Start: s.Held(ButtonStart) && !j.prev.Held(ButtonStart),
		Stop:  s.Held(ButtonStop) && !j.prev.Held(ButtonStop),
	}
}

// Update applies one panel snapshot. A Stop edge stops everything and
// inhibits jogging until a Start edge. A held direction keeps its axis moving;
// releasing it stops that axis only.
func (j *Jog) Update(s PanelState) Intents {
	in := j.edges(s)
	if in.Stop {
		j.ctl.StopAll()
		j.inhibited = true
		j.moving = [NumAxes]Direction{}
	}
	if in.Start {
		j.inhibited = false
	}

	for a := AxisID(0); a < NumAxes; a++ {
		dir := s.AxisDirection(a)
		if dir == DirUnset {
			if j.moving[a] != DirUnset {
				j.ctl.StopAxis(a)
				j.moving[a] = DirUnset
			}
			j.blocked[a] = false
			continue
		}
		if j.inhibited || j.blocked[a] {
			continue
		}
		if j.moving[a] == dir && !j.ctl.Active(a) {
			// Stopped by enforcement or another caller
			j.moving[a] = DirUnset
			j.blocked[a] = true
			continue
		}
		if f := j.ctl.RequestMove(a, dir); f != FaultNone {
			j.moving[a] = DirUnset
			j.blocked[a] = true
			continue
		}
		j.moving[a] = dir
	}

	j.prev = s
	return in
}

// Inhibited reports whether a Stop edge is waiting for Start
func (j *Jog) Inhibited() bool {
	return j.inhibited
}
