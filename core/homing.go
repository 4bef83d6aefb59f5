package core

// Homing state machine
// Auto mode seeks X, Y then Z toward their home switches at a reduced tick
// rate. Manual mode lets the operator jog and confirms the current position
// as zero.

import "errors"

var (
	ErrNotIdle         = errors.New("homing already in progress")
	ErrNotManualHoming = errors.New("not in manual homing")
	ErrUnknownHomeMode = errors.New("unknown homing mode")
)

// HomingState is the state of the homing sequence
type HomingState uint8

const (
	HomeIdle HomingState = iota
	HomeSeekingX
	HomeSeekingY
	HomeSeekingZ
	HomeManual
	HomeDone
	HomeAborted
)

func (s HomingState) String() string {
	switch s {
	case HomeIdle:
		return "idle"
	case HomeSeekingX:
		return "seeking_x"
	case HomeSeekingY:
		return "seeking_y"
	case HomeSeekingZ:
		return "seeking_z"
	case HomeManual:
		return "manual"
	case HomeDone:
		return "done"
	case HomeAborted:
		return "aborted"
	}
	return "unknown"
}

// Seeking reports whether s is one of the auto seek states
func (s HomingState) Seeking() bool {
	return s >= HomeSeekingX && s <= HomeSeekingZ
}

// seekAxis returns the axis sought in a seek state
func (s HomingState) seekAxis() AxisID {
	return AxisID(s - HomeSeekingX)
}

// HomingMode selects the homing procedure
type HomingMode uint8

const (
	HomeModeAuto HomingMode = iota
	HomeModeManual
)

// ParseHomingMode accepts "auto" and "manual"
func ParseHomingMode(s string) (HomingMode, error) {
	switch s {
	case "auto":
		return HomeModeAuto, nil
	case "manual":
		return HomeModeManual, nil
	}
	return 0, ErrUnknownHomeMode
}

// Homing sequences the homing procedure through the Controller
type Homing struct {
	ctl      *Controller
	homeDirs LimitDirs
	homingHz uint32

	state   HomingState
	jogHz   uint32 // Rate restored when seeking ends
	result  HomeCoordinates
	aborted FaultCode // Fault that caused the last abort
}

// NewHoming creates an idle state machine. homeDirs gives the direction of
// each home switch; DirUnset is treated as negative.
func NewHoming(ctl *Controller, homeDirs LimitDirs, homingHz uint32) *Homing {
	for a := range homeDirs {
		if homeDirs[a] == DirUnset {
			homeDirs[a] = DirNegative
		}
	}
	return &Homing{ctl: ctl, homeDirs: homeDirs, homingHz: homingHz}
}

// State returns the current state
func (h *Homing) State() HomingState {
	return h.state
}

// Active reports whether a homing run is in progress
func (h *Homing) Active() bool {
	return h.state.Seeking() || h.state == HomeManual
}

// Homed reports whether the last run completed
func (h *Homing) Homed() bool {
	return h.state == HomeDone
}

// Result returns the home record of the last completed run
func (h *Homing) Result() (HomeCoordinates, bool) {
	return h.result, h.state == HomeDone
}

// AbortFault returns the fault that aborted the last run, FaultNone for an
// operator abort
func (h *Homing) AbortFault() FaultCode {
	return h.aborted
}

// Start begins a run from Idle, Done or Aborted
func (h *Homing) Start(mode HomingMode) error {
	if h.Active() {
		return ErrNotIdle
	}
	h.ctl.StopAll()
	h.result = HomeCoordinates{}
	h.aborted = FaultNone

	switch mode {
	case HomeModeAuto:
		h.jogHz = h.ctl.Rate()
		if err := h.ctl.SetRate(h.homingHz); err != nil {
			return err
		}
		h.setState(HomeSeekingX)
	case HomeModeManual:
		h.setState(HomeManual)
	default:
		return ErrUnknownHomeMode
	}
	return nil
}

// Update advances the seek states once per foreground cycle. Faults are
// judged with no axis in motion, so only estop and spindle faults abort; the
// sought axis's own switch ends its seek.
func (h *Homing) Update(flags SafetyFlags) {
	if !h.state.Seeking() {
		return
	}

	if ok, f := h.ctl.Monitor().Evaluate(flags, MotionSet{}); !ok {
		h.abort(f)
		return
	}

	axis := h.state.seekAxis()
	if flags.Limit[axis] {
		h.ctl.StopAll()
		RecordEvent(EvtHomeHit, uint8(axis), uint32(h.ctl.Position(axis)), 0)
		h.ctl.SetPosition(axis, 0)
		if h.state == HomeSeekingZ {
			h.finish()
			return
		}
		h.setState(h.state + 1)
		return
	}

	if f := h.ctl.RequestMove(axis, h.homeDirs[axis]); f != FaultNone {
		h.abort(f)
	}
}

// Confirm completes manual homing, taking the current position as zero
func (h *Homing) Confirm() error {
	if h.state != HomeManual {
		return ErrNotManualHoming
	}
	h.ctl.StopAll()
	for a := AxisID(0); a < NumAxes; a++ {
		h.ctl.SetPosition(a, 0)
	}
	h.finish()
	return nil
}

// Abort stops an active run at operator request
func (h *Homing) Abort() {
	if h.Active() {
		h.abort(FaultNone)
	}
}

func (h *Homing) abort(f FaultCode) {
	h.ctl.StopAll()
	h.restoreRate()
	h.aborted = f
	h.result = HomeCoordinates{}
	h.setState(HomeAborted)
}

func (h *Homing) finish() {
	h.restoreRate()
	h.result = h.ctl.Positions()
	h.setState(HomeDone)
}

func (h *Homing) restoreRate() {
	if h.state.Seeking() && h.jogHz != 0 {
		if err := h.ctl.SetRate(h.jogHz); err != nil {
			DebugAsync("[HOME] rate restore failed: " + err.Error())
		}
	}
}

func (h *Homing) setState(s HomingState) {
	h.state = s
	RecordEvent(EvtHomeState, 0, uint32(s), 0)
}
