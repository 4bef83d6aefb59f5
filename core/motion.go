package core

// Motion enable controller
// The single gate through which motion starts and stops. All methods run in
// the foreground; the tick source is disarmed around every write to axis
// direction.

// Controller arms and disarms the tick source driving a PulseGenerator
type Controller struct {
	monitor *SafetyMonitor
	gen     *PulseGenerator
	ticker  TickSource

	lastFault FaultCode // Fault of the last rejection or enforced stop
}

// NewController wires the monitor, generator and tick source together
func NewController(monitor *SafetyMonitor, gen *PulseGenerator, ticker TickSource) *Controller {
	return &Controller{monitor: monitor, gen: gen, ticker: ticker}
}

// currentFlags is the last foreground sample with a fresh estop read
func (c *Controller) currentFlags() SafetyFlags {
	flags := c.monitor.Last()
	flags.Estop = flags.Estop || c.monitor.EstopActive()
	return flags
}

// RequestMove starts or continues travel of one axis. It returns FaultNone
// when the axis is moving, otherwise the fault that blocked it; a rejected
// request leaves every axis as it was.
func (c *Controller) RequestMove(axis AxisID, dir Direction) FaultCode {
	if !axis.Valid() || dir == DirUnset {
		return FaultNone
	}

	// A latched estop needs an explicit stop before anything moves again
	if c.gen.Halted() && c.ticker.Armed() {
		c.StopAll()
		c.reject(axis, FaultEstopTripped)
		return FaultEstopTripped
	}

	motion := c.gen.Motion()
	motion[axis] = AxisMotion{Active: true, Dir: dir}
	if ok, f := c.monitor.Evaluate(c.currentFlags(), motion); !ok {
		c.reject(axis, f)
		return f
	}

	if c.ticker.Armed() && c.gen.Active(axis) && c.gen.Direction(axis) == dir {
		return FaultNone
	}

	c.ticker.Disarm()
	if c.gen.Direction(axis) != dir {
		c.gen.FinishPulse(axis)
		c.gen.SetDirection(axis, dir)
	}
	prev := c.gen.Active(axis)
	c.gen.SetActive(axis, true)

	if ok, f := c.monitor.Evaluate(c.currentFlags(), c.gen.Motion()); !ok {
		c.gen.SetActive(axis, prev)
		c.StopAll()
		c.reject(axis, f)
		return f
	}

	c.gen.Reset()
	c.ticker.Arm()
	c.lastFault = FaultNone
	RecordEvent(EvtArm, uint8(axis), uint32(dir), c.ticker.Rate())
	return FaultNone
}

func (c *Controller) reject(axis AxisID, f FaultCode) {
	c.lastFault = f
	RecordEvent(EvtReject, uint8(axis), uint32(f), 0)
}

// StopAll disarms the tick source, then clears every step line. On return
// no axis is mid-pulse and all axis state is reset. Calling it while already
// stopped leaves the step lines low and changes nothing else.
func (c *Controller) StopAll() {
	wasArmed := c.ticker.Armed()
	c.ticker.Disarm()
	c.gen.Halt()
	c.gen.Reset()
	for a := AxisID(0); a < NumAxes; a++ {
		c.gen.SetActive(a, false)
		c.gen.ClearDirection(a)
	}
	if wasArmed {
		RecordEvent(EvtDisarm, 0, c.gen.Pulses(), 0)
	}
}

// StopAxis stops one axis and leaves the others running. When it was the
// last active axis, or the remaining motion is no longer permitted, the
// whole controller is stopped.
func (c *Controller) StopAxis(axis AxisID) {
	if !axis.Valid() || !c.gen.Active(axis) {
		return
	}
	others := false
	for a := AxisID(0); a < NumAxes; a++ {
		if a != axis && c.gen.Active(a) {
			others = true
		}
	}
	if !others {
		c.StopAll()
		return
	}

	wasArmed := c.ticker.Armed()
	c.ticker.Disarm()
	c.gen.FinishPulse(axis)
	c.gen.SetActive(axis, false)
	c.gen.ClearDirection(axis)
	if !wasArmed {
		return
	}
	if ok, f := c.monitor.Evaluate(c.currentFlags(), c.gen.Motion()); !ok {
		c.StopAll()
		c.lastFault = f
		RecordEvent(EvtEnforce, uint8(axis), uint32(f), 0)
		return
	}
	c.ticker.Arm()
}

// Enforce is the per-cycle safety re-poll. Any fault against the current
// motion, or an estop latched by the tick task, stops everything.
func (c *Controller) Enforce(flags SafetyFlags) FaultCode {
	ok, f := c.monitor.Evaluate(flags, c.gen.Motion())
	if c.gen.Halted() && f == FaultNone {
		ok, f = false, FaultEstopTripped
	}
	if !ok && (c.ticker.Armed() || c.gen.AnyActive()) {
		c.StopAll()
		c.lastFault = f
		RecordEvent(EvtEnforce, 0, uint32(f), 0)
	}
	return f
}

// SetRate changes the tick rate, re-arming if motion was running
func (c *Controller) SetRate(hz uint32) error {
	if hz == c.ticker.Rate() {
		return nil
	}
	wasArmed := c.ticker.Armed()
	c.ticker.Disarm()
	err := c.ticker.SetRate(hz)
	if wasArmed {
		c.ticker.Arm()
	}
	if err == nil {
		RecordEvent(EvtRateChange, 0, hz, 0)
	}
	return err
}

// Rate returns the tick rate
func (c *Controller) Rate() uint32 {
	return c.ticker.Rate()
}

// IsArmed reports whether the tick source is running
func (c *Controller) IsArmed() bool {
	return c.ticker.Armed()
}

// LastFault returns the fault of the last rejected request or enforced
// stop. A successful arm clears it.
func (c *Controller) LastFault() FaultCode {
	return c.lastFault
}

// Active reports whether an axis has a move request
func (c *Controller) Active(axis AxisID) bool {
	return c.gen.Active(axis)
}

// Position returns the logical step count of an axis
func (c *Controller) Position(axis AxisID) int64 {
	return c.gen.Position(axis)
}

// Positions returns all axis positions, truncated to the record width
func (c *Controller) Positions() HomeCoordinates {
	var h HomeCoordinates
	for a := AxisID(0); a < NumAxes; a++ {
		h.Set(a, int32(c.gen.Position(a)))
	}
	return h
}

// SetPosition overwrites one axis position
func (c *Controller) SetPosition(axis AxisID, pos int64) {
	c.gen.SetPosition(axis, pos)
}

// SetPositions seeds every axis position from a home record
func (c *Controller) SetPositions(h HomeCoordinates) {
	for a := AxisID(0); a < NumAxes; a++ {
		c.gen.SetPosition(a, int64(h.Get(a)))
	}
}

// Monitor returns the safety monitor the controller consults
func (c *Controller) Monitor() *SafetyMonitor {
	return c.monitor
}
