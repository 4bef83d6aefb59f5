package core

// Foreground composition
// Machine runs one cooperative control cycle at a time and is the only
// writer of controller, homing and jog state. Other goroutines reach it
// through Submit and Status.

import (
	"errors"
	"sync"
)

var (
	ErrQueueFull   = errors.New("request queue full")
	ErrNoDirection = errors.New("jog direction not set")
)

// DefaultRequestQueue is the request channel depth when none is configured
const DefaultRequestQueue = 16

// RequestKind selects what a remote Request does
type RequestKind uint8

const (
	ReqStatus RequestKind = iota
	ReqJog
	ReqRelease
	ReqStopAll
	ReqHome
	ReqHomeConfirm
	ReqSetFault
)

// Request is a remote intent processed at the start of the next cycle.
// Done, when set, is called from the foreground after the cycle with the
// fresh status and the request's error.
type Request struct {
	Kind   RequestKind
	Axis   AxisID
	Dir    Direction
	Choice MenuChoice
	Fault  FaultCode
	Done   func(Status, error)
}

// Status is a snapshot of the machine published once per cycle
type Status struct {
	Fault     FaultCode
	Message   string
	Armed     bool
	Homing    HomingState
	Homed     bool
	Positions HomeCoordinates
	Active    [NumAxes]bool
	Rate      uint32
	Pulses    uint32
}

// MachineParts are the collaborators a Machine is built from
type MachineParts struct {
	Monitor   *SafetyMonitor
	Generator *PulseGenerator
	Ticker    TickSource
	Store     HomeStore // nil keeps the record in memory
	Display   Display   // nil disables display output
	HomingHz  uint32
	QueueSize int
}

// Machine is the foreground control loop body
type Machine struct {
	monitor  *SafetyMonitor
	gen      *PulseGenerator
	ctl      *Controller
	homing   *Homing
	jog      *Jog
	reporter *Reporter
	store    HomeStore
	display  Display

	requests chan Request
	remote   PanelState // Jog buttons held by remote clients
	loaded   bool       // Positions seeded from the store
	wasArmed bool
	wasHomed bool

	mu     sync.Mutex
	status Status
}

// NewMachine assembles a machine from its parts
func NewMachine(p MachineParts) *Machine {
	if p.Store == nil {
		p.Store = &MemoryStore{}
	}
	if p.QueueSize <= 0 {
		p.QueueSize = DefaultRequestQueue
	}
	if p.HomingHz == 0 {
		p.HomingHz = p.Ticker.Rate()
	}
	ctl := NewController(p.Monitor, p.Generator, p.Ticker)
	return &Machine{
		monitor:  p.Monitor,
		gen:      p.Generator,
		ctl:      ctl,
		homing:   NewHoming(ctl, p.Monitor.LimitDirs(), p.HomingHz),
		jog:      NewJog(ctl),
		reporter: NewReporter(p.Display),
		store:    p.Store,
		display:  p.Display,
		requests: make(chan Request, p.QueueSize),
	}
}

// Init clears the NoInit condition once the hardware is configured and
// presents the homing menu
func (m *Machine) Init() {
	m.ctl.StopAll()
	m.monitor.MarkInitialized()
	m.reporter.Invalidate()
	if m.display != nil {
		m.display.ShowMenu(MenuItems(), 0)
	}
	m.publish(m.monitor.Fault(m.monitor.Sample(), m.gen.Motion()))
}

// SelectHome acts on a homing menu choice
func (m *Machine) SelectHome(choice MenuChoice) error {
	switch choice {
	case MenuLoadFromStorage:
		if m.homing.Active() {
			return ErrNotIdle
		}
		h, err := m.store.LoadHome()
		if err != nil {
			return err
		}
		m.ctl.StopAll()
		m.ctl.SetPositions(h)
		m.loaded = true
		m.showPosition()
		return nil
	case MenuSetHomeManual:
		if err := m.homing.Start(HomeModeManual); err != nil {
			return err
		}
	case MenuSetHomeAuto:
		if err := m.homing.Start(HomeModeAuto); err != nil {
			return err
		}
	default:
		return ErrUnknownHomeMode
	}
	m.loaded = false
	return nil
}

// Submit queues a remote request without blocking
func (m *Machine) Submit(req Request) error {
	select {
	case m.requests <- req:
		return nil
	default:
		return ErrQueueFull
	}
}

// Status returns the snapshot published by the last cycle
func (m *Machine) Status() Status {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.status
}

// Cycle runs one foreground iteration with the debounced panel state
func (m *Machine) Cycle(panel PanelState) {
	type completion struct {
		done func(Status, error)
		err  error
	}
	var pending []completion
	for drained := false; !drained; {
		select {
		case req := <-m.requests:
			err := m.apply(req)
			if req.Done != nil {
				pending = append(pending, completion{req.Done, err})
			}
		default:
			drained = true
		}
	}

	flags := m.monitor.Sample()
	m.homing.Update(flags)

	state := panel | m.remote
	if m.homing.State().Seeking() {
		if in := m.jog.Observe(state); in.Stop {
			m.homing.Abort()
		}
	} else {
		in := m.jog.Update(state)
		if in.Start && m.homing.State() == HomeManual {
			if err := m.homing.Confirm(); err != nil {
				DebugAsync("[HOME] confirm failed: " + err.Error())
			}
		}
	}

	fault := m.ctl.Enforce(flags)
	fault = worst(fault, m.ctl.LastFault())
	fault = worst(fault, m.monitor.ExternalFault())
	m.reporter.Report(fault)

	m.checkpoint()
	m.publish(fault)

	if len(pending) > 0 {
		st := m.Status()
		for _, c := range pending {
			c.done(st, c.err)
		}
	}
}

func (m *Machine) apply(req Request) error {
	switch req.Kind {
	case ReqStatus:
		return nil
	case ReqJog:
		if !req.Axis.Valid() {
			return ErrUnknownAxis
		}
		if req.Dir != DirPositive && req.Dir != DirNegative {
			return ErrNoDirection
		}
		m.remote = m.releaseAxis(m.remote, req.Axis).With(JogButton(req.Axis, req.Dir))
		return nil
	case ReqRelease:
		if !req.Axis.Valid() {
			return ErrUnknownAxis
		}
		m.remote = m.releaseAxis(m.remote, req.Axis)
		return nil
	case ReqStopAll:
		m.remote = 0
		m.homing.Abort()
		m.ctl.StopAll()
		return nil
	case ReqHome:
		return m.SelectHome(req.Choice)
	case ReqHomeConfirm:
		return m.homing.Confirm()
	case ReqSetFault:
		return m.monitor.SetExternalFault(req.Fault)
	}
	return ErrUnknownCommand
}

func (m *Machine) releaseAxis(s PanelState, axis AxisID) PanelState {
	return s.Without(JogButton(axis, DirNegative)).Without(JogButton(axis, DirPositive))
}

// checkpoint saves the home record when a run completes and the current
// positions whenever motion stops on a homed machine
func (m *Machine) checkpoint() {
	armed := m.ctl.IsArmed()
	homedNow := m.homing.Homed()

	var err error
	switch {
	case homedNow && !m.wasHomed:
		h, _ := m.homing.Result()
		err = m.store.SaveHome(h)
		m.showPosition()
	case m.wasArmed && !armed:
		if m.Homed() {
			err = m.store.SaveHome(m.ctl.Positions())
		}
		m.showPosition()
	}
	if err != nil {
		DebugAsync("[STORE] save failed: " + err.Error())
	}

	m.wasArmed = armed
	m.wasHomed = homedNow
}

func (m *Machine) showPosition() {
	if m.display != nil {
		m.display.ShowPosition(m.ctl.Positions())
	}
}

func (m *Machine) publish(fault FaultCode) {
	st := Status{
		Fault:     fault,
		Message:   Message(fault),
		Armed:     m.ctl.IsArmed(),
		Homing:    m.homing.State(),
		Homed:     m.Homed(),
		Positions: m.ctl.Positions(),
		Rate:      m.ctl.Rate(),
		Pulses:    m.gen.Pulses(),
	}
	for a := AxisID(0); a < NumAxes; a++ {
		st.Active[a] = m.ctl.Active(a)
	}
	m.mu.Lock()
	m.status = st
	m.mu.Unlock()
}

// Homed reports whether positions are referenced, by a homing run or a
// stored record
func (m *Machine) Homed() bool {
	return m.homing.Homed() || m.loaded
}

// Controller returns the motion controller
func (m *Machine) Controller() *Controller {
	return m.ctl
}

// Homing returns the homing state machine
func (m *Machine) Homing() *Homing {
	return m.homing
}
