package core

import "testing"

// mockLines is a test LineDriver backed by a map of line levels
type mockLines struct {
	levels     map[GPIOPin]bool
	outputs    map[GPIOPin]bool
	pullUps    map[GPIOPin]bool
	writes     int
	failConfig GPIOPin
}

func newMockLines() *mockLines {
	return &mockLines{
		levels:     make(map[GPIOPin]bool),
		outputs:    make(map[GPIOPin]bool),
		pullUps:    make(map[GPIOPin]bool),
		failConfig: 0xFFFF,
	}
}

func (m *mockLines) configure(pin GPIOPin) error {
	if pin == m.failConfig {
		return errTestConfig
	}
	return nil
}

func (m *mockLines) ConfigureOutput(pin GPIOPin) error {
	m.outputs[pin] = true
	return m.configure(pin)
}

func (m *mockLines) ConfigureInputPullUp(pin GPIOPin) error {
	m.pullUps[pin] = true
	return m.configure(pin)
}

func (m *mockLines) ConfigureInputPullDown(pin GPIOPin) error {
	return m.configure(pin)
}

func (m *mockLines) SetPin(pin GPIOPin, value bool) {
	m.levels[pin] = value
	m.writes++
}

func (m *mockLines) ReadPin(pin GPIOPin) bool {
	return m.levels[pin]
}

type testError string

func (e testError) Error() string { return string(e) }

const errTestConfig = testError("configure failed")

// traceEvent is one recorded port operation
type traceEvent struct {
	op   string
	axis AxisID
	dir  Direction
}

// tracePort records port operations and counts step double-asserts
type tracePort struct {
	high        [NumAxes]bool
	dirs        [NumAxes]Direction
	events      []traceEvent
	sets        [NumAxes]int
	doubleSets  int
	clearAllOps int
}

func (p *tracePort) SetStep(axis AxisID) {
	if p.high[axis] {
		p.doubleSets++
	}
	p.high[axis] = true
	p.sets[axis]++
	p.events = append(p.events, traceEvent{op: "set", axis: axis, dir: p.dirs[axis]})
}

func (p *tracePort) ClearStep(axis AxisID) {
	p.high[axis] = false
	p.events = append(p.events, traceEvent{op: "clear", axis: axis})
}

func (p *tracePort) SetDirection(axis AxisID, dir Direction) {
	p.dirs[axis] = dir
	p.events = append(p.events, traceEvent{op: "dir", axis: axis, dir: dir})
}

func (p *tracePort) ClearAllSteps() {
	p.high = [NumAxes]bool{}
	p.clearAllOps++
	p.events = append(p.events, traceEvent{op: "clear_all"})
}

func (p *tracePort) anyHigh() bool {
	for _, h := range p.high {
		if h {
			return true
		}
	}
	return false
}

// manualTicker is a TickSource that ticks only when Fire is called
type manualTicker struct {
	handler func()
	hz      uint32
	armed   bool
	arms    int
}

func (m *manualTicker) Arm() {
	if !m.armed {
		m.arms++
	}
	m.armed = true
}

func (m *manualTicker) Disarm() { m.armed = false }

func (m *manualTicker) Armed() bool { return m.armed }

func (m *manualTicker) Rate() uint32 { return m.hz }

func (m *manualTicker) SetRate(hz uint32) error {
	if m.armed {
		return ErrArmed
	}
	if !ValidRate(hz) {
		return ErrBadRate
	}
	m.hz = hz
	return nil
}

// Fire runs n ticks if armed
func (m *manualTicker) Fire(n int) {
	for i := 0; i < n && m.armed; i++ {
		m.handler()
	}
}

// Test wiring: distinct step, direction and input lines
var (
	testPins = [NumAxes]AxisPins{
		{Step: 2, Dir: 5},
		{Step: 3, Dir: 6},
		{Step: 4, Dir: 7},
	}
	testInputs = SafetyInputs{
		Estop:          InputLine{Pin: 14, ActiveHigh: true},
		SpindleFault:   InputLine{Pin: 15, ActiveHigh: true},
		SpindleAtSpeed: InputLine{Pin: 16, ActiveHigh: true},
		Limit: [NumAxes]InputLine{
			{Pin: 9, ActiveHigh: true},
			{Pin: 10, ActiveHigh: true},
			{Pin: 11, ActiveHigh: true},
		},
	}
	testLimitDirs = LimitDirs{DirNegative, DirNegative, DirNegative}
)

// rig is a controller wired to mock hardware
type rig struct {
	lines   *mockLines
	port    *tracePort
	monitor *SafetyMonitor
	gen     *PulseGenerator
	ticker  *manualTicker
	ctl     *Controller
}

func newRig(t *testing.T) *rig {
	t.Helper()
	r := &rig{lines: newMockLines(), port: &tracePort{}}
	var err error
	r.monitor, err = NewSafetyMonitor(r.lines, testInputs, testLimitDirs)
	if err != nil {
		t.Fatalf("NewSafetyMonitor: %v", err)
	}
	r.monitor.MarkInitialized()
	r.monitor.Sample()
	r.gen = NewPulseGenerator(r.port, r.monitor)
	r.ticker = &manualTicker{handler: r.gen.Tick, hz: 1000}
	r.ctl = NewController(r.monitor, r.gen, r.ticker)
	return r
}

// set drives an input line and resamples
func (r *rig) set(pin GPIOPin, level bool) SafetyFlags {
	r.lines.levels[pin] = level
	return r.monitor.Sample()
}
