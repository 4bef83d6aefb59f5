package sim

import (
	"sync"

	"cncmotion/core"
)

// Ticker is a core.TickSource that ticks only when Fire is called, so a
// simulation advances in step with its foreground cycles
type Ticker struct {
	mu      sync.Mutex
	handler func()
	hz      uint32
	armed   bool
	fired   uint64
}

// NewTicker creates a disarmed ticker calling handler
func NewTicker(hz uint32, handler func()) (*Ticker, error) {
	if !core.ValidRate(hz) {
		return nil, core.ErrBadRate
	}
	return &Ticker{handler: handler, hz: hz}, nil
}

// TickSource adapts NewTicker to config.TickerFunc
func TickSource(hz uint32, handler func()) (core.TickSource, error) {
	t, err := NewTicker(hz, handler)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func (t *Ticker) Arm() {
	t.mu.Lock()
	t.armed = true
	t.mu.Unlock()
}

// Disarm holds the lock Fire ticks under, so it returns only after an
// in-flight tick
func (t *Ticker) Disarm() {
	t.mu.Lock()
	t.armed = false
	t.mu.Unlock()
}

func (t *Ticker) Armed() bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.armed
}

func (t *Ticker) SetRate(hz uint32) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if t.armed {
		return core.ErrArmed
	}
	if !core.ValidRate(hz) {
		return core.ErrBadRate
	}
	t.hz = hz
	return nil
}

func (t *Ticker) Rate() uint32 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.hz
}

// Fire runs up to n ticks and stops early if disarmed
func (t *Ticker) Fire(n int) {
	for i := 0; i < n; i++ {
		t.mu.Lock()
		if !t.armed {
			t.mu.Unlock()
			return
		}
		t.handler()
		t.fired++
		t.mu.Unlock()
	}
}

// Fired returns the number of ticks run
func (t *Ticker) Fired() uint64 {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.fired
}
