//go:build !tinygo

package core

import (
	"runtime"
	"time"
)

// GoroutineTicker is the hosted tick task: one goroutine locked to its own
// OS thread, woken by a time.Ticker. Disarm waits for the goroutine to exit,
// which orders every tick before the foreground's next write.
type GoroutineTicker struct {
	handler func()
	hz      uint32
	armed   bool
	stop    chan struct{}
	done    chan struct{}
	start   time.Time
}

// NewGoroutineTicker creates a disarmed ticker calling handler at hz
func NewGoroutineTicker(hz uint32, handler func()) (*GoroutineTicker, error) {
	if !ValidRate(hz) {
		return nil, ErrBadRate
	}
	return &GoroutineTicker{handler: handler, hz: hz, start: time.Now()}, nil
}

func (t *GoroutineTicker) Arm() {
	if t.armed {
		return
	}
	t.armed = true
	t.stop = make(chan struct{})
	t.done = make(chan struct{})
	go t.run(time.Second/time.Duration(t.hz), t.stop, t.done)
}

func (t *GoroutineTicker) run(period time.Duration, stop, done chan struct{}) {
	runtime.LockOSThread()
	defer runtime.UnlockOSThread()
	defer close(done)

	tk := time.NewTicker(period)
	defer tk.Stop()
	for {
		select {
		case <-stop:
			return
		case now := <-tk.C:
			select {
			case <-stop:
				return
			default:
			}
			SetTime(uint32(now.Sub(t.start) / time.Microsecond))
			t.handler()
		}
	}
}

func (t *GoroutineTicker) Disarm() {
	if !t.armed {
		return
	}
	t.armed = false
	close(t.stop)
	<-t.done
}

func (t *GoroutineTicker) Armed() bool {
	return t.armed
}

func (t *GoroutineTicker) SetRate(hz uint32) error {
	if t.armed {
		return ErrArmed
	}
	if !ValidRate(hz) {
		return ErrBadRate
	}
	t.hz = hz
	return nil
}

func (t *GoroutineTicker) Rate() uint32 {
	return t.hz
}
