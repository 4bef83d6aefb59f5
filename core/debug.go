package core

import "sync/atomic"

// DebugWriter is a function type for writing debug messages
type DebugWriter func(string)

// MotionEvent captures an arm/disarm/fault/home event for post-mortem analysis
type MotionEvent struct {
	EventType uint8  // Event type code
	Axis      uint8  // Axis, when the event concerns one
	Clock     uint32 // System clock at event
	Value1    uint32 // Context-dependent value
	Value2    uint32 // Context-dependent value
}

// eventSlot holds one MotionEvent in atomic words so the tick task can write
// while the foreground reads. seq is the write sequence plus one once the
// slot is complete and zero while it is being written.
type eventSlot struct {
	seq    atomic.Uint32
	kind   atomic.Uint32 // event type | axis<<8
	clock  atomic.Uint32
	value1 atomic.Uint32
	value2 atomic.Uint32
}

// Event type codes
const (
	EvtArm        = 1 // Tick source armed
	EvtDisarm     = 2 // Tick source disarmed by StopAll
	EvtEstopHalt  = 3 // Tick task latched an emergency stop
	EvtReject     = 4 // Move request rejected (v1 = fault)
	EvtEnforce    = 5 // Per-cycle enforcement stopped motion (v1 = fault)
	EvtHomeHit    = 6 // Home switch hit, axis zeroed (v1 = old position)
	EvtHomeState  = 7 // Homing state change (v1 = new state)
	EvtRateChange = 8 // Tick rate changed (v1 = hz)
)

const (
	EventRingSize = 32 // Keep last 32 events for post-mortem
)

var (
	// debugPrintln is the global debug print function (can be set by platform code)
	debugPrintln DebugWriter = func(s string) {} // No-op by default

	// debugEnabled controls whether debug output is active
	debugEnabled bool = false

	// Event ring buffer (non-blocking, for post-mortem)
	eventRing     [EventRingSize]eventSlot
	eventRingHead atomic.Uint32 // Next write sequence
	eventsEnabled bool = true

	// Async debug output channel
	debugChan chan string
)

// SetDebugWriter sets the platform-specific debug output function
// This allows platforms to redirect debug output to UART, USB, log, etc.
func SetDebugWriter(writer DebugWriter) {
	debugPrintln = writer
}

// SetDebugEnabled enables or disables debug output
func SetDebugEnabled(enabled bool) {
	debugEnabled = enabled
}

// IsDebugEnabled returns whether debug output is enabled
func IsDebugEnabled() bool {
	return debugEnabled
}

// InitAsyncDebug starts the async debug output goroutine
// Call this from main() after SetDebugWriter
func InitAsyncDebug() {
	debugChan = make(chan string, 16)
	go debugOutputWorker()
}

// debugOutputWorker runs in background, drains debug channel
func debugOutputWorker() {
	for msg := range debugChan {
		if debugPrintln != nil {
			debugPrintln(msg)
		}
	}
}

// DebugPrintln writes a debug message using the platform-specific writer
// Blocks if debug is enabled (use DebugAsync for non-blocking)
func DebugPrintln(msg string) {
	if debugEnabled && debugPrintln != nil {
		debugPrintln(msg)
	}
}

// DebugAsync queues a debug message for the async worker, dropping it when
// the channel is full. Before InitAsyncDebug it behaves like DebugPrintln.
func DebugAsync(msg string) {
	if !debugEnabled {
		return
	}
	if debugChan == nil {
		DebugPrintln(msg)
		return
	}
	select {
	case debugChan <- msg:
	default:
	}
}

// RecordEvent captures an event in the ring buffer. It never blocks and is
// safe to call from the tick task.
func RecordEvent(eventType, axis uint8, value1, value2 uint32) {
	if !eventsEnabled {
		return
	}
	seq := eventRingHead.Add(1) - 1
	s := &eventRing[seq%EventRingSize]
	s.seq.Store(0)
	s.kind.Store(uint32(eventType) | uint32(axis)<<8)
	s.clock.Store(GetTime())
	s.value1.Store(value1)
	s.value2.Store(value2)
	s.seq.Store(seq + 1)
}

// Events returns the recorded events, oldest first. A slot that is being
// written or has been overwritten while it was read is left out.
func Events() []MotionEvent {
	head := eventRingHead.Load()
	n := head
	if n > EventRingSize {
		n = EventRingSize
	}
	out := make([]MotionEvent, 0, n)
	for i := head - n; i != head; i++ {
		s := &eventRing[i%EventRingSize]
		if s.seq.Load() != i+1 {
			continue
		}
		kind := s.kind.Load()
		evt := MotionEvent{
			EventType: uint8(kind),
			Axis:      uint8(kind >> 8),
			Clock:     s.clock.Load(),
			Value1:    s.value1.Load(),
			Value2:    s.value2.Load(),
		}
		if s.seq.Load() != i+1 {
			continue
		}
		out = append(out, evt)
	}
	return out
}

func eventName(t uint8) string {
	switch t {
	case EvtArm:
		return "ARM"
	case EvtDisarm:
		return "DISARM"
	case EvtEstopHalt:
		return "ESTOP_HALT!"
	case EvtReject:
		return "REJECT"
	case EvtEnforce:
		return "ENFORCE"
	case EvtHomeHit:
		return "HOME_HIT"
	case EvtHomeState:
		return "HOME_STATE"
	case EvtRateChange:
		return "RATE"
	}
	return "UNKNOWN"
}

// DumpEventRing outputs the event ring buffer (call on shutdown/error)
func DumpEventRing() {
	if debugPrintln == nil {
		return
	}

	debugPrintln("[EVENT] === Event Ring Dump ===")
	for _, evt := range Events() {
		debugPrintln("[EVENT] " + eventName(evt.EventType) +
			" axis=" + itoa(int(evt.Axis)) +
			" clock=" + utoa(evt.Clock) +
			" v1=" + utoa(evt.Value1) +
			" v2=" + utoa(evt.Value2))
	}
	debugPrintln("[EVENT] === End Dump ===")
}

// ClearEventRing clears the event buffer
func ClearEventRing() {
	for i := range eventRing {
		s := &eventRing[i]
		s.seq.Store(0)
		s.kind.Store(0)
		s.clock.Store(0)
		s.value1.Store(0)
		s.value2.Store(0)
	}
	eventRingHead.Store(0)
}
