package core

import (
	"strings"
	"testing"
	"time"
)

func TestEventRingOrderAndWrap(t *testing.T) {
	ClearEventRing()
	defer ClearEventRing()

	SetTime(77)
	for i := 0; i < EventRingSize+5; i++ {
		RecordEvent(EvtRateChange, 0, uint32(i), 0)
	}
	evts := Events()
	if len(evts) != EventRingSize {
		t.Fatalf("%d events, want %d", len(evts), EventRingSize)
	}
	if evts[0].Value1 != 5 || evts[EventRingSize-1].Value1 != EventRingSize+4 {
		t.Errorf("oldest %d newest %d", evts[0].Value1, evts[EventRingSize-1].Value1)
	}
	if evts[0].Clock != 77 {
		t.Errorf("clock = %d", evts[0].Clock)
	}
}

func TestEventsWhileRecording(t *testing.T) {
	ClearEventRing()
	defer ClearEventRing()

	const total = 20000
	done := make(chan struct{})
	go func() {
		defer close(done)
		for i := uint32(1); i <= total; i++ {
			RecordEvent(EvtRateChange, uint8(i), i, ^i)
		}
	}()

	check := func() {
		var last uint32
		for _, evt := range Events() {
			if evt.EventType != EvtRateChange || evt.Axis != uint8(evt.Value1) || evt.Value2 != ^evt.Value1 {
				t.Fatalf("torn event %+v", evt)
			}
			if evt.Value1 <= last {
				t.Fatalf("event %d after %d", evt.Value1, last)
			}
			last = evt.Value1
		}
	}
	for running := true; running; {
		select {
		case <-done:
			running = false
		default:
			check()
		}
	}
	check()
	if n := len(Events()); n != EventRingSize {
		t.Errorf("%d events after writer finished, want %d", n, EventRingSize)
	}
}

func TestDumpEventRing(t *testing.T) {
	ClearEventRing()
	defer ClearEventRing()

	var lines []string
	SetDebugWriter(func(s string) { lines = append(lines, s) })
	defer SetDebugWriter(func(string) {})

	RecordEvent(EvtReject, uint8(AxisZ), uint32(FaultLimitZ), 0)
	DumpEventRing()

	if len(lines) != 3 {
		t.Fatalf("dump = %q", lines)
	}
	if !strings.Contains(lines[1], "REJECT axis=2") || !strings.Contains(lines[1], "v1=6") {
		t.Errorf("event line = %q", lines[1])
	}
}

func TestDebugPrintlnGated(t *testing.T) {
	var n int
	SetDebugWriter(func(string) { n++ })
	defer SetDebugWriter(func(string) {})

	SetDebugEnabled(false)
	DebugPrintln("hidden")
	SetDebugEnabled(true)
	DebugPrintln("shown")
	SetDebugEnabled(false)

	if n != 1 {
		t.Errorf("writer called %d times, want 1", n)
	}
}

func TestNumberFormatting(t *testing.T) {
	tests := []struct {
		got, want string
	}{
		{itoa(0), "0"},
		{itoa(-42), "-42"},
		{utoa(4294967295), "4294967295"},
		{HomeCoordinates{X: 12, Y: -3, Z: 0}.String(), "X12 Y-3 Z0"},
	}
	for _, tt := range tests {
		if tt.got != tt.want {
			t.Errorf("got %q, want %q", tt.got, tt.want)
		}
	}
}

func TestDebugAsyncWithoutWorker(t *testing.T) {
	var got []string
	SetDebugWriter(func(s string) { got = append(got, s) })
	defer SetDebugWriter(func(string) {})

	DebugAsync("hidden")
	SetDebugEnabled(true)
	DebugAsync("[STORE] save failed")
	SetDebugEnabled(false)

	if len(got) != 1 || got[0] != "[STORE] save failed" {
		t.Errorf("written %q", got)
	}
}

func TestDebugAsyncWorker(t *testing.T) {
	lines := make(chan string, 1)
	SetDebugWriter(func(s string) { lines <- s })
	SetDebugEnabled(true)
	InitAsyncDebug()
	defer func() {
		close(debugChan)
		debugChan = nil
		SetDebugEnabled(false)
	}()

	DebugAsync("[HOME] confirm failed")
	select {
	case s := <-lines:
		if s != "[HOME] confirm failed" {
			t.Errorf("got %q", s)
		}
	case <-time.After(time.Second):
		t.Fatal("worker wrote nothing")
	}
}
