//go:build rp2040

package main

import (
	"device/rp"
	"errors"
	"runtime/interrupt"
	"sync/atomic"

	"cncmotion/core"
)

var errTickerInUse = errors.New("tick alarm already claimed")

// TIMER alarm 0 belongs to the runtime's sleep timer
const tickAlarm = 1

// AlarmTicker is the tick task: TIMER alarm 1 fires the pulse generator from
// its interrupt and re-arms itself one period later. Only one exists.
type AlarmTicker struct {
	tick   func()
	hz     uint32
	period uint32
	next   uint32 // Deadline of the pending alarm
	armed  atomic.Bool
}

var alarmTicker *AlarmTicker

// NewAlarmTicker claims alarm 1 at the highest interrupt priority
func NewAlarmTicker(hz uint32, tick func()) (*AlarmTicker, error) {
	if !core.ValidRate(hz) {
		return nil, core.ErrBadRate
	}
	if alarmTicker != nil {
		return nil, errTickerInUse
	}
	t := &AlarmTicker{tick: tick, hz: hz, period: core.TickPeriodUS(hz)}
	alarmTicker = t

	irq := interrupt.New(rp.IRQ_TIMER_IRQ_1, handleAlarm)
	irq.SetPriority(0)
	irq.Enable()
	return t, nil
}

// newTickSource adapts NewAlarmTicker to config.TickerFunc
func newTickSource(hz uint32, tick func()) (core.TickSource, error) {
	t, err := NewAlarmTicker(hz, tick)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func handleAlarm(interrupt.Interrupt) {
	rp.TIMER.INTR.Set(1 << tickAlarm)
	t := alarmTicker
	if t == nil || !t.armed.Load() {
		return
	}

	// Deadlines advance by whole periods; a missed one restarts from now
	now := GetHardwareTime()
	t.next += t.period
	if int32(t.next-now) <= 0 {
		t.next = now + t.period
	}
	rp.TIMER.ALARM1.Set(t.next)

	core.SetTime(now)
	t.tick()
}

// Arm schedules the first tick one period from now
func (t *AlarmTicker) Arm() {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	if t.armed.Load() {
		return
	}
	t.armed.Store(true)
	t.next = GetHardwareTime() + t.period
	rp.TIMER.INTE.SetBits(1 << tickAlarm)
	rp.TIMER.ALARM1.Set(t.next)
}

// Disarm cancels the pending alarm. The foreground only runs between
// interrupts on this core, so no tick is in flight once it returns.
func (t *AlarmTicker) Disarm() {
	state := interrupt.Disable()
	defer interrupt.Restore(state)
	if !t.armed.Load() {
		return
	}
	t.armed.Store(false)
	rp.TIMER.INTE.ClearBits(1 << tickAlarm)
	rp.TIMER.ARMED.Set(1 << tickAlarm)
	rp.TIMER.INTR.Set(1 << tickAlarm)
}

func (t *AlarmTicker) Armed() bool {
	return t.armed.Load()
}

func (t *AlarmTicker) SetRate(hz uint32) error {
	if t.armed.Load() {
		return core.ErrArmed
	}
	if !core.ValidRate(hz) {
		return core.ErrBadRate
	}
	t.hz = hz
	t.period = core.TickPeriodUS(hz)
	return nil
}

func (t *AlarmTicker) Rate() uint32 {
	return t.hz
}
