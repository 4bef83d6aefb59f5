package core

import "testing"

func TestStopAllIdempotent(t *testing.T) {
	r := newRig(t)
	r.ctl.SetPosition(AxisY, 42)

	for i := 0; i < 3; i++ {
		r.ctl.StopAll()
		if r.port.anyHigh() {
			t.Fatal("step line high after StopAll")
		}
		if r.ctl.IsArmed() {
			t.Fatal("armed after StopAll")
		}
	}
	if r.ctl.Position(AxisY) != 42 {
		t.Errorf("position changed to %d", r.ctl.Position(AxisY))
	}
	if r.ticker.arms != 0 {
		t.Error("StopAll armed the ticker")
	}
}

func TestJogSingleAxis(t *testing.T) {
	r := newRig(t)
	if f := r.ctl.RequestMove(AxisX, DirPositive); f != FaultNone {
		t.Fatalf("RequestMove: %v", f)
	}
	if !r.ctl.IsArmed() {
		t.Fatal("not armed")
	}
	r.ticker.Fire(10)

	if r.ctl.Position(AxisX) != 5 {
		t.Errorf("X position = %d, want 5", r.ctl.Position(AxisX))
	}
	if r.port.sets[AxisY] != 0 || r.port.sets[AxisZ] != 0 {
		t.Error("other axes stepped")
	}
	for _, e := range r.port.events {
		if e.op == "set" && e.dir != DirPositive {
			t.Fatal("step issued before direction was set")
		}
	}

	// Repeating the request is a no-op
	arms := r.ticker.arms
	r.ctl.RequestMove(AxisX, DirPositive)
	if r.ticker.arms != arms {
		t.Error("repeat request re-armed")
	}
}

func TestReleaseOneAxisKeepsOthers(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisX, DirPositive)
	r.ctl.RequestMove(AxisY, DirNegative)
	r.ticker.Fire(4)

	r.ctl.StopAxis(AxisX)
	if r.ctl.Active(AxisX) || !r.ctl.Active(AxisY) {
		t.Fatal("wrong axes active after releasing X")
	}
	if !r.ctl.IsArmed() {
		t.Fatal("disarmed with Y still moving")
	}
	if r.port.high[AxisX] {
		t.Error("X step left high")
	}

	x := r.ctl.Position(AxisX)
	r.ticker.Fire(4)
	if r.ctl.Position(AxisX) != x {
		t.Error("X moved after release")
	}
	if r.ctl.Position(AxisY) != -4 {
		t.Errorf("Y position = %d, want -4", r.ctl.Position(AxisY))
	}

	r.ctl.StopAxis(AxisY)
	if r.ctl.IsArmed() {
		t.Error("armed with no active axis")
	}
}

func TestReleaseReevaluatesRemainingAxes(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisX, DirPositive)
	r.ctl.RequestMove(AxisY, DirNegative)
	r.ticker.Fire(2)

	// Estop closes between ticks; the release must not re-arm Y
	r.lines.levels[testInputs.Estop.Pin] = true
	r.ctl.StopAxis(AxisX)
	if r.ctl.IsArmed() || r.ctl.Active(AxisY) {
		t.Fatal("remaining axis re-armed during estop")
	}
	if r.ctl.LastFault() != FaultEstopTripped {
		t.Errorf("last fault = %v", r.ctl.LastFault())
	}
	if r.port.anyHigh() {
		t.Error("step line left high")
	}
}

func TestDirectionChangeFinishesPulse(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisX, DirPositive)
	r.ticker.Fire(1)
	r.port.events = nil

	if f := r.ctl.RequestMove(AxisX, DirNegative); f != FaultNone {
		t.Fatalf("reverse: %v", f)
	}
	if r.ctl.Position(AxisX) != 1 {
		t.Errorf("position = %d, want 1", r.ctl.Position(AxisX))
	}
	if len(r.port.events) < 2 || r.port.events[0].op != "clear" || r.port.events[1].op != "dir" {
		t.Errorf("events = %+v, want clear then dir", r.port.events)
	}
	r.ticker.Fire(4)
	if r.ctl.Position(AxisX) != -1 {
		t.Errorf("position = %d, want -1", r.ctl.Position(AxisX))
	}
	if r.port.doubleSets != 0 {
		t.Error("double step assert")
	}
}

func TestLimitRejectsTravelTowardSwitch(t *testing.T) {
	r := newRig(t)
	r.set(testInputs.Limit[AxisX].Pin, true)

	if f := r.ctl.RequestMove(AxisX, DirNegative); f != FaultLimitX {
		t.Fatalf("toward switch: %v, want limit_x", f)
	}
	if r.ctl.IsArmed() || r.ctl.Active(AxisX) {
		t.Fatal("rejected request changed state")
	}
	if r.ctl.LastFault() != FaultLimitX {
		t.Errorf("last fault = %v", r.ctl.LastFault())
	}

	if f := r.ctl.RequestMove(AxisX, DirPositive); f != FaultNone {
		t.Fatalf("away from switch: %v", f)
	}
	if r.ctl.LastFault() != FaultNone {
		t.Error("successful arm did not clear last fault")
	}
}

func TestRejectLeavesOtherAxesRunning(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisY, DirPositive)
	r.set(testInputs.Limit[AxisX].Pin, true)

	if f := r.ctl.RequestMove(AxisX, DirNegative); f != FaultLimitX {
		t.Fatalf("got %v", f)
	}
	if !r.ctl.IsArmed() || !r.ctl.Active(AxisY) {
		t.Error("rejection stopped Y")
	}
}

func TestEstopLatch(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisX, DirPositive)
	r.ticker.Fire(3)

	r.lines.levels[testInputs.Estop.Pin] = true
	r.ticker.Fire(1)
	if !r.gen.Halted() || r.port.anyHigh() {
		t.Fatal("tick did not halt on estop")
	}

	// Released before the foreground noticed: the latch still rejects
	r.lines.levels[testInputs.Estop.Pin] = false
	if f := r.ctl.RequestMove(AxisX, DirPositive); f != FaultEstopTripped {
		t.Fatalf("request after latch: %v", f)
	}
	if r.ctl.IsArmed() {
		t.Fatal("still armed")
	}

	if f := r.ctl.RequestMove(AxisX, DirPositive); f != FaultNone {
		t.Fatalf("request after stop: %v", f)
	}
}

func TestEstopRejectsRequest(t *testing.T) {
	r := newRig(t)
	r.lines.levels[testInputs.Estop.Pin] = true
	if f := r.ctl.RequestMove(AxisZ, DirPositive); f != FaultEstopTripped {
		t.Fatalf("got %v", f)
	}
	if r.ctl.IsArmed() {
		t.Error("armed during estop")
	}
}

func TestEnforce(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisX, DirNegative)
	r.ticker.Fire(2)

	if f := r.ctl.Enforce(r.monitor.Sample()); f != FaultNone || !r.ctl.IsArmed() {
		t.Fatalf("clean enforce: %v", f)
	}

	flags := r.set(testInputs.Limit[AxisX].Pin, true)
	if f := r.ctl.Enforce(flags); f != FaultLimitX {
		t.Fatalf("enforce = %v, want limit_x", f)
	}
	if r.ctl.IsArmed() || r.ctl.Active(AxisX) {
		t.Fatal("motion not stopped")
	}
	if r.ctl.LastFault() != FaultLimitX {
		t.Errorf("last fault = %v", r.ctl.LastFault())
	}
}

func TestEnforceHaltedLatch(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisZ, DirPositive)
	r.lines.levels[testInputs.Estop.Pin] = true
	r.ticker.Fire(1)
	r.lines.levels[testInputs.Estop.Pin] = false

	if f := r.ctl.Enforce(r.monitor.Sample()); f != FaultEstopTripped {
		t.Fatalf("enforce = %v, want estop", f)
	}
	if r.ctl.IsArmed() {
		t.Error("armed after enforce")
	}
	if r.ctl.LastFault() != FaultEstopTripped {
		t.Errorf("last fault = %v", r.ctl.LastFault())
	}
}

func TestSetRateWhileArmed(t *testing.T) {
	r := newRig(t)
	r.ctl.RequestMove(AxisX, DirPositive)
	if err := r.ctl.SetRate(2000); err != nil {
		t.Fatal(err)
	}
	if r.ctl.Rate() != 2000 || !r.ctl.IsArmed() {
		t.Errorf("rate = %d armed = %v", r.ctl.Rate(), r.ctl.IsArmed())
	}
	if err := r.ctl.SetRate(0); err != ErrBadRate {
		t.Errorf("zero rate: %v", err)
	}
	if !r.ctl.IsArmed() {
		t.Error("failed SetRate left ticker disarmed")
	}
}

func TestPositionsTruncate(t *testing.T) {
	r := newRig(t)
	r.ctl.SetPositions(HomeCoordinates{X: -5, Y: 7, Z: 1 << 20})
	if got := r.ctl.Positions(); got != (HomeCoordinates{X: -5, Y: 7, Z: 1 << 20}) {
		t.Errorf("positions = %+v", got)
	}
}

func TestArmRecordsEvent(t *testing.T) {
	ClearEventRing()
	r := newRig(t)
	r.ctl.RequestMove(AxisY, DirPositive)
	r.ctl.StopAll()

	evts := Events()
	if len(evts) != 2 || evts[0].EventType != EvtArm || evts[1].EventType != EvtDisarm {
		t.Fatalf("events = %+v", evts)
	}
	if evts[0].Axis != uint8(AxisY) {
		t.Errorf("arm axis = %d", evts[0].Axis)
	}
}
