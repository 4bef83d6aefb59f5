package link

import (
	"context"
	"errors"
	"net"
	"testing"
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/host/serial"
	"cncmotion/host/sim"
	"cncmotion/protocol"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// pipePort adapts one end of a net.Pipe to serial.Port
type pipePort struct {
	net.Conn
}

func (p pipePort) Flush() error { return nil }

// startController serves a simulated controller on one end of a pipe and
// returns the other end
func startController(t *testing.T) (*sim.Controller, net.Conn) {
	t.Helper()
	ctl, err := sim.NewController(config.Default(), nil, nil)
	require.NoError(t, err)

	host, dev := net.Pipe()
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		defer close(done)
		_ = ctl.Serve(ctx, dev, time.Millisecond)
	}()
	t.Cleanup(func() {
		cancel()
		dev.Close()
		<-done
	})
	return ctl, host
}

// eventually polls cond for up to two seconds
func eventually(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !cond() {
		if time.Now().After(deadline) {
			t.Fatal("condition not met")
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func newTestClient(t *testing.T) (*sim.Controller, *Client) {
	t.Helper()
	ctl, conn := startController(t)
	c := NewClient(conn, time.Second)
	t.Cleanup(func() { c.Close() })
	return ctl, c
}

func TestClientIdentify(t *testing.T) {
	_, c := newTestClient(t)
	id, err := c.Identify()
	require.NoError(t, err)
	assert.Equal(t, protocol.Version, id.Version)
	assert.Equal(t, uint32(core.NumAxes), id.Axes)
	assert.Equal(t, id, c.Identity())
}

func TestClientJogAndRelease(t *testing.T) {
	ctl, c := newTestClient(t)

	st, err := c.Jog(core.AxisX, core.DirNegative)
	require.NoError(t, err)
	assert.True(t, st.Armed)
	assert.True(t, st.Active[core.AxisX])

	eventually(t, func() bool {
		st, err := c.Status()
		return err == nil && st.Positions.X < -20
	})

	st, err = c.Release(core.AxisX)
	require.NoError(t, err)
	assert.False(t, st.Armed)
	assert.Equal(t, ctl.Machine().Status().Positions.X, st.Positions.X)
	assert.True(t, st.Positions.X < -20, "X = %d", st.Positions.X)
}

func TestClientReportsControllerErrors(t *testing.T) {
	_, c := newTestClient(t)

	_, err := c.Jog(core.AxisID(7), core.DirPositive)
	assert.True(t, errors.Is(err, ErrBadRequest), "%v", err)

	_, err = c.Confirm()
	assert.True(t, errors.Is(err, ErrBusy), "%v", err)

	_, err = c.Home(core.MenuLoadFromStorage)
	assert.True(t, errors.Is(err, ErrNoRecord), "%v", err)

	st, err := c.SetFault(core.FaultSdError)
	require.NoError(t, err)
	assert.Equal(t, core.FaultSdError, st.Fault)
	assert.Equal(t, "SD card FAILED..", st.Message)

	_, err = c.SetFault(core.FaultEstopTripped)
	assert.True(t, errors.Is(err, ErrBadRequest), "%v", err)
}

func TestClientManualHoming(t *testing.T) {
	_, c := newTestClient(t)

	st, err := c.Home(core.MenuSetHomeManual)
	require.NoError(t, err)
	assert.Equal(t, core.HomeManual, st.Homing)

	_, err = c.Jog(core.AxisZ, core.DirPositive)
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = c.StopAll()
	require.NoError(t, err)

	// StopAll aborts the run; start again and confirm in place
	_, err = c.Home(core.MenuSetHomeManual)
	require.NoError(t, err)
	st, err = c.Confirm()
	require.NoError(t, err)
	assert.True(t, st.Homed)
	assert.Equal(t, core.HomeCoordinates{}, st.Positions)
}

func TestClientEstopVisible(t *testing.T) {
	ctl, c := newTestClient(t)
	_, err := c.Jog(core.AxisY, core.DirPositive)
	require.NoError(t, err)

	require.NoError(t, ctl.Inputs.Set("estop", true))
	eventually(t, func() bool {
		st, err := c.Status()
		return err == nil && st.Fault == core.FaultEstopTripped && !st.Armed
	})
}

func TestDialRetriesUntilControllerAnswers(t *testing.T) {
	_, conn := startController(t)

	attempts := 0
	open := func(cfg *serial.Config) (serial.Port, error) {
		attempts++
		if attempts < 3 {
			return nil, errors.New("no such device")
		}
		return pipePort{conn}, nil
	}

	c, err := Dial(Options{Serial: serial.DefaultConfig("/dev/sim"), Open: open, Timeout: time.Second})
	require.NoError(t, err)
	defer c.Close()
	assert.Equal(t, 3, attempts)
	assert.Equal(t, protocol.Version, c.Identity().Version)
}

func TestDialGivesUp(t *testing.T) {
	open := func(cfg *serial.Config) (serial.Port, error) {
		return nil, errors.New("no such device")
	}
	_, err := Dial(Options{Serial: serial.DefaultConfig("/dev/none"), Open: open, MaxWait: 100 * time.Millisecond})
	require.Error(t, err)
	assert.Contains(t, err.Error(), "/dev/none")
}
