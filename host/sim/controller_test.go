package sim

import (
	"testing"

	"cncmotion/config"
	"cncmotion/core"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestController(t *testing.T) *Controller {
	t.Helper()
	c, err := NewController(config.Default(), nil, nil)
	require.NoError(t, err)
	return c
}

func (c *Controller) submit(t *testing.T, req core.Request) {
	t.Helper()
	require.NoError(t, c.Machine().Submit(req))
	c.Cycle()
}

// runUntil cycles until done reports true, failing after max cycles
func (c *Controller) runUntil(t *testing.T, max int, done func(core.Status) bool) core.Status {
	t.Helper()
	for i := 0; i < max; i++ {
		c.Cycle()
		if st := c.Machine().Status(); done(st) {
			return st
		}
	}
	t.Fatalf("condition not reached after %d cycles: %+v", max, c.Machine().Status())
	return core.Status{}
}

func TestControllerStartsAtHomingMenu(t *testing.T) {
	c := newTestController(t)
	assert.Equal(t, core.MenuItems(), c.Display.Menu())
	assert.Equal(t, 10, c.TicksPerCycle())

	c.Cycle()
	st := c.Machine().Status()
	assert.Equal(t, core.FaultNone, st.Fault)
	assert.False(t, st.Armed)
}

func TestControllerJogStepsTheLine(t *testing.T) {
	c := newTestController(t)
	c.submit(t, core.Request{Kind: core.ReqJog, Axis: core.AxisX, Dir: core.DirPositive})
	require.True(t, c.Machine().Status().Armed)

	c.Cycle()
	st := c.Machine().Status()
	assert.Equal(t, int32(5), st.Positions.X)
	assert.Equal(t, uint32(5), c.Lines.Rises(22))
	assert.Equal(t, uint32(0), c.Lines.Rises(24), "Y step line")
	assert.True(t, c.Lines.ReadPin(23), "X direction line positive")

	c.submit(t, core.Request{Kind: core.ReqRelease, Axis: core.AxisX})
	st = c.Machine().Status()
	assert.False(t, st.Armed)
	assert.False(t, c.Lines.ReadPin(22), "step line left high")
	assert.Equal(t, int32(c.Lines.Rises(22)), st.Positions.X)
}

func TestControllerPanelJog(t *testing.T) {
	c := newTestController(t)
	require.NoError(t, c.Inputs.Set("y-", true))

	st := c.runUntil(t, 10, func(st core.Status) bool { return st.Positions.Y <= -10 })
	assert.True(t, st.Active[core.AxisY])

	require.NoError(t, c.Inputs.Set("y-", false))
	st = c.runUntil(t, 10, func(st core.Status) bool { return !st.Armed })
	assert.False(t, st.Active[core.AxisY])
}

func TestControllerEstopInput(t *testing.T) {
	c := newTestController(t)
	c.submit(t, core.Request{Kind: core.ReqJog, Axis: core.AxisZ, Dir: core.DirNegative})
	c.Cycle()

	require.NoError(t, c.Inputs.Set("estop", true))
	c.Cycle()
	st := c.Machine().Status()
	assert.Equal(t, core.FaultEstopTripped, st.Fault)
	assert.False(t, st.Armed)
	code, msg := c.Display.Fault()
	assert.Equal(t, core.FaultEstopTripped, code)
	assert.Equal(t, "EMERGENCY STOP", msg)
	for _, pin := range []core.GPIOPin{22, 24, 26} {
		assert.False(t, c.Lines.ReadPin(pin), "step line %d", pin)
	}
}

func TestControllerAutoHoming(t *testing.T) {
	c := newTestController(t)
	c.submit(t, core.Request{Kind: core.ReqHome, Choice: core.MenuSetHomeAuto})
	require.Equal(t, core.HomeSeekingX, c.Machine().Status().Homing)
	assert.Equal(t, uint32(500), c.Ticker().Rate())

	seek := func(limit string, next core.HomingState) {
		c.runUntil(t, 20, func(st core.Status) bool { return st.Armed })
		require.NoError(t, c.Inputs.Set(limit, true))
		c.runUntil(t, 5, func(st core.Status) bool { return st.Homing == next })
		require.NoError(t, c.Inputs.Set(limit, false))
	}
	seek("limit_x", core.HomeSeekingY)
	seek("limit_y", core.HomeSeekingZ)

	c.runUntil(t, 20, func(st core.Status) bool { return st.Armed })
	assert.True(t, c.Lines.ReadPin(27), "Z homes toward +")
	require.NoError(t, c.Inputs.Set("limit_z", true))
	st := c.runUntil(t, 5, func(st core.Status) bool { return st.Homing == core.HomeDone })

	assert.True(t, st.Homed)
	assert.Equal(t, core.HomeCoordinates{}, st.Positions)
	assert.Equal(t, uint32(2000), c.Ticker().Rate(), "jog rate restored")
}
