package sim

import (
	"context"
	"io"
	"log"
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/protocol"
)

// Controller is a complete controller on simulated hardware: a machine
// built from a configuration that answers the link protocol. Ticks are
// fired from the foreground cycle, so runs are deterministic.
type Controller struct {
	Lines   *Lines
	Inputs  *Inputs
	Display *Display
	Parts   *config.Parts

	ticker *Ticker
	pump   *protocol.Pump
	link   *core.Link
	cycle  time.Duration
}

// NewController builds and initializes a simulated controller. store may
// be nil; logger, when set, receives display output.
func NewController(cfg *config.MachineConfig, store core.HomeStore, logger *log.Logger) (*Controller, error) {
	c := &Controller{
		Lines:   NewLines(),
		Display: NewDisplay(logger),
		cycle:   time.Duration(cfg.CycleMS) * time.Millisecond,
	}
	parts, err := cfg.Build(config.Hardware{
		Lines:   c.Lines,
		Group:   c.Lines,
		Ticker:  c.newTicker,
		Store:   store,
		Display: c.Display,
	})
	if err != nil {
		return nil, err
	}
	c.Parts = parts
	c.Inputs = NewInputs(c.Lines, cfg.SafetyInputs(), cfg.PanelLines())

	c.pump = protocol.NewPump(func(cmdID uint16, data *[]byte) error {
		return c.link.Dispatch(cmdID, data)
	})
	c.link = core.NewLink(parts.Machine, c.pump.Transport())

	parts.Machine.Init()
	return c, nil
}

func (c *Controller) newTicker(hz uint32, tick func()) (core.TickSource, error) {
	t, err := NewTicker(hz, tick)
	if err != nil {
		return nil, err
	}
	c.ticker = t
	return t, nil
}

// Machine returns the simulated machine
func (c *Controller) Machine() *core.Machine {
	return c.Parts.Machine
}

// Ticker returns the manual tick source
func (c *Controller) Ticker() *Ticker {
	return c.ticker
}

// TicksPerCycle is the number of ticks one foreground cycle stands for at
// the current rate, at least one
func (c *Controller) TicksPerCycle() int {
	n := int(time.Duration(c.ticker.Rate()) * c.cycle / time.Second)
	if n < 1 {
		n = 1
	}
	return n
}

// Cycle dispatches received frames, runs one cycle worth of ticks and one
// foreground cycle
func (c *Controller) Cycle() {
	c.pump.Process()
	c.ticker.Fire(c.TicksPerCycle())
	c.Parts.Machine.Cycle(c.Parts.Panel.Read())
}

// Serve answers the link on conn, cycling every period until ctx is done
// or conn fails
func (c *Controller) Serve(ctx context.Context, conn io.ReadWriter, period time.Duration) error {
	readErr := make(chan error, 1)
	go func() {
		buf := make([]byte, 256)
		for {
			n, err := conn.Read(buf)
			if n > 0 {
				c.pump.Write(buf[:n])
			}
			if err != nil {
				readErr <- err
				return
			}
		}
	}()

	tick := time.NewTicker(period)
	defer tick.Stop()
	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case err := <-readErr:
			return err
		case <-tick.C:
			c.Cycle()
			if err := c.pump.Flush(conn); err != nil {
				return err
			}
		}
	}
}
