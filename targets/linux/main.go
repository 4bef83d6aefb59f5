//go:build linux

// Command cnc-linux runs the motion controller on a Raspberry Pi, or on any
// Linux machine with -sim. The pendant HTTP API is always served; the
// serial link is served with -link.
package main

import (
	"flag"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/stianeikeland/go-rpio/v4"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/host/pendant"
	"cncmotion/host/serial"
	"cncmotion/host/sim"
	"cncmotion/protocol"
)

var (
	configPath = flag.String("config", config.DefaultFileName, "Configuration file")
	simulate   = flag.Bool("sim", false, "Use simulated lines instead of the GPIO header")
	serveLink  = flag.Bool("link", false, "Serve the controller link on link.port")
)

func goroutineTicker(hz uint32, tick func()) (core.TickSource, error) {
	t, err := core.NewGoroutineTicker(hz, tick)
	if err != nil {
		return nil, err
	}
	return t, nil
}

func main() {
	flag.Parse()

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}
	core.SetDebugWriter(func(s string) { log.Println(s) })
	core.SetDebugEnabled(cfg.Debug)
	if core.IsDebugEnabled() {
		core.InitAsyncDebug()
	}

	logger := log.New(os.Stderr, "", log.LstdFlags)
	hw := config.Hardware{
		Ticker:  goroutineTicker,
		Display: sim.NewDisplay(logger),
	}

	var lines *sim.Lines
	if *simulate {
		lines = sim.NewLines()
		hw.Lines = lines
		hw.Group = lines
	} else {
		if err := rpio.Open(); err != nil {
			log.Fatalf("gpio: %v", err)
		}
		defer rpio.Close()
		hw.Lines = RPiLines{}
	}

	if cfg.Store.Path != "" {
		f, err := os.OpenFile(cfg.Store.Path, os.O_RDWR|os.O_CREATE, 0o644)
		if err != nil {
			log.Fatalf("home store: %v", err)
		}
		defer f.Close()
		hw.Store = core.NewByteStore(f, cfg.Store.Offset)
	}

	parts, err := cfg.Build(hw)
	if err != nil {
		log.Fatalf("building machine: %v", err)
	}
	m := parts.Machine

	opts := pendant.Options{
		JogRate:  cfg.Pendant.JogRate,
		JogBurst: cfg.Pendant.JogBurst,
	}
	if lines != nil {
		opts.Inputs = sim.NewInputs(lines, cfg.SafetyInputs(), cfg.PanelLines())
	}
	pend := pendant.New(m, opts)
	defer pend.Close()
	go func() {
		log.Println("pendant listening at", cfg.Pendant.Addr)
		if err := http.ListenAndServe(cfg.Pendant.Addr, pend); err != nil {
			log.Fatal(err)
		}
	}()

	var link *controllerLink
	if *serveLink {
		link, err = openLink(cfg, m)
		if err != nil {
			log.Fatalf("link: %v", err)
		}
		defer link.Close()
	}

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, os.Interrupt, syscall.SIGTERM)

	m.Init()
	cycle := time.NewTicker(time.Duration(cfg.CycleMS) * time.Millisecond)
	defer cycle.Stop()
	for {
		select {
		case <-sig:
			m.Controller().StopAll()
			core.DumpEventRing()
			log.Println("stopped")
			return
		case <-cycle.C:
		}
		if link != nil {
			link.pump.Process()
		}
		m.Cycle(parts.Panel.Read())
		if link != nil {
			link.Flush()
		}
		pend.Publish(m.Status())
	}
}

// controllerLink serves the framed link on a serial port
type controllerLink struct {
	port serial.Port
	pump *protocol.Pump
}

func openLink(cfg *config.MachineConfig, m *core.Machine) (*controllerLink, error) {
	sc := serial.DefaultConfig(cfg.Link.Port)
	sc.Baud = cfg.Link.Baud
	port, err := serial.Open(sc)
	if err != nil {
		return nil, err
	}

	var l *core.Link
	pump := protocol.NewPump(func(cmdID uint16, data *[]byte) error {
		return l.Dispatch(cmdID, data)
	})
	l = core.NewLink(m, pump.Transport())
	pump.Transport().SetErrorCallback(func(cmdID uint16, err error) {
		name := "unknown"
		if cmd, ok := l.Registry().GetCommand(cmdID); ok {
			name = cmd.Name
		}
		log.Printf("link: %s: %v", name, err)
	})

	go func() {
		buf := make([]byte, 256)
		for {
			n, err := port.Read(buf)
			if n > 0 {
				pump.Write(buf[:n])
			}
			if err != nil {
				log.Printf("link read: %v", err)
				return
			}
		}
	}()
	log.Println("link serving on", sc.Device)
	return &controllerLink{port: port, pump: pump}, nil
}

// Flush sends queued ACKs and responses; a failed write is retried on the
// next cycle
func (c *controllerLink) Flush() {
	if err := c.pump.Flush(c.port); err != nil {
		core.DebugAsync("[LINK] write failed: " + err.Error())
	}
}

func (c *controllerLink) Close() error {
	return c.port.Close()
}
