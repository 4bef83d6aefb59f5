package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"net"
	"os"
	"strings"
	"time"

	"cncmotion/config"
	"cncmotion/core"
	"cncmotion/host/link"
	"cncmotion/host/serial"
	"cncmotion/host/sim"
	"cncmotion/protocol"
)

// Version is the tool version, injected with ldflags on release builds
var Version = "1"

var (
	configPath = flag.String("config", config.DefaultFileName, "Configuration file")
	device     = flag.String("device", "", "Serial device path (overrides link.port)")
	timeout    = flag.Duration("timeout", link.DefaultTimeout, "Request timeout")
	simulate   = flag.Bool("sim", false, "Talk to an in-process simulated controller")
)

func root() {
	str := `cnc-host talks to the CNC motion controller over its serial link

Usage:
	cnc-host [flags] <command> [args]

Commands:
	status                 print the controller status
	jog <axis> <+|-> [dur] jog an axis, for dur (default 250ms) then release
	release <axis>         release a jogged axis
	stop                   stop every axis and abort homing
	home <load|manual|auto>
	confirm                confirm manual homing at the current position
	fault <none|sd|file>   report an SD card or file fault
	watch [hz]             print status changes until interrupted
	shell                  interactive command prompt
	mkconf                 write the current configuration to the config file
	conf                   print the current configuration
	messages               list the link message table
	version

Flags:`
	fmt.Println(str)
	flag.PrintDefaults()
}

func main() {
	flag.Usage = root
	flag.Parse()
	args := flag.Args()
	if len(args) == 0 {
		root()
		return
	}

	cfg, err := config.Load(*configPath)
	if err != nil {
		log.Fatal(err)
	}

	cmd := strings.ToLower(args[0])
	switch cmd {
	case "help":
		root()
		return
	case "messages":
		msgs := core.LinkMessages()
		fmt.Printf("%d link messages (id name args):\n%s", msgs.Count(), msgs.Describe())
		return
	case "version":
		fmt.Printf("cnc-host version %v (%s)\n", Version, protocol.Version)
		return
	case "conf":
		if err := config.Dump(os.Stdout, cfg); err != nil {
			log.Fatal(err)
		}
		return
	case "mkconf":
		if err := config.WriteFile(*configPath, cfg); err != nil {
			log.Fatal(err)
		}
		return
	}

	c, err := connect(cfg)
	if err != nil {
		log.Fatal(err)
	}
	defer c.Close()

	if err := run(c, cmd, args[1:]); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		c.Close()
		os.Exit(1)
	}
}

// connect dials the configured serial port, or starts a simulated
// controller behind an in-memory pipe
func connect(cfg *config.MachineConfig) (*link.Client, error) {
	if *simulate {
		ctl, err := sim.NewController(cfg, nil, nil)
		if err != nil {
			return nil, err
		}
		host, dev := net.Pipe()
		go func() {
			period := time.Duration(cfg.CycleMS) * time.Millisecond
			_ = ctl.Serve(context.Background(), dev, period)
		}()
		return link.NewClient(host, *timeout), nil
	}

	sc := serial.DefaultConfig(cfg.Link.Port)
	sc.Baud = cfg.Link.Baud
	if *device != "" {
		sc.Device = *device
	}
	return link.Dial(link.Options{Serial: sc, Timeout: *timeout})
}
