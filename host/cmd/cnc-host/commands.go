package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"time"

	"github.com/theckman/yacspin"
	"golang.org/x/time/rate"

	"cncmotion/core"
	"cncmotion/host/link"
)

var errUsage = errors.New("bad arguments (try help)")

var homeModes = map[string]core.MenuChoice{
	"load":   core.MenuLoadFromStorage,
	"manual": core.MenuSetHomeManual,
	"auto":   core.MenuSetHomeAuto,
}

var faultNames = map[string]core.FaultCode{
	"none": core.FaultNone,
	"sd":   core.FaultSdError,
	"file": core.FaultFileError,
}

// run executes one command against the controller
func run(c *link.Client, cmd string, args []string) error {
	switch cmd {
	case "status":
		st, err := c.Status()
		if err != nil {
			return err
		}
		printStatus(st)
		return nil

	case "jog":
		return jog(c, args)

	case "release":
		if len(args) != 1 {
			return errUsage
		}
		axis, err := core.ParseAxis(args[0])
		if err != nil {
			return err
		}
		return show(c.Release(axis))

	case "stop":
		return show(c.StopAll())

	case "home":
		if len(args) != 1 {
			return errUsage
		}
		choice, ok := homeModes[args[0]]
		if !ok {
			return core.ErrUnknownHomeMode
		}
		st, err := c.Home(choice)
		if err != nil {
			return err
		}
		if choice == core.MenuSetHomeAuto {
			return waitHomed(c)
		}
		printStatus(st)
		return nil

	case "confirm":
		return show(c.Confirm())

	case "fault":
		code, err := parseFault(args)
		if err != nil {
			return err
		}
		return show(c.SetFault(code))

	case "watch":
		hz, err := parseWatchRate(args)
		if err != nil {
			return err
		}
		return watch(c, hz)

	case "shell":
		return shell(c)
	}
	return fmt.Errorf("unknown command: %s", cmd)
}

func show(st core.Status, err error) error {
	if err != nil {
		return err
	}
	printStatus(st)
	return nil
}

func printStatus(st core.Status) {
	active := make([]string, 0, core.NumAxes)
	for a := core.AxisID(0); a < core.NumAxes; a++ {
		if st.Active[a] {
			active = append(active, a.String())
		}
	}
	fmt.Printf("%-16s armed=%-5v homing=%-9s homed=%-5v X=%d Y=%d Z=%d rate=%dHz active=[%s]\n",
		st.Message, st.Armed, st.Homing, st.Homed,
		st.Positions.X, st.Positions.Y, st.Positions.Z, st.Rate, strings.Join(active, ","))
}

// jog holds an axis for a duration and releases it
func jog(c *link.Client, args []string) error {
	axis, dir, hold, err := parseJog(args)
	if err != nil {
		return err
	}

	st, err := c.Jog(axis, dir)
	if err != nil {
		return err
	}
	if !st.Active[axis] {
		printStatus(st)
		return fmt.Errorf("jog refused: %s", st.Message)
	}
	time.Sleep(hold)
	return show(c.Release(axis))
}

// waitHomed spins until an auto homing run finishes or fails
func waitHomed(c *link.Client) error {
	spinner, err := yacspin.New(yacspin.Config{
		Frequency:         100 * time.Millisecond,
		CharSet:           yacspin.CharSets[14],
		Suffix:            " homing",
		SuffixAutoColon:   true,
		StopCharacter:     "✓",
		StopColors:        []string{"fgGreen"},
		StopFailCharacter: "✗",
		StopFailColors:    []string{"fgRed"},
	})
	if err != nil {
		return err
	}
	if err := spinner.Start(); err != nil {
		return err
	}

	for {
		time.Sleep(100 * time.Millisecond)
		st, err := c.Status()
		if err != nil {
			spinner.StopFailMessage(err.Error())
			_ = spinner.StopFail()
			return err
		}
		switch st.Homing {
		case core.HomeDone:
			spinner.StopMessage("done")
			return spinner.Stop()
		case core.HomeAborted:
			spinner.StopFailMessage("aborted: " + st.Message)
			_ = spinner.StopFail()
			return errors.New("homing aborted")
		}
		spinner.Message(fmt.Sprintf("%s X=%d Y=%d Z=%d", st.Homing, st.Positions.X, st.Positions.Y, st.Positions.Z))
	}
}

// watch polls the status at hz and prints every change until interrupted
func watch(c *link.Client, hz float64) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	limiter := rate.NewLimiter(rate.Limit(hz), 1)
	var last *core.Status
	for {
		if err := limiter.Wait(ctx); err != nil {
			return nil
		}
		st, err := c.Status()
		if err != nil {
			return err
		}
		if last == nil || *last != st {
			printStatus(st)
			last = &st
		}
	}
}

// shell reads commands from stdin until quit
func shell(c *link.Client) error {
	fmt.Println("Enter commands (type 'help' for available commands, 'quit' to exit):")
	scanner := bufio.NewScanner(os.Stdin)
	for {
		fmt.Print("> ")
		if !scanner.Scan() {
			break
		}
		parts := strings.Fields(scanner.Text())
		if len(parts) == 0 {
			continue
		}
		switch cmd := strings.ToLower(parts[0]); cmd {
		case "quit", "exit", "q":
			return nil
		case "help", "?":
			root()
		case "shell":
		default:
			if err := run(c, cmd, parts[1:]); err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			}
		}
	}
	return scanner.Err()
}

// defaultJogHold is how long jog holds an axis when no duration is given
const defaultJogHold = 250 * time.Millisecond

// parseJog reads "<axis> <+|-> [duration]"
func parseJog(args []string) (core.AxisID, core.Direction, time.Duration, error) {
	if len(args) < 2 || len(args) > 3 {
		return 0, 0, 0, errUsage
	}
	axis, err := core.ParseAxis(args[0])
	if err != nil {
		return 0, 0, 0, err
	}
	dir, ok := core.ParseDirection(args[1])
	if !ok {
		return 0, 0, 0, core.ErrNoDirection
	}
	hold := defaultJogHold
	if len(args) == 3 {
		if hold, err = time.ParseDuration(args[2]); err != nil || hold <= 0 {
			return 0, 0, 0, errUsage
		}
	}
	return axis, dir, hold, nil
}

// parseFault reads "<none|sd|file>"
func parseFault(args []string) (core.FaultCode, error) {
	if len(args) != 1 {
		return 0, errUsage
	}
	code, ok := faultNames[strings.ToLower(args[0])]
	if !ok {
		return 0, errUsage
	}
	return code, nil
}

// parseWatchRate reads an optional positive poll rate in Hz
func parseWatchRate(args []string) (float64, error) {
	switch len(args) {
	case 0:
		return 10, nil
	case 1:
		v, err := strconv.ParseFloat(args[0], 64)
		if err != nil || v <= 0 {
			return 0, errUsage
		}
		return v, nil
	}
	return 0, errUsage
}
