// Package link is the host side of the controller link: it connects over
// a serial port and turns jog, homing and status calls into link commands.
package link

import (
	"errors"
	"fmt"
	"io"
	"time"

	"github.com/cenkalti/backoff"

	"cncmotion/core"
	"cncmotion/host/serial"
	"cncmotion/protocol"
)

var (
	ErrNotConnected = errors.New("not connected to controller")
	ErrBadRequest   = errors.New("controller rejected the request")
	ErrBusy         = errors.New("controller busy homing")
	ErrNoRecord     = errors.New("controller has no stored home record")
	ErrQueueFull    = errors.New("controller request queue full")
	ErrFailed       = errors.New("controller request failed")
	ErrVersion      = errors.New("controller link version mismatch")
)

// DefaultTimeout bounds one request/response exchange
const DefaultTimeout = 2 * time.Second

// codeError maps the err field of a status reply to an error
func codeError(code uint8) error {
	switch code {
	case protocol.StatusOK:
		return nil
	case protocol.StatusBadRequest:
		return ErrBadRequest
	case protocol.StatusBusy:
		return ErrBusy
	case protocol.StatusNoRecord:
		return ErrNoRecord
	case protocol.StatusQueueFull:
		return ErrQueueFull
	}
	return ErrFailed
}

// Identity is the controller's identify response
type Identity struct {
	Version string
	Axes    uint32
}

// Client is a connection to one controller
type Client struct {
	transport *protocol.HostTransport
	messages  *core.CommandRegistry
	timeout   time.Duration
	identity  Identity
}

// NewClient runs the link over an open port. The client owns port.
func NewClient(port io.ReadWriteCloser, timeout time.Duration) *Client {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	return &Client{
		transport: protocol.NewHostTransport(port),
		messages:  core.LinkMessages(),
		timeout:   timeout,
	}
}

// Options controls Dial
type Options struct {
	Serial  *serial.Config
	Open    serial.Opener // nil uses serial.Open
	Timeout time.Duration // per request, DefaultTimeout when zero
	MaxWait time.Duration // total time spent retrying, 3s when zero
}

// Dial opens the port and identifies the controller, retrying with
// exponential backoff while the board enumerates or resets
func Dial(opts Options) (*Client, error) {
	if opts.Open == nil {
		opts.Open = serial.Open
	}
	if opts.MaxWait == 0 {
		opts.MaxWait = 3 * time.Second
	}

	var c *Client
	op := func() error {
		port, err := opts.Open(opts.Serial)
		if err != nil {
			return err
		}
		_ = port.Flush()
		cl := NewClient(port, opts.Timeout)
		if _, err := cl.Identify(); err != nil {
			cl.Close()
			return err
		}
		c = cl
		return nil
	}

	err := backoff.Retry(op, &backoff.ExponentialBackOff{
		InitialInterval:     25 * time.Millisecond,
		RandomizationFactor: 0.,
		Multiplier:          2.,
		MaxInterval:         1 * time.Second,
		MaxElapsedTime:      opts.MaxWait,
		Clock:               backoff.SystemClock})
	if err != nil {
		return nil, fmt.Errorf("connect to %s: %w", opts.Serial.Device, err)
	}
	return c, nil
}

// Close stops the link and closes the port
func (c *Client) Close() error {
	return c.transport.Close()
}

// Identify asks the controller for its link version and axis count
func (c *Client) Identify() (Identity, error) {
	data, err := c.transport.Request(protocol.MsgIdentify, nil, protocol.MsgIdentifyResponse, c.timeout)
	if err != nil {
		return Identity{}, fmt.Errorf("identify: %w", err)
	}
	version, err := protocol.DecodeVLQString(&data)
	if err != nil {
		return Identity{}, fmt.Errorf("identify: %w", err)
	}
	axes, err := protocol.DecodeVLQUint(&data)
	if err != nil {
		return Identity{}, fmt.Errorf("identify: %w", err)
	}
	id := Identity{Version: version, Axes: axes}
	if id.Version != protocol.Version || id.Axes != core.NumAxes {
		return id, fmt.Errorf("identify: %w: %s with %d axes", ErrVersion, id.Version, id.Axes)
	}
	c.identity = id
	return id, nil
}

// Identity returns the identify response of the last Identify
func (c *Client) Identity() Identity {
	return c.identity
}

// request sends the named command and decodes its status reply. The status
// is returned even when the controller reports an error.
func (c *Client) request(name string, args ...uint32) (core.Status, error) {
	cmd, ok := c.messages.GetCommandByName(name)
	if !ok {
		return core.Status{}, fmt.Errorf("%s: %w", name, core.ErrUnknownCommand)
	}
	data, err := c.transport.Request(cmd.ID, func(output protocol.OutputBuffer) {
		for _, a := range args {
			protocol.EncodeVLQUint(output, a)
		}
	}, protocol.MsgStatus, c.timeout)
	if err != nil {
		return core.Status{}, fmt.Errorf("%s: %w", name, err)
	}
	st, code, err := core.DecodeStatus(&data)
	if err != nil {
		return core.Status{}, fmt.Errorf("%s: bad status: %w", name, err)
	}
	if err := codeError(code); err != nil {
		return st, fmt.Errorf("%s: %w", name, err)
	}
	return st, nil
}

// Status returns the controller's current status
func (c *Client) Status() (core.Status, error) {
	return c.request("get_status")
}

// Jog starts or continues travel of one axis until Release
func (c *Client) Jog(axis core.AxisID, dir core.Direction) (core.Status, error) {
	return c.request("jog", uint32(axis), uint32(dir))
}

// Release ends a jog on one axis
func (c *Client) Release(axis core.AxisID) (core.Status, error) {
	return c.request("release", uint32(axis))
}

// StopAll stops every axis and aborts a homing run
func (c *Client) StopAll() (core.Status, error) {
	return c.request("stop_all")
}

// Home acts on a homing menu choice
func (c *Client) Home(choice core.MenuChoice) (core.Status, error) {
	return c.request("home", uint32(choice))
}

// Confirm completes manual homing at the current position
func (c *Client) Confirm() (core.Status, error) {
	return c.request("home_confirm")
}

// SetFault reports an SD card or file fault, or clears it with FaultNone
func (c *Client) SetFault(code core.FaultCode) (core.Status, error) {
	return c.request("set_fault", uint32(code))
}
