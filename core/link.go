package core

// Host link command handlers
// Commands become Machine requests; the status reply is sent from the
// foreground once the request has been applied.

import "cncmotion/protocol"

// ResponseSender queues a response frame. *protocol.Transport implements it.
type ResponseSender interface {
	SendCommand(cmdID uint16, args func(output protocol.OutputBuffer))
}

// Link binds link commands to a Machine
type Link struct {
	machine  *Machine
	out      ResponseSender
	registry *CommandRegistry
}

// NewLink registers every link message
func NewLink(m *Machine, out ResponseSender) *Link {
	l := &Link{machine: m, out: out, registry: NewCommandRegistry()}
	registerMessages(l.registry, l)
	return l
}

// LinkMessages returns the message table without handlers. Hosts resolve
// command IDs by name from it.
func LinkMessages() *CommandRegistry {
	r := NewCommandRegistry()
	registerMessages(r, nil)
	return r
}

func registerMessages(r *CommandRegistry, l *Link) {
	h := func(f func(*Link, *[]byte) error) CommandHandler {
		if l == nil {
			return nil
		}
		return func(data *[]byte) error { return f(l, data) }
	}

	r.Register(protocol.MsgIdentify, "identify", "", h((*Link).handleIdentify))
	r.Register(protocol.MsgGetStatus, "get_status", "", h((*Link).handleGetStatus))
	r.Register(protocol.MsgJog, "jog", "axis=%c dir=%c", h((*Link).handleJog))
	r.Register(protocol.MsgRelease, "release", "axis=%c", h((*Link).handleRelease))
	r.Register(protocol.MsgStopAll, "stop_all", "", h((*Link).handleStopAll))
	r.Register(protocol.MsgHome, "home", "mode=%c", h((*Link).handleHome))
	r.Register(protocol.MsgHomeConfirm, "home_confirm", "", h((*Link).handleHomeConfirm))
	r.Register(protocol.MsgSetFault, "set_fault", "code=%c", h((*Link).handleSetFault))

	r.Register(protocol.MsgIdentifyResponse, "identify_response", "version=%s axes=%c", nil)
	r.Register(protocol.MsgStatus, "status",
		"fault=%c armed=%c homing=%c homed=%c active=%c x=%i y=%i z=%i rate=%u err=%c", nil)
}

// Dispatch is the transport command handler
func (l *Link) Dispatch(cmdID uint16, data *[]byte) error {
	return l.registry.Dispatch(cmdID, data)
}

// Registry returns the link's command registry
func (l *Link) Registry() *CommandRegistry {
	return l.registry
}

func (l *Link) handleIdentify(data *[]byte) error {
	l.out.SendCommand(protocol.MsgIdentifyResponse, func(output protocol.OutputBuffer) {
		protocol.EncodeVLQString(output, protocol.Version)
		protocol.EncodeVLQUint(output, NumAxes)
	})
	return nil
}

func (l *Link) handleGetStatus(data *[]byte) error {
	l.submit(Request{Kind: ReqStatus})
	return nil
}

func (l *Link) handleJog(data *[]byte) error {
	axis, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	dir, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	switch {
	case axis >= NumAxes:
		l.refuse(ErrUnknownAxis)
	case dir > uint32(DirNegative):
		l.refuse(ErrNoDirection)
	default:
		l.submit(Request{Kind: ReqJog, Axis: AxisID(axis), Dir: Direction(dir)})
	}
	return nil
}

func (l *Link) handleRelease(data *[]byte) error {
	axis, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if axis >= NumAxes {
		l.refuse(ErrUnknownAxis)
		return nil
	}
	l.submit(Request{Kind: ReqRelease, Axis: AxisID(axis)})
	return nil
}

func (l *Link) handleStopAll(data *[]byte) error {
	l.submit(Request{Kind: ReqStopAll})
	return nil
}

func (l *Link) handleHome(data *[]byte) error {
	mode, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if mode > uint32(MenuSetHomeAuto) {
		l.refuse(ErrUnknownHomeMode)
		return nil
	}
	l.submit(Request{Kind: ReqHome, Choice: MenuChoice(mode)})
	return nil
}

func (l *Link) handleHomeConfirm(data *[]byte) error {
	l.submit(Request{Kind: ReqHomeConfirm})
	return nil
}

func (l *Link) handleSetFault(data *[]byte) error {
	code, err := protocol.DecodeVLQUint(data)
	if err != nil {
		return err
	}
	if code > uint32(FaultFileError) {
		l.refuse(ErrNotExternalFault)
		return nil
	}
	l.submit(Request{Kind: ReqSetFault, Fault: FaultCode(code)})
	return nil
}

// submit queues a request whose completion sends a status reply. A full
// queue is answered at once.
func (l *Link) submit(req Request) {
	req.Done = l.sendStatus
	if err := l.machine.Submit(req); err != nil {
		l.sendStatus(l.machine.Status(), err)
	}
}

// refuse answers an argument that does not fit its field without queuing
// anything
func (l *Link) refuse(err error) {
	l.sendStatus(l.machine.Status(), err)
}

func (l *Link) sendStatus(st Status, err error) {
	l.out.SendCommand(protocol.MsgStatus, func(output protocol.OutputBuffer) {
		EncodeStatus(output, st, StatusCode(err))
	})
}

// StatusCode maps a request error to the err field of a status reply
func StatusCode(err error) uint8 {
	switch err {
	case nil:
		return protocol.StatusOK
	case ErrUnknownAxis, ErrNoDirection, ErrNotExternalFault, ErrUnknownHomeMode, ErrUnknownCommand:
		return protocol.StatusBadRequest
	case ErrNotIdle, ErrNotManualHoming:
		return protocol.StatusBusy
	case ErrNoHomeRecord:
		return protocol.StatusNoRecord
	case ErrQueueFull:
		return protocol.StatusQueueFull
	}
	return protocol.StatusFailed
}

// EncodeStatus writes the arguments of a status response
func EncodeStatus(output protocol.OutputBuffer, st Status, code uint8) {
	var active uint32
	for a := AxisID(0); a < NumAxes; a++ {
		if st.Active[a] {
			active |= 1 << a
		}
	}
	protocol.EncodeVLQUint(output, uint32(st.Fault))
	protocol.EncodeVLQBool(output, st.Armed)
	protocol.EncodeVLQUint(output, uint32(st.Homing))
	protocol.EncodeVLQBool(output, st.Homed)
	protocol.EncodeVLQUint(output, active)
	protocol.EncodeVLQInt(output, st.Positions.X)
	protocol.EncodeVLQInt(output, st.Positions.Y)
	protocol.EncodeVLQInt(output, st.Positions.Z)
	protocol.EncodeVLQUint(output, st.Rate)
	protocol.EncodeVLQUint(output, uint32(code))
}

// DecodeStatus parses the arguments of a status response
func DecodeStatus(data *[]byte) (Status, uint8, error) {
	var st Status
	var v [10]uint32
	for i := range v {
		x, err := protocol.DecodeVLQUint(data)
		if err != nil {
			return st, 0, err
		}
		v[i] = x
	}
	st.Fault = FaultCode(v[0])
	st.Message = Message(st.Fault)
	st.Armed = v[1] != 0
	st.Homing = HomingState(v[2])
	st.Homed = v[3] != 0
	for a := AxisID(0); a < NumAxes; a++ {
		st.Active[a] = v[4]&(1<<a) != 0
	}
	st.Positions = HomeCoordinates{X: int32(v[5]), Y: int32(v[6]), Z: int32(v[7])}
	st.Rate = v[8]
	return st, uint8(v[9]), nil
}
