package protocol

import (
	"bytes"
	"errors"
	"net"
	"testing"
	"time"
)

// hostFrame builds a host command frame with the given sequence
func hostFrame(t *testing.T, seq uint8, cmdID uint16, args ...uint32) []byte {
	t.Helper()
	scratch := NewScratchOutput()
	EncodeVLQUint(scratch, uint32(cmdID))
	for _, a := range args {
		EncodeVLQUint(scratch, a)
	}
	frame, err := EncodeFrame(seq, scratch.Result())
	if err != nil {
		t.Fatal(err)
	}
	return frame
}

func ackFrame(seq uint8) []byte {
	crc := CRC16([]byte{MessageLengthMin, seq})
	return []byte{MessageLengthMin, seq, uint8(crc >> 8), uint8(crc), MessageValueSync}
}

type dispatched struct {
	id   uint16
	args []uint32
}

func newRecordingTransport(nargs int) (*Transport, *ScratchOutput, *[]dispatched) {
	out := NewScratchOutput()
	var got []dispatched
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		d := dispatched{id: cmdID}
		for i := 0; i < nargs; i++ {
			v, err := DecodeVLQUint(data)
			if err != nil {
				return err
			}
			d.args = append(d.args, v)
		}
		got = append(got, d)
		return nil
	})
	return tr, out, &got
}

func TestTransportDispatchesAndAcks(t *testing.T) {
	tr, out, got := newRecordingTransport(2)

	in := NewSliceInputBuffer(hostFrame(t, MessageDest, MsgJog, 1, 2))
	tr.Receive(in)

	if len(*got) != 1 || (*got)[0].id != MsgJog || (*got)[0].args[0] != 1 || (*got)[0].args[1] != 2 {
		t.Fatalf("dispatched = %+v", *got)
	}
	if !bytes.Equal(out.Result(), ackFrame(MessageDest+1)) {
		t.Errorf("ack = %v, want %v", out.Result(), ackFrame(MessageDest+1))
	}
	if in.Available() != 0 {
		t.Errorf("%d bytes left unconsumed", in.Available())
	}
}

func TestTransportKeepsPartialFrame(t *testing.T) {
	tr, out, got := newRecordingTransport(0)
	frame := hostFrame(t, MessageDest, MsgStopAll)

	fifo := NewFifoBuffer(64)
	fifo.Write(frame[:3])
	tr.Receive(fifo)
	if len(*got) != 0 || out.CurPosition() != 0 || fifo.Available() != 3 {
		t.Fatalf("partial frame was consumed: got=%v out=%v avail=%d", *got, out.Result(), fifo.Available())
	}

	fifo.Write(frame[3:])
	tr.Receive(fifo)
	if len(*got) != 1 || (*got)[0].id != MsgStopAll {
		t.Fatalf("dispatched = %+v", *got)
	}
}

func TestTransportResyncsAfterCorruptFrame(t *testing.T) {
	tr, out, got := newRecordingTransport(0)

	bad := hostFrame(t, MessageDest, MsgStopAll)
	bad[2] ^= 0xFF
	good := hostFrame(t, MessageDest, MsgGetStatus)

	tr.Receive(NewSliceInputBuffer(append(bad, good...)))

	if len(*got) != 1 || (*got)[0].id != MsgGetStatus {
		t.Fatalf("dispatched = %+v", *got)
	}
	// One ACK on resync, one for the good frame
	want := append(ackFrame(MessageDest), ackFrame(MessageDest+1)...)
	if !bytes.Equal(out.Result(), want) {
		t.Errorf("output = %v, want %v", out.Result(), want)
	}
	if !tr.Synchronized() {
		t.Error("transport should be synchronized")
	}
}

func TestTransportNaksWrongSequence(t *testing.T) {
	tr, out, got := newRecordingTransport(0)

	tr.Receive(NewSliceInputBuffer(hostFrame(t, MessageDest, MsgGetStatus)))
	out.Reset()
	tr.Receive(NewSliceInputBuffer(hostFrame(t, MessageDest+5, MsgGetStatus)))

	if len(*got) != 1 {
		t.Errorf("out-of-sequence frame was dispatched: %+v", *got)
	}
	if !bytes.Equal(out.Result(), ackFrame(MessageDest+1)) {
		t.Errorf("nak = %v, want %v", out.Result(), ackFrame(MessageDest+1))
	}
}

func TestTransportHandlerErrorKeepsSync(t *testing.T) {
	out := NewScratchOutput()
	var reported error
	tr := NewTransport(out, func(cmdID uint16, data *[]byte) error {
		return errors.New("boom")
	})
	tr.SetErrorCallback(func(cmdID uint16, err error) { reported = err })

	tr.Receive(NewSliceInputBuffer(hostFrame(t, MessageDest, MsgHome, 9)))

	if reported == nil {
		t.Error("handler error was not reported")
	}
	if !tr.Synchronized() {
		t.Error("handler error must not desync the transport")
	}
}

func TestEncodeFrameTooLong(t *testing.T) {
	if _, err := EncodeFrame(MessageDest, make([]byte, MessageLengthMax)); err != ErrFrameTooLong {
		t.Errorf("expected ErrFrameTooLong, got %v", err)
	}
}

// serveController runs a controller transport on one end of a pipe. Every
// get_status command is answered with a status response carrying 42.
func serveController(conn net.Conn) {
	out := NewScratchOutput()
	var tr *Transport
	tr = NewTransport(out, func(cmdID uint16, data *[]byte) error {
		if cmdID == MsgGetStatus {
			tr.SendCommand(MsgStatus, func(o OutputBuffer) {
				EncodeVLQUint(o, 42)
			})
		}
		return nil
	})

	in := NewFifoBuffer(256)
	buf := make([]byte, 64)
	for {
		n, err := conn.Read(buf)
		if err != nil {
			return
		}
		in.Write(buf[:n])
		tr.Receive(in)
		if out.CurPosition() > 0 {
			if _, err := conn.Write(out.Result()); err != nil {
				return
			}
			out.Reset()
		}
	}
}

func TestHostTransportRequest(t *testing.T) {
	hostEnd, mcuEnd := net.Pipe()
	go serveController(mcuEnd)

	host := NewHostTransport(hostEnd)
	defer host.Close()

	for i := 0; i < 20; i++ {
		data, err := host.Request(MsgGetStatus, nil, MsgStatus, time.Second)
		if err != nil {
			t.Fatalf("request %d: %v", i, err)
		}
		v, err := DecodeVLQUint(&data)
		if err != nil || v != 42 {
			t.Fatalf("request %d: status value %d, %v", i, v, err)
		}
	}
	// 20 commands wrap the 4-bit sequence once
	if got := host.CurrentSequence(); got != MessageDest|(20&MessageSeqMask) {
		t.Errorf("sequence = 0x%02x", got)
	}

	if err := host.SendCommand(MsgStopAll, nil); err != nil {
		t.Errorf("stop_all: %v", err)
	}
}
