// Package protocol implements the framed serial link between the motion
// controller and a host: VLQ-encoded commands in CRC16-checked frames with
// sequence numbers and ACKs.
package protocol

// Version is the link protocol version reported by identify
const Version = "cncmotion-link 1"

// Protocol constants
const (
	MessageMax = 256 // Controller output buffer size

	// Message sequence masks
	MessageSeqMask  = 0x0F
	MessageSeqShift = 4
)

// Message IDs. Commands flow host to controller, responses the other way.
const (
	MsgIdentify    = 0 // identify
	MsgGetStatus   = 1 // get_status
	MsgJog         = 2 // jog axis=%c dir=%c
	MsgRelease     = 3 // release axis=%c
	MsgStopAll     = 4 // stop_all
	MsgHome        = 5 // home mode=%c (menu choice)
	MsgHomeConfirm = 6 // home_confirm
	MsgSetFault    = 7 // set_fault code=%c

	MsgIdentifyResponse = 16 // identify_response version=%s axes=%c
	MsgStatus           = 17 // status fault=%c armed=%c homing=%c homed=%c active=%c x=%i y=%i z=%i rate=%u err=%c
)

// Status error codes carried in the err field of a status response
const (
	StatusOK         = 0
	StatusBadRequest = 1 // Unknown axis, direction or fault code
	StatusBusy       = 2 // Homing in progress or not in manual homing
	StatusNoRecord   = 3 // No stored home record
	StatusQueueFull  = 4
	StatusFailed     = 5
)

// frameStatus is the outcome of scanning for one frame
type frameStatus int

const (
	frameOK       frameStatus = iota
	frameNeedMore             // Partial frame, wait for more bytes
	frameBad                  // Corrupt framing, resynchronize
)

// scanFrame validates one frame at the start of data. It does not check the
// sequence byte; callers apply their own direction rules.
func scanFrame(data []byte) (msgLen int, st frameStatus) {
	if len(data) < MessageLengthMin {
		return 0, frameNeedMore
	}
	msgLen = int(data[MessagePositionLen])
	if msgLen < MessageLengthMin || msgLen > MessageLengthMax {
		return 0, frameBad
	}
	if len(data) < msgLen {
		return 0, frameNeedMore
	}
	if data[msgLen-MessageTrailerSync] != MessageValueSync {
		return 0, frameBad
	}
	frameCRC := uint16(data[msgLen-MessageTrailerCRC])<<8 |
		uint16(data[msgLen-MessageTrailerCRC+1])
	if frameCRC != CRC16(data[:msgLen-MessageTrailerSize]) {
		return 0, frameBad
	}
	return msgLen, frameOK
}

// skipToSync drops bytes up to and including the next sync byte. ok is
// false when no sync byte was found.
func skipToSync(data []byte) (rest []byte, ok bool) {
	for i, b := range data {
		if b == MessageValueSync {
			return data[i+1:], true
		}
	}
	return nil, false
}

// EncodeFrame builds a complete frame around payload with sequence seq
func EncodeFrame(seq uint8, payload []byte) ([]byte, error) {
	msgLen := MessageHeaderSize + len(payload) + MessageTrailerSize
	if msgLen > MessageLengthMax {
		return nil, ErrFrameTooLong
	}
	frame := make([]byte, 0, msgLen)
	frame = append(frame, uint8(msgLen), seq)
	frame = append(frame, payload...)
	crc := CRC16(frame)
	return append(frame, uint8(crc>>8), uint8(crc), MessageValueSync), nil
}
