package core

// Home record persistence
// One fixed-size record: magic, version, X/Y/Z big-endian int32, CRC16.

import (
	"cncmotion/protocol"
	"errors"
	"io"
)

const (
	HomeRecordMagic   = 'H'
	HomeRecordVersion = 1
	HomeRecordSize    = 15
)

var ErrNoHomeRecord = errors.New("no valid home record")

// HomeStore is the persistent home-position collaborator
type HomeStore interface {
	LoadHome() (HomeCoordinates, error)
	SaveHome(h HomeCoordinates) error
}

// EncodeHomeRecord serializes h into a record
func EncodeHomeRecord(h HomeCoordinates) [HomeRecordSize]byte {
	var rec [HomeRecordSize]byte
	rec[0] = HomeRecordMagic
	rec[1] = HomeRecordVersion
	for a := AxisID(0); a < NumAxes; a++ {
		v := uint32(h.Get(a))
		off := 2 + 4*int(a)
		rec[off] = byte(v >> 24)
		rec[off+1] = byte(v >> 16)
		rec[off+2] = byte(v >> 8)
		rec[off+3] = byte(v)
	}
	crc := protocol.CRC16(rec[:HomeRecordSize-2])
	rec[HomeRecordSize-2] = byte(crc >> 8)
	rec[HomeRecordSize-1] = byte(crc)
	return rec
}

// DecodeHomeRecord parses a record. Blank, foreign or corrupt data yields
// ErrNoHomeRecord.
func DecodeHomeRecord(rec []byte) (HomeCoordinates, error) {
	var h HomeCoordinates
	if len(rec) < HomeRecordSize || rec[0] != HomeRecordMagic || rec[1] != HomeRecordVersion {
		return h, ErrNoHomeRecord
	}
	crc := protocol.CRC16(rec[:HomeRecordSize-2])
	if rec[HomeRecordSize-2] != byte(crc>>8) || rec[HomeRecordSize-1] != byte(crc) {
		return h, ErrNoHomeRecord
	}
	for a := AxisID(0); a < NumAxes; a++ {
		off := 2 + 4*int(a)
		v := uint32(rec[off])<<24 | uint32(rec[off+1])<<16 | uint32(rec[off+2])<<8 | uint32(rec[off+3])
		h.Set(a, int32(v))
	}
	return h, nil
}

// MemoryStore keeps the record in RAM
type MemoryStore struct {
	rec   [HomeRecordSize]byte
	valid bool
}

func (m *MemoryStore) LoadHome() (HomeCoordinates, error) {
	if !m.valid {
		return HomeCoordinates{}, ErrNoHomeRecord
	}
	return DecodeHomeRecord(m.rec[:])
}

func (m *MemoryStore) SaveHome(h HomeCoordinates) error {
	m.rec = EncodeHomeRecord(h)
	m.valid = true
	return nil
}

// ByteDevice is random-access storage such as an EEPROM or a file
type ByteDevice interface {
	io.ReaderAt
	io.WriterAt
}

// ByteStore keeps the record at a fixed offset of a ByteDevice
type ByteStore struct {
	dev    ByteDevice
	offset int64
}

// NewByteStore creates a store at offset within dev
func NewByteStore(dev ByteDevice, offset int64) *ByteStore {
	return &ByteStore{dev: dev, offset: offset}
}

func (s *ByteStore) LoadHome() (HomeCoordinates, error) {
	var rec [HomeRecordSize]byte
	n, err := s.dev.ReadAt(rec[:], s.offset)
	if n < HomeRecordSize {
		if err == nil || err == io.EOF {
			return HomeCoordinates{}, ErrNoHomeRecord
		}
		return HomeCoordinates{}, err
	}
	return DecodeHomeRecord(rec[:])
}

func (s *ByteStore) SaveHome(h HomeCoordinates) error {
	rec := EncodeHomeRecord(h)
	_, err := s.dev.WriteAt(rec[:], s.offset)
	return err
}
