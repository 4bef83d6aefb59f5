package protocol

import (
	"testing"
)

func TestVLQIntRoundTrip(t *testing.T) {
	testCases := []struct {
		value int32
		size  int
	}{
		{0, 1},
		{1, 1},
		{-1, 1},
		{-32, 1},
		{95, 1},
		{96, 2},
		{-33, 2},
		{1000, 2},
		{-1000, 2},
		{65535, 3},
		{-65535, 3},
		{1000000, 3},
		{-1000000, 4},
		{2147483647, 5},
		{-2147483648, 5},
	}

	for _, tc := range testCases {
		output := NewScratchOutput()
		EncodeVLQInt(output, tc.value)
		encoded := output.Result()
		if len(encoded) != tc.size {
			t.Errorf("%d encoded in %d bytes, want %d", tc.value, len(encoded), tc.size)
		}

		data := encoded
		decoded, err := DecodeVLQInt(&data)
		if err != nil {
			t.Errorf("decode %d: %v", tc.value, err)
			continue
		}
		if decoded != tc.value {
			t.Errorf("VLQ mismatch: expected %d, got %d (encoded as %v)", tc.value, decoded, encoded)
		}
		if len(data) != 0 {
			t.Errorf("decode %d left %d bytes", tc.value, len(data))
		}
	}
}

func TestVLQUintAndBool(t *testing.T) {
	output := NewScratchOutput()
	EncodeVLQUint(output, 4000000000)
	EncodeVLQBool(output, true)
	EncodeVLQBool(output, false)

	data := output.Result()
	u, err := DecodeVLQUint(&data)
	if err != nil || u != 4000000000 {
		t.Fatalf("uint: got %d, %v", u, err)
	}
	b, err := DecodeVLQBool(&data)
	if err != nil || !b {
		t.Fatalf("first bool: got %v, %v", b, err)
	}
	b, err = DecodeVLQBool(&data)
	if err != nil || b {
		t.Fatalf("second bool: got %v, %v", b, err)
	}
}

func TestVLQString(t *testing.T) {
	for _, expected := range []string{"", "hello", Version} {
		output := NewScratchOutput()
		EncodeVLQString(output, expected)

		data := output.Result()
		decoded, err := DecodeVLQString(&data)
		if err != nil {
			t.Errorf("Failed to decode string '%s': %v", expected, err)
			continue
		}
		if decoded != expected {
			t.Errorf("String mismatch: expected '%s', got '%s'", expected, decoded)
		}
	}
}

func TestVLQBytesShort(t *testing.T) {
	data := []byte{5, 1, 2}
	if _, err := DecodeVLQBytes(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQBufferTooSmall(t *testing.T) {
	data := []byte{0x80} // Continuation byte but no following byte
	if _, err := DecodeVLQInt(&data); err != ErrBufferTooSmall {
		t.Errorf("Expected ErrBufferTooSmall, got %v", err)
	}
}

func TestVLQTooLong(t *testing.T) {
	data := []byte{0x81, 0x81, 0x81, 0x81, 0x81, 0x01}
	if _, err := DecodeVLQInt(&data); err != ErrInvalidVLQ {
		t.Errorf("Expected ErrInvalidVLQ, got %v", err)
	}
}
