package protocol

import (
	"bytes"
	"testing"
)

func TestSliceInputBuffer(t *testing.T) {
	buf := NewSliceInputBuffer([]byte{1, 2, 3, 4, 5})

	buf.Pop(2)
	if buf.Available() != 3 || buf.Data()[0] != 3 {
		t.Errorf("after Pop(2): available=%d data=%v", buf.Available(), buf.Data())
	}

	buf.Pop(10)
	if buf.Available() != 0 {
		t.Errorf("Pop past end left %d bytes", buf.Available())
	}
}

func TestScratchOutputPatch(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output([]byte{0, 0x10})
	cursor := 0
	scratch.Output([]byte{7, 8, 9})
	scratch.Update(cursor, byte(len(scratch.DataSince(cursor))))

	if !bytes.Equal(scratch.Result(), []byte{5, 0x10, 7, 8, 9}) {
		t.Errorf("patched output = %v", scratch.Result())
	}
	if since := scratch.DataSince(2); !bytes.Equal(since, []byte{7, 8, 9}) {
		t.Errorf("DataSince(2) = %v", since)
	}

	scratch.Reset()
	if scratch.CurPosition() != 0 {
		t.Errorf("After reset, expected position 0, got %d", scratch.CurPosition())
	}
}

func TestScratchOutputTruncates(t *testing.T) {
	scratch := NewScratchOutput()
	scratch.Output(make([]byte, MessageMax+10))
	if scratch.CurPosition() != MessageMax {
		t.Errorf("position = %d, want %d", scratch.CurPosition(), MessageMax)
	}
}

func TestFifoBufferCapacity(t *testing.T) {
	fifo := NewFifoBuffer(10)
	if !fifo.IsEmpty() || fifo.Free() != 9 {
		t.Fatalf("new FIFO: empty=%v free=%d", fifo.IsEmpty(), fifo.Free())
	}

	written := fifo.Write(make([]byte, 12))
	if written != 9 {
		t.Errorf("Expected to write 9 bytes to size-10 FIFO, wrote %d", written)
	}
	if fifo.Free() != 0 {
		t.Errorf("full FIFO reports %d free", fifo.Free())
	}
}

func TestFifoBufferWrappedDataIsContiguous(t *testing.T) {
	fifo := NewFifoBuffer(6)
	fifo.Write([]byte{1, 2, 3, 4})
	fifo.Pop(3)
	fifo.Write([]byte{5, 6, 7})

	if got := fifo.Data(); !bytes.Equal(got, []byte{4, 5, 6, 7}) {
		t.Errorf("Data() = %v, want [4 5 6 7]", got)
	}

	out := make([]byte, 4)
	if n := fifo.Read(out); n != 4 || !bytes.Equal(out, []byte{4, 5, 6, 7}) {
		t.Errorf("Read() = %d %v", n, out)
	}
	if !fifo.IsEmpty() {
		t.Error("FIFO should be empty after reading everything")
	}
}
