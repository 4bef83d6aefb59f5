package protocol

import (
	"io"
	"sync"
)

// DefaultPumpBuffer is the receive FIFO size of a Pump
const DefaultPumpBuffer = 512

// Pump carries a byte stream through the controller Transport. A reader
// goroutine feeds it with Write; the foreground loop calls Process to
// dispatch complete frames and Flush to send queued ACKs and responses.
type Pump struct {
	mu      sync.Mutex
	input   *FifoBuffer
	output  StreamOutput
	dropped int

	transport *Transport
}

// NewPump creates a pump whose transport dispatches commands to handler
func NewPump(handler CommandHandler) *Pump {
	p := &Pump{input: NewFifoBuffer(DefaultPumpBuffer)}
	p.transport = NewTransport(&p.output, handler)
	return p
}

// Transport returns the controller transport, for sending responses
func (p *Pump) Transport() *Transport {
	return p.transport
}

// Write queues received bytes. Bytes that do not fit are dropped and
// counted; the transport resynchronizes on the next good frame.
func (p *Pump) Write(data []byte) (int, error) {
	p.mu.Lock()
	n := p.input.Write(data)
	p.dropped += len(data) - n
	p.mu.Unlock()
	return len(data), nil
}

// Process dispatches every complete frame received so far
func (p *Pump) Process() {
	p.mu.Lock()
	defer p.mu.Unlock()

	if p.input.Available() == 0 {
		return
	}
	data := p.input.Data()
	in := NewSliceInputBuffer(data)
	p.transport.Receive(in)
	if consumed := len(data) - in.Available(); consumed > 0 {
		p.input.Pop(consumed)
	}
}

// Pending returns the number of queued output bytes
func (p *Pump) Pending() int {
	return len(p.output.Result())
}

// Flush writes queued output to w. On error the output is kept for the
// next attempt.
func (p *Pump) Flush(w io.Writer) error {
	out := p.output.Result()
	if len(out) == 0 {
		return nil
	}
	n, err := w.Write(out)
	if err != nil {
		if n > 0 {
			rest := append([]byte(nil), out[n:]...)
			p.output.Reset()
			p.output.Output(rest)
		}
		return err
	}
	p.output.Reset()
	return nil
}

// Dropped returns the number of received bytes lost to a full FIFO
func (p *Pump) Dropped() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.dropped
}

// Reset discards buffered input and output and resets the transport, for
// a host reconnect
func (p *Pump) Reset() {
	p.mu.Lock()
	p.input.Reset()
	p.mu.Unlock()
	p.output.Reset()
	p.transport.Reset()
}
