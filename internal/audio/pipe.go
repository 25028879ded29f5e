package audio

import (
	"context"
	"sync"
	"sync/atomic"
)

const defaultPipeBuffer = 64

// Pipe is a Source fed by Write, typically from a browser WebSocket. Only the
// most recent Open receives frames; frames written with no open consumer, or
// while the consumer lags, are dropped.
type Pipe struct {
	buffer int

	mu sync.Mutex
	ch chan []byte

	dropped atomic.Uint64
}

// NewPipe creates a pipe with room for buffer frames (default when <= 0)
func NewPipe(buffer int) *Pipe {
	if buffer <= 0 {
		buffer = defaultPipeBuffer
	}
	return &Pipe{buffer: buffer}
}

// Open starts a new consumer, closing any previous one
func (p *Pipe) Open(ctx context.Context) (<-chan []byte, error) {
	ch := make(chan []byte, p.buffer)

	p.mu.Lock()
	if p.ch != nil {
		close(p.ch)
	}
	p.ch = ch
	p.mu.Unlock()

	go func() {
		<-ctx.Done()
		p.mu.Lock()
		if p.ch == ch {
			close(ch)
			p.ch = nil
		}
		p.mu.Unlock()
	}()

	return ch, nil
}

// Write offers one frame to the open consumer and reports whether it was
// accepted. It never blocks.
func (p *Pipe) Write(frame []byte) bool {
	if len(frame) == 0 {
		return false
	}
	buf := make([]byte, len(frame))
	copy(buf, frame)

	p.mu.Lock()
	defer p.mu.Unlock()
	if p.ch == nil {
		p.dropped.Add(1)
		return false
	}
	select {
	case p.ch <- buf:
		return true
	default:
		p.dropped.Add(1)
		return false
	}
}

// Listening reports whether a consumer is open
func (p *Pipe) Listening() bool {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.ch != nil
}

// Dropped returns how many frames were discarded so far
func (p *Pipe) Dropped() uint64 {
	return p.dropped.Load()
}
