package audio

import (
	"context"
	"os/exec"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestFrameBytes(t *testing.T) {
	if FrameBytes != 3200 {
		t.Errorf("FrameBytes = %d, want 3200", FrameBytes)
	}
}

func TestPipeDropsWithoutConsumer(t *testing.T) {
	p := NewPipe(4)
	if p.Write([]byte{1, 2}) {
		t.Error("write with no consumer should be dropped")
	}
	if p.Dropped() != 1 {
		t.Errorf("Dropped = %d, want 1", p.Dropped())
	}
	if p.Write(nil) {
		t.Error("empty frame should be rejected")
	}
}

func TestPipeDelivers(t *testing.T) {
	p := NewPipe(4)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	frames, err := p.Open(ctx)
	if err != nil {
		t.Fatal(err)
	}
	src := []byte{1, 2, 3}
	if !p.Write(src) {
		t.Fatal("write should be accepted")
	}
	src[0] = 9

	got := <-frames
	if got[0] != 1 {
		t.Error("pipe should copy frames")
	}
}

func TestPipeBackpressureDrops(t *testing.T) {
	p := NewPipe(2)
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	if _, err := p.Open(ctx); err != nil {
		t.Fatal(err)
	}

	accepted := 0
	for i := 0; i < 5; i++ {
		if p.Write([]byte{byte(i)}) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Errorf("accepted %d, want 2", accepted)
	}
	if p.Dropped() != 3 {
		t.Errorf("Dropped = %d, want 3", p.Dropped())
	}
}

func TestPipeCloseOnCancel(t *testing.T) {
	p := NewPipe(4)
	ctx, cancel := context.WithCancel(context.Background())
	frames, _ := p.Open(ctx)
	cancel()

	select {
	case _, ok := <-frames:
		if ok {
			t.Fatal("expected closed channel")
		}
	case <-time.After(time.Second):
		t.Fatal("channel not closed after cancel")
	}
	if p.Listening() {
		t.Error("pipe should not be listening after cancel")
	}
}

func TestPipeReopenClosesPrevious(t *testing.T) {
	p := NewPipe(4)
	ctx := context.Background()
	first, _ := p.Open(ctx)
	second, _ := p.Open(ctx)

	if _, ok := <-first; ok {
		t.Error("first consumer should be closed")
	}
	p.Write([]byte{7})
	if got := <-second; got[0] != 7 {
		t.Errorf("second consumer got %v", got)
	}
}

func TestNewCommandEmpty(t *testing.T) {
	if _, err := NewCommand("   ", zerolog.Nop()); err == nil {
		t.Error("expected error for empty command")
	}
}

func TestCommandFrames(t *testing.T) {
	if _, err := exec.LookPath("head"); err != nil {
		t.Skip("head not available")
	}
	c, err := NewCommand("head -c 8000 /dev/zero", zerolog.Nop())
	if err != nil {
		t.Fatal(err)
	}

	frames, err := c.Open(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	var sizes []int
	for f := range frames {
		sizes = append(sizes, len(f))
	}
	if len(sizes) != 3 || sizes[0] != FrameBytes || sizes[2] != 8000-2*FrameBytes {
		t.Errorf("frame sizes = %v", sizes)
	}
}

func TestCommandStartError(t *testing.T) {
	c, _ := NewCommand("definitely-not-a-recorder-binary", zerolog.Nop())
	if _, err := c.Open(context.Background()); err == nil {
		t.Error("expected start error")
	}
}
