package audio

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os/exec"
	"strings"

	"github.com/rs/zerolog"
)

// Command captures audio by running an external recorder that writes raw
// PCM16 mono 16kHz to stdout, e.g. "arecord -q -f S16_LE -r 16000 -c 1 -t raw".
type Command struct {
	name   string
	args   []string
	logger zerolog.Logger
}

// NewCommand parses a whitespace-separated command line
func NewCommand(cmdline string, logger zerolog.Logger) (*Command, error) {
	fields := strings.Fields(cmdline)
	if len(fields) == 0 {
		return nil, errors.New("audio: empty capture command")
	}
	return &Command{name: fields[0], args: fields[1:], logger: logger}, nil
}

// Open starts the recorder. The process is killed when ctx is done.
func (c *Command) Open(ctx context.Context) (<-chan []byte, error) {
	cmd := exec.CommandContext(ctx, c.name, c.args...)
	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("audio: stdout pipe: %w", err)
	}
	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("audio: start %s: %w", c.name, err)
	}
	c.logger.Debug().Str("cmd", c.name).Int("pid", cmd.Process.Pid).Msg("capture started")

	frames := make(chan []byte, 16)
	go func() {
		defer close(frames)
		c.pump(ctx, stdout, frames)
		if err := cmd.Wait(); err != nil && ctx.Err() == nil {
			c.logger.Warn().Err(err).Str("cmd", c.name).Msg("capture command exited")
		}
	}()
	return frames, nil
}

func (c *Command) pump(ctx context.Context, r io.Reader, frames chan<- []byte) {
	for {
		buf := make([]byte, FrameBytes)
		n, err := io.ReadFull(r, buf)
		if n > 0 {
			select {
			case frames <- buf[:n]:
			case <-ctx.Done():
				return
			}
		}
		if err != nil {
			return
		}
	}
}
