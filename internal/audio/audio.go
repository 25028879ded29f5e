// Package audio provides microphone frame sources for server-side speech
// recognition. Frames are raw PCM16 little-endian mono at SampleRate.
package audio

import "context"

const (
	SampleRate    = 16000
	Channels      = 1
	BitsPerSample = 16

	frameMs = 100
	// FrameBytes is the size of one 100ms frame
	FrameBytes = SampleRate * Channels * (BitsPerSample / 8) * frameMs / 1000
)

// Source delivers audio frames until ctx is done or the source runs dry,
// then closes the channel. Cancelling ctx releases the microphone.
type Source interface {
	Open(ctx context.Context) (<-chan []byte, error)
}
