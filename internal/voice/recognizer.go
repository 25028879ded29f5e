package voice

import (
	"context"
	"errors"
	"fmt"
)

// ErrCapabilityUnavailable is returned by a Factory when the host has no
// speech-recognition support (no provider key, no microphone source).
var ErrCapabilityUnavailable = errors.New("voice: speech recognition unavailable")

// Recognition error codes. These follow the Web Speech API names so browser
// and server-side recognizers report the same vocabulary.
const (
	CodeNotAllowed   = "not-allowed"
	CodeNetwork      = "network"
	CodeNoSpeech     = "no-speech"
	CodeAudioCapture = "audio-capture"
	CodeAborted      = "aborted"
)

// RecognitionError is a non-fatal failure reported by the capability
type RecognitionError struct {
	Code string
}

func (e *RecognitionError) Error() string {
	return fmt.Sprintf("voice: recognition error: %s", e.Code)
}

// Options configures the capability when it is first created
type Options struct {
	Language        string
	InterimResults  bool
	MaxAlternatives int
}

// DefaultOptions matches what the widget asks of every recognizer
func DefaultOptions() Options {
	return Options{
		Language:        "en-US",
		InterimResults:  true,
		MaxAlternatives: 1,
	}
}

// Handler receives capability events. Each OnPartialResult carries the full
// transcript-to-date for the current utterance.
type Handler interface {
	OnPartialResult(text string)
	OnSpeechEnd()
	OnRecognitionError(code string)
}

// Recognizer is a streaming speech-recognition capability.
//
// The controller calls Stop while holding its lock, so Stop may not invoke
// the Handler synchronously or wait for a handler call to return. Start runs
// outside the lock and is never called concurrently with itself.
type Recognizer interface {
	// Start begins a recognition session and returns once the start request
	// is issued. ctx bounds the start request only; results arrive later
	// through the Handler.
	Start(ctx context.Context) error
	// Stop ends the current session and releases the microphone. It must be
	// safe to call when no session is running.
	Stop() error
	SetHandler(h Handler)
	Close() error
}

// Factory creates the capability. It returns ErrCapabilityUnavailable when
// the host cannot provide one.
type Factory func(opts Options) (Recognizer, error)

// Unavailable is a Factory for hosts without speech recognition
func Unavailable(Options) (Recognizer, error) {
	return nil, ErrCapabilityUnavailable
}
