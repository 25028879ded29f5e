// Package voice turns a streaming speech-recognition capability into a
// confirmable search value.
//
// A dictation session moves Idle -> Capturing -> AwaitingConfirmation -> Idle.
// Speech end and recognition errors end capture but keep the prompt up with
// whatever transcript arrived; only Confirm or Cancel close it.
package voice

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/rs/zerolog"
)

// State is the dictation session state
type State int

const (
	Idle State = iota
	Capturing
	AwaitingConfirmation
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Capturing:
		return "capturing"
	case AwaitingConfirmation:
		return "awaiting_confirmation"
	default:
		return fmt.Sprintf("state(%d)", int(s))
	}
}

// MarshalText renders the state name in JSON
func (s State) MarshalText() ([]byte, error) {
	return []byte(s.String()), nil
}

// Prompt texts shown in the confirmation popup
const (
	PromptListening = "Listening..."
	NoticeNoVoice   = "Voice input is not available on this device"
)

// DefaultStartTimeout bounds Recognizer.Start
const DefaultStartTimeout = 5 * time.Second

// Session is a point-in-time view of the dictation session
type Session struct {
	State      State  `json:"state"`
	Active     bool   `json:"active"`
	Visible    bool   `json:"visible"`
	Transcript string `json:"transcript"`
	Prompt     string `json:"prompt,omitempty"`
	LastError  string `json:"last_error,omitempty"`
}

// Adopter takes a confirmed transcript as the new search query
type Adopter interface {
	Adopt(text string)
}

// Controller owns one recognizer for its lifetime and at most one dictation
// session at a time.
type Controller struct {
	factory Factory
	adopter Adopter
	opts    Options
	logger  zerolog.Logger

	startTimeout time.Duration

	// startMu serializes BeginCapture so starts never overlap
	startMu sync.Mutex

	mu         sync.Mutex
	rec        Recognizer
	state      State
	transcript string
	lastErr    string
	notice     string
	gen        uint64
	started    time.Time
	partials   int
	observers  []func()
}

// NewController creates a controller. The recognizer is not created until
// the first BeginCapture.
func NewController(factory Factory, adopter Adopter, opts Options, logger zerolog.Logger) *Controller {
	if factory == nil {
		factory = Unavailable
	}
	return &Controller{
		factory: factory,
		adopter: adopter,
		opts:    opts,
		logger:  logger,

		startTimeout: DefaultStartTimeout,
	}
}

// OnChange registers fn to run after every state change. Observers run
// outside the controller lock and may call Snapshot.
func (c *Controller) OnChange(fn func()) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.observers = append(c.observers, fn)
}

// BeginCapture opens a dictation session and starts the recognizer. When
// speech recognition is unavailable the session state is left alone, a
// notice is recorded and ErrCapabilityUnavailable is returned.
//
// The recognizer starts outside the controller lock, so snapshots and
// cancels are served while it connects. A session closed or replaced during
// the start is stopped as soon as the start returns.
func (c *Controller) BeginCapture() error {
	c.startMu.Lock()
	defer c.startMu.Unlock()

	c.mu.Lock()

	if c.rec == nil {
		rec, err := c.factory(c.opts)
		if err != nil {
			if !errors.Is(err, ErrCapabilityUnavailable) {
				err = fmt.Errorf("%w: %v", ErrCapabilityUnavailable, err)
			}
			c.notice = NoticeNoVoice
			c.mu.Unlock()
			c.logger.Warn().Err(err).Msg("voice input requested but speech recognition is unavailable")
			c.notify()
			return err
		}
		c.rec = rec
	}

	if c.state == Capturing {
		// one capability instance per controller: restart it
		if err := c.rec.Stop(); err != nil {
			c.logger.Debug().Err(err).Msg("stop before restart")
		}
		c.logger.Debug().Msg("dictation restarted")
	}

	c.gen++
	gen := c.gen
	rec := c.rec
	rec.SetHandler(&sessionHandler{c: c, gen: gen})
	c.state = Capturing
	c.transcript = ""
	c.lastErr = ""
	c.notice = ""
	c.started = time.Now()
	c.partials = 0
	c.mu.Unlock()
	c.notify()

	ctx, cancel := context.WithTimeout(context.Background(), c.startTimeout)
	err := rec.Start(ctx)
	cancel()

	c.mu.Lock()
	if gen != c.gen {
		// confirmed, cancelled or disposed while starting
		c.mu.Unlock()
		if err == nil {
			if stopErr := rec.Stop(); stopErr != nil {
				c.logger.Debug().Err(stopErr).Msg("stop superseded start")
			}
		}
		return nil
	}
	if err != nil {
		code := CodeAborted
		var recErr *RecognitionError
		if errors.As(err, &recErr) {
			code = recErr.Code
		}
		c.state = AwaitingConfirmation
		c.lastErr = code
		c.mu.Unlock()
		c.logger.Error().Err(err).Str("code", code).Msg("speech recognition failed to start")
		c.notify()
		return nil
	}
	c.mu.Unlock()

	c.logger.Info().Str("language", c.opts.Language).Msg("dictation started")
	return nil
}

// OnPartialResult replaces the transcript with the joined transcript-to-date
func (c *Controller) OnPartialResult(text string) { c.partial(c.currentGen(), text) }

// OnSpeechEnd ends capture and stops the recognizer. The prompt and the
// transcript stay so the user can still confirm.
func (c *Controller) OnSpeechEnd() { c.speechEnd(c.currentGen()) }

// OnRecognitionError ends capture without clearing the transcript. Voice
// input is a convenience, so the error is only logged and recorded.
func (c *Controller) OnRecognitionError(code string) { c.recognitionError(c.currentGen(), code) }

// Confirm adopts the current transcript as the search query and closes the
// session. It reports false when there was no session to confirm.
func (c *Controller) Confirm() bool {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return false
	}
	if c.state == Capturing {
		if err := c.rec.Stop(); err != nil {
			c.logger.Debug().Err(err).Msg("stop on confirm")
		}
	}
	text := c.transcript
	c.closeLocked("confirmed")
	c.mu.Unlock()

	if c.adopter != nil {
		c.adopter.Adopt(text)
	}
	c.notify()
	return true
}

// Cancel discards the transcript and closes the session. The search query is
// never touched. Safe to call in any state.
func (c *Controller) Cancel() {
	c.mu.Lock()
	if c.state == Idle {
		c.mu.Unlock()
		return
	}
	if c.state == Capturing && c.rec != nil {
		if err := c.rec.Stop(); err != nil {
			c.logger.Debug().Err(err).Msg("stop on cancel")
		}
	}
	c.closeLocked("cancelled")
	c.mu.Unlock()
	c.notify()
}

// Dispose stops and releases the recognizer. A later BeginCapture creates a
// fresh one.
func (c *Controller) Dispose() error {
	c.mu.Lock()
	var err error
	if c.rec != nil {
		if stopErr := c.rec.Stop(); stopErr != nil {
			c.logger.Debug().Err(stopErr).Msg("stop on dispose")
		}
		err = c.rec.Close()
		c.rec = nil
	}
	wasOpen := c.state != Idle
	if wasOpen {
		c.closeLocked("disposed")
	}
	c.gen++
	c.mu.Unlock()

	if wasOpen {
		c.notify()
	}
	return err
}

// Snapshot returns the current session view
func (c *Controller) Snapshot() Session {
	c.mu.Lock()
	defer c.mu.Unlock()

	s := Session{
		State:      c.state,
		Active:     c.state == Capturing,
		Visible:    c.state != Idle,
		Transcript: c.transcript,
		LastError:  c.lastErr,
	}
	if s.Visible {
		s.Prompt = PromptListening
		if s.Transcript != "" {
			s.Prompt = fmt.Sprintf("Recognized Text: %q", s.Transcript)
		}
	}
	return s
}

// Notice returns the last availability notice, empty when voice works
func (c *Controller) Notice() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.notice
}

func (c *Controller) closeLocked(outcome string) {
	c.logger.Info().
		Str("outcome", outcome).
		Int("partials", c.partials).
		Dur("duration", time.Since(c.started)).
		Bool("empty", c.transcript == "").
		Msg("dictation closed")

	c.state = Idle
	c.transcript = ""
	c.lastErr = ""
	c.gen++
}

func (c *Controller) currentGen() uint64 {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.gen
}

// deliver applies a capability event if it belongs to session gen and the
// session is still capturing
func (c *Controller) deliver(gen uint64, apply func()) {
	c.mu.Lock()
	if gen != c.gen || c.state != Capturing {
		c.mu.Unlock()
		return
	}
	apply()
	c.mu.Unlock()
	c.notify()
}

func (c *Controller) partial(gen uint64, text string) {
	c.deliver(gen, func() {
		c.transcript = text
		c.partials++
	})
}

func (c *Controller) speechEnd(gen uint64) {
	c.deliver(gen, func() {
		c.state = AwaitingConfirmation
		if err := c.rec.Stop(); err != nil {
			c.logger.Debug().Err(err).Msg("stop on speech end")
		}
	})
}

func (c *Controller) recognitionError(gen uint64, code string) {
	c.deliver(gen, func() {
		c.state = AwaitingConfirmation
		c.lastErr = code
		c.logger.Error().Err(&RecognitionError{Code: code}).Msg("speech recognition error")
	})
}

func (c *Controller) notify() {
	c.mu.Lock()
	observers := make([]func(), len(c.observers))
	copy(observers, c.observers)
	c.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}

// sessionHandler binds capability events to the session that registered it,
// so events still in flight from a stopped session are dropped.
type sessionHandler struct {
	c   *Controller
	gen uint64
}

func (h *sessionHandler) OnPartialResult(text string)    { h.c.partial(h.gen, text) }
func (h *sessionHandler) OnSpeechEnd()                   { h.c.speechEnd(h.gen) }
func (h *sessionHandler) OnRecognitionError(code string) { h.c.recognitionError(h.gen, code) }
