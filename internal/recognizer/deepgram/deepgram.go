// Package deepgram implements voice.Recognizer on Deepgram live streaming
// transcription.
package deepgram

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strconv"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/audio"
	"github.com/skycast/weather/internal/voice"
)

const (
	DefaultURL             = "wss://api.deepgram.com/v1/listen"
	DefaultNoSpeechTimeout = 8 * time.Second
	DefaultKeepAlive       = 5 * time.Second

	utteranceEndMs = 1000
	writeTimeout   = time.Second
)

// Config holds provider settings
type Config struct {
	APIKey          string
	URL             string
	NoSpeechTimeout time.Duration
	KeepAlive       time.Duration
}

func (c Config) withDefaults() Config {
	if c.URL == "" {
		c.URL = DefaultURL
	}
	if c.NoSpeechTimeout <= 0 {
		c.NoSpeechTimeout = DefaultNoSpeechTimeout
	}
	if c.KeepAlive <= 0 {
		c.KeepAlive = DefaultKeepAlive
	}
	return c
}

// Recognizer streams microphone frames from an audio.Source to Deepgram.
// One Recognizer runs at most one session at a time.
type Recognizer struct {
	cfg    Config
	opts   voice.Options
	source audio.Source
	dialer *websocket.Dialer
	logger zerolog.Logger

	mu      sync.Mutex
	handler voice.Handler
	sess    *session
	closed  bool
}

// New returns voice.ErrCapabilityUnavailable when there is no API key or no
// audio source to listen to.
func New(cfg Config, source audio.Source, opts voice.Options, logger zerolog.Logger) (*Recognizer, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("%w: no deepgram api key", voice.ErrCapabilityUnavailable)
	}
	if source == nil {
		return nil, fmt.Errorf("%w: no audio source", voice.ErrCapabilityUnavailable)
	}
	return &Recognizer{
		cfg:    cfg.withDefaults(),
		opts:   opts,
		source: source,
		dialer: &websocket.Dialer{
			HandshakeTimeout: 5 * time.Second,
			Proxy:            http.ProxyFromEnvironment,
		},
		logger: logger,
	}, nil
}

// Factory adapts New to voice.Factory for a fixed source
func Factory(cfg Config, source audio.Source, logger zerolog.Logger) voice.Factory {
	return func(opts voice.Options) (voice.Recognizer, error) {
		r, err := New(cfg, source, opts, logger)
		if err != nil {
			return nil, err
		}
		return r, nil
	}
}

// ListenURL builds the streaming endpoint for the options
func ListenURL(base string, opts voice.Options) (string, error) {
	u, err := url.Parse(base)
	if err != nil {
		return "", fmt.Errorf("deepgram: parse url: %w", err)
	}
	alternatives := opts.MaxAlternatives
	if alternatives < 1 {
		alternatives = 1
	}
	q := u.Query()
	q.Set("encoding", "linear16")
	q.Set("sample_rate", strconv.Itoa(audio.SampleRate))
	q.Set("channels", strconv.Itoa(audio.Channels))
	if opts.Language != "" {
		q.Set("language", opts.Language)
	}
	q.Set("interim_results", strconv.FormatBool(opts.InterimResults))
	q.Set("alternatives", strconv.Itoa(alternatives))
	q.Set("punctuate", "true")
	q.Set("vad_events", "true")
	q.Set("utterance_end_ms", strconv.Itoa(utteranceEndMs))
	u.RawQuery = q.Encode()
	return u.String(), nil
}

func (r *Recognizer) SetHandler(h voice.Handler) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.handler = h
}

// Start dials Deepgram and opens the audio source. A session that is still
// running is stopped first.
func (r *Recognizer) Start(ctx context.Context) error {
	r.mu.Lock()
	if r.closed {
		r.mu.Unlock()
		return errors.New("deepgram: recognizer closed")
	}
	prev := r.sess
	r.sess = nil
	handler := r.handler
	r.mu.Unlock()

	if prev != nil {
		prev.stop()
	}

	endpoint, err := ListenURL(r.cfg.URL, r.opts)
	if err != nil {
		return err
	}

	header := http.Header{"Authorization": {"Token " + r.cfg.APIKey}}
	conn, resp, err := r.dialer.DialContext(ctx, endpoint, header)
	if err != nil {
		code := voice.CodeNetwork
		if resp != nil && (resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden) {
			code = voice.CodeNotAllowed
		}
		r.logger.Error().Err(err).Str("code", code).Msg("deepgram dial failed")
		return fmt.Errorf("deepgram: dial: %w", &voice.RecognitionError{Code: code})
	}

	sessCtx, cancel := context.WithCancel(context.Background())
	frames, err := r.source.Open(sessCtx)
	if err != nil {
		cancel()
		conn.Close()
		r.logger.Error().Err(err).Msg("audio source failed to open")
		return fmt.Errorf("deepgram: open audio: %w", &voice.RecognitionError{Code: voice.CodeAudioCapture})
	}

	s := &session{
		conn:    conn,
		cancel:  cancel,
		handler: handler,
		logger:  r.logger,
		started: time.Now(),
		silence: r.cfg.NoSpeechTimeout,
	}

	r.mu.Lock()
	r.sess = s
	r.mu.Unlock()

	// the timer callback takes s.mu, so it cannot observe a half-built session
	s.mu.Lock()
	s.noSpeech = time.AfterFunc(s.silence, s.checkNoSpeech)
	s.mu.Unlock()

	go s.send(sessCtx, frames)
	go s.keepAlive(sessCtx, r.cfg.KeepAlive)
	go s.receive()

	r.logger.Debug().Str("url", r.cfg.URL).Msg("deepgram session started")
	return nil
}

// Stop ends the running session, if any. It returns without waiting for the
// session goroutines.
func (r *Recognizer) Stop() error {
	r.mu.Lock()
	s := r.sess
	r.sess = nil
	r.mu.Unlock()

	if s != nil {
		s.stop()
	}
	return nil
}

// Close stops the session and refuses further starts
func (r *Recognizer) Close() error {
	r.mu.Lock()
	r.closed = true
	r.mu.Unlock()
	return r.Stop()
}

// message covers the Deepgram live message types the recognizer reads
type message struct {
	Type        string `json:"type"`
	IsFinal     bool   `json:"is_final"`
	SpeechFinal bool   `json:"speech_final"`
	Channel     struct {
		Alternatives []struct {
			Transcript string  `json:"transcript"`
			Confidence float64 `json:"confidence"`
		} `json:"alternatives"`
	} `json:"channel"`
}

type session struct {
	conn     *websocket.Conn
	cancel   context.CancelFunc
	handler  voice.Handler
	logger   zerolog.Logger
	started  time.Time
	silence  time.Duration

	writeMu sync.Mutex

	mu       sync.Mutex
	noSpeech *time.Timer
	text     transcript
	stopped  bool
	finished bool
	messages int
}

// stop is the external shutdown: no further events are delivered
func (s *session) stop() {
	s.mu.Lock()
	if s.stopped {
		s.mu.Unlock()
		return
	}
	s.stopped = true
	s.mu.Unlock()

	s.write(websocket.TextMessage, []byte(`{"type":"CloseStream"}`))
	s.release()
}

// release frees the socket and the microphone
func (s *session) release() {
	s.mu.Lock()
	timer := s.noSpeech
	s.mu.Unlock()
	if timer != nil {
		timer.Stop()
	}
	s.cancel()
	s.conn.Close()
}

func (s *session) write(kind int, data []byte) error {
	s.writeMu.Lock()
	defer s.writeMu.Unlock()
	s.conn.SetWriteDeadline(time.Now().Add(writeTimeout))
	return s.conn.WriteMessage(kind, data)
}

// terminate delivers a terminal event once and shuts the session down
func (s *session) terminate(deliver func(voice.Handler)) {
	s.mu.Lock()
	if s.stopped || s.finished {
		s.mu.Unlock()
		return
	}
	s.finished = true
	messages := s.messages
	s.mu.Unlock()

	s.release()
	s.logger.Debug().
		Int("messages", messages).
		Dur("duration", time.Since(s.started)).
		Msg("deepgram session finished")
	if s.handler != nil {
		deliver(s.handler)
	}
}

func (s *session) fail(code string) {
	s.terminate(func(h voice.Handler) { h.OnRecognitionError(code) })
}

func (s *session) speechEnd() {
	s.terminate(func(h voice.Handler) { h.OnSpeechEnd() })
}

func (s *session) done() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stopped || s.finished
}

func (s *session) send(ctx context.Context, frames <-chan []byte) {
	for frame := range frames {
		if err := s.write(websocket.BinaryMessage, frame); err != nil {
			if !s.done() {
				s.logger.Error().Err(err).Msg("deepgram write failed")
				s.fail(voice.CodeNetwork)
			}
			return
		}
	}
	// the source ran dry on its own: the microphone went away
	if ctx.Err() == nil && !s.done() {
		s.fail(voice.CodeAudioCapture)
	}
}

func (s *session) keepAlive(ctx context.Context, every time.Duration) {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.write(websocket.TextMessage, []byte(`{"type":"KeepAlive"}`)); err != nil {
				return
			}
		}
	}
}

func (s *session) receive() {
	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if s.done() {
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) && !s.heard() {
				s.fail(voice.CodeNoSpeech)
				return
			}
			if websocket.IsCloseError(err, websocket.CloseNormalClosure) {
				s.speechEnd()
				return
			}
			s.logger.Error().Err(err).Msg("deepgram read failed")
			s.fail(voice.CodeNetwork)
			return
		}

		var msg message
		if err := json.Unmarshal(data, &msg); err != nil {
			s.logger.Debug().Err(err).Msg("deepgram: skipping unparsable message")
			continue
		}
		s.handle(msg)
	}
}

func (s *session) handle(msg message) {
	switch msg.Type {
	case "Results":
		if len(msg.Channel.Alternatives) == 0 {
			return
		}
		s.mu.Lock()
		if s.stopped || s.finished {
			s.mu.Unlock()
			return
		}
		s.messages++
		joined, changed := s.text.apply(msg.Channel.Alternatives[0].Transcript, msg.IsFinal)
		s.mu.Unlock()

		if changed && s.handler != nil {
			s.handler.OnPartialResult(joined)
		}
		if msg.SpeechFinal && joined != "" {
			s.speechEnd()
		}
	case "UtteranceEnd":
		if s.heard() {
			s.speechEnd()
		}
	case "SpeechStarted":
		// voice activity without words yet: give it a fresh silence window
		s.mu.Lock()
		if s.noSpeech != nil && !s.stopped && !s.finished {
			s.noSpeech.Reset(s.silence)
		}
		s.mu.Unlock()
	}
}

func (s *session) heard() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return !s.text.empty()
}

func (s *session) checkNoSpeech() {
	if !s.heard() {
		s.fail(voice.CodeNoSpeech)
	}
}
