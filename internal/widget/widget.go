// Package widget assembles one client's weather widget: the search field,
// the dictation session and the latest report.
package widget

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/audio"
	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/internal/logging"
	"github.com/skycast/weather/internal/search"
	"github.com/skycast/weather/internal/voice"
)

// DefaultLookupTimeout bounds one weather lookup
const DefaultLookupTimeout = 15 * time.Second

// Lookuper resolves a place name to a report
type Lookuper interface {
	Lookup(ctx context.Context, place string) (domain.Report, error)
}

// RecognizerFactory builds the voice factory for a widget's audio source
type RecognizerFactory func(src audio.Source) voice.Factory

// Config describes how widgets are built
type Config struct {
	Lookup        Lookuper
	Recognizers   RecognizerFactory
	Voice         voice.Options
	LookupTimeout time.Duration

	// Source feeds the recognizer. Nil gives each widget its own Pipe.
	Source audio.Source
}

// State is a point-in-time view of the widget
type State struct {
	ID      string          `json:"id"`
	Draft   string          `json:"draft"`
	Query   string          `json:"query"`
	Voice   voice.Session   `json:"voice"`
	Notice  string          `json:"notice,omitempty"`
	Loading bool            `json:"loading"`
	Report  *domain.Report  `json:"report,omitempty"`
	Strip   []domain.Period `json:"strip,omitempty"`
	Error   string          `json:"error,omitempty"`
}

type Widget struct {
	id      string
	lookup  Lookuper
	timeout time.Duration
	logger  zerolog.Logger

	search *search.Controller
	voice  *voice.Controller
	source audio.Source

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup

	mu         sync.Mutex
	seq        uint64
	loading    bool
	report     *domain.Report
	lookupErr  string
	lastActive time.Time
	closed     bool
	observers  []func()
}

// New builds a widget with the given id
func New(id string, cfg Config, logger zerolog.Logger) *Widget {
	logger = logger.With().Str("widget", id).Logger()
	timeout := cfg.LookupTimeout
	if timeout <= 0 {
		timeout = DefaultLookupTimeout
	}
	source := cfg.Source
	if source == nil {
		source = audio.NewPipe(0)
	}

	ctx, cancel := context.WithCancel(context.Background())
	w := &Widget{
		id:         id,
		lookup:     cfg.Lookup,
		timeout:    timeout,
		logger:     logger,
		source:     source,
		ctx:        ctx,
		cancel:     cancel,
		lastActive: time.Now(),
	}

	var factory voice.Factory
	if cfg.Recognizers != nil {
		factory = cfg.Recognizers(source)
	}
	w.search = search.NewController(w, logging.Component(logger, "search"))
	w.voice = voice.NewController(factory, w.search, cfg.Voice, logging.Component(logger, "voice"))
	w.voice.OnChange(w.notify)
	return w
}

func (w *Widget) ID() string                 { return w.id }
func (w *Widget) Search() *search.Controller { return w.search }
func (w *Widget) Voice() *voice.Controller   { return w.voice }

// Pipe returns the widget's audio pipe, or nil when it listens elsewhere
func (w *Widget) Pipe() *audio.Pipe {
	p, _ := w.source.(*audio.Pipe)
	return p
}

// OnChange registers fn to run after the widget state changes
func (w *Widget) OnChange(fn func()) {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.observers = append(w.observers, fn)
}

// Touch marks the widget as in use
func (w *Widget) Touch() {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.lastActive = time.Now()
}

// IdleSince returns when the widget was last touched
func (w *Widget) IdleSince() time.Time {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.lastActive
}

// Resolve starts a weather lookup for place. It returns at once; the result
// lands in State and observers are notified. A lookup that finishes after a
// newer one started is discarded.
func (w *Widget) Resolve(place string) {
	place = strings.TrimSpace(place)
	if place == "" {
		w.logger.Warn().Msg("ignoring lookup for empty place")
		return
	}

	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return
	}
	w.seq++
	seq := w.seq
	w.loading = true
	w.wg.Add(1)
	w.mu.Unlock()
	w.notify()

	go func() {
		defer w.wg.Done()
		ctx, cancel := context.WithTimeout(w.ctx, w.timeout)
		defer cancel()

		start := time.Now()
		report, err := w.lookup.Lookup(ctx, place)

		w.mu.Lock()
		if seq != w.seq || w.closed {
			w.mu.Unlock()
			w.logger.Debug().Str("place", place).Msg("discarding superseded lookup")
			return
		}
		w.loading = false
		if err != nil {
			w.lookupErr = err.Error()
		} else {
			w.report = &report
			w.lookupErr = ""
		}
		w.mu.Unlock()

		if err != nil && !errors.Is(err, context.Canceled) {
			w.logger.Error().Err(err).Str("place", place).Msg("weather lookup failed")
		} else if err == nil {
			w.logger.Info().
				Str("place", place).
				Bool("mock", report.IsMock).
				Bool("stale", report.Stale).
				Dur("duration", time.Since(start)).
				Msg("weather resolved")
		}
		w.notify()
	}()
}

// State returns the current widget view
func (w *Widget) State() State {
	s := State{
		ID:     w.id,
		Draft:  w.search.Draft(),
		Query:  w.search.Query(),
		Voice:  w.voice.Snapshot(),
		Notice: w.voice.Notice(),
	}

	w.mu.Lock()
	defer w.mu.Unlock()
	s.Loading = w.loading
	s.Error = w.lookupErr
	if w.report != nil {
		r := *w.report
		s.Report = &r
		s.Strip = r.Strip()
	}
	return s
}

// Close releases the recognizer and waits for lookups in flight
func (w *Widget) Close() error {
	w.mu.Lock()
	if w.closed {
		w.mu.Unlock()
		return nil
	}
	w.closed = true
	w.mu.Unlock()

	err := w.voice.Dispose()
	w.cancel()
	w.wg.Wait()
	w.logger.Debug().Msg("widget closed")
	return err
}

// Wait blocks until lookups in flight finish
func (w *Widget) Wait() {
	w.wg.Wait()
}

func (w *Widget) notify() {
	w.mu.Lock()
	observers := make([]func(), len(w.observers))
	copy(observers, w.observers)
	w.mu.Unlock()

	for _, fn := range observers {
		fn()
	}
}
