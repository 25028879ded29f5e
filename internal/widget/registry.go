package widget

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
)

// Registry tracks the widgets of connected clients by id
type Registry struct {
	cfg    Config
	logger zerolog.Logger

	mu      sync.Mutex
	widgets map[string]*Widget
}

// NewRegistry creates an empty registry building widgets from cfg
func NewRegistry(cfg Config, logger zerolog.Logger) *Registry {
	return &Registry{
		cfg:     cfg,
		logger:  logger,
		widgets: make(map[string]*Widget),
	}
}

// Create builds and registers a new widget
func (r *Registry) Create() *Widget {
	id := uuid.NewString()
	w := New(id, r.cfg, r.logger)

	r.mu.Lock()
	r.widgets[id] = w
	n := len(r.widgets)
	r.mu.Unlock()

	r.logger.Info().Str("widget", id).Int("widgets", n).Msg("widget created")
	return w
}

// Get returns the widget and marks it as in use
func (r *Registry) Get(id string) (*Widget, bool) {
	r.mu.Lock()
	w, ok := r.widgets[id]
	r.mu.Unlock()
	if ok {
		w.Touch()
	}
	return w, ok
}

// Remove unregisters and closes the widget
func (r *Registry) Remove(id string) bool {
	r.mu.Lock()
	w, ok := r.widgets[id]
	delete(r.widgets, id)
	r.mu.Unlock()

	if !ok {
		return false
	}
	if err := w.Close(); err != nil {
		r.logger.Warn().Err(err).Str("widget", id).Msg("widget close failed")
	}
	return true
}

// Len returns the number of registered widgets
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.widgets)
}

// Sweep removes widgets untouched for longer than maxIdle and returns how
// many it removed
func (r *Registry) Sweep(maxIdle time.Duration) int {
	cutoff := time.Now().Add(-maxIdle)

	r.mu.Lock()
	var idle []string
	for id, w := range r.widgets {
		if w.IdleSince().Before(cutoff) {
			idle = append(idle, id)
		}
	}
	r.mu.Unlock()

	removed := 0
	for _, id := range idle {
		if r.Remove(id) {
			removed++
		}
	}
	if removed > 0 {
		r.logger.Info().Int("removed", removed).Msg("evicted idle widgets")
	}
	return removed
}

// CloseAll closes every widget, used at shutdown
func (r *Registry) CloseAll() {
	r.mu.Lock()
	widgets := r.widgets
	r.widgets = make(map[string]*Widget)
	r.mu.Unlock()

	for id, w := range widgets {
		if err := w.Close(); err != nil {
			r.logger.Warn().Err(err).Str("widget", id).Msg("widget close failed")
		}
	}
}
