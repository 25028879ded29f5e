// Package search owns the widget's text field and hands place names to the
// weather resolver.
package search

import (
	"sync"

	"github.com/rs/zerolog"
)

// KeyEnter is the key name that submits the draft
const KeyEnter = "Enter"

// Resolver turns a place name into weather data. Resolve is a hand-off: it
// must return promptly and owns everything that happens afterwards.
type Resolver interface {
	Resolve(place string)
}

// ResolverFunc adapts a function to Resolver
type ResolverFunc func(place string)

func (f ResolverFunc) Resolve(place string) { f(place) }

// Controller holds the draft text and the current search query
type Controller struct {
	resolver Resolver
	logger   zerolog.Logger

	mu    sync.Mutex
	draft string
	query string
}

// NewController creates a search controller bound to resolver
func NewController(resolver Resolver, logger zerolog.Logger) *Controller {
	return &Controller{resolver: resolver, logger: logger}
}

// UpdateDraft sets the draft. Any string is accepted.
func (c *Controller) UpdateDraft(text string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.draft = text
}

// Submit hands the draft to the resolver as-is, even when empty, and clears
// the field.
func (c *Controller) Submit() {
	c.mu.Lock()
	place := c.draft
	c.query = place
	c.draft = ""
	c.mu.Unlock()

	c.logger.Debug().Str("place", place).Msg("search submitted")
	c.resolve(place)
}

// HandleKey submits on Enter and ignores every other key
func (c *Controller) HandleKey(key string) bool {
	if key != KeyEnter {
		return false
	}
	c.Submit()
	return true
}

// Adopt takes text from another input (voice dictation) as the new query.
// The field shows the adopted text.
func (c *Controller) Adopt(text string) {
	c.mu.Lock()
	c.query = text
	c.draft = text
	c.mu.Unlock()

	c.logger.Debug().Str("place", text).Msg("dictation adopted")
	c.resolve(text)
}

// Draft returns the uncommitted field text
func (c *Controller) Draft() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.draft
}

// Query returns the last submitted or adopted place name
func (c *Controller) Query() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.query
}

func (c *Controller) resolve(place string) {
	if c.resolver != nil {
		c.resolver.Resolve(place)
	}
}
