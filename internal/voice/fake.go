package voice

import (
	"context"
	"sync"
)

// FakeRecognizer is an in-memory Recognizer for tests and demos. Tests drive
// it with Partial, SpeechEnd and Fail as if the capability had produced them.
type FakeRecognizer struct {
	mu       sync.Mutex
	handler  Handler
	opts     Options
	running  bool
	starts   int
	stops    int
	closed   bool
	startErr error
}

// NewFake returns a fake recognizer and a Factory that hands it out. The
// factory counts how many times it was asked for an instance.
func NewFake() (*FakeRecognizer, Factory, *int) {
	f := &FakeRecognizer{}
	created := new(int)
	factory := func(opts Options) (Recognizer, error) {
		f.mu.Lock()
		f.opts = opts
		f.closed = false
		f.mu.Unlock()
		*created++
		return f, nil
	}
	return f, factory, created
}

// FailStart makes the next Start calls return err
func (f *FakeRecognizer) FailStart(err error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.startErr = err
}

func (f *FakeRecognizer) Start(context.Context) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.startErr != nil {
		return f.startErr
	}
	f.starts++
	f.running = true
	return nil
}

func (f *FakeRecognizer) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.running {
		f.stops++
	}
	f.running = false
	return nil
}

func (f *FakeRecognizer) SetHandler(h Handler) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.handler = h
}

func (f *FakeRecognizer) Close() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.running = false
	f.closed = true
	return nil
}

// Handler returns the handler registered for the current session
func (f *FakeRecognizer) Handler() Handler {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.handler
}

func (f *FakeRecognizer) Partial(text string) {
	if h := f.Handler(); h != nil {
		h.OnPartialResult(text)
	}
}

func (f *FakeRecognizer) SpeechEnd() {
	if h := f.Handler(); h != nil {
		h.OnSpeechEnd()
	}
}

func (f *FakeRecognizer) Fail(code string) {
	if h := f.Handler(); h != nil {
		h.OnRecognitionError(code)
	}
}

func (f *FakeRecognizer) Running() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.running
}

func (f *FakeRecognizer) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

func (f *FakeRecognizer) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

func (f *FakeRecognizer) Closed() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.closed
}

func (f *FakeRecognizer) Options() Options {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.opts
}
