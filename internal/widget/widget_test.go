package widget

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/audio"
	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/internal/search"
	"github.com/skycast/weather/internal/voice"
)

// stubLookup answers with a report named after the place. Places listed in
// gates block until their channel is closed.
type stubLookup struct {
	mu    sync.Mutex
	calls []string
	gates map[string]chan struct{}
	fail  error
}

func (s *stubLookup) Lookup(ctx context.Context, place string) (domain.Report, error) {
	s.mu.Lock()
	s.calls = append(s.calls, place)
	gate := s.gates[place]
	fail := s.fail
	s.mu.Unlock()

	if gate != nil {
		select {
		case <-gate:
		case <-ctx.Done():
			return domain.Report{}, ctx.Err()
		}
	}
	if fail != nil {
		return domain.Report{}, fail
	}
	forecast := make([]domain.Period, 8)
	return domain.Report{Place: place, Address: place, Forecast: forecast}, nil
}

func newTestWidget(t *testing.T, lookup Lookuper) (*Widget, *voice.FakeRecognizer) {
	t.Helper()
	fake, factory, _ := voice.NewFake()
	w := New("w1", Config{
		Lookup:      lookup,
		Recognizers: func(audio.Source) voice.Factory { return factory },
		Voice:       voice.DefaultOptions(),
	}, zerolog.Nop())
	t.Cleanup(func() { w.Close() })
	return w, fake
}

func TestSubmitResolvesReport(t *testing.T) {
	w, _ := newTestWidget(t, &stubLookup{})

	w.Search().UpdateDraft("Tokyo")
	w.Search().HandleKey(search.KeyEnter)
	w.Wait()

	s := w.State()
	if s.Query != "Tokyo" || s.Draft != "" {
		t.Errorf("query/draft = %q/%q", s.Query, s.Draft)
	}
	if s.Report == nil || s.Report.Place != "Tokyo" {
		t.Fatalf("report = %+v", s.Report)
	}
	if len(s.Strip) != domain.StripEnd-domain.StripStart {
		t.Errorf("strip len = %d", len(s.Strip))
	}
	if s.Loading {
		t.Error("should not be loading after lookup finished")
	}
}

func TestDictationConfirmResolves(t *testing.T) {
	lookup := &stubLookup{}
	w, fake := newTestWidget(t, lookup)

	if err := w.Voice().BeginCapture(); err != nil {
		t.Fatal(err)
	}
	fake.Partial("Lon")
	fake.Partial("London")
	fake.SpeechEnd()

	s := w.State()
	if !s.Voice.Visible || s.Voice.Active || s.Voice.Transcript != "London" {
		t.Fatalf("voice = %+v", s.Voice)
	}

	w.Voice().Confirm()
	w.Wait()

	s = w.State()
	if s.Query != "London" || s.Draft != "London" {
		t.Errorf("query/draft = %q/%q, want London", s.Query, s.Draft)
	}
	if s.Report == nil || s.Report.Place != "London" {
		t.Errorf("report = %+v", s.Report)
	}
	if s.Voice.Visible {
		t.Error("prompt should close after confirm")
	}
}

func TestCancelLeavesQuery(t *testing.T) {
	lookup := &stubLookup{}
	w, fake := newTestWidget(t, lookup)

	w.Search().UpdateDraft("Paris")
	w.Search().Submit()
	w.Wait()

	w.Voice().BeginCapture()
	fake.Partial("Berlin")
	w.Voice().Cancel()
	w.Wait()

	if q := w.State().Query; q != "Paris" {
		t.Errorf("query = %q, want Paris", q)
	}
	if len(lookup.calls) != 1 {
		t.Errorf("lookups = %v", lookup.calls)
	}
}

func TestSupersededLookupDiscarded(t *testing.T) {
	gate := make(chan struct{})
	lookup := &stubLookup{gates: map[string]chan struct{}{"Slow": gate}}
	w, _ := newTestWidget(t, lookup)

	w.Resolve("Slow")
	w.Resolve("Fast")

	deadline := time.Now().Add(2 * time.Second)
	for {
		if r := w.State().Report; r != nil && r.Place == "Fast" {
			break
		}
		if time.Now().After(deadline) {
			t.Fatal("fast lookup never landed")
		}
		time.Sleep(5 * time.Millisecond)
	}

	close(gate)
	w.Wait()
	if got := w.State().Report.Place; got != "Fast" {
		t.Errorf("report = %q, want Fast", got)
	}
}

func TestEmptyPlaceIgnored(t *testing.T) {
	lookup := &stubLookup{}
	w, _ := newTestWidget(t, lookup)

	w.Search().Submit()
	w.Wait()
	if len(lookup.calls) != 0 || w.State().Report != nil {
		t.Errorf("empty submit should not look anything up: %v", lookup.calls)
	}
}

func TestLookupErrorKeepsReport(t *testing.T) {
	lookup := &stubLookup{}
	w, _ := newTestWidget(t, lookup)

	w.Resolve("Rome")
	w.Wait()

	lookup.mu.Lock()
	lookup.fail = errors.New("weather: failed to decode response")
	lookup.mu.Unlock()
	w.Resolve("Milan")
	w.Wait()

	s := w.State()
	if s.Error == "" {
		t.Error("expected lookup error")
	}
	if s.Report == nil || s.Report.Place != "Rome" {
		t.Errorf("previous report should stay, got %+v", s.Report)
	}
}

func TestObserversFire(t *testing.T) {
	w, fake := newTestWidget(t, &stubLookup{})
	var mu sync.Mutex
	n := 0
	w.OnChange(func() {
		mu.Lock()
		n++
		mu.Unlock()
	})

	w.Voice().BeginCapture()
	fake.Partial("Oslo")
	w.Resolve("Oslo")
	w.Wait()

	mu.Lock()
	defer mu.Unlock()
	if n < 4 {
		t.Errorf("observer fired %d times, want at least 4", n)
	}
}

func TestCloseDisposesRecognizer(t *testing.T) {
	w, fake := newTestWidget(t, &stubLookup{})
	w.Voice().BeginCapture()
	if err := w.Close(); err != nil {
		t.Fatal(err)
	}
	if !fake.Closed() || fake.Running() {
		t.Error("recognizer should be stopped and closed")
	}
	if err := w.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	w.Resolve("Anywhere")
	if w.State().Loading {
		t.Error("closed widget should not start lookups")
	}
}

func TestDefaultSourceIsPipe(t *testing.T) {
	w, _ := newTestWidget(t, &stubLookup{})
	if w.Pipe() == nil {
		t.Error("widget without a source should own a pipe")
	}
}
