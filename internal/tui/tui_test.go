package tui

import (
	"context"
	"strings"
	"testing"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/audio"
	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/internal/voice"
	"github.com/skycast/weather/internal/widget"
)

type echoLookup struct{}

func (echoLookup) Lookup(_ context.Context, place string) (domain.Report, error) {
	forecast := []domain.Period{
		{Datetime: "2024-05-01T00:00:00", Temperature: 10, Conditions: "Rain"},
		{Datetime: "2024-05-02T00:00:00", Temperature: 12, Conditions: "Clear"},
	}
	return domain.Report{Place: place, Address: place + ", Somewhere", Forecast: forecast}, nil
}

func newTestModel(t *testing.T, withVoice bool) (Model, *widget.Widget, *voice.FakeRecognizer) {
	t.Helper()
	cfg := widget.Config{Lookup: echoLookup{}, Voice: voice.DefaultOptions()}
	var fake *voice.FakeRecognizer
	if withVoice {
		var factory voice.Factory
		fake, factory, _ = voice.NewFake()
		cfg.Recognizers = func(audio.Source) voice.Factory { return factory }
	}
	w := widget.New("tui", cfg, zerolog.Nop())
	t.Cleanup(func() { w.Close() })
	return New(w), w, fake
}

func send(m Model, msgs ...tea.Msg) Model {
	for _, msg := range msgs {
		next, _ := m.Update(msg)
		m = next.(Model)
	}
	return m
}

// dictate presses ctrl+t and feeds back the result of the capture command
func dictate(t *testing.T, m Model) Model {
	t.Helper()
	next, cmd := m.Update(tea.KeyMsg{Type: tea.KeyCtrlT})
	if cmd == nil {
		t.Fatal("ctrl+t returned no command")
	}
	return send(next.(Model), cmd())
}

func typed(text string) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune(text)}
}

func TestTypeAndEnter(t *testing.T) {
	m, w, _ := newTestModel(t, false)

	m = send(m, typed("Tokyo"))
	if w.Search().Draft() != "Tokyo" {
		t.Fatalf("draft = %q", w.Search().Draft())
	}
	m = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	w.Wait()
	m = send(m, refreshMsg{})

	if m.input.Value() != "" {
		t.Errorf("input should clear, got %q", m.input.Value())
	}
	view := m.View()
	if !strings.Contains(view, "Tokyo, Somewhere") {
		t.Errorf("view missing card:\n%s", view)
	}
	if !strings.Contains(view, "Thu 02") {
		t.Errorf("view missing strip day:\n%s", view)
	}
}

func TestMicrophoneUnavailable(t *testing.T) {
	m, _, _ := newTestModel(t, false)
	m = dictate(t, m)
	if !strings.Contains(m.View(), voice.NoticeNoVoice) {
		t.Errorf("notice not shown:\n%s", m.View())
	}
}

func TestDictationConfirm(t *testing.T) {
	m, w, fake := newTestModel(t, true)

	m = dictate(t, m)
	if !strings.Contains(m.View(), voice.PromptListening) {
		t.Fatalf("prompt not shown:\n%s", m.View())
	}

	fake.Partial("London")
	fake.SpeechEnd()
	m = send(m, refreshMsg{})
	if !strings.Contains(m.View(), `Recognized Text: "London"`) {
		t.Fatalf("transcript not shown:\n%s", m.View())
	}

	// typing is swallowed while the prompt is open
	m = send(m, typed("x"))
	if m.input.Value() != "" {
		t.Errorf("input changed under the prompt: %q", m.input.Value())
	}

	m = send(m, tea.KeyMsg{Type: tea.KeyEnter})
	w.Wait()
	if q := w.Search().Query(); q != "London" {
		t.Errorf("query = %q, want London", q)
	}
	if m.input.Value() != "London" {
		t.Errorf("input = %q, want the dictated text", m.input.Value())
	}
	if m.state.Voice.Visible {
		t.Error("prompt should close")
	}
}

func TestDictationCancel(t *testing.T) {
	m, w, fake := newTestModel(t, true)

	m = dictate(t, m)
	fake.Partial("Berlin")
	m = send(m, refreshMsg{}, tea.KeyMsg{Type: tea.KeyEsc})

	if w.Search().Query() != "" {
		t.Errorf("cancel changed the query to %q", w.Search().Query())
	}
	if fake.Running() {
		t.Error("recognizer should stop on cancel")
	}
	if m.state.Voice.Visible {
		t.Error("prompt should close")
	}
}

func TestDayLabel(t *testing.T) {
	tests := map[string]string{
		"2024-05-03T00:00:00":       "Fri 03",
		"2024-05-03T00:00:00+01:00": "Fri 03",
		"2024-05-03":                "Fri 03",
		"garbage":                   "garbage",
	}
	for in, want := range tests {
		if got := dayLabel(in); got != want {
			t.Errorf("dayLabel(%q) = %q, want %q", in, got, want)
		}
	}
}
