// Package tui renders a widget in the terminal with Bubble Tea.
package tui

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/bubbles/textinput"
	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"

	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/internal/search"
	"github.com/skycast/weather/internal/voice"
	"github.com/skycast/weather/internal/widget"
)

// refreshMsg tells the model the widget changed somewhere else
type refreshMsg struct{}

var (
	titleStyle  = lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("255"))
	inputStyle  = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("245")).Padding(0, 1)
	cardStyle   = lipgloss.NewStyle().Border(lipgloss.RoundedBorder()).BorderForeground(lipgloss.Color("39")).Padding(0, 2)
	miniStyle   = lipgloss.NewStyle().Border(lipgloss.NormalBorder()).BorderForeground(lipgloss.Color("240")).Padding(0, 1).Align(lipgloss.Center)
	modalStyle  = lipgloss.NewStyle().Border(lipgloss.DoubleBorder()).BorderForeground(lipgloss.Color("255")).Padding(1, 3)
	dimStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("245"))
	warnStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("208"))
	errStyle    = lipgloss.NewStyle().Foreground(lipgloss.Color("196"))
	listenStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("196")).Bold(true)
)

type Model struct {
	w      *widget.Widget
	input  textinput.Model
	state  widget.State
	width  int
	height int
}

// New builds the model for w
func New(w *widget.Widget) Model {
	ti := textinput.New()
	ti.Placeholder = "Search city"
	ti.Prompt = "> "
	ti.CharLimit = 120
	ti.Width = 30
	ti.Focus()

	return Model{w: w, input: ti, state: w.State()}
}

// NewProgram wires widget changes into a Bubble Tea program
func NewProgram(w *widget.Widget, opts ...tea.ProgramOption) *tea.Program {
	p := tea.NewProgram(New(w), opts...)
	// observers can fire from inside Update, which must not block on Send
	w.OnChange(func() { go p.Send(refreshMsg{}) })
	return p
}

func (m Model) Init() tea.Cmd {
	return textinput.Blink
}

func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		return m, nil

	case refreshMsg:
		m.state = m.w.State()
		return m, nil

	case tea.KeyMsg:
		if msg.Type == tea.KeyCtrlC {
			return m, tea.Quit
		}
		if m.state.Voice.Visible {
			return m.updatePrompt(msg), nil
		}
		return m.updateSearch(msg)
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	return m, cmd
}

// updatePrompt handles keys while the dictation prompt is open. Everything
// but confirm and cancel is swallowed.
func (m Model) updatePrompt(msg tea.KeyMsg) Model {
	switch msg.String() {
	case "enter", "y":
		if m.w.Voice().Confirm() {
			m.input.SetValue(m.w.Search().Draft())
			m.input.CursorEnd()
		}
	case "esc", "n":
		m.w.Voice().Cancel()
	}
	m.state = m.w.State()
	return m
}

func (m Model) updateSearch(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.Type {
	case tea.KeyCtrlT:
		return m, beginCapture(m.w)

	case tea.KeyEnter:
		m.w.Search().UpdateDraft(m.input.Value())
		m.w.Search().HandleKey(search.KeyEnter)
		m.input.Reset()
		m.state = m.w.State()
		return m, nil
	}

	var cmd tea.Cmd
	m.input, cmd = m.input.Update(msg)
	m.w.Search().UpdateDraft(m.input.Value())
	m.state = m.w.State()
	return m, cmd
}

// beginCapture starts dictation off the update loop, since the recognizer may
// need a network round trip to start
func beginCapture(w *widget.Widget) tea.Cmd {
	return func() tea.Msg {
		// an unavailable recognizer surfaces as the widget notice
		_ = w.Voice().BeginCapture()
		return refreshMsg{}
	}
}

func (m Model) View() string {
	var b strings.Builder

	b.WriteString(titleStyle.Render("Weather App"))
	b.WriteString("\n")
	b.WriteString(inputStyle.Render(m.input.View()))
	b.WriteString("\n")
	b.WriteString(dimStyle.Render("enter search · ctrl+t microphone · ctrl+c quit"))
	b.WriteString("\n")

	s := m.state
	switch {
	case s.Notice != "":
		b.WriteString(warnStyle.Render(s.Notice) + "\n")
	case s.Voice.LastError != "" && s.Voice.Visible:
		b.WriteString(warnStyle.Render("speech recognition: "+s.Voice.LastError) + "\n")
	}
	if s.Error != "" {
		b.WriteString(errStyle.Render(s.Error) + "\n")
	}
	if s.Loading {
		b.WriteString(dimStyle.Render("Loading...") + "\n")
	}

	if s.Report != nil {
		b.WriteString(renderCard(*s.Report))
		b.WriteString("\n")
		b.WriteString(renderStrip(s.Strip))
		b.WriteString("\n")
	}

	if s.Voice.Visible {
		return m.overlay(b.String(), renderPrompt(s.Voice))
	}
	return b.String()
}

func (m Model) overlay(base, modal string) string {
	if m.width == 0 || m.height == 0 {
		return base + "\n" + modal
	}
	return lipgloss.Place(m.width, m.height, lipgloss.Center, lipgloss.Center, modal)
}

func renderPrompt(s voice.Session) string {
	prompt := s.Prompt
	if s.Active {
		prompt = listenStyle.Render("● ") + prompt
	}
	return modalStyle.Render(prompt + "\n\n" + dimStyle.Render("[enter] Confirm   [esc] Cancel"))
}

func renderCard(r domain.Report) string {
	place := r.Address
	if place == "" {
		place = r.Place
	}
	lines := []string{
		titleStyle.Render(place),
		fmt.Sprintf("%.1f °C  %s", r.Current.Temperature, r.Current.Conditions),
		fmt.Sprintf("Wind %.1f km/h   Humidity %.0f%%", r.Current.WindSpeed, r.Current.Humidity),
		fmt.Sprintf("Heat index %.1f °C", r.Current.HeatIndex),
	}
	switch {
	case r.IsMock:
		lines = append(lines, dimStyle.Render("demo data"))
	case r.Stale:
		lines = append(lines, warnStyle.Render("cached, provider unreachable"))
	}
	return cardStyle.Render(strings.Join(lines, "\n"))
}

func renderStrip(periods []domain.Period) string {
	cards := make([]string, 0, len(periods))
	for _, p := range periods {
		cards = append(cards, miniStyle.Render(fmt.Sprintf("%s\n%.0f °C\n%s", dayLabel(p.Datetime), p.Temperature, p.Conditions)))
	}
	return lipgloss.JoinHorizontal(lipgloss.Top, cards...)
}

var dateLayouts = []string{time.RFC3339, "2006-01-02T15:04:05", "2006-01-02"}

func dayLabel(datetime string) string {
	for _, layout := range dateLayouts {
		if t, err := time.Parse(layout, datetime); err == nil {
			return t.Format("Mon 02")
		}
	}
	if len(datetime) > 10 {
		return datetime[:10]
	}
	return datetime
}
