// Command widget runs the weather widget in the terminal.
package main

import (
	"fmt"
	"io"
	"os"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/skycast/weather/internal/audio"
	"github.com/skycast/weather/internal/config"
	"github.com/skycast/weather/internal/logging"
	"github.com/skycast/weather/internal/recognizer/deepgram"
	"github.com/skycast/weather/internal/repository/postgres"
	"github.com/skycast/weather/internal/service"
	"github.com/skycast/weather/internal/tui"
	"github.com/skycast/weather/internal/voice"
	"github.com/skycast/weather/internal/widget"
)

func main() {
	if err := run(); err != nil {
		fmt.Fprintln(os.Stderr, "widget:", err)
		os.Exit(1)
	}
}

func run() error {
	cfg, err := config.Load()
	if err != nil {
		return err
	}

	// the terminal belongs to the UI, so logs go to a file or nowhere
	var out io.Writer = io.Discard
	if cfg.Log.File != "" {
		f, err := os.OpenFile(cfg.Log.File, os.O_CREATE|os.O_APPEND|os.O_WRONLY, 0o644)
		if err != nil {
			return fmt.Errorf("open log file: %w", err)
		}
		defer f.Close()
		out = f
	}
	appLog := logging.New(logging.Config{Level: cfg.Log.Level, Format: "json", Out: out})

	lookupSvc := service.NewLookupService(
		service.NewWeatherService(cfg.WeatherAPIKey, cfg.WeatherURL),
		nil,
		postgres.NewMockRepository(),
		cfg.CacheTTL,
		logging.Component(appLog, "lookup"),
	)

	wcfg := widget.Config{Lookup: lookupSvc, Voice: voice.DefaultOptions()}
	wcfg.Voice.Language = cfg.Voice.Language
	if cfg.Voice.CaptureCommand != "" {
		mic, err := audio.NewCommand(cfg.Voice.CaptureCommand, logging.Component(appLog, "audio"))
		if err != nil {
			return err
		}
		dgCfg := deepgram.Config{APIKey: cfg.Voice.DeepgramAPIKey, URL: cfg.Voice.DeepgramURL}
		dgLog := logging.Component(appLog, "deepgram")
		wcfg.Source = mic
		wcfg.Recognizers = func(src audio.Source) voice.Factory {
			return deepgram.Factory(dgCfg, src, dgLog)
		}
	}

	defer lookupSvc.WaitBackground()
	w := widget.New("terminal", wcfg, appLog)
	defer w.Close()

	p := tui.NewProgram(w, tea.WithAltScreen())
	_, err = p.Run()
	return err
}
