package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/service"
	"github.com/skycast/weather/internal/widget"
)

// SetupRoutes configures all HTTP routes
func SetupRoutes(app *fiber.App, lookupSvc *service.LookupService, widgets *widget.Registry, logger zerolog.Logger) {
	handler := NewHandler(lookupSvc, widgets, logger)

	// Health check
	app.Get("/health", handler.HealthCheck)

	// API v1 routes
	api := app.Group("/api/v1")
	{
		api.Get("/weather", handler.GetWeather)
		api.Get("/history", handler.GetHistory)

		api.Post("/widgets", handler.CreateWidget)

		w := api.Group("/widgets/:id", handler.LoadWidget)
		w.Get("/", handler.GetWidget)
		w.Delete("/", handler.DeleteWidget)
		w.Put("/draft", handler.UpdateDraft)
		w.Post("/submit", handler.Submit)
		w.Post("/keys", handler.HandleKey)
		w.Post("/voice/begin", handler.BeginVoice)
		w.Post("/voice/confirm", handler.ConfirmVoice)
		w.Post("/voice/cancel", handler.CancelVoice)
		w.Get("/audio", RequireUpgrade, handler.StreamAudio())
	}
}
