package http

import (
	"errors"
	"time"

	"github.com/gofiber/fiber/v2"
	fiberutils "github.com/gofiber/fiber/v2/utils"
	"github.com/rs/zerolog"

	"github.com/skycast/weather/internal/domain"
	"github.com/skycast/weather/internal/service"
	"github.com/skycast/weather/internal/voice"
	"github.com/skycast/weather/internal/widget"
	"github.com/skycast/weather/pkg/utils"
)

const localWidget = "widget"

// Handler contains all HTTP handlers
type Handler struct {
	lookupSvc *service.LookupService
	widgets   *widget.Registry
	logger    zerolog.Logger
}

// NewHandler creates a new handler
func NewHandler(lookupSvc *service.LookupService, widgets *widget.Registry, logger zerolog.Logger) *Handler {
	return &Handler{
		lookupSvc: lookupSvc,
		widgets:   widgets,
		logger:    logger,
	}
}

// HealthCheck returns service health status
func (h *Handler) HealthCheck(c *fiber.Ctx) error {
	status := "ok"
	components := fiber.Map{}
	for name, err := range h.lookupSvc.Health(c.Context()) {
		if err != nil {
			status = "degraded"
			components[name] = err.Error()
			continue
		}
		components[name] = "ok"
	}

	return c.JSON(fiber.Map{
		"status":     status,
		"service":    "skycast-weather",
		"version":    "1.0.0",
		"components": components,
		"widgets":    h.widgets.Len(),
	})
}

// GetWeather resolves one place directly
func (h *Handler) GetWeather(c *fiber.Ctx) error {
	// the lookup outlives the request buffer when it is saved in the background
	place := fiberutils.CopyString(c.Query("place"))
	report, err := h.lookupSvc.Lookup(c.Context(), place)
	if errors.Is(err, service.ErrEmptyPlace) {
		return fiber.NewError(fiber.StatusBadRequest, "Query parameter 'place' is required")
	}
	if err != nil {
		h.logger.Error().Err(err).Msg("weather lookup failed")
		return fiber.NewError(fiber.StatusBadGateway, "Failed to fetch weather data")
	}

	return c.JSON(domain.ReportResponse{
		Data:    report,
		Success: true,
	})
}

// GetHistory returns lookups within a time range
func (h *Handler) GetHistory(c *fiber.Ctx) error {
	hours := utils.ClampInt(c.QueryInt("hours", 24), 1, 720) // max 30 days

	data, err := h.lookupSvc.History(c.Context(), time.Duration(hours)*time.Hour)
	if err != nil {
		h.logger.Error().Err(err).Msg("history query failed")
		return fiber.NewError(fiber.StatusInternalServerError, "Failed to fetch lookup history")
	}

	return c.JSON(fiber.Map{
		"success": true,
		"data":    data,
		"count":   len(data),
	})
}

// CreateWidget registers a widget for a new client
func (h *Handler) CreateWidget(c *fiber.Ctx) error {
	w := h.widgets.Create()
	return c.Status(fiber.StatusCreated).JSON(fiber.Map{
		"success": true,
		"data":    w.State(),
	})
}

// LoadWidget resolves :id into the request locals
func (h *Handler) LoadWidget(c *fiber.Ctx) error {
	w, ok := h.widgets.Get(c.Params("id"))
	if !ok {
		return fiber.NewError(fiber.StatusNotFound, "Widget not found")
	}
	c.Locals(localWidget, w)
	return c.Next()
}

func widgetOf(c *fiber.Ctx) *widget.Widget {
	return c.Locals(localWidget).(*widget.Widget)
}

func state(c *fiber.Ctx, w *widget.Widget) error {
	return c.JSON(fiber.Map{
		"success": true,
		"data":    w.State(),
	})
}

// GetWidget returns the widget snapshot
func (h *Handler) GetWidget(c *fiber.Ctx) error {
	return state(c, widgetOf(c))
}

// DeleteWidget disposes the widget
func (h *Handler) DeleteWidget(c *fiber.Ctx) error {
	if !h.widgets.Remove(c.Params("id")) {
		return fiber.NewError(fiber.StatusNotFound, "Widget not found")
	}
	return c.SendStatus(fiber.StatusNoContent)
}

type draftRequest struct {
	Text string `json:"text"`
}

// UpdateDraft sets the search field text
func (h *Handler) UpdateDraft(c *fiber.Ctx) error {
	var req draftRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	w := widgetOf(c)
	w.Search().UpdateDraft(req.Text)
	return state(c, w)
}

// Submit hands the draft to the resolver
func (h *Handler) Submit(c *fiber.Ctx) error {
	w := widgetOf(c)
	w.Search().Submit()
	return state(c, w)
}

type keyRequest struct {
	Key string `json:"key"`
}

// HandleKey forwards a key press from the search field
func (h *Handler) HandleKey(c *fiber.Ctx) error {
	var req keyRequest
	if err := c.BodyParser(&req); err != nil {
		return fiber.NewError(fiber.StatusBadRequest, "Invalid request body")
	}
	w := widgetOf(c)
	handled := w.Search().HandleKey(req.Key)
	return c.JSON(fiber.Map{
		"success": true,
		"handled": handled,
		"data":    w.State(),
	})
}

// BeginVoice opens a dictation session. Without speech recognition the
// state is returned with 503 and the notice filled in.
func (h *Handler) BeginVoice(c *fiber.Ctx) error {
	w := widgetOf(c)
	if err := w.Voice().BeginCapture(); err != nil {
		if errors.Is(err, voice.ErrCapabilityUnavailable) {
			return c.Status(fiber.StatusServiceUnavailable).JSON(fiber.Map{
				"success": false,
				"message": w.Voice().Notice(),
				"data":    w.State(),
			})
		}
		return err
	}
	return state(c, w)
}

// ConfirmVoice adopts the transcript as the search query
func (h *Handler) ConfirmVoice(c *fiber.Ctx) error {
	w := widgetOf(c)
	confirmed := w.Voice().Confirm()
	return c.JSON(fiber.Map{
		"success":   true,
		"confirmed": confirmed,
		"data":      w.State(),
	})
}

// CancelVoice discards the dictation session
func (h *Handler) CancelVoice(c *fiber.Ctx) error {
	w := widgetOf(c)
	w.Voice().Cancel()
	return state(c, w)
}

// ErrorHandler renders every error as a JSON body
func ErrorHandler(c *fiber.Ctx, err error) error {
	code := fiber.StatusInternalServerError
	message := "Internal Server Error"

	var e *fiber.Error
	if errors.As(err, &e) {
		code = e.Code
		message = e.Message
	}

	return c.Status(code).JSON(fiber.Map{
		"error":   true,
		"message": message,
	})
}
