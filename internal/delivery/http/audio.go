package http

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/skycast/weather/internal/widget"
)

// RequireUpgrade rejects plain HTTP requests on WebSocket routes
func RequireUpgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		c.Locals("allowed", true)
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// StreamAudio copies binary PCM frames from the browser into the widget's
// audio pipe until the client disconnects
func (h *Handler) StreamAudio() fiber.Handler {
	return websocket.New(func(ws *websocket.Conn) {
		defer ws.Close()

		w, _ := ws.Locals(localWidget).(*widget.Widget)
		if w == nil {
			return
		}
		log := h.logger.With().Str("widget", w.ID()).Logger()

		pipe := w.Pipe()
		if pipe == nil {
			log.Warn().Msg("audio stream refused: widget listens to a local source")
			ws.WriteMessage(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.ClosePolicyViolation, "no audio pipe"))
			return
		}

		log.Debug().Msg("audio stream connected")
		frames := 0
		for {
			kind, msg, err := ws.ReadMessage()
			if err != nil {
				if websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
					log.Debug().Int("frames", frames).Msg("audio stream closed")
				} else {
					log.Warn().Err(err).Int("frames", frames).Msg("audio stream read error")
				}
				return
			}
			if kind != websocket.BinaryMessage {
				continue
			}
			pipe.Write(msg)
			frames++
			if frames%50 == 0 {
				w.Touch()
			}
		}
	})
}
