package handlers

import (
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"

	"github.com/mathrag/client/internal/middleware/ratelimit"
	"github.com/mathrag/client/internal/middleware/validation"
	"github.com/mathrag/client/internal/session"
)

type RouteConfig struct {
	// Limiter throttles solve and feedback submission; nil leaves them
	// unthrottled.
	Limiter *ratelimit.RateLimiter
	// Limits bound text arriving over the websocket. HTTP bodies are checked
	// by the validation middleware mounted on the router.
	Limits validation.Limits
}

// RegisterRoutes mounts the session endpoints on router.
func RegisterRoutes(router fiber.Router, coord *session.Coordinator, cfg RouteConfig) {
	sessionHandler := NewSessionHandler(coord)
	wsHandler := NewWebSocketHandler(coord, cfg.Limiter, cfg.Limits)

	remoteCalls := []fiber.Handler{}
	if cfg.Limiter != nil {
		remoteCalls = append(remoteCalls, cfg.Limiter.Middleware())
	}

	router.Get("/state", sessionHandler.GetState)
	router.Put("/question", sessionHandler.SetQuestion)
	router.Post("/solve", append(remoteCalls, sessionHandler.StartSolve)...)
	router.Put("/feedback/fields", sessionHandler.SetFeedbackField)
	router.Post("/feedback", append(remoteCalls, sessionHandler.SubmitFeedback)...)

	router.Use("/ws", wsHandler.Upgrade)
	router.Get("/ws", websocket.New(wsHandler.HandleConnection))
}
