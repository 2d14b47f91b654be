package handlers

import (
	"context"
	"errors"
	"net"
	"sync"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/websocket/v2"
	"go.uber.org/zap"

	"github.com/mathrag/client/internal/metrics"
	"github.com/mathrag/client/internal/middleware/ratelimit"
	"github.com/mathrag/client/internal/middleware/validation"
	"github.com/mathrag/client/internal/session"
	"github.com/mathrag/client/pkg/logger"
)

type WebSocketHandler struct {
	coord   *session.Coordinator
	limiter *ratelimit.RateLimiter
	limits  validation.Limits
}

func NewWebSocketHandler(coord *session.Coordinator, limiter *ratelimit.RateLimiter, limits validation.Limits) *WebSocketHandler {
	return &WebSocketHandler{
		coord:   coord,
		limiter: limiter,
		limits:  limits,
	}
}

var errRateLimited = errors.New("too many requests, please wait before trying again")

// throttled reports whether ev calls the solving service and the client has
// used up its allowance.
func (h *WebSocketHandler) throttled(key string, ev Event) bool {
	if h.limiter == nil {
		return false
	}
	if ev.Type != EventSolve && ev.Type != EventSubmitFeedback {
		return false
	}
	return !h.limiter.Allow(key)
}

type serverMessage struct {
	Type  string        `json:"type"`
	View  *session.View `json:"view,omitempty"`
	Error string        `json:"error,omitempty"`
}

// Upgrade rejects plain HTTP requests on the websocket route.
func (h *WebSocketHandler) Upgrade(c *fiber.Ctx) error {
	if websocket.IsWebSocketUpgrade(c) {
		return c.Next()
	}
	return fiber.ErrUpgradeRequired
}

// HandleConnection pushes the current view, then every subsequent one, and
// applies the events the client sends.
func (h *WebSocketHandler) HandleConnection(c *websocket.Conn) {
	logger.Info("WebSocket connection established")
	metrics.LiveViewers.Inc()

	views, unsubscribe := h.coord.Subscribe()

	var writeMu sync.Mutex
	write := func(msg serverMessage) error {
		writeMu.Lock()
		defer writeMu.Unlock()
		return c.WriteJSON(msg)
	}

	var writers sync.WaitGroup
	defer func() {
		unsubscribe()
		writers.Wait()
		c.Close()
		metrics.LiveViewers.Dec()
		logger.Info("WebSocket connection closed")
	}()

	clientKey := c.RemoteAddr().String()
	if host, _, err := net.SplitHostPort(clientKey); err == nil {
		clientKey = host
	}

	initial := h.coord.View()
	if err := write(serverMessage{Type: "view", View: &initial}); err != nil {
		logger.Error("Failed to send initial view", zap.Error(err))
		return
	}

	writers.Add(1)
	go func() {
		defer writers.Done()
		for view := range views {
			view := view
			if err := write(serverMessage{Type: "view", View: &view}); err != nil {
				logger.Debug("Failed to push view", zap.Error(err))
				return
			}
		}
	}()

	for {
		var ev Event
		if err := c.ReadJSON(&ev); err != nil {
			logger.Debug("WebSocket read ended", zap.Error(err))
			break
		}

		err := checkEvent(h.limits, ev)
		if err == nil {
			err = errRateLimited
			if !h.throttled(clientKey, ev) {
				err = Dispatch(context.Background(), h.coord, ev)
			}
		}
		if err != nil {
			logger.Debug("WebSocket event rejected", zap.String("event", ev.Type), zap.Error(err))
			if werr := write(serverMessage{Type: "error", Error: err.Error()}); werr != nil {
				break
			}
		}
	}
}
