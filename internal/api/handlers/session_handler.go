package handlers

import (
	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mathrag/client/internal/session"
	"github.com/mathrag/client/pkg/logger"
)

type SessionHandler struct {
	coord *session.Coordinator
}

func NewSessionHandler(coord *session.Coordinator) *SessionHandler {
	return &SessionHandler{
		coord: coord,
	}
}

func (h *SessionHandler) GetState(c *fiber.Ctx) error {
	return c.JSON(h.coord.View())
}

func (h *SessionHandler) SetQuestion(c *fiber.Ctx) error {
	var req struct {
		Question string `json:"question"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Warn("Failed to parse question body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	return h.apply(c, fiber.StatusOK, Event{Type: EventSetQuestion, Question: req.Question})
}

func (h *SessionHandler) StartSolve(c *fiber.Ctx) error {
	return h.apply(c, fiber.StatusAccepted, Event{Type: EventSolve})
}

func (h *SessionHandler) SetFeedbackField(c *fiber.Ctx) error {
	var req struct {
		Name  string `json:"name"`
		Value string `json:"value"`
	}

	if err := c.BodyParser(&req); err != nil {
		logger.Warn("Failed to parse feedback field body", zap.Error(err))
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "Invalid request body",
		})
	}

	if req.Name == "" {
		return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
			"error": "name is required",
		})
	}

	return h.apply(c, fiber.StatusOK, Event{Type: EventSetFeedbackField, Name: req.Name, Value: req.Value})
}

func (h *SessionHandler) SubmitFeedback(c *fiber.Ctx) error {
	return h.apply(c, fiber.StatusAccepted, Event{Type: EventSubmitFeedback})
}

// apply dispatches ev and answers with the resulting view. Rejected events
// still carry the view so the caller can render any notice they raised.
func (h *SessionHandler) apply(c *fiber.Ctx, okStatus int, ev Event) error {
	if err := Dispatch(c.UserContext(), h.coord, ev); err != nil {
		status := statusFor(err)
		if status == fiber.StatusInternalServerError {
			logger.Error("Failed to apply event", zap.String("event", ev.Type), zap.Error(err))
		} else {
			logger.Debug("Event rejected", zap.String("event", ev.Type), zap.Error(err))
		}
		return c.Status(status).JSON(fiber.Map{
			"error": err.Error(),
			"view":  h.coord.View(),
		})
	}

	return c.Status(okStatus).JSON(h.coord.View())
}
