package handlers

import (
	"context"
	"errors"
	"fmt"

	"github.com/gofiber/fiber/v2"

	"github.com/mathrag/client/internal/middleware/validation"
	"github.com/mathrag/client/internal/session"
)

const (
	EventSetQuestion      = "set_question"
	EventSolve            = "solve"
	EventSetFeedbackField = "set_feedback_field"
	EventSubmitFeedback   = "submit_feedback"
)

var ErrUnknownEvent = errors.New("unknown event type")

// Event is a user action forwarded by a presentation layer. Only the fields
// relevant to Type are read.
type Event struct {
	Type     string `json:"type"`
	Question string `json:"question,omitempty"`
	Name     string `json:"name,omitempty"`
	Value    string `json:"value,omitempty"`
}

// Dispatch applies ev to the coordinator. These four events are the only
// mutation paths into a session.
func Dispatch(ctx context.Context, coord *session.Coordinator, ev Event) error {
	switch ev.Type {
	case EventSetQuestion:
		return coord.SetQuestion(ev.Question)
	case EventSolve:
		return coord.StartSolve(ctx)
	case EventSetFeedbackField:
		return coord.SetFeedbackField(ev.Name, ev.Value)
	case EventSubmitFeedback:
		return coord.SubmitFeedback(ctx)
	default:
		return fmt.Errorf("%w: %q", ErrUnknownEvent, ev.Type)
	}
}

// checkEvent applies the text limits the HTTP validation middleware enforces
// to events arriving on other transports.
func checkEvent(limits validation.Limits, ev Event) error {
	var msg string
	switch ev.Type {
	case EventSetQuestion:
		msg = limits.CheckQuestion(ev.Question)
	case EventSetFeedbackField:
		msg = limits.CheckFeedbackField(ev.Name, ev.Value)
	}
	if msg != "" {
		return errors.New(msg)
	}
	return nil
}

func statusFor(err error) int {
	switch {
	case session.IsValidationError(err):
		return fiber.StatusBadRequest
	case errors.Is(err, session.ErrFieldNotEditable), errors.Is(err, ErrUnknownEvent):
		return fiber.StatusBadRequest
	case session.IsBusy(err), errors.Is(err, session.ErrNotSeeded):
		return fiber.StatusConflict
	default:
		return fiber.StatusInternalServerError
	}
}
