package session

import (
	"errors"

	"github.com/mathrag/client/internal/models"
)

// ValidationError is raised locally and never reaches the network.
type ValidationError struct {
	Field   string
	Message string
}

func (e *ValidationError) Error() string {
	return e.Message
}

var (
	ErrEmptyQuestion = &ValidationError{
		Field:   "question",
		Message: "Please enter a math question.",
	}
	ErrAssessmentRequired = &ValidationError{
		Field:   models.FieldAssessment,
		Message: "Please select an assessment before submitting feedback.",
	}
	ErrInvalidAssessment = &ValidationError{
		Field:   models.FieldAssessment,
		Message: "Unknown assessment value.",
	}

	ErrSolveInFlight    = errors.New("a solve request is already pending")
	ErrSubmitInFlight   = errors.New("a feedback submission is already in progress")
	ErrNotSeeded        = errors.New("there is no solution to give feedback on")
	ErrFieldNotEditable = errors.New("field is not editable")
)

func IsValidationError(err error) bool {
	var validationErr *ValidationError
	return errors.As(err, &validationErr)
}

// IsBusy reports whether err rejected an event because a request of the same
// kind is still in flight.
func IsBusy(err error) bool {
	return errors.Is(err, ErrSolveInFlight) || errors.Is(err, ErrSubmitInFlight)
}
