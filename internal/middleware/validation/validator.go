package validation

import (
	"strings"
	"unicode/utf8"

	"github.com/gofiber/fiber/v2"
	"go.uber.org/zap"

	"github.com/mathrag/client/internal/models"
)

type Config struct {
	MaxQuestionLength   int
	MaxCorrectionLength int
	Logger              *zap.Logger
}

// maxAssessmentLength bounds the assessment field; valid labels are short.
const maxAssessmentLength = 64

// Limits are the size rules for user-entered text, shared by every transport
// that accepts events.
type Limits struct {
	MaxQuestionLength   int
	MaxCorrectionLength int
}

func (l Limits) withDefaults() Limits {
	if l.MaxQuestionLength <= 0 {
		l.MaxQuestionLength = 5000
	}
	if l.MaxCorrectionLength <= 0 {
		l.MaxCorrectionLength = 20000
	}
	return l
}

// CheckQuestion returns a user-facing reason the question is unusable, or "".
func (l Limits) CheckQuestion(question string) string {
	return checkText(question, l.withDefaults().MaxQuestionLength, "Question")
}

// CheckFeedbackField returns a user-facing reason value is unusable for the
// named feedback field, or "".
func (l Limits) CheckFeedbackField(name, value string) string {
	limit := l.withDefaults().MaxCorrectionLength
	if name == models.FieldAssessment {
		limit = maxAssessmentLength
	}
	return checkText(value, limit, "Value")
}

// Middleware checks the shape and size of event bodies before they reach the
// session handlers. Semantic checks stay with the sessions.
func Middleware(cfg Config) fiber.Handler {
	limits := Limits{
		MaxQuestionLength:   cfg.MaxQuestionLength,
		MaxCorrectionLength: cfg.MaxCorrectionLength,
	}
	if cfg.Logger == nil {
		cfg.Logger = zap.NewNop()
	}

	return func(c *fiber.Ctx) error {
		if c.Method() != fiber.MethodPost && c.Method() != fiber.MethodPut {
			return c.Next()
		}

		if len(c.Body()) > 0 && !strings.HasPrefix(c.Get(fiber.HeaderContentType), fiber.MIMEApplicationJSON) {
			return c.Status(fiber.StatusUnsupportedMediaType).JSON(fiber.Map{
				"error": "Content-Type must be application/json",
			})
		}

		path := strings.TrimRight(c.Path(), "/")

		switch {
		case strings.HasSuffix(path, "/question"):
			var req struct {
				Question string `json:"question"`
			}
			if err := c.BodyParser(&req); err != nil {
				return invalidJSON(c)
			}
			if msg := limits.CheckQuestion(req.Question); msg != "" {
				cfg.Logger.Warn("Rejected question", zap.String("ip", c.IP()), zap.String("reason", msg))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
			}

		case strings.HasSuffix(path, "/feedback/fields"):
			var req struct {
				Name  string `json:"name"`
				Value string `json:"value"`
			}
			if err := c.BodyParser(&req); err != nil {
				return invalidJSON(c)
			}
			if msg := limits.CheckFeedbackField(req.Name, req.Value); msg != "" {
				cfg.Logger.Warn("Rejected feedback field", zap.String("ip", c.IP()), zap.String("field", req.Name), zap.String("reason", msg))
				return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{"error": msg})
			}
		}

		return c.Next()
	}
}

func invalidJSON(c *fiber.Ctx) error {
	return c.Status(fiber.StatusBadRequest).JSON(fiber.Map{
		"error": "Invalid JSON format",
	})
}

// checkText returns a user-facing reason when s is unusable, or "".
func checkText(s string, maxRunes int, label string) string {
	switch {
	case !utf8.ValidString(s):
		return label + " must be valid UTF-8"
	case strings.ContainsRune(s, '\x00'):
		return label + " contains a NUL character"
	case utf8.RuneCountInString(s) > maxRunes:
		return label + " exceeds maximum length"
	}
	return ""
}
