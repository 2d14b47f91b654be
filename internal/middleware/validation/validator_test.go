package validation

import (
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"github.com/gofiber/fiber/v2"
)

func newApp() *fiber.App {
	app := fiber.New()
	app.Use(Middleware(Config{MaxQuestionLength: 10, MaxCorrectionLength: 20}))
	ok := func(c *fiber.Ctx) error { return c.SendStatus(fiber.StatusOK) }
	app.Put("/api/v1/question", ok)
	app.Put("/api/v1/feedback/fields", ok)
	app.Post("/api/v1/solve", ok)
	app.Get("/api/v1/state", ok)
	return app
}

func TestMiddleware(t *testing.T) {
	tests := []struct {
		name        string
		method      string
		path        string
		contentType string
		body        string
		want        int
	}{
		{"state passes", http.MethodGet, "/api/v1/state", "", "", http.StatusOK},
		{"empty solve body", http.MethodPost, "/api/v1/solve", "", "", http.StatusOK},
		{"short question", http.MethodPut, "/api/v1/question", "application/json", `{"question":"1+1?"}`, http.StatusOK},
		{"ten runes of multibyte text", http.MethodPut, "/api/v1/question", "application/json", `{"question":"∑∑∑∑∑∑∑∑∑∑"}`, http.StatusOK},
		{"long question", http.MethodPut, "/api/v1/question", "application/json", `{"question":"12345678901"}`, http.StatusBadRequest},
		{"nul in question", http.MethodPut, "/api/v1/question", "application/json", `{"question":"a\u0000b"}`, http.StatusBadRequest},
		{"wrong content type", http.MethodPut, "/api/v1/question", "text/plain", `question=1`, http.StatusUnsupportedMediaType},
		{"malformed json", http.MethodPut, "/api/v1/question", "application/json", `{"question":`, http.StatusBadRequest},
		{"charset suffix", http.MethodPut, "/api/v1/question", "application/json; charset=utf-8", `{"question":"ok"}`, http.StatusOK},
		{"correction within limit", http.MethodPut, "/api/v1/feedback/fields", "application/json", `{"name":"correction_text","value":"It is 55."}`, http.StatusOK},
		{"correction too long", http.MethodPut, "/api/v1/feedback/fields", "application/json", `{"name":"correction_text","value":"` + strings.Repeat("x", 21) + `"}`, http.StatusBadRequest},
	}

	app := newApp()
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var body io.Reader
			if tt.body != "" {
				body = strings.NewReader(tt.body)
			}
			req := httptest.NewRequest(tt.method, tt.path, body)
			if tt.contentType != "" {
				req.Header.Set("Content-Type", tt.contentType)
			}

			resp, err := app.Test(req, -1)
			if err != nil {
				t.Fatalf("request: %v", err)
			}
			resp.Body.Close()

			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestLimits(t *testing.T) {
	limits := Limits{MaxQuestionLength: 5, MaxCorrectionLength: 8}

	tests := []struct {
		name  string
		check func() string
		want  string
	}{
		{"question at limit", func() string { return limits.CheckQuestion("12345") }, ""},
		{"question over limit", func() string { return limits.CheckQuestion("123456") }, "Question exceeds maximum length"},
		{"question with nul", func() string { return limits.CheckQuestion("a\x00") }, "Question contains a NUL character"},
		{"question invalid utf8", func() string { return limits.CheckQuestion("\xff") }, "Question must be valid UTF-8"},
		{"correction over limit", func() string { return limits.CheckFeedbackField("correction_text", "123456789") }, "Value exceeds maximum length"},
		{"assessment uses its own bound", func() string { return limits.CheckFeedbackField("assessment", strings.Repeat("x", 65)) }, "Value exceeds maximum length"},
		{"assessment within bound", func() string { return Limits{}.CheckFeedbackField("assessment", "CORRECT") }, ""},
		{"zero limits fall back to defaults", func() string { return Limits{}.CheckQuestion(strings.Repeat("x", 5000)) }, ""},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.check(); got != tt.want {
				t.Errorf("got %q, want %q", got, tt.want)
			}
		})
	}
}
