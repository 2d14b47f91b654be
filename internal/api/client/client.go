package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"reflect"
	"strings"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/mathrag/client/internal/metrics"
	"github.com/mathrag/client/internal/models"
	"github.com/mathrag/client/pkg/config"
	"github.com/mathrag/client/pkg/logger"
	"github.com/mathrag/client/pkg/retry"
)

const (
	SolveEndpoint    = "/solve"
	FeedbackEndpoint = "/feedback"

	maxResponseBytes = 8 << 20
)

type Config struct {
	BaseURL    string
	Timeout    time.Duration
	Retry      retry.Config
	HTTPClient *http.Client
	Logger     *zap.Logger
}

// Client posts JSON to the solving service, retrying every failed attempt
// with exponential backoff. Both endpoints are assumed idempotent on the
// server side; all attempts of one call share an X-Request-ID.
type Client struct {
	baseURL     string
	httpClient  *http.Client
	retryConfig retry.Config
	logger      *zap.Logger
}

func NewClient(cfg Config) *Client {
	if cfg.Timeout == 0 {
		cfg.Timeout = 60 * time.Second
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	if cfg.Logger == nil {
		cfg.Logger = logger.Named("solver-client")
	}
	if cfg.Retry.Logger == nil {
		cfg.Retry.Logger = cfg.Logger
	}

	logger.Info("Solving service client initialized",
		zap.String("base_url", cfg.BaseURL),
		zap.Int("max_attempts", cfg.Retry.MaxAttempts),
	)

	return &Client{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  cfg.HTTPClient,
		retryConfig: cfg.Retry,
		logger:      cfg.Logger,
	}
}

// FromConfig builds a client for the service and retry schedule in cfg.
func FromConfig(cfg *config.Config) *Client {
	return NewClient(Config{
		BaseURL: cfg.API.BaseURL,
		Timeout: cfg.API.Timeout(),
		Retry: retry.Config{
			MaxAttempts:  cfg.Retry.MaxAttempts,
			InitialDelay: cfg.Retry.InitialDelay(),
			MaxDelay:     cfg.Retry.MaxDelay(),
			Multiplier:   cfg.Retry.Multiplier,
		},
	})
}

func (c *Client) Solve(ctx context.Context, req models.SolveRequest) (*models.Solution, error) {
	var solution models.Solution
	if err := c.Send(ctx, SolveEndpoint, req, &solution); err != nil {
		return nil, err
	}
	return &solution, nil
}

func (c *Client) SubmitFeedback(ctx context.Context, record models.FeedbackRecord) error {
	return c.Send(ctx, FeedbackEndpoint, record, nil)
}

// Send posts payload to endpoint and decodes the 2xx body into out, which
// must be a non-nil pointer or nil to ignore the body. It resolves exactly
// once: with the first successful attempt or with the last failure.
func (c *Client) Send(ctx context.Context, endpoint string, payload, out interface{}) error {
	body, err := json.Marshal(payload)
	if err != nil {
		return fmt.Errorf("failed to encode payload: %w", err)
	}

	requestID := uuid.NewString()
	log := c.logger.With(zap.String("endpoint", endpoint), zap.String("request_id", requestID))

	cfg := c.retryConfig
	cfg.Logger = cfg.Logger.With(zap.String("endpoint", endpoint), zap.String("request_id", requestID))
	onRetry := cfg.OnRetry
	cfg.OnRetry = func(attempt int, delay time.Duration, err error) {
		metrics.RequestRetries.WithLabelValues(endpoint).Inc()
		if onRetry != nil {
			onRetry(attempt, delay, err)
		}
	}

	start := time.Now()
	err = retry.Do(ctx, cfg, func() error {
		err := c.attempt(ctx, endpoint, requestID, body, out)
		metrics.RequestAttempts.WithLabelValues(endpoint, outcome(err)).Inc()
		return err
	})
	metrics.RequestDuration.WithLabelValues(endpoint, outcome(err)).Observe(time.Since(start).Seconds())

	if err != nil {
		log.Error("Request to solving service failed", zap.Error(err))
		return err
	}

	log.Debug("Request to solving service succeeded", zap.Duration("elapsed", time.Since(start)))
	return nil
}

func (c *Client) attempt(ctx context.Context, endpoint, requestID string, body []byte, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+endpoint, bytes.NewReader(body))
	if err != nil {
		return &TransportError{Err: fmt.Errorf("failed to create request: %w", err)}
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	req.Header.Set("X-Request-ID", requestID)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return &TransportError{Err: fmt.Errorf("request failed: %w", err)}
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to read response: %w", err)}
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return errorFromResponse(resp.StatusCode, data)
	}

	if out == nil {
		return nil
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return &TransportError{StatusCode: resp.StatusCode, Err: errors.New("empty response body")}
	}
	if err := decodeInto(data, out); err != nil {
		return &TransportError{StatusCode: resp.StatusCode, Err: fmt.Errorf("failed to parse response: %w", err)}
	}
	return nil
}

// decodeInto unmarshals into a fresh value and only then assigns it to out,
// so a body that fails halfway never leaves partial fields behind.
func decodeInto(data []byte, out interface{}) error {
	rv := reflect.ValueOf(out)
	if rv.Kind() != reflect.Pointer || rv.IsNil() {
		return errors.New("decode target must be a non-nil pointer")
	}

	fresh := reflect.New(rv.Elem().Type())
	if err := json.Unmarshal(data, fresh.Interface()); err != nil {
		return err
	}
	rv.Elem().Set(fresh.Elem())
	return nil
}

func outcome(err error) string {
	switch {
	case err == nil:
		return "success"
	case IsServerError(err):
		return "server_error"
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return "cancelled"
	default:
		return "transport_error"
	}
}
