package client

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
)

// ServerError is a non-2xx response whose body carried a detail message.
type ServerError struct {
	StatusCode int
	Detail     string
}

func (e *ServerError) Error() string {
	return e.Detail
}

// TransportError covers network failures, non-2xx responses without a usable
// detail and bodies that could not be parsed.
type TransportError struct {
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	if e.Err != nil {
		return e.Err.Error()
	}
	return fmt.Sprintf("HTTP error! Status: %d", e.StatusCode)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

func IsServerError(err error) bool {
	var serverErr *ServerError
	return errors.As(err, &serverErr)
}

// Detail returns the server-reported detail carried by err, if any.
func Detail(err error) (string, bool) {
	var serverErr *ServerError
	if errors.As(err, &serverErr) {
		return serverErr.Detail, true
	}
	return "", false
}

func errorFromResponse(statusCode int, body []byte) error {
	var payload struct {
		Detail json.RawMessage `json:"detail"`
	}
	if err := json.Unmarshal(body, &payload); err != nil {
		return &TransportError{StatusCode: statusCode}
	}

	if detail := detailText(payload.Detail); detail != "" {
		return &ServerError{StatusCode: statusCode, Detail: detail}
	}
	return &TransportError{StatusCode: statusCode}
}

// detailText accepts a plain string detail or, for validation errors that
// report a list/object, its compact JSON.
func detailText(raw json.RawMessage) string {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 || bytes.Equal(raw, []byte("null")) {
		return ""
	}

	var text string
	if err := json.Unmarshal(raw, &text); err == nil {
		return text
	}

	var compact bytes.Buffer
	if err := json.Compact(&compact, raw); err != nil {
		return ""
	}
	return compact.String()
}
