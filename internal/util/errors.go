package util

import (
	"encoding/json"
	"errors"
	"strings"
)

// Sentinel errors for common failure modes
var (
	// ErrInvalidConfig indicates invalid configuration
	ErrInvalidConfig = errors.New("invalid configuration")

	// ErrNotFound indicates a required resource was not found
	ErrNotFound = errors.New("not found")

	// ErrAborted indicates the user declined to continue
	ErrAborted = errors.New("aborted")
)

// ErrorMessage returns a readable message for err. Contentful sometimes
// returns the whole JSON error payload as the message, in which case the
// payload's own "message" field is preferred.
func ErrorMessage(err error) string {
	if err == nil {
		return ""
	}
	msg := err.Error()

	var payload struct {
		Message string `json:"message"`
	}
	trimmed := strings.TrimSpace(msg)
	if strings.HasPrefix(trimmed, "{") && json.Unmarshal([]byte(trimmed), &payload) == nil && payload.Message != "" {
		return payload.Message
	}
	return msg
}
