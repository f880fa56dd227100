// Package api provides the data API client and its error types.
package api

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// ErrEmptyBaseURL is returned by NewClient when no API base URL is configured.
var ErrEmptyBaseURL = errors.New("API base URL is empty")

// APIError is a non-success HTTP response from the data API.
type APIError struct {
	// Op names the failed operation, e.g. "create storage".
	Op         string
	StatusCode int
	Body       string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("%s failed: status %d: %s", e.Op, e.StatusCode, e.Message())
}

// Message extracts the human-readable message from the response body. The
// data API answers with {"error": {"message": ...}}; other shapes fall back
// to "message", "detail", then the raw body.
func (e *APIError) Message() string {
	body := strings.TrimSpace(e.Body)
	if body == "" {
		return http.StatusText(e.StatusCode)
	}

	var envelope struct {
		Error *struct {
			Message string `json:"message"`
			Detail  string `json:"detail"`
		} `json:"error"`
		Message string `json:"message"`
		Detail  any    `json:"detail"`
	}
	if err := json.Unmarshal([]byte(body), &envelope); err != nil {
		return body
	}
	switch {
	case envelope.Error != nil && envelope.Error.Message != "":
		if envelope.Error.Detail != "" {
			return envelope.Error.Message + ": " + envelope.Error.Detail
		}
		return envelope.Error.Message
	case envelope.Message != "":
		return envelope.Message
	}
	if s, ok := envelope.Detail.(string); ok && s != "" {
		return s
	}
	return body
}

// StatusCode returns the HTTP status of an APIError anywhere in err's chain,
// or 0.
func StatusCode(err error) int {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode
	}
	return 0
}

// IsNotFound reports whether err is a 404 from the data API.
func IsNotFound(err error) bool {
	return StatusCode(err) == http.StatusNotFound
}

// IsUnauthorized reports whether err is a 401 or 403 from the data API.
func IsUnauthorized(err error) bool {
	code := StatusCode(err)
	return code == http.StatusUnauthorized || code == http.StatusForbidden
}
