package api

import (
	"fmt"
	"testing"
)

func TestAPIErrorMessage(t *testing.T) {
	tests := []struct {
		body string
		want string
	}{
		{`{"error":{"message":"invalid","detail":"bucket missing"}}`, "invalid: bucket missing"},
		{`{"message":"nope"}`, "nope"},
		{`{"detail":"Not authenticated"}`, "Not authenticated"},
		{`{"detail":[{"loc":["body"]}]}`, `{"detail":[{"loc":["body"]}]}`},
		{`<html>bad gateway</html>`, `<html>bad gateway</html>`},
		{``, "Bad Gateway"},
	}
	for _, tt := range tests {
		e := &APIError{Op: "x", StatusCode: 502, Body: tt.body}
		if got := e.Message(); got != tt.want {
			t.Errorf("Message(%q) = %q, want %q", tt.body, got, tt.want)
		}
	}
}

func TestStatusHelpers(t *testing.T) {
	err := fmt.Errorf("failed to update storage: %w", &APIError{Op: "update storage", StatusCode: 403})
	if StatusCode(err) != 403 || !IsUnauthorized(err) || IsNotFound(err) {
		t.Errorf("helpers misread %v", err)
	}
	if StatusCode(fmt.Errorf("plain")) != 0 {
		t.Error("non-API errors have no status")
	}
}
