package http

import (
	"context"
	"errors"
	"fmt"
	"testing"
)

func TestClassifyError(t *testing.T) {
	tests := []struct {
		err  error
		want ErrorType
	}{
		{nil, ErrorTypeSuccess},
		{errors.New("operation error S3: HeadBucket, https response error StatusCode: 403, AccessDenied"), ErrorTypeCredential},
		{errors.New("AuthenticationFailed: Server failed to authenticate the request"), ErrorTypeCredential},
		{errors.New("dial tcp: lookup nosuch.example: no such host"), ErrorTypeNetwork},
		{fmt.Errorf("probe: %w", context.DeadlineExceeded), ErrorTypeNetwork},
		{errors.New("ServerBusy: the server is busy"), ErrorTypeRetryable},
		{errors.New("StatusCode: 503"), ErrorTypeRetryable},
		{errors.New("NoSuchBucket: the specified bucket does not exist"), ErrorTypeFatal},
	}
	for _, tt := range tests {
		if got := ClassifyError(tt.err); got != tt.want {
			t.Errorf("ClassifyError(%v) = %s, want %s", tt.err, got, tt.want)
		}
	}
}

func TestErrorTypeHint(t *testing.T) {
	if ErrorTypeCredential.Hint() == "" || ErrorTypeNetwork.Hint() == "" {
		t.Error("credential and network errors should carry a hint")
	}
	if ErrorTypeFatal.Hint() != "" {
		t.Error("fatal errors have no generic hint")
	}
}
