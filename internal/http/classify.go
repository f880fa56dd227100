package http

import (
	"context"
	"errors"
	"strings"
)

// ErrorType groups storage and transport errors by what the user can do
// about them.
type ErrorType int

const (
	// ErrorTypeSuccess indicates the operation succeeded
	ErrorTypeSuccess ErrorType = iota
	// ErrorTypeCredential indicates authentication/authorization failure (403, expired token, bad SAS)
	ErrorTypeCredential
	// ErrorTypeNetwork indicates network/connection issues (timeouts, connection refused, DNS)
	ErrorTypeNetwork
	// ErrorTypeRetryable indicates server-side errors worth retrying later (500, 502, 503, throttling)
	ErrorTypeRetryable
	// ErrorTypeFatal indicates client errors that will not go away on retry (400, 404, invalid request)
	ErrorTypeFatal
)

// ClassifyError determines the error type from the error text. The
// patterns cover both AWS and Azure SDK error strings.
func ClassifyError(err error) ErrorType {
	if err == nil {
		return ErrorTypeSuccess
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return ErrorTypeNetwork
	}

	errStr := strings.ToLower(err.Error())

	if containsAny(errStr,
		"expired",
		"invalid token",
		"expiredtoken",
		"403",
		"401",
		"unauthorized",
		"forbidden",
		"accessdenied",
		"access denied",
		"invalidaccesskeyid",
		"signaturedoesnotmatch",
		"authentication failed",
		"authenticationfailed",
		"invalid sas",
		"sas token",
		"signature not valid",
		"authorization failure",
	) {
		return ErrorTypeCredential
	}

	if containsAny(errStr,
		"tls handshake timeout",
		"connection reset",
		"i/o timeout",
		"eof",
		"connection refused",
		"no such host",
		"broken pipe",
		"timeout",
	) {
		return ErrorTypeNetwork
	}

	if containsAny(errStr,
		"requesttimeout",
		"internalerror",
		"serviceunavailable",
		"slowdown",
		"throttl",
		"429",
		"500",
		"502",
		"503",
		"504",
		"server busy",
		"serverbusy",
		"operationtimeout",
		"service unavailable",
	) {
		return ErrorTypeRetryable
	}

	// Unknown errors are fatal
	return ErrorTypeFatal
}

func containsAny(s string, patterns ...string) bool {
	for _, p := range patterns {
		if strings.Contains(s, p) {
			return true
		}
	}
	return false
}

// String returns a human-readable name for an ErrorType.
func (t ErrorType) String() string {
	switch t {
	case ErrorTypeSuccess:
		return "success"
	case ErrorTypeCredential:
		return "credential"
	case ErrorTypeNetwork:
		return "network"
	case ErrorTypeRetryable:
		return "retryable"
	case ErrorTypeFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// Hint returns a short suggestion for the user, or "" when there is none.
func (t ErrorType) Hint() string {
	switch t {
	case ErrorTypeCredential:
		return "check the access key, secret or SAS token"
	case ErrorTypeNetwork:
		return "check the endpoint, proxy settings and network reachability"
	case ErrorTypeRetryable:
		return "the storage service is busy or failing, try again later"
	default:
		return ""
	}
}
