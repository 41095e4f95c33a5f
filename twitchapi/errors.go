package twitchapi

import "strings"

// ErrorClass represents whether a remote fetch failure should be retried.
type ErrorClass int

const (
	// ErrorClassRetryable indicates a transient failure worth retrying.
	ErrorClassRetryable ErrorClass = iota
	// ErrorClassFatal indicates the request will keep failing as issued.
	ErrorClassFatal
	// ErrorClassUnknown indicates the error type cannot be determined.
	ErrorClassUnknown
)

// String returns a human-readable name for the error class.
func (ec ErrorClass) String() string {
	switch ec {
	case ErrorClassRetryable:
		return "retryable"
	case ErrorClassFatal:
		return "fatal"
	default:
		return "unknown"
	}
}

// ClassifyFetchError sorts remote fetch failures into retryable vs fatal.
//
// Retryable: network errors, server errors (5xx), rate limiting (429).
// Fatal: auth failures (401/403), missing resources (404), bad input.
// Unmatched errors default to retryable to avoid giving up too early.
func ClassifyFetchError(err error) ErrorClass {
	if err == nil {
		return ErrorClassUnknown
	}
	lower := strings.ToLower(err.Error())

	// Server errors before auth patterns: "service unavailable" must not be
	// swallowed by a broader match.
	serverPatterns := []string{
		"500", "502", "503", "504",
		"internal server error", "bad gateway", "service unavailable", "gateway timeout",
	}
	for _, p := range serverPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassRetryable
		}
	}

	fatalPatterns := []string{
		"401", "403", "unauthorized", "access denied", "authentication required",
		"404", "not found", "does not exist",
		"invalid url", "malformed",
	}
	for _, p := range fatalPatterns {
		if strings.Contains(lower, p) {
			return ErrorClassFatal
		}
	}

	retryablePatterns := []string{
		"connection reset", "connection refused", "connection timed out", "timeout",
		"temporary failure in name resolution", "no route to host", "network unreachable",
		"dns", "eof", "broken pipe",
		"429", "too many requests", "rate limit", "throttled",
	}
	for _, p := range retryablePatterns {
		if strings.Contains(lower, p) {
			return ErrorClassRetryable
		}
	}

	return ErrorClassRetryable
}

// IsRetryableError checks if a fetch failure should trigger retry logic.
func IsRetryableError(err error) bool {
	return ClassifyFetchError(err) == ErrorClassRetryable
}

// IsFatalError checks if a fetch failure should not be retried.
func IsFatalError(err error) bool {
	return ClassifyFetchError(err) == ErrorClassFatal
}
