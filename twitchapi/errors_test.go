package twitchapi

import (
	"errors"
	"fmt"
	"testing"
)

func TestClassifyFetchError(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorClass
	}{
		{"nil", nil, ErrorClassUnknown},
		{"500", errors.New("twitch api: 500 Internal Server Error"), ErrorClassRetryable},
		{"bad gateway", errors.New("twitch api: 502 Bad Gateway"), ErrorClassRetryable},
		{"service unavailable", errors.New("service unavailable"), ErrorClassRetryable},
		{"unauthorized", errors.New("twitch api: 401 Unauthorized: invalid token"), ErrorClassFatal},
		{"forbidden", errors.New("access denied for scope"), ErrorClassFatal},
		{"not found", errors.New("twitch api: 404 Not Found"), ErrorClassFatal},
		{"connection refused", errors.New("dial tcp 127.0.0.1:443: connection refused"), ErrorClassRetryable},
		{"timeout", errors.New("context deadline exceeded (Client.Timeout exceeded)"), ErrorClassRetryable},
		{"rate limited", errors.New("twitch api: 429 Too Many Requests"), ErrorClassRetryable},
		{"wrapped server error", fmt.Errorf("fetch global emotes: %w", errors.New("503 service unavailable")), ErrorClassRetryable},
		{"unmatched defaults retryable", errors.New("something odd happened"), ErrorClassRetryable},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := ClassifyFetchError(tt.err); got != tt.want {
				t.Errorf("ClassifyFetchError(%v) = %s, want %s", tt.err, got, tt.want)
			}
		})
	}
}

func TestRetryableFatalHelpers(t *testing.T) {
	if !IsRetryableError(errors.New("502 bad gateway")) {
		t.Error("502 should be retryable")
	}
	if !IsFatalError(errors.New("404 not found")) {
		t.Error("404 should be fatal")
	}
	if IsRetryableError(nil) || IsFatalError(nil) {
		t.Error("nil error is neither retryable nor fatal")
	}
}
