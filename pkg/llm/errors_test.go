package llm

import (
	"context"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want ErrorKind
	}{
		{"rate limit by status", errors.New("request failed: 429 Too Many Requests"), KindRateLimit},
		{"rate limit by phrase", errors.New("rate_limit_error: slow down"), KindRateLimit},
		{"auth by status", errors.New("401 unauthorized"), KindAuth},
		{"auth by phrase", errors.New("invalid api key provided"), KindAuth},
		{"quota", errors.New("insufficient_quota: check billing"), KindQuota},
		{"token limit", errors.New("prompt exceeds maximum context length"), KindTokenLimit},
		{"content filter", errors.New("response blocked by safety settings"), KindContentFilter},
		{"timeout phrase", errors.New("request timeout after 300s"), KindTimeout},
		{"deadline exceeded", context.DeadlineExceeded, KindTimeout},
		{"unknown", errors.New("something odd"), KindOther},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			pe := classify("anthropic", tc.err)
			assert.Equal(t, tc.want, pe.Kind)
			assert.ErrorIs(t, pe, tc.err, "the original error stays in the chain")
		})
	}
}

func TestUserMessage(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want string
	}{
		{
			"rate limit",
			classify("openai", errors.New("429")),
			"The AI provider is rate limiting requests. Retry in a few minutes.",
		},
		{
			"wrapped provider error",
			fmt.Errorf("stage stage_1 failed: %w", classify("openai", errors.New("invalid api key"))),
			"The AI provider rejected the credential. Check the configured API key.",
		},
		{"cancellation", context.Canceled, "cancelled"},
		{"internal detail redacted", errors.New("pgx: connection refused"), "Review failed due to an internal error."},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.Equal(t, tc.want, UserMessage(tc.err))
		})
	}
}
