package llm

import (
	"context"
	"errors"
	"strings"
)

// ErrorKind classifies provider failures for retry decisions and user-facing
// messages.
type ErrorKind string

const (
	KindRateLimit     ErrorKind = "rate_limit"
	KindAuth          ErrorKind = "auth"
	KindQuota         ErrorKind = "quota"
	KindTokenLimit    ErrorKind = "token_limit"
	KindContentFilter ErrorKind = "content_filter"
	KindTimeout       ErrorKind = "timeout"
	KindOther         ErrorKind = "other"
)

// ProviderError wraps an SDK error with its classification.
type ProviderError struct {
	Kind     ErrorKind
	Provider string
	Err      error
}

func (e *ProviderError) Error() string {
	return "llm " + e.Provider + " (" + string(e.Kind) + "): " + e.Err.Error()
}

func (e *ProviderError) Unwrap() error { return e.Err }

// classify buckets an SDK error by inspecting status codes and well-known
// substrings in its message. Provider SDKs expose errors inconsistently, so
// string matching is the portable denominator.
func classify(provider string, err error) *ProviderError {
	kind := KindOther
	msg := strings.ToLower(err.Error())

	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		kind = KindTimeout
	case strings.Contains(msg, "429") || strings.Contains(msg, "rate limit") || strings.Contains(msg, "rate_limit") || strings.Contains(msg, "too many requests"):
		kind = KindRateLimit
	case strings.Contains(msg, "401") || strings.Contains(msg, "403") || strings.Contains(msg, "authentication") || strings.Contains(msg, "api key") || strings.Contains(msg, "api_key") || strings.Contains(msg, "permission"):
		kind = KindAuth
	case strings.Contains(msg, "quota") || strings.Contains(msg, "billing") || strings.Contains(msg, "insufficient_quota"):
		kind = KindQuota
	case strings.Contains(msg, "maximum context length") || strings.Contains(msg, "context_length") || strings.Contains(msg, "token limit") || strings.Contains(msg, "max_tokens") || strings.Contains(msg, "too long"):
		kind = KindTokenLimit
	case strings.Contains(msg, "content filter") || strings.Contains(msg, "content_filter") || strings.Contains(msg, "safety") || strings.Contains(msg, "blocked"):
		kind = KindContentFilter
	case strings.Contains(msg, "timeout") || strings.Contains(msg, "deadline"):
		kind = KindTimeout
	}

	return &ProviderError{Kind: kind, Provider: provider, Err: err}
}

// UserMessage converts a pipeline error into short, actionable prose with
// implementation details redacted. Unrecognized errors collapse to a generic
// line.
func UserMessage(err error) string {
	var pe *ProviderError
	if errors.As(err, &pe) {
		switch pe.Kind {
		case KindRateLimit:
			return "The AI provider is rate limiting requests. Retry in a few minutes."
		case KindAuth:
			return "The AI provider rejected the credential. Check the configured API key."
		case KindQuota:
			return "The AI provider account is out of quota."
		case KindTokenLimit:
			return "The change is too large for the selected model's context window. Try a smaller diff or a larger model."
		case KindContentFilter:
			return "The AI provider's content filter blocked this request."
		case KindTimeout:
			return "The AI provider timed out. Retry the review."
		}
	}
	if errors.Is(err, context.Canceled) {
		return "cancelled"
	}
	return "Review failed due to an internal error."
}
