package chat

import (
	"context"
	"errors"
	"net"
	"net/http"
	"regexp"
	"strings"

	"github.com/chatcommerce/assist/internal/ai"
)

// Kind is the stable, user-facing-safe error taxonomy of the chat pipeline.
type Kind string

const (
	KindInvalidSession        Kind = "invalid_session"
	KindRateLimited           Kind = "rate_limited"
	KindProviderNotConfigured Kind = "provider_not_configured"
	KindProviderAuth          Kind = "provider_auth_error"
	KindProviderRateLimited   Kind = "provider_rate_limited"
	KindProviderUnavailable   Kind = "provider_unavailable"
	KindTimeout               Kind = "timeout"
	KindUnknown               Kind = "unknown"
)

func (k Kind) HTTPStatus() int {
	switch k {
	case KindInvalidSession:
		return http.StatusBadRequest
	case KindRateLimited:
		return http.StatusTooManyRequests
	default:
		return http.StatusInternalServerError
	}
}

// Error is what the pipeline surfaces for a failed turn: a taxonomy kind, a
// sanitized message safe to show to the client, and a correlation id for
// matching against server logs. The raw cause never crosses the client
// boundary.
type Error struct {
	Kind      Kind
	Message   string
	RequestID string
	cause     error
}

func (e *Error) Error() string {
	return string(e.Kind) + ": " + e.Message
}

func (e *Error) Unwrap() error { return e.cause }

const (
	msgInvalidSession = "Invalid session ID."
	msgRateLimited    = "Too many requests. Please try again later."
	msgNotConfigured  = "The AI assistant is not configured. Please contact the site administrator."
	msgAuth           = "Invalid API key. Please check your provider API key in settings."
	msgForbidden      = "Access forbidden. Your API key may not have sufficient permissions."
	msgUpstreamRate   = "Rate limit exceeded. Please try again in a moment."
	msgUnavailable    = "Service temporarily unavailable. Please try again later."
	msgTimeout        = "Request timed out. Please try again."
	msgNetwork        = "Network error. Please check your internet connection."
	msgQuota          = "Provider quota exceeded. Please check your billing."
	msgModelNotFound  = "AI model not found. Please check your model settings."
	msgGeneric        = "An error occurred while processing your request. Please try again."
)

// Classify maps a raw provider-level failure onto the taxonomy and a safe
// message. Raw upstream text is matched, never returned.
func Classify(err error) (Kind, string) {
	if err == nil {
		return KindUnknown, msgGeneric
	}

	if errors.Is(err, ai.ErrNotConfigured) {
		return KindProviderNotConfigured, msgNotConfigured
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout, msgTimeout
	}

	var apiErr *ai.APIError
	if errors.As(err, &apiErr) {
		lower := strings.ToLower(apiErr.Message)
		switch {
		case strings.Contains(lower, "insufficient_quota"):
			return KindProviderAuth, msgQuota
		case strings.Contains(lower, "model_not_found"):
			return KindProviderUnavailable, msgModelNotFound
		}
		switch {
		case apiErr.Status == http.StatusUnauthorized:
			return KindProviderAuth, msgAuth
		case apiErr.Status == http.StatusForbidden:
			return KindProviderAuth, msgForbidden
		case apiErr.Status == http.StatusTooManyRequests:
			return KindProviderRateLimited, msgUpstreamRate
		case apiErr.Status >= 500:
			return KindProviderUnavailable, msgUnavailable
		}
		return KindUnknown, msgGeneric
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		if netErr.Timeout() {
			return KindTimeout, msgTimeout
		}
		return KindProviderUnavailable, msgNetwork
	}

	lower := strings.ToLower(err.Error())
	switch {
	case strings.Contains(lower, "timeout"):
		return KindTimeout, msgTimeout
	case strings.Contains(lower, "connection refused"), strings.Contains(lower, "no such host"):
		return KindProviderUnavailable, msgNetwork
	}

	return KindUnknown, msgGeneric
}

// Credential-shaped substrings: known provider prefix plus a long
// alphanumeric tail.
var credPattern = regexp.MustCompile(`(sk-|hf_)[A-Za-z0-9_-]{20,}`)

// Redact masks credential-shaped substrings so raw provider errors can be
// logged without leaking keys.
func Redact(s string) string {
	return credPattern.ReplaceAllString(s, "${1}***REDACTED***")
}
