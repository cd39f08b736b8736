package ai

import (
	"context"
	"fmt"
)

type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

type Result struct {
	Content string
	Tokens  int
}

// StreamEnd is the single terminal value of a streamed generation. Err is nil
// on success; Tokens is only meaningful when Err is nil.
type StreamEnd struct {
	Tokens int
	Err    error
}

// ProbeResult reports the outcome of a connectivity test against the
// upstream API.
type ProbeResult struct {
	Success   bool    `json:"success"`
	Message   string  `json:"message"`
	LatencyMS float64 `json:"latency_ms"`
	Model     string  `json:"model,omitempty"`
	Tokens    int     `json:"tokens,omitempty"`
	Status    int     `json:"status,omitempty"`
	RequestID string  `json:"request_id,omitempty"`
}

// Provider is the uniform contract over heterogeneous LLM backends.
//
// Stream returns immediately with a chunk channel and an end channel. Zero or
// more chunks are delivered in generation order, then exactly one StreamEnd;
// both channels are closed afterwards. Providers that cannot stream
// (SupportsStreaming() == false) still honor the contract by delivering the
// whole response as one chunk.
type Provider interface {
	Name() string
	SupportsStreaming() bool
	TestConnection(ctx context.Context) ProbeResult
	Generate(ctx context.Context, history []Message, message string) (*Result, error)
	Stream(ctx context.Context, history []Message, message string) (<-chan string, <-chan StreamEnd)
}

// APIError is a non-2xx or payload-level error from an upstream LLM API.
// Message may contain raw upstream text and must be sanitized before it
// crosses the client boundary.
type APIError struct {
	Provider string
	Status   int
	Message  string
}

func (e *APIError) Error() string {
	if e.Message == "" {
		return fmt.Sprintf("%s: status %d", e.Provider, e.Status)
	}
	return fmt.Sprintf("%s: %s", e.Provider, e.Message)
}

// EstimateTokens approximates token usage from character count as
// ceil(n/4). This is a rough heuristic (4 characters per token), not exact
// accounting; prefer the upstream usage report when the API provides one.
func EstimateTokens(n int) int {
	return (n + 3) / 4
}
