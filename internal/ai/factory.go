package ai

import (
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// Kind selects a concrete provider implementation.
type Kind string

const (
	KindOpenAI      Kind = "openai"
	KindHuggingFace Kind = "huggingface"
)

// ErrNotConfigured marks configuration problems: unsupported provider kind
// or a missing/malformed credential. No network call is attempted in any of
// these cases.
var ErrNotConfigured = errors.New("ai provider not configured")

// Options carries everything needed to construct a provider once at startup.
type Options struct {
	Kind          string
	OpenAIAPIKey  string
	OpenAIBaseURL string
	OpenAIModel   string
	HFAccessToken string
	HFBaseURL     string
	HFModel       string
	Temperature   float64
	MaxTokens     int
	SystemPrompt  string
	Tools         ToolExecutor
}

// New is the provider factory. Dispatch is resolved here, once; adding a
// provider means adding a Kind and a case, checked at compile time against
// the Provider interface.
func New(opts Options) (Provider, error) {
	switch Kind(strings.ToLower(strings.TrimSpace(opts.Kind))) {
	case KindOpenAI:
		key := strings.TrimSpace(opts.OpenAIAPIKey)
		if key == "" {
			return nil, fmt.Errorf("%w: openai api key is not set", ErrNotConfigured)
		}
		if !strings.HasPrefix(key, "sk-") {
			return nil, fmt.Errorf("%w: invalid openai api key format", ErrNotConfigured)
		}
		return &OpenAIProvider{
			BaseURL:      opts.OpenAIBaseURL,
			APIKey:       key,
			Model:        opts.OpenAIModel,
			Temperature:  opts.Temperature,
			MaxTokens:    opts.MaxTokens,
			SystemPrompt: opts.SystemPrompt,
			Tools:        opts.Tools,
			Client:       &http.Client{Timeout: 30 * time.Second},
		}, nil

	case KindHuggingFace:
		token := strings.TrimSpace(opts.HFAccessToken)
		if token == "" {
			return nil, fmt.Errorf("%w: hugging face access token is not set", ErrNotConfigured)
		}
		if !strings.HasPrefix(token, "hf_") {
			return nil, fmt.Errorf("%w: invalid hugging face access token format", ErrNotConfigured)
		}
		return &HuggingFaceProvider{
			BaseURL:      opts.HFBaseURL,
			AccessToken:  token,
			Model:        opts.HFModel,
			Temperature:  opts.Temperature,
			MaxTokens:    opts.MaxTokens,
			SystemPrompt: opts.SystemPrompt,
			Client:       &http.Client{Timeout: 30 * time.Second},
		}, nil

	default:
		return nil, fmt.Errorf("%w: unsupported ai provider %q", ErrNotConfigured, opts.Kind)
	}
}
