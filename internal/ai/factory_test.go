package ai

import (
	"errors"
	"strings"
	"testing"
)

func TestNew_ValidatesCredentials(t *testing.T) {
	cases := []struct {
		name string
		opts Options
		ok   bool
	}{
		{"openai ok", Options{Kind: "openai", OpenAIAPIKey: "sk-valid"}, true},
		{"openai missing key", Options{Kind: "openai"}, false},
		{"openai bad prefix", Options{Kind: "openai", OpenAIAPIKey: "pk-nope"}, false},
		{"huggingface ok", Options{Kind: "huggingface", HFAccessToken: "hf_valid"}, true},
		{"huggingface missing token", Options{Kind: "huggingface"}, false},
		{"huggingface bad prefix", Options{Kind: "huggingface", HFAccessToken: "token"}, false},
		{"unknown kind", Options{Kind: "llamacpp"}, false},
		{"kind is case insensitive", Options{Kind: " OpenAI ", OpenAIAPIKey: "sk-valid"}, true},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			p, err := New(tc.opts)
			if tc.ok {
				if err != nil {
					t.Fatalf("expected provider, got %v", err)
				}
				if p == nil {
					t.Fatalf("expected non-nil provider")
				}
				return
			}
			if err == nil {
				t.Fatalf("expected error")
			}
			if !errors.Is(err, ErrNotConfigured) {
				t.Fatalf("expected ErrNotConfigured, got %v", err)
			}
		})
	}
}

func TestEstimateTokens(t *testing.T) {
	cases := []struct{ chars, want int }{
		{0, 0},
		{1, 1},
		{4, 1},
		{5, 2},
		{8, 2},
		{9, 3},
	}
	for _, tc := range cases {
		if got := EstimateTokens(tc.chars); got != tc.want {
			t.Fatalf("EstimateTokens(%d) = %d, want %d", tc.chars, got, tc.want)
		}
	}
}

func TestRenderSystemPrompt(t *testing.T) {
	out := RenderSystemPrompt("Welcome to {site_name} ({store_url}), prices in {currency}.", PromptVars{
		SiteName: "Mug World",
		StoreURL: "https://mugs.example",
		Currency: "EUR",
	})
	want := "Welcome to Mug World (https://mugs.example), prices in EUR."
	if out != want {
		t.Fatalf("got %q, want %q", out, want)
	}
}

func TestRenderSystemPrompt_EmptyTemplate(t *testing.T) {
	out := RenderSystemPrompt("  ", PromptVars{SiteName: "Mug World"})
	if !strings.Contains(out, "Mug World") {
		t.Fatalf("fallback prompt must mention the site name, got %q", out)
	}
}
