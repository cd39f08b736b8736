package ai

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// HuggingFaceProvider talks to the Hugging Face Inference API. The backend
// has no chat-message schema, so history is flattened into a single prompt;
// it also has no usable incremental streaming, so Stream degrades to one
// chunk.
type HuggingFaceProvider struct {
	BaseURL      string
	AccessToken  string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	Client       *http.Client
}

type hfGenerateReq struct {
	Inputs     string       `json:"inputs"`
	Parameters hfParameters `json:"parameters"`
}

type hfParameters struct {
	MaxNewTokens   int     `json:"max_new_tokens"`
	Temperature    float64 `json:"temperature"`
	ReturnFullText bool    `json:"return_full_text"`
	DoSample       bool    `json:"do_sample,omitempty"`
}

type hfGenerateResp struct {
	GeneratedText string `json:"generated_text"`
}

type hfErrorResp struct {
	Error string `json:"error"`
}

func (p *HuggingFaceProvider) Name() string { return "Hugging Face" }

// SupportsStreaming reports false: the Inference API has no incremental
// streaming we can rely on. This is a capability gap, not an error.
func (p *HuggingFaceProvider) SupportsStreaming() bool { return false }

func (p *HuggingFaceProvider) endpoint() string {
	return fmt.Sprintf("%s/%s", strings.TrimRight(p.BaseURL, "/"), p.Model)
}

// buildPrompt flattens the system prompt and history into alternating
// "User:"/"Assistant:" turns with a trailing assistant cue.
func (p *HuggingFaceProvider) buildPrompt(history []Message, message string) string {
	var b strings.Builder
	b.WriteString(p.SystemPrompt)
	b.WriteString("\n\n")
	for _, m := range history {
		role := "Assistant"
		if m.Role == "user" {
			role = "User"
		}
		fmt.Fprintf(&b, "%s: %s\n\n", role, m.Content)
	}
	fmt.Fprintf(&b, "User: %s\n\nAssistant:", message)
	return b.String()
}

func (p *HuggingFaceProvider) Generate(ctx context.Context, history []Message, message string) (*Result, error) {
	if p.Client == nil {
		return nil, errors.New("huggingface: http client is nil")
	}

	reqBody := hfGenerateReq{
		Inputs: p.buildPrompt(history, message),
		Parameters: hfParameters{
			MaxNewTokens:   p.MaxTokens,
			Temperature:    p.Temperature,
			ReturnFullText: false,
			DoSample:       true,
		},
	}

	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.AccessToken)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var decoded hfErrorResp
		msg := ""
		if err := json.NewDecoder(resp.Body).Decode(&decoded); err == nil {
			msg = decoded.Error
		}
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, &APIError{Provider: "huggingface", Status: resp.StatusCode, Message: msg}
	}

	// The Inference API returns an array of results.
	var results []hfGenerateResp
	if err := json.NewDecoder(resp.Body).Decode(&results); err != nil {
		return nil, err
	}
	if len(results) == 0 || strings.TrimSpace(results[0].GeneratedText) == "" {
		return nil, &APIError{Provider: "huggingface", Status: resp.StatusCode, Message: "empty response"}
	}

	content := strings.TrimSpace(results[0].GeneratedText)
	return &Result{Content: content, Tokens: EstimateTokens(len(content))}, nil
}

// Stream degrades gracefully: the full response is generated synchronously
// and delivered as a single chunk before the terminal StreamEnd.
func (p *HuggingFaceProvider) Stream(ctx context.Context, history []Message, message string) (<-chan string, <-chan StreamEnd) {
	chunks := make(chan string, 1)
	end := make(chan StreamEnd, 1)

	go func() {
		defer close(chunks)
		defer close(end)

		res, err := p.Generate(ctx, history, message)
		if err != nil {
			end <- StreamEnd{Err: err}
			return
		}
		select {
		case chunks <- res.Content:
		case <-ctx.Done():
			end <- StreamEnd{Err: ctx.Err()}
			return
		}
		end <- StreamEnd{Tokens: res.Tokens}
	}()

	return chunks, end
}

func (p *HuggingFaceProvider) TestConnection(ctx context.Context) ProbeResult {
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, 25*time.Second)
	defer cancel()

	_, err := p.Generate(cctx, nil, "test")
	latency := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		res := ProbeResult{Success: false, Message: err.Error(), LatencyMS: latency}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			res.Status = apiErr.Status
			res.Message = probeMessageForStatus(apiErr)
		}
		return res
	}

	return ProbeResult{
		Success:   true,
		Message:   "Connection successful!",
		LatencyMS: latency,
		Model:     p.Model,
	}
}

func probeMessageForStatus(e *APIError) string {
	switch {
	case e.Status == http.StatusUnauthorized || e.Status == http.StatusForbidden:
		return "Invalid access token. Please check your Hugging Face access token."
	case e.Status == http.StatusNotFound:
		return "Model not found. Please check the model name."
	case e.Status == http.StatusTooManyRequests:
		return "Rate limit exceeded. Please try again later."
	case e.Status >= 500:
		return "Hugging Face service error. Please try again later."
	default:
		// Never forward raw upstream text to the probe caller.
		return fmt.Sprintf("Connection failed with status %d.", e.Status)
	}
}
