package ai

import (
	"bufio"
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"
)

type OpenAIProvider struct {
	BaseURL      string
	APIKey       string
	Model        string
	Temperature  float64
	MaxTokens    int
	SystemPrompt string
	Tools        ToolExecutor // nil disables function calling
	Client       *http.Client
}

type oaMsg struct {
	Role       string       `json:"role"`
	Content    string       `json:"content"`
	ToolCalls  []oaToolCall `json:"tool_calls,omitempty"`
	ToolCallID string       `json:"tool_call_id,omitempty"`
	Name       string       `json:"name,omitempty"`
}

type oaToolCall struct {
	ID       string `json:"id"`
	Type     string `json:"type"`
	Function struct {
		Name      string `json:"name"`
		Arguments string `json:"arguments"`
	} `json:"function"`
}

type oaChatReq struct {
	Model       string   `json:"model"`
	Messages    []oaMsg  `json:"messages"`
	Temperature float64  `json:"temperature"`
	MaxTokens   int      `json:"max_tokens"`
	Stream      bool     `json:"stream,omitempty"`
	Tools       []oaTool `json:"tools,omitempty"`
}

type oaChatResp struct {
	Choices []struct {
		Message oaMsg `json:"message"`
	} `json:"choices"`
	Usage struct {
		TotalTokens int `json:"total_tokens"`
	} `json:"usage"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

type oaStreamResp struct {
	Choices []struct {
		Delta struct {
			Content string `json:"content"`
		} `json:"delta"`
	} `json:"choices"`
	Error *struct {
		Message string `json:"message"`
	} `json:"error,omitempty"`
}

func (p *OpenAIProvider) Name() string { return "OpenAI" }

func (p *OpenAIProvider) SupportsStreaming() bool { return true }

func (p *OpenAIProvider) endpoint() string {
	return fmt.Sprintf("%s/chat/completions", strings.TrimRight(p.BaseURL, "/"))
}

func (p *OpenAIProvider) buildMessages(history []Message, message string) []oaMsg {
	msgs := make([]oaMsg, 0, len(history)+2)
	msgs = append(msgs, oaMsg{Role: "system", Content: p.SystemPrompt})
	for _, m := range history {
		msgs = append(msgs, oaMsg{Role: m.Role, Content: m.Content})
	}
	msgs = append(msgs, oaMsg{Role: "user", Content: message})
	return msgs
}

func (p *OpenAIProvider) post(ctx context.Context, reqBody oaChatReq) (*oaChatResp, error) {
	b, err := json.Marshal(reqBody)
	if err != nil {
		return nil, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(b))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+p.APIKey)

	resp, err := p.Client.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
		msg := upstreamErrorMessage(body)
		if msg == "" {
			msg = fmt.Sprintf("status %d", resp.StatusCode)
		}
		return nil, &APIError{Provider: "openai", Status: resp.StatusCode, Message: msg}
	}

	var decoded oaChatResp
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return nil, err
	}
	if decoded.Error != nil && decoded.Error.Message != "" {
		return nil, &APIError{Provider: "openai", Status: resp.StatusCode, Message: decoded.Error.Message}
	}
	return &decoded, nil
}

func (p *OpenAIProvider) Generate(ctx context.Context, history []Message, message string) (*Result, error) {
	if p.Client == nil {
		return nil, errors.New("openai: http client is nil")
	}

	reqBody := oaChatReq{
		Model:       p.Model,
		Messages:    p.buildMessages(history, message),
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	}
	if p.Tools != nil {
		reqBody.Tools = toolDefinitions()
	}

	decoded, err := p.post(ctx, reqBody)
	if err != nil {
		return nil, err
	}
	if len(decoded.Choices) == 0 {
		return nil, &APIError{Provider: "openai", Status: http.StatusOK, Message: "empty response"}
	}

	choice := decoded.Choices[0]
	if len(choice.Message.ToolCalls) > 0 && p.Tools != nil {
		return p.finishToolCalls(ctx, reqBody.Messages, choice.Message)
	}

	tokens := decoded.Usage.TotalTokens
	if tokens == 0 {
		tokens = EstimateTokens(len(choice.Message.Content))
	}
	return &Result{Content: choice.Message.Content, Tokens: tokens}, nil
}

// finishToolCalls executes the requested tools and re-issues a follow-up
// completion carrying the tool outputs to obtain the final answer.
func (p *OpenAIProvider) finishToolCalls(ctx context.Context, messages []oaMsg, assistant oaMsg) (*Result, error) {
	messages = append(messages, assistant)
	for _, tc := range assistant.ToolCalls {
		out := executeTool(ctx, p.Tools, tc.Function.Name, json.RawMessage(tc.Function.Arguments))
		content, err := json.Marshal(out)
		if err != nil {
			content = []byte(`{"error":"tool result not serializable"}`)
		}
		messages = append(messages, oaMsg{
			Role:       "tool",
			ToolCallID: tc.ID,
			Name:       tc.Function.Name,
			Content:    string(content),
		})
	}

	decoded, err := p.post(ctx, oaChatReq{
		Model:       p.Model,
		Messages:    messages,
		Temperature: p.Temperature,
		MaxTokens:   p.MaxTokens,
	})
	if err != nil {
		return nil, err
	}
	if len(decoded.Choices) == 0 {
		return nil, &APIError{Provider: "openai", Status: http.StatusOK, Message: "empty response"}
	}

	content := decoded.Choices[0].Message.Content
	tokens := decoded.Usage.TotalTokens
	if tokens == 0 {
		tokens = EstimateTokens(len(content))
	}
	return &Result{Content: content, Tokens: tokens}, nil
}

// Stream reads the chunked completions response where each logical event is
// a "data: <json>" line and "[DONE]" marks stream end. Tool calling is not
// advertised on the streaming path.
func (p *OpenAIProvider) Stream(ctx context.Context, history []Message, message string) (<-chan string, <-chan StreamEnd) {
	chunks := make(chan string, 16)
	end := make(chan StreamEnd, 1)

	go func() {
		defer close(chunks)
		defer close(end)

		if p.Client == nil {
			end <- StreamEnd{Err: errors.New("openai: http client is nil")}
			return
		}

		reqBody := oaChatReq{
			Model:       p.Model,
			Messages:    p.buildMessages(history, message),
			Temperature: p.Temperature,
			MaxTokens:   p.MaxTokens,
			Stream:      true,
		}

		b, err := json.Marshal(reqBody)
		if err != nil {
			end <- StreamEnd{Err: err}
			return
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodPost, p.endpoint(), bytes.NewReader(b))
		if err != nil {
			end <- StreamEnd{Err: err}
			return
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Authorization", "Bearer "+p.APIKey)

		// The request context governs streaming lifetime, not the client
		// timeout.
		client := p.Client
		if client.Timeout > 0 {
			cp := *client
			cp.Timeout = 0
			client = &cp
		}

		resp, err := client.Do(req)
		if err != nil {
			end <- StreamEnd{Err: err}
			return
		}
		defer resp.Body.Close()

		if resp.StatusCode < 200 || resp.StatusCode >= 300 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 4*1024))
			msg := upstreamErrorMessage(body)
			if msg == "" {
				msg = fmt.Sprintf("status %d", resp.StatusCode)
			}
			end <- StreamEnd{Err: &APIError{Provider: "openai", Status: resp.StatusCode, Message: msg}}
			return
		}

		sc := bufio.NewScanner(resp.Body)
		buf := make([]byte, 0, 64*1024)
		sc.Buffer(buf, 2*1024*1024)

		var total int
		for sc.Scan() {
			line := strings.TrimSpace(sc.Text())
			if line == "" || !strings.HasPrefix(line, "data:") {
				continue
			}
			data := strings.TrimSpace(strings.TrimPrefix(line, "data:"))
			if data == "[DONE]" {
				end <- StreamEnd{Tokens: EstimateTokens(total)}
				return
			}
			var decoded oaStreamResp
			if err := json.Unmarshal([]byte(data), &decoded); err != nil {
				end <- StreamEnd{Err: err}
				return
			}
			if decoded.Error != nil && decoded.Error.Message != "" {
				end <- StreamEnd{Err: &APIError{Provider: "openai", Status: resp.StatusCode, Message: decoded.Error.Message}}
				return
			}
			if len(decoded.Choices) == 0 {
				continue
			}
			delta := decoded.Choices[0].Delta.Content
			if delta != "" {
				total += len(delta)
				select {
				case chunks <- delta:
				case <-ctx.Done():
					end <- StreamEnd{Err: ctx.Err()}
					return
				}
			}
		}

		if err := sc.Err(); err != nil {
			end <- StreamEnd{Err: err}
			return
		}
		// Upstream closed without a [DONE] sentinel; treat what arrived as
		// the full response.
		end <- StreamEnd{Tokens: EstimateTokens(total)}
	}()

	return chunks, end
}

func (p *OpenAIProvider) TestConnection(ctx context.Context) ProbeResult {
	start := time.Now()

	cctx, cancel := context.WithTimeout(ctx, 10*time.Second)
	defer cancel()

	decoded, err := p.post(cctx, oaChatReq{
		Model:     p.Model,
		Messages:  []oaMsg{{Role: "user", Content: "test"}},
		MaxTokens: 5,
	})
	latency := float64(time.Since(start)) / float64(time.Millisecond)

	if err != nil {
		res := ProbeResult{Success: false, Message: err.Error(), LatencyMS: latency}
		var apiErr *APIError
		if errors.As(err, &apiErr) {
			// Upstream error bodies can echo the key back; never forward them.
			res.Status = apiErr.Status
			res.Message = oaProbeMessage(apiErr)
		}
		return res
	}

	return ProbeResult{
		Success:   true,
		Message:   "Connection successful!",
		LatencyMS: latency,
		Model:     p.Model,
		Tokens:    decoded.Usage.TotalTokens,
	}
}

func oaProbeMessage(e *APIError) string {
	switch {
	case e.Status == http.StatusUnauthorized:
		return "Invalid API key. Please check your OpenAI API key."
	case e.Status == http.StatusForbidden:
		return "Access forbidden. Your API key may not have sufficient permissions."
	case e.Status == http.StatusNotFound:
		return "Model not found. Please check the model name."
	case e.Status == http.StatusTooManyRequests:
		return "Rate limit exceeded. Please try again later."
	case e.Status >= 500:
		return "OpenAI service error. Please try again later."
	default:
		return fmt.Sprintf("Connection failed with status %d.", e.Status)
	}
}

// upstreamErrorMessage extracts error.message from an OpenAI-style error
// body, falling back to the trimmed raw body.
func upstreamErrorMessage(body []byte) string {
	var decoded struct {
		Error *struct {
			Message string `json:"message"`
		} `json:"error"`
	}
	if err := json.Unmarshal(body, &decoded); err == nil && decoded.Error != nil && decoded.Error.Message != "" {
		return decoded.Error.Message
	}
	return strings.TrimSpace(string(body))
}
