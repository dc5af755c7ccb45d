package llm

import (
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

type AnthropicProvider struct {
	client    *http.Client
	apiKey    string
	apiURL    string
	model     string
	maxTokens int
}

const defaultAnthropicMaxTokens = 4096

func NewAnthropicProvider(cfg Config) *AnthropicProvider {
	apiURL := strings.TrimRight(cfg.APIURL, "/")
	if apiURL == "" {
		apiURL = "https://api.anthropic.com"
	}
	maxTokens := cfg.MaxTokens
	if maxTokens <= 0 {
		maxTokens = defaultAnthropicMaxTokens
	}
	return &AnthropicProvider{
		client:    &http.Client{Timeout: 60 * time.Second},
		apiKey:    cfg.APIKey,
		apiURL:    apiURL,
		model:     cfg.Model,
		maxTokens: maxTokens,
	}
}

func (p *AnthropicProvider) Complete(ctx context.Context, messages []Message) (Stream, error) {
	if p.model == "" {
		return nil, errors.New("anthropic model is required")
	}
	reqBody := anthropicRequest{
		Model:     p.model,
		MaxTokens: p.maxTokens,
		Stream:    true,
	}
	reqBody.Messages, reqBody.System = anthropicMessagesFrom(messages)

	payload, err := json.Marshal(reqBody)
	if err != nil {
		return nil, fmt.Errorf("anthropic: marshal request: %w", err)
	}

	resp, err := doWithRetry(ctx, p.client, func() (*http.Request, error) {
		req, reqErr := http.NewRequestWithContext(ctx, http.MethodPost, p.apiURL+"/v1/messages", bytes.NewReader(payload))
		if reqErr != nil {
			return nil, fmt.Errorf("anthropic: create request: %w", reqErr)
		}
		req.Header.Set("Content-Type", "application/json")
		if p.apiKey != "" {
			req.Header.Set("X-API-Key", p.apiKey)
		}
		req.Header.Set("Anthropic-Version", "2023-06-01")
		return req, nil
	})
	if err != nil {
		return nil, fmt.Errorf("anthropic: request failed: %w", err)
	}
	if resp.StatusCode < http.StatusOK || resp.StatusCode >= http.StatusMultipleChoices {
		defer resp.Body.Close()
		body, _ := io.ReadAll(resp.Body)
		return nil, fmt.Errorf("anthropic: unexpected status %s: %s", resp.Status, strings.TrimSpace(string(body)))
	}

	return newSSEStream(resp, decodeAnthropicEvent), nil
}

type anthropicRequest struct {
	Model     string             `json:"model"`
	MaxTokens int                `json:"max_tokens"`
	System    string             `json:"system,omitempty"`
	Messages  []anthropicMessage `json:"messages"`
	Stream    bool               `json:"stream"`
}

type anthropicMessage struct {
	Role    string             `json:"role"`
	Content []anthropicContent `json:"content"`
}

type anthropicContent struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicEvent struct {
	Type         string                 `json:"type"`
	Index        int                    `json:"index,omitempty"`
	ContentBlock *anthropicContentBlock `json:"content_block,omitempty"`
	Delta        *anthropicContentDelta `json:"delta,omitempty"`
	Error        map[string]interface{} `json:"error,omitempty"`
}

type anthropicContentBlock struct {
	Type string `json:"type"`
	Text string `json:"text,omitempty"`
}

type anthropicContentDelta struct {
	Text string `json:"text,omitempty"`
}

func decodeAnthropicEvent(data []byte) (Chunk, error) {
	var event anthropicEvent
	if err := json.Unmarshal(data, &event); err != nil {
		return Chunk{}, fmt.Errorf("anthropic: decode event: %w", err)
	}
	switch event.Type {
	case "content_block_start":
		if event.ContentBlock != nil && event.ContentBlock.Type == "text" {
			return Chunk{Content: event.ContentBlock.Text}, nil
		}
	case "content_block_delta":
		if event.Delta != nil {
			return Chunk{Content: event.Delta.Text}, nil
		}
	case "error":
		return Chunk{}, fmt.Errorf("anthropic: stream error: %v", event.Error)
	}
	return Chunk{}, nil
}

func anthropicMessagesFrom(messages []Message) ([]anthropicMessage, string) {
	var systemParts []string
	out := make([]anthropicMessage, 0, len(messages))
	for _, message := range messages {
		if message.Role == "system" {
			systemParts = append(systemParts, message.Content)
			continue
		}
		out = append(out, anthropicMessage{
			Role: message.Role,
			Content: []anthropicContent{{
				Type: "text",
				Text: message.Content,
			}},
		})
	}
	return out, strings.Join(systemParts, "\n")
}
