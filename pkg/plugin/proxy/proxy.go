// Package proxy implements the completion service as a JSON HTTP client for
// the chat backend proxy, which forwards each turn to the provider that
// serves the selected model.
package proxy

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/chriscow/utero-voice/pkg/ai"
	"github.com/chriscow/utero-voice/pkg/ai/llm"
	"github.com/chriscow/utero-voice/pkg/plugin"
	"github.com/chriscow/utero-voice/pkg/version"
)

const (
	// DefaultURL is the chat endpoint of a locally running proxy.
	DefaultURL = "http://localhost:3000/api/chat"
	// DefaultTimeout bounds a single completion request.
	DefaultTimeout = 60 * time.Second

	maxErrorBody = 4 << 10
)

// Config configures the proxy client.
type Config struct {
	URL          string
	SystemPrompt string // forwarded only when set
	Timeout      time.Duration
	HTTPClient   *http.Client
}

// Client implements llm.LLM against the backend proxy.
type Client struct {
	url          string
	systemPrompt string
	httpClient   *http.Client
}

// New creates a proxy client.
func New(cfg Config) (*Client, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("proxy URL is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	if cfg.HTTPClient == nil {
		cfg.HTTPClient = &http.Client{Timeout: cfg.Timeout}
	}
	return &Client{
		url:          cfg.URL,
		systemPrompt: cfg.SystemPrompt,
		httpClient:   cfg.HTTPClient,
	}, nil
}

// Request is the payload posted to the proxy.
type Request struct {
	Message      string         `json:"message"`
	Model        string         `json:"model"`
	Provider     llm.Provider   `json:"provider"`
	History      []HistoryEntry `json:"history"`
	SystemPrompt string         `json:"systemPrompt,omitempty"`
}

// HistoryEntry is one prior conversation message.
type HistoryEntry struct {
	Role    llm.MessageRole `json:"role"`
	Content string          `json:"content"`
}

// Response is the proxy's reply, shaped like an OpenAI chat completion.
type Response struct {
	Choices []struct {
		Index   int `json:"index"`
		Message struct {
			Role    llm.MessageRole `json:"role"`
			Content string          `json:"content"`
		} `json:"message"`
		FinishReason string `json:"finish_reason"`
	} `json:"choices"`
}

// Chat posts one turn to the proxy.
func (c *Client) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	payload := Request{
		Message:      req.Message,
		Model:        req.Model,
		Provider:     req.Provider,
		History:      make([]HistoryEntry, 0, len(req.History)),
		SystemPrompt: c.systemPrompt,
	}
	for _, m := range req.History {
		payload.History = append(payload.History, HistoryEntry{Role: m.Role, Content: m.Content})
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return llm.ChatResponse{}, ai.NewFatalError(err, "failed to marshal request")
	}

	httpReq, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(body))
	if err != nil {
		return llm.ChatResponse{}, ai.NewFatalError(err, "failed to create request")
	}
	httpReq.Header.Set("Content-Type", "application/json")
	httpReq.Header.Set("Accept", "application/json")
	httpReq.Header.Set("User-Agent", version.UserAgent())
	httpReq.Header.Set("X-Request-ID", uuid.NewString())

	resp, err := c.httpClient.Do(httpReq)
	if err != nil {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return llm.ChatResponse{}, fmt.Errorf("HTTP request cancelled: %w", ctxErr)
		}
		return llm.ChatResponse{}, ai.NewRecoverableError(err, "HTTP request failed")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return llm.ChatResponse{}, &llm.StatusError{StatusCode: resp.StatusCode, Body: string(bytes.TrimSpace(msg))}
	}

	var decoded Response
	if err := json.NewDecoder(resp.Body).Decode(&decoded); err != nil {
		return llm.ChatResponse{}, ai.NewFatalError(err, "failed to decode response")
	}

	out := llm.ChatResponse{Choices: make([]llm.Choice, 0, len(decoded.Choices))}
	for _, ch := range decoded.Choices {
		role := ch.Message.Role
		if role == "" {
			role = llm.RoleAssistant
		}
		out.Choices = append(out.Choices, llm.Choice{
			Index:        ch.Index,
			Message:      llm.Message{Role: role, Content: ch.Message.Content},
			FinishReason: ch.FinishReason,
		})
	}
	return out, nil
}

func newProxyLLM(cfg map[string]any) (any, error) {
	timeout, err := plugin.Duration(cfg, "timeout", DefaultTimeout)
	if err != nil {
		return nil, err
	}
	return New(Config{
		URL:          plugin.String(cfg, "url", DefaultURL),
		SystemPrompt: plugin.String(cfg, "system_prompt", ""),
		Timeout:      timeout,
	})
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "proxy",
		Factory:     newProxyLLM,
		Description: "Chat backend proxy (routes to Groq or OpenRouter by model)",
		Version:     "1.0.0",
		Config: map[string]any{
			"url":           DefaultURL,
			"system_prompt": "optional system prompt forwarded to the proxy",
			"timeout":       DefaultTimeout.String(),
		},
	})
}
