package openai

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai"
	"github.com/chriscow/utero-voice/pkg/ai/llm"
	openai "github.com/sashabaranov/go-openai"
)

// Default OpenAI-compatible endpoints per provider.
const (
	GroqBaseURL       = "https://api.groq.com/openai/v1"
	OpenRouterBaseURL = "https://openrouter.ai/api/v1"
	OpenAIBaseURL     = "https://api.openai.com/v1"
)

// Endpoint is one OpenAI-compatible API.
type Endpoint struct {
	BaseURL string
	APIKey  string
}

// Config configures the direct completion client.
type Config struct {
	// Endpoints maps a provider to its API. Requests whose provider has no
	// entry use Fallback.
	Endpoints    map[llm.Provider]Endpoint
	Fallback     Endpoint
	Model        string // used when a request names no model
	SystemPrompt string
}

// LLM calls OpenAI-compatible chat completion APIs directly, selecting the
// endpoint by the request's provider.
type LLM struct {
	cfg Config

	mu      sync.Mutex
	clients map[llm.Provider]*openai.Client
}

// NewLLM creates a direct completion client.
func NewLLM(cfg Config) (*LLM, error) {
	if cfg.Fallback.APIKey == "" && len(cfg.Endpoints) == 0 {
		return nil, fmt.Errorf("at least one API key is required")
	}
	if cfg.Fallback.BaseURL == "" {
		cfg.Fallback.BaseURL = OpenAIBaseURL
	}
	return &LLM{cfg: cfg, clients: make(map[llm.Provider]*openai.Client)}, nil
}

func (o *LLM) client(provider llm.Provider) (*openai.Client, error) {
	o.mu.Lock()
	defer o.mu.Unlock()

	if c, ok := o.clients[provider]; ok {
		return c, nil
	}
	ep, ok := o.cfg.Endpoints[provider]
	if !ok {
		ep = o.cfg.Fallback
	}
	if ep.APIKey == "" {
		return nil, ai.NewFatalError(fmt.Errorf("no API key for provider %q", provider), "missing credentials")
	}
	cc := openai.DefaultConfig(ep.APIKey)
	if ep.BaseURL != "" {
		cc.BaseURL = ep.BaseURL
	}
	c := openai.NewClientWithConfig(cc)
	o.clients[provider] = c
	return c, nil
}

// Chat performs one chat completion: the system prompt, then the history,
// then the user message.
func (o *LLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	client, err := o.client(req.Provider)
	if err != nil {
		return llm.ChatResponse{}, err
	}

	model := req.Model
	if model == "" {
		model = o.cfg.Model
	}

	messages := make([]openai.ChatCompletionMessage, 0, len(req.History)+2)
	if o.cfg.SystemPrompt != "" {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    openai.ChatMessageRoleSystem,
			Content: o.cfg.SystemPrompt,
		})
	}
	for _, m := range req.History {
		messages = append(messages, openai.ChatCompletionMessage{
			Role:    string(m.Role),
			Content: m.Content,
		})
	}
	messages = append(messages, openai.ChatCompletionMessage{
		Role:    openai.ChatMessageRoleUser,
		Content: req.Message,
	})

	start := time.Now()
	resp, err := client.CreateChatCompletion(ctx, openai.ChatCompletionRequest{
		Model:    model,
		Messages: messages,
	})
	if err != nil {
		slog.Warn("Chat completion failed",
			slog.String("provider", string(req.Provider)),
			slog.String("model", model),
			slog.String("error", err.Error()))
		return llm.ChatResponse{}, classify(ctx, err)
	}

	out := llm.ChatResponse{Choices: make([]llm.Choice, 0, len(resp.Choices))}
	for _, ch := range resp.Choices {
		role := llm.MessageRole(ch.Message.Role)
		if role == "" {
			role = llm.RoleAssistant
		}
		out.Choices = append(out.Choices, llm.Choice{
			Index:        ch.Index,
			Message:      llm.Message{Role: role, Content: ch.Message.Content},
			FinishReason: string(ch.FinishReason),
		})
	}

	slog.Debug("Chat completion finished",
		slog.String("provider", string(req.Provider)),
		slog.String("model", model),
		slog.Int("choices", len(out.Choices)),
		slog.Int("tokens", resp.Usage.TotalTokens),
		slog.Duration("duration", time.Since(start)))

	return out, nil
}

// classify maps go-openai errors onto StatusError so callers see the same
// recoverable/fatal split as the proxy client.
func classify(ctx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("chat completion cancelled: %w", ctxErr)
	}
	var apiErr *openai.APIError
	if errors.As(err, &apiErr) && apiErr.HTTPStatusCode != 0 {
		return &llm.StatusError{StatusCode: apiErr.HTTPStatusCode, Body: apiErr.Message}
	}
	var reqErr *openai.RequestError
	if errors.As(err, &reqErr) && reqErr.HTTPStatusCode != 0 {
		return &llm.StatusError{StatusCode: reqErr.HTTPStatusCode, Body: strings.TrimSpace(string(reqErr.Body))}
	}
	return ai.NewRecoverableError(err, "chat completion request failed")
}
