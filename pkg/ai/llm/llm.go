package llm

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai"
)

// LLM-specific error variables for backward compatibility
var (
	// ErrRecoverable indicates a temporary completion failure that may succeed if retried.
	// Examples: rate limiting, HTTP 5xx from the proxy, timeout.
	ErrRecoverable = ai.ErrRecoverable

	// ErrFatal indicates a permanent completion failure.
	// Examples: invalid API key, unknown model, malformed response payload.
	ErrFatal = ai.ErrFatal
)

// MessageRole represents the role of a message in a conversation.
type MessageRole string

const (
	RoleSystem    MessageRole = "system"
	RoleUser      MessageRole = "user"
	RoleAssistant MessageRole = "assistant"
)

// Provider identifies the upstream completion vendor a model is served by.
type Provider string

const (
	ProviderGroq       Provider = "groq"
	ProviderOpenRouter Provider = "openrouter"
	ProviderOpenAI     Provider = "openai"
)

// Message represents a single conversation entry.
type Message struct {
	ID        string      `json:"id,omitempty"`
	Role      MessageRole `json:"role"`
	Content   string      `json:"content"`
	CreatedAt time.Time   `json:"createdAt"`
}

// ChatRequest is one conversation turn sent to the completion service.
type ChatRequest struct {
	Message  string    // the committed user utterance
	Model    string    // model identifier
	Provider Provider  // inferred from the model registry
	History  []Message // most recent conversation entries, oldest first
}

// Choice is one generated alternative.
type Choice struct {
	Index        int
	Message      Message
	FinishReason string
}

// ChatResponse contains the choices returned by the completion service.
type ChatResponse struct {
	Choices []Choice
}

// Text returns the first choice's content and whether any choice was present.
func (r ChatResponse) Text() (string, bool) {
	if len(r.Choices) == 0 {
		return "", false
	}
	return r.Choices[0].Message.Content, true
}

// StatusError reports a non-success HTTP status from the completion service.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("completion service returned HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("completion service returned HTTP %d: %s", e.StatusCode, e.Body)
}

// Unwrap classifies 429 and 5xx as recoverable, everything else as fatal.
func (e *StatusError) Unwrap() error {
	if e.StatusCode == http.StatusTooManyRequests || e.StatusCode >= 500 {
		return ai.ErrRecoverable
	}
	return ai.ErrFatal
}

// LLM is the completion service collaborator.
type LLM interface {
	// Chat performs one completion request for the given turn.
	Chat(ctx context.Context, req ChatRequest) (ChatResponse, error)
}
