package fake

import (
	"context"
	"sync"

	"github.com/chriscow/utero-voice/pkg/ai/llm"
)

// FakeLLM is a fake completion service for testing.
type FakeLLM struct {
	mu        sync.Mutex
	responses []string
	err       error
	noChoices bool
	callCount int
	requests  []llm.ChatRequest
}

// NewFakeLLM creates a new fake provider that cycles through the given responses.
func NewFakeLLM(responses ...string) *FakeLLM {
	if len(responses) == 0 {
		responses = []string{
			"Ini adalah jawaban palsu dari penyedia LLM palsu.",
			"Saya asisten palsu. Ada yang bisa saya bantu?",
		}
	}
	return &FakeLLM{responses: responses}
}

// NewFailingLLM creates a fake provider whose every call fails with err.
func NewFailingLLM(err error) *FakeLLM {
	return &FakeLLM{err: err}
}

// NewEmptyLLM creates a fake provider that succeeds without any choices.
func NewEmptyLLM() *FakeLLM {
	return &FakeLLM{noChoices: true}
}

// Chat records the request and returns the next canned response.
func (f *FakeLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	history := make([]llm.Message, len(req.History))
	copy(history, req.History)
	req.History = history
	f.requests = append(f.requests, req)

	if err := ctx.Err(); err != nil {
		return llm.ChatResponse{}, err
	}
	if f.err != nil {
		return llm.ChatResponse{}, f.err
	}
	if f.noChoices {
		return llm.ChatResponse{}, nil
	}

	response := f.responses[f.callCount%len(f.responses)]
	f.callCount++

	return llm.ChatResponse{
		Choices: []llm.Choice{{
			Message: llm.Message{
				Role:    llm.RoleAssistant,
				Content: response,
			},
			FinishReason: "stop",
		}},
	}, nil
}

// Requests returns a copy of every request received so far.
func (f *FakeLLM) Requests() []llm.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]llm.ChatRequest, len(f.requests))
	copy(out, f.requests)
	return out
}
