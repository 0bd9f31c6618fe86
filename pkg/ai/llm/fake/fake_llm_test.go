package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/chriscow/utero-voice/pkg/ai/llm"
)

func TestFakeLLMChat(t *testing.T) {
	provider := NewFakeLLM("Test response 1", "Test response 2")
	ctx := context.Background()

	req := llm.ChatRequest{
		Message:  "Halo",
		Model:    "fake-model",
		Provider: llm.ProviderGroq,
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "sebelumnya"},
		},
	}

	for i, want := range []string{"Test response 1", "Test response 2", "Test response 1"} {
		resp, err := provider.Chat(ctx, req)
		if err != nil {
			t.Fatalf("Chat() error = %v", err)
		}
		got, ok := resp.Text()
		if !ok {
			t.Fatalf("call %d: expected a choice", i)
		}
		if got != want {
			t.Errorf("call %d: expected %q, got %q", i, want, got)
		}
		if resp.Choices[0].Message.Role != llm.RoleAssistant {
			t.Errorf("Expected assistant role, got %v", resp.Choices[0].Message.Role)
		}
	}

	reqs := provider.Requests()
	if len(reqs) != 3 {
		t.Fatalf("expected 3 recorded requests, got %d", len(reqs))
	}
	if reqs[0].Message != "Halo" || len(reqs[0].History) != 1 {
		t.Errorf("unexpected recorded request: %+v", reqs[0])
	}
}

func TestFakeLLMFailure(t *testing.T) {
	boom := errors.New("boom")
	provider := NewFailingLLM(boom)

	_, err := provider.Chat(context.Background(), llm.ChatRequest{Message: "x"})
	if !errors.Is(err, boom) {
		t.Errorf("expected boom, got %v", err)
	}
	if len(provider.Requests()) != 1 {
		t.Error("failed calls should still be recorded")
	}
}

func TestFakeLLMEmpty(t *testing.T) {
	resp, err := NewEmptyLLM().Chat(context.Background(), llm.ChatRequest{Message: "x"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if len(resp.Choices) != 0 {
		t.Errorf("expected no choices, got %d", len(resp.Choices))
	}
}

func TestFakeLLMCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	_, err := NewFakeLLM().Chat(ctx, llm.ChatRequest{Message: "x"})
	if !errors.Is(err, context.Canceled) {
		t.Errorf("expected context.Canceled, got %v", err)
	}
}
