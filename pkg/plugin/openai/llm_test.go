package openai

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/chriscow/utero-voice/pkg/ai"
	"github.com/chriscow/utero-voice/pkg/ai/llm"
	"github.com/matryer/is"
	openai "github.com/sashabaranov/go-openai"
)

type capture struct {
	auth string
	req  openai.ChatCompletionRequest
}

func newServer(t *testing.T, got *capture, status int, body string) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/chat/completions" {
			http.NotFound(w, r)
			return
		}
		got.auth = r.Header.Get("Authorization")
		_ = json.NewDecoder(r.Body).Decode(&got.req)
		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		_, _ = w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv
}

const okBody = `{
	"id": "chatcmpl-1",
	"object": "chat.completion",
	"model": "llama-3.3-70b-versatile",
	"choices": [{"index": 0, "message": {"role": "assistant", "content": "Tentu, kami bisa membantu."}, "finish_reason": "stop"}],
	"usage": {"prompt_tokens": 10, "completion_tokens": 5, "total_tokens": 15}
}`

func TestChat_RoutesByProvider(t *testing.T) {
	is := is.New(t)

	var groq, fallback capture
	groqSrv := newServer(t, &groq, http.StatusOK, okBody)
	fallbackSrv := newServer(t, &fallback, http.StatusOK, okBody)

	c, err := NewLLM(Config{
		Endpoints: map[llm.Provider]Endpoint{
			llm.ProviderGroq: {BaseURL: groqSrv.URL, APIKey: "groq-key"},
		},
		Fallback:     Endpoint{BaseURL: fallbackSrv.URL, APIKey: "fallback-key"},
		SystemPrompt: "Anda asisten Utero.",
	})
	is.NoErr(err)

	resp, err := c.Chat(context.Background(), llm.ChatRequest{
		Message:  "Berapa harga desain logo?",
		Model:    "llama-3.3-70b-versatile",
		Provider: llm.ProviderGroq,
		History: []llm.Message{
			{Role: llm.RoleUser, Content: "Halo"},
			{Role: llm.RoleAssistant, Content: "Halo juga"},
		},
	})
	is.NoErr(err)

	text, ok := resp.Text()
	is.True(ok)
	is.Equal(text, "Tentu, kami bisa membantu.")
	is.Equal(resp.Choices[0].FinishReason, "stop")

	is.Equal(groq.auth, "Bearer groq-key")
	is.Equal(groq.req.Model, "llama-3.3-70b-versatile")
	is.Equal(len(groq.req.Messages), 4) // system, two history entries, user
	is.Equal(groq.req.Messages[0].Role, openai.ChatMessageRoleSystem)
	is.Equal(groq.req.Messages[2].Content, "Halo juga")
	is.Equal(groq.req.Messages[3].Role, openai.ChatMessageRoleUser)
	is.Equal(groq.req.Messages[3].Content, "Berapa harga desain logo?")

	_, err = c.Chat(context.Background(), llm.ChatRequest{
		Message:  "Halo",
		Model:    "deepseek/deepseek-r1:free",
		Provider: llm.ProviderOpenRouter,
	})
	is.NoErr(err)
	is.Equal(fallback.auth, "Bearer fallback-key") // no openrouter endpoint configured
	is.Equal(len(fallback.req.Messages), 2)
}

func TestChat_DefaultModel(t *testing.T) {
	is := is.New(t)
	var got capture
	srv := newServer(t, &got, http.StatusOK, okBody)

	c, err := NewLLM(Config{Fallback: Endpoint{BaseURL: srv.URL, APIKey: "k"}, Model: "gpt-4o-mini"})
	is.NoErr(err)

	_, err = c.Chat(context.Background(), llm.ChatRequest{Message: "Halo"})
	is.NoErr(err)
	is.Equal(got.req.Model, "gpt-4o-mini")
	is.Equal(len(got.req.Messages), 1) // no system prompt configured
}

func TestChat_StatusErrors(t *testing.T) {
	tests := []struct {
		name        string
		status      int
		body        string
		recoverable bool
	}{
		{"overloaded", http.StatusServiceUnavailable, `{"error":{"message":"model overloaded","type":"server_error"}}`, true},
		{"bad key", http.StatusUnauthorized, `{"error":{"message":"invalid api key","type":"invalid_request_error"}}`, false},
		{"plain body", http.StatusBadGateway, `upstream down`, true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			is := is.New(t)
			var got capture
			srv := newServer(t, &got, tt.status, tt.body)

			c, err := NewLLM(Config{Fallback: Endpoint{BaseURL: srv.URL, APIKey: "k"}})
			is.NoErr(err)

			_, err = c.Chat(context.Background(), llm.ChatRequest{Message: "Halo", Model: "m"})
			var se *llm.StatusError
			is.True(errors.As(err, &se))
			is.Equal(se.StatusCode, tt.status)
			is.Equal(ai.IsRecoverable(err), tt.recoverable)
		})
	}
}

func TestChat_MissingCredentials(t *testing.T) {
	is := is.New(t)
	c, err := NewLLM(Config{Endpoints: map[llm.Provider]Endpoint{
		llm.ProviderGroq: {APIKey: "k"},
	}})
	is.NoErr(err)

	_, err = c.Chat(context.Background(), llm.ChatRequest{Message: "Halo", Provider: llm.ProviderOpenRouter})
	is.True(ai.IsFatal(err))
}

func TestNewLLM_RequiresKey(t *testing.T) {
	is := is.New(t)
	_, err := NewLLM(Config{})
	is.True(err != nil)
}

func TestFactory(t *testing.T) {
	is := is.New(t)
	t.Setenv("OPENAI_API_KEY", "")
	t.Setenv("GROQ_API_KEY", "")
	t.Setenv("OPENROUTER_API_KEY", "")

	_, err := newOpenAILLM(map[string]any{})
	is.True(err != nil) // no keys anywhere

	t.Setenv("GROQ_API_KEY", "from-env")
	inst, err := newOpenAILLM(map[string]any{"model": "llama-3.1-8b-instant"})
	is.NoErr(err)
	c := inst.(*LLM)
	is.Equal(c.cfg.Endpoints[llm.ProviderGroq].APIKey, "from-env")
	is.Equal(c.cfg.Endpoints[llm.ProviderGroq].BaseURL, GroqBaseURL)
	is.Equal(c.cfg.Model, "llama-3.1-8b-instant")
}
