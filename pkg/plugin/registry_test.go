package plugin

import (
	"context"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/utero-voice/pkg/ai/llm"
)

// mockLLM is a mock completion provider for testing
type mockLLM struct {
	name string
}

func (m *mockLLM) Chat(ctx context.Context, req llm.ChatRequest) (llm.ChatResponse, error) {
	return llm.ChatResponse{}, nil
}

func newMockLLM(cfg map[string]any) (any, error) {
	return &mockLLM{name: String(cfg, "name", "default")}, nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	r.Register(KindLLM, "mock", newMockLLM)

	factory, ok := r.Get(KindLLM, "mock")
	is.True(ok)
	instance, err := factory(map[string]any{"name": "uji"})
	is.NoErr(err)
	is.Equal(instance.(*mockLLM).name, "uji")

	_, ok = r.Get(KindSTT, "mock")
	is.True(!ok) // wrong kind
	_, ok = r.Get(KindLLM, "proxy")
	is.True(!ok) // unknown name
}

func TestRegistry_RegisterPanics(t *testing.T) {
	tests := []struct {
		name   string
		plugin *Plugin
	}{
		{"empty kind", &Plugin{Name: "mock", Factory: newMockLLM}},
		{"empty name", &Plugin{Kind: KindSTT, Factory: newMockLLM}},
		{"nil factory", &Plugin{Kind: KindLLM, Name: "mock"}},
		{"duplicate", &Plugin{Kind: KindLLM, Name: "dup", Factory: newMockLLM}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			r := NewRegistry()
			r.Register(KindLLM, "dup", newMockLLM)
			defer func() {
				if recover() == nil {
					t.Errorf("expected panic for %s", tt.name)
				}
			}()
			r.RegisterWithMetadata(tt.plugin)
		})
	}
}

func TestRegistry_List(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	r.RegisterWithMetadata(&Plugin{Kind: KindTTS, Name: "console", Factory: newMockLLM, Description: "Console narration"})
	r.RegisterWithMetadata(&Plugin{Kind: KindSTT, Name: "fake", Factory: newMockLLM})
	r.RegisterWithMetadata(&Plugin{Kind: KindSTT, Name: "console", Factory: newMockLLM})
	r.RegisterWithMetadata(&Plugin{Kind: KindLLM, Name: "proxy", Factory: newMockLLM})

	var got []string
	for _, p := range r.List("") {
		got = append(got, p.Kind+"/"+p.Name)
	}
	is.Equal(got, []string{"llm/proxy", "stt/console", "stt/fake", "tts/console"})

	is.Equal(len(r.List(KindSTT)), 2)
	is.Equal(len(r.List("vad")), 0)
	is.Equal(r.ListKinds(), []string{KindLLM, KindSTT, KindTTS})

	r.Clear()
	is.Equal(len(r.List("")), 0)
	is.Equal(len(r.ListKinds()), 0)
}

func TestGlobalRegistry(t *testing.T) {
	is := is.New(t)
	saved := globalRegistry
	globalRegistry = NewRegistry()
	defer func() { globalRegistry = saved }()

	Register(KindLLM, "global-test", newMockLLM)
	_, ok := Get(KindLLM, "global-test")
	is.True(ok)
	is.Equal(len(List(KindLLM)), 1)
	is.Equal(ListKinds(), []string{KindLLM})

	provider, err := NewLLM("global-test", nil)
	is.NoErr(err)
	is.Equal(provider.(*mockLLM).name, "default")

	_, err = NewCapture("global-test", nil)
	is.True(err != nil) // no stt plugin of that name
}

func TestBuild(t *testing.T) {
	is := is.New(t)
	r := NewRegistry()
	r.Register(KindLLM, "mock", newMockLLM)
	r.Register(KindSTT, "wrong", newMockLLM)

	provider, err := build[llm.LLM](r, KindLLM, "mock", map[string]any{"name": "uji"})
	is.NoErr(err)
	is.Equal(provider.(*mockLLM).name, "uji")

	_, err = build[llm.LLM](r, KindLLM, "missing", nil)
	is.True(err != nil) // not registered

	_, err = build[interface{ Events() <-chan struct{} }](r, KindSTT, "wrong", nil)
	is.True(err != nil) // wrong type returned by factory
}

func TestConfigHelpers(t *testing.T) {
	is := is.New(t)
	cfg := map[string]any{
		"url":       "http://localhost:3000/api/chat",
		"empty":     "",
		"timeout":   "45s",
		"seconds":   30,
		"fraction":  1.5,
		"bad":       "soon",
		"responses": []any{"satu", 2, "tiga"},
	}

	is.Equal(String(cfg, "url", "x"), "http://localhost:3000/api/chat")
	is.Equal(String(cfg, "empty", "x"), "x")
	is.Equal(String(cfg, "missing", "x"), "x")

	d, err := Duration(cfg, "timeout", time.Second)
	is.NoErr(err)
	is.Equal(d, 45*time.Second)
	d, err = Duration(cfg, "seconds", time.Second)
	is.NoErr(err)
	is.Equal(d, 30*time.Second)
	d, err = Duration(cfg, "fraction", time.Second)
	is.NoErr(err)
	is.Equal(d, 1500*time.Millisecond)
	d, err = Duration(cfg, "missing", time.Second)
	is.NoErr(err)
	is.Equal(d, time.Second)
	_, err = Duration(cfg, "bad", time.Second)
	is.True(err != nil)

	is.Equal(Strings(cfg, "responses"), []string{"satu", "tiga"})
	is.Equal(Strings(cfg, "url"), []string{"http://localhost:3000/api/chat"})
	is.Equal(len(Strings(cfg, "missing")), 0)
}
