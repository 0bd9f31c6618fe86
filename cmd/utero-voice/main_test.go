package main

import (
	"bytes"
	"context"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/matryer/is"

	"github.com/chriscow/utero-voice/pkg/agent"
	"github.com/chriscow/utero-voice/pkg/ai/llm"
	llmfake "github.com/chriscow/utero-voice/pkg/ai/llm/fake"
	sttconsole "github.com/chriscow/utero-voice/pkg/ai/stt/console"
	ttsconsole "github.com/chriscow/utero-voice/pkg/ai/tts/console"
)

type syncBuffer struct {
	mu  sync.Mutex
	buf bytes.Buffer
}

func (b *syncBuffer) Write(p []byte) (int, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.Write(p)
}

func (b *syncBuffer) String() string {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.buf.String()
}

func newConsoleConfig(t *testing.T, provider llm.LLM, narration *syncBuffer) (agent.Config, *sttconsole.Capture) {
	t.Helper()
	playback, err := ttsconsole.New(ttsconsole.Config{Out: narration, Prefix: "> ", WordDelay: -1})
	if err != nil {
		t.Fatal(err)
	}
	t.Cleanup(func() { playback.Close() })
	capture := sttconsole.New()
	t.Cleanup(func() { capture.Close() })
	return agent.Config{
		Capture:       capture,
		Playback:      playback,
		LLM:           provider,
		DebounceDelay: 10 * time.Millisecond,
	}, capture
}

func runWithTimeout(t *testing.T, cfg agent.Config, capture *sttconsole.Capture, input string, out *syncBuffer) error {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := runConsole(ctx, cfg, capture, strings.NewReader(input), out)
	if ctx.Err() != nil {
		t.Fatalf("console did not finish: %s", out.String())
	}
	return err
}

func TestConsole_Turn(t *testing.T) {
	is := is.New(t)
	var narration, out syncBuffer
	provider := llmfake.NewFakeLLM("**Utero** menyediakan desain grafis. Hubungi kami!")
	cfg, capture := newConsoleConfig(t, provider, &narration)

	err := runWithTimeout(t, cfg, capture, "/model deepseek/deepseek-r1:free\nApa layanan Utero?\n", &out)
	is.NoErr(err)

	reqs := provider.Requests()
	is.Equal(len(reqs), 1)
	is.Equal(reqs[0].Message, "Apa layanan Utero?")
	is.Equal(reqs[0].Model, "deepseek/deepseek-r1:free")
	is.Equal(reqs[0].Provider, llm.ProviderOpenRouter)

	is.Equal(strings.TrimSpace(narration.String()),
		"> Utero menyediakan desain grafis.\n> Hubungi kami!")
}

func TestConsole_RestartAfterStop(t *testing.T) {
	is := is.New(t)
	var narration, out syncBuffer
	provider := llmfake.NewFakeLLM("Halo juga.")
	cfg, capture := newConsoleConfig(t, provider, &narration)

	err := runWithTimeout(t, cfg, capture, "/start\n/stop\n/start\nhalo\n", &out)
	is.NoErr(err)

	reqs := provider.Requests()
	is.Equal(len(reqs), 1) // the first session's end did not close the second
	is.Equal(reqs[0].Message, "halo")
	is.Equal(strings.TrimSpace(narration.String()), "> Halo juga.")
}

func TestConsole_Commands(t *testing.T) {
	is := is.New(t)
	var narration, out syncBuffer
	provider := llmfake.NewFakeLLM()
	cfg, capture := newConsoleConfig(t, provider, &narration)

	err := runWithTimeout(t, cfg, capture, "/foo\n/model nope\n/models\n/model\n/quit\nignored\n", &out)
	is.NoErr(err)

	got := out.String()
	is.True(strings.Contains(got, "! unknown command /foo"))
	is.True(strings.Contains(got, `"nope"`))
	is.True(strings.Contains(got, "* llama-3.3-70b-versatile"))
	is.True(strings.Contains(got, "usage: /model <id>"))
	is.Equal(len(provider.Requests()), 0)
}

func TestConsole_EOFWhileListening(t *testing.T) {
	is := is.New(t)
	var narration, out syncBuffer
	provider := llmfake.NewFakeLLM()
	cfg, capture := newConsoleConfig(t, provider, &narration)

	err := runWithTimeout(t, cfg, capture, "/start\n", &out)
	is.NoErr(err)
	is.Equal(len(provider.Requests()), 0)
	is.True(!capture.Listening())
}

func TestSanitizeCommand(t *testing.T) {
	is := is.New(t)
	var out bytes.Buffer
	sanitizeCmd.SetIn(strings.NewReader("<think>hmm</think>## Layanan\n- **Branding**"))
	sanitizeCmd.SetOut(&out)
	is.NoErr(sanitizeCmd.RunE(sanitizeCmd, nil))
	is.Equal(strings.TrimSpace(out.String()), "Layanan\nBranding")
}

func TestOriginChecker(t *testing.T) {
	is := is.New(t)
	is.True(originChecker(nil) == nil)

	check := originChecker([]string{"https://utero.id"})
	tests := []struct {
		origin string
		want   bool
	}{
		{"", true},
		{"https://utero.id", true},
		{"http://voice.local:8080", true},
		{"https://evil.example", false},
	}
	for _, tt := range tests {
		r := httptest.NewRequest("GET", "http://voice.local:8080/ws", nil)
		if tt.origin != "" {
			r.Header.Set("Origin", tt.origin)
		}
		is.Equal(check(r), tt.want) // origin
	}
}
