package console

import (
	"bytes"
	"context"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai/tts"
	"github.com/matryer/is"
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

func next(t *testing.T, p *Playback) tts.Event {
	t.Helper()
	select {
	case ev := <-p.Events():
		return ev
	case <-time.After(2 * time.Second):
		t.Fatal("no event")
		return tts.Event{}
	}
}

func waitOutput(t *testing.T, b *syncBuffer, want string) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for !strings.Contains(b.String(), want) {
		if time.Now().After(deadline) {
			t.Fatalf("output %q never contained %q", b.String(), want)
		}
		time.Sleep(5 * time.Millisecond)
	}
}

func TestSpeak(t *testing.T) {
	is := is.New(t)
	var out syncBuffer
	p, err := New(Config{Out: &out, Prefix: "> ", WordDelay: -1})
	is.NoErr(err)
	defer p.Close()

	is.NoErr(p.Speak(context.Background(), tts.Utterance{
		ID:   "u1",
		Text: "Utero menyediakan desain grafis. Kami juga membuat branding!\nHubungi kami.",
		Rate: 1,
	}))

	ev := next(t, p)
	is.Equal(ev.Type, tts.EventStart)
	is.Equal(ev.UtteranceID, "u1")
	ev = next(t, p)
	is.Equal(ev.Type, tts.EventEnd)
	is.Equal(ev.UtteranceID, "u1")

	lines := strings.Split(strings.TrimSpace(out.String()), "\n")
	is.Equal(lines, []string{
		"> Utero menyediakan desain grafis.",
		"> Kami juga membuat branding!",
		"> Hubungi kami.",
	})
}

func TestCancel(t *testing.T) {
	is := is.New(t)
	var out syncBuffer
	p, err := New(Config{Out: &out, WordDelay: time.Hour})
	is.NoErr(err)
	defer p.Close()

	is.NoErr(p.Speak(context.Background(), tts.Utterance{ID: "u1", Text: "Kalimat pertama. Kalimat kedua."}))
	is.Equal(next(t, p).Type, tts.EventStart)
	waitOutput(t, &out, "Kalimat pertama.")

	is.NoErr(p.Cancel())
	ev := next(t, p)
	is.Equal(ev.Type, tts.EventError)
	is.Equal(ev.Error, tts.ErrorInterrupted)
	is.Equal(ev.UtteranceID, "u1")
	is.True(ev.Error.Intentional())

	is.Equal(strings.TrimSpace(out.String()), "Kalimat pertama.") // second sentence never printed
	is.NoErr(p.Cancel())                                         // nothing playing
}

func TestSpeakInterruptsPrevious(t *testing.T) {
	is := is.New(t)
	var out syncBuffer
	p, err := New(Config{Out: &out, WordDelay: time.Hour})
	is.NoErr(err)
	defer p.Close()

	is.NoErr(p.Speak(context.Background(), tts.Utterance{ID: "u1", Text: "Satu."}))
	is.NoErr(p.Speak(context.Background(), tts.Utterance{ID: "u2", Text: "Dua."}))

	is.Equal(next(t, p).UtteranceID, "u1") // start
	ev := next(t, p)
	is.Equal(ev.UtteranceID, "u1")
	is.Equal(ev.Error, tts.ErrorInterrupted)
	ev = next(t, p)
	is.Equal(ev.Type, tts.EventStart)
	is.Equal(ev.UtteranceID, "u2")
}

func TestVoices(t *testing.T) {
	is := is.New(t)
	p, err := New(Config{Out: &syncBuffer{}})
	is.NoErr(err)
	defer p.Close()

	v, ok := tts.PreferredVoice(p.Voices(), "id-ID")
	is.True(ok)
	is.Equal(v.Name, "Console")

	_, err = New(Config{})
	is.True(err != nil) // Out required
}
