package fake

import (
	"context"
	"testing"

	"github.com/chriscow/utero-voice/pkg/ai/tts"
	"github.com/matryer/is"
)

func TestFakePlayback(t *testing.T) {
	is := is.New(t)
	f := NewFakePlayback()

	is.NoErr(f.Speak(context.Background(), tts.Utterance{ID: "u1", Text: "halo"}))
	is.NoErr(f.Cancel())

	got := make(chan tts.Event, 2)
	go func() {
		got <- <-f.Events()
		got <- <-f.Events()
	}()
	f.Finish()
	f.Fail(tts.ErrorInterrupted)

	ev := <-got
	is.Equal(ev.Type, tts.EventEnd)
	is.Equal(ev.UtteranceID, "u1")
	ev = <-got
	is.Equal(ev.Type, tts.EventError)
	is.Equal(ev.Error, tts.ErrorInterrupted)

	is.Equal(len(f.Utterances()), 1)
	is.Equal(f.Cancels(), 1)

	v, ok := tts.PreferredVoice(f.Voices(), "id-ID")
	is.True(ok)
	is.Equal(v.Name, "Fake Bahasa Indonesia")
}
