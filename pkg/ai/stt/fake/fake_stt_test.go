package fake

import (
	"context"
	"errors"
	"testing"

	"github.com/chriscow/utero-voice/pkg/ai/stt"
	"github.com/matryer/is"
)

// collect receives n events on a separate goroutine while fn emits them.
func collect(f *FakeCapture, n int, fn func()) []stt.Event {
	out := make(chan []stt.Event)
	go func() {
		var evs []stt.Event
		for i := 0; i < n; i++ {
			evs = append(evs, <-f.Events())
		}
		out <- evs
	}()
	fn()
	return <-out
}

func TestFakeCaptureResults(t *testing.T) {
	is := is.New(t)
	f := NewFakeCapture()
	is.NoErr(f.Start(context.Background(), stt.Config{Lang: "id-ID"}))

	evs := collect(f, 3, func() {
		f.Interim("halo")
		f.Final("halo semua")
		f.Interim("apa")
	})

	is.Equal(evs[0].ResultIndex, 0)
	is.Equal(len(evs[0].Results), 1)
	is.True(!evs[0].Results[0].IsFinal)

	is.Equal(evs[1].ResultIndex, 0) // interim replaced in place
	is.Equal(len(evs[1].Results), 1)
	is.Equal(evs[1].Results[0].Transcript(), "halo semua")
	is.True(evs[1].Results[0].IsFinal)

	is.Equal(evs[2].ResultIndex, 1) // appended after the final
	is.Equal(len(evs[2].Results), 2)
	is.Equal(f.Config().Lang, "id-ID")
}

func TestFakeCaptureStartResetsSession(t *testing.T) {
	is := is.New(t)
	f := NewFakeCapture()
	is.NoErr(f.Start(context.Background(), stt.Config{}))

	collect(f, 1, func() { f.Final("satu") })
	is.NoErr(f.Start(context.Background(), stt.Config{}))
	evs := collect(f, 1, func() { f.Final("dua") })

	is.Equal(evs[0].ResultIndex, 0)
	is.Equal(len(evs[0].Results), 1)
	is.Equal(f.Starts(), 2)
}

func TestFakeCaptureCounters(t *testing.T) {
	is := is.New(t)
	f := NewFakeCapture()
	f.StartErr = errors.New("no mic")

	is.True(f.Start(context.Background(), stt.Config{}) != nil)
	is.NoErr(f.Stop())
	is.NoErr(f.Abort())
	is.NoErr(f.Abort())

	is.Equal(f.Starts(), 1)
	is.Equal(f.Stops(), 1)
	is.Equal(f.Aborts(), 2)

	evs := collect(f, 2, func() {
		f.Error(stt.ErrorNetwork)
		f.End()
	})
	is.Equal(evs[0].Type, stt.EventError)
	is.Equal(evs[0].Error, stt.ErrorNetwork)
	is.Equal(evs[1].Type, stt.EventEnd)
}

func TestFakeCaptureSessionTags(t *testing.T) {
	is := is.New(t)
	f := NewFakeCapture()
	is.NoErr(f.Start(context.Background(), stt.Config{Session: 4}))

	evs := collect(f, 3, func() {
		f.Say("satu|dua")
		f.Send(stt.Event{Type: stt.EventEnd, Session: 3})
	})
	is.Equal(evs[0].Session, uint64(4))
	is.Equal(evs[1].Session, uint64(4))
	is.Equal(evs[1].ResultIndex, 1) // one final per fragment
	is.Equal(evs[1].Results[1].Transcript(), "dua")
	is.Equal(evs[2].Session, uint64(3)) // explicit tags are kept
}
