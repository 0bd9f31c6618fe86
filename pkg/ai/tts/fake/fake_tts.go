package fake

import (
	"context"
	"sync"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai/tts"
)

// DefaultVoices is the voice list reported when none is supplied.
var DefaultVoices = []tts.Voice{
	{Name: "Fake English", Lang: "en-US", Default: true},
	{Name: "Fake Bahasa Indonesia", Lang: "id-ID"},
}

// FakePlayback is a scripted playback engine for testing. Speak and Cancel only
// record; events are emitted by the test through Finish and Fail.
type FakePlayback struct {
	mu         sync.Mutex
	events     chan tts.Event
	voices     []tts.Voice
	utterances []tts.Utterance
	cancels    int
	SpeakErr   error
}

// NewFakePlayback creates a fake engine offering the given voices.
func NewFakePlayback(voices ...tts.Voice) *FakePlayback {
	if len(voices) == 0 {
		voices = DefaultVoices
	}
	return &FakePlayback{events: make(chan tts.Event), voices: voices}
}

// Speak records the utterance.
func (f *FakePlayback) Speak(ctx context.Context, u tts.Utterance) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.SpeakErr != nil {
		return f.SpeakErr
	}
	f.utterances = append(f.utterances, u)
	return nil
}

// Cancel records the call.
func (f *FakePlayback) Cancel() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.cancels++
	return nil
}

// Voices returns the configured voice list.
func (f *FakePlayback) Voices() []tts.Voice {
	return f.voices
}

// Events returns the event channel.
func (f *FakePlayback) Events() <-chan tts.Event {
	return f.events
}

// Started emits a start event for the last utterance.
func (f *FakePlayback) Started() {
	f.send(tts.Event{Type: tts.EventStart, UtteranceID: f.lastID()})
}

// Finish emits an end event for the last utterance.
func (f *FakePlayback) Finish() {
	f.send(tts.Event{Type: tts.EventEnd, UtteranceID: f.lastID()})
}

// Fail emits an error event for the last utterance.
func (f *FakePlayback) Fail(code tts.ErrorCode) {
	f.send(tts.Event{Type: tts.EventError, UtteranceID: f.lastID(), Error: code})
}

// Send delivers an arbitrary event.
func (f *FakePlayback) Send(ev tts.Event) {
	f.send(ev)
}

func (f *FakePlayback) send(ev tts.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	f.events <- ev
}

func (f *FakePlayback) lastID() string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.utterances) == 0 {
		return ""
	}
	return f.utterances[len(f.utterances)-1].ID
}

// Utterances returns every utterance spoken so far.
func (f *FakePlayback) Utterances() []tts.Utterance {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]tts.Utterance, len(f.utterances))
	copy(out, f.utterances)
	return out
}

// Cancels returns how many times Cancel was called.
func (f *FakePlayback) Cancels() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.cancels
}
