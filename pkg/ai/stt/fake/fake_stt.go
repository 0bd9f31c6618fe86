package fake

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai/stt"
)

// FakeCapture is a scripted capture engine for testing. Events are delivered on
// an unbuffered channel, so every emit helper returns only once the consumer has
// received the event.
type FakeCapture struct {
	mu       sync.Mutex
	events   chan stt.Event
	results  []stt.Result
	starts   int
	stops    int
	aborts   int
	config   stt.Config
	StartErr error
}

// NewFakeCapture creates a fake capture engine.
func NewFakeCapture() *FakeCapture {
	return &FakeCapture{events: make(chan stt.Event)}
}

// Start records the call and resets the session's result list.
func (f *FakeCapture) Start(ctx context.Context, cfg stt.Config) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.starts++
	f.config = cfg
	if f.StartErr != nil {
		return f.StartErr
	}
	f.results = nil
	return nil
}

// Stop records the call. Use End to emit the end event.
func (f *FakeCapture) Stop() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stops++
	return nil
}

// Abort records the call. Use End to emit the end event.
func (f *FakeCapture) Abort() error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.aborts++
	return nil
}

// Events returns the event channel.
func (f *FakeCapture) Events() <-chan stt.Event {
	return f.events
}

// Send delivers an arbitrary event. Untagged events are stamped with the
// session of the last Start.
func (f *FakeCapture) Send(ev stt.Event) {
	if ev.Timestamp.IsZero() {
		ev.Timestamp = time.Now()
	}
	if ev.Session == 0 {
		ev.Session = f.Config().Session
	}
	f.events <- ev
}

// Started emits the engine start event.
func (f *FakeCapture) Started() {
	f.Send(stt.Event{Type: stt.EventStart})
}

// SpeechStart emits a speech start event.
func (f *FakeCapture) SpeechStart() {
	f.Send(stt.Event{Type: stt.EventSpeechStart})
}

// Interim replaces the trailing interim result (or appends a new one) and emits
// the cumulative result list.
func (f *FakeCapture) Interim(text string) {
	f.mu.Lock()
	idx := len(f.results)
	if idx > 0 && !f.results[idx-1].IsFinal {
		idx--
		f.results[idx] = stt.InterimResult(text)
	} else {
		f.results = append(f.results, stt.InterimResult(text))
	}
	ev := f.resultEvent(idx)
	f.mu.Unlock()
	f.Send(ev)
}

// Final finalises the trailing interim result (or appends a new one) and emits
// the cumulative result list.
func (f *FakeCapture) Final(text string) {
	f.mu.Lock()
	idx := len(f.results)
	if idx > 0 && !f.results[idx-1].IsFinal {
		idx--
		f.results[idx] = stt.FinalResult(text)
	} else {
		f.results = append(f.results, stt.FinalResult(text))
	}
	ev := f.resultEvent(idx)
	f.mu.Unlock()
	f.Send(ev)
}

// Say emits one final result per sentence fragment separated by "|".
func (f *FakeCapture) Say(script string) {
	for _, part := range strings.Split(script, "|") {
		f.Final(part)
	}
}

// Error emits a categorised error event.
func (f *FakeCapture) Error(code stt.ErrorCode) {
	f.Send(stt.Event{Type: stt.EventError, Error: code})
}

// End emits the engine end event.
func (f *FakeCapture) End() {
	f.Send(stt.Event{Type: stt.EventEnd})
}

func (f *FakeCapture) resultEvent(idx int) stt.Event {
	results := make([]stt.Result, len(f.results))
	copy(results, f.results)
	return stt.Event{Type: stt.EventResult, ResultIndex: idx, Results: results}
}

// Starts returns how many times Start was called.
func (f *FakeCapture) Starts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.starts
}

// Stops returns how many times Stop was called.
func (f *FakeCapture) Stops() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.stops
}

// Aborts returns how many times Abort was called.
func (f *FakeCapture) Aborts() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.aborts
}

// Config returns the configuration passed to the last Start.
func (f *FakeCapture) Config() stt.Config {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.config
}
