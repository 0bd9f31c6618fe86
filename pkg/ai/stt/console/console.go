// Package console implements a text capture engine: each line typed on the
// terminal is delivered as a final recognition result.
package console

import (
	"context"
	"errors"
	"strings"
	"sync"
	"time"

	"github.com/chriscow/utero-voice/internal/mailbox"
	"github.com/chriscow/utero-voice/pkg/ai/stt"
)

// ErrNotListening is returned by Feed outside a capture session.
var ErrNotListening = errors.New("capture is not listening")

// Capture turns typed lines into recognition events.
type Capture struct {
	events *mailbox.Mailbox[stt.Event]

	mu      sync.Mutex
	active  bool
	cfg     stt.Config
	results []stt.Result
}

// New creates an idle console capture engine.
func New() *Capture {
	return &Capture{events: mailbox.New[stt.Event]()}
}

// Start begins a session. Results of the previous session are discarded.
func (c *Capture) Start(ctx context.Context, cfg stt.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()

	c.active = true
	c.cfg = cfg
	c.results = nil
	c.emit(stt.Event{Type: stt.EventStart})
	return nil
}

// Stop ends the session gracefully.
func (c *Capture) Stop() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.end("")
	return nil
}

// Abort ends the session, reporting an aborted error first.
func (c *Capture) Abort() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.end(stt.ErrorAborted)
	return nil
}

// Events returns the engine's event channel.
func (c *Capture) Events() <-chan stt.Event {
	return c.events.Out()
}

// Listening reports whether a session is active.
func (c *Capture) Listening() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.active
}

// Feed delivers one typed line as a final result. Blank lines are ignored.
func (c *Capture) Feed(line string) error {
	line = strings.TrimSpace(line)
	c.mu.Lock()
	defer c.mu.Unlock()

	if !c.active {
		return ErrNotListening
	}
	if line == "" {
		return nil
	}

	c.results = append(c.results, stt.FinalResult(line))
	results := make([]stt.Result, len(c.results))
	copy(results, c.results)

	c.emit(stt.Event{Type: stt.EventSpeechStart})
	c.emit(stt.Event{Type: stt.EventResult, ResultIndex: len(results) - 1, Results: results})
	return nil
}

// Fail reports an engine error and ends the session, the way a browser
// engine does after a failure.
func (c *Capture) Fail(code stt.ErrorCode) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.end(code)
}

// Close releases the event channel.
func (c *Capture) Close() error {
	c.events.Close()
	return nil
}

func (c *Capture) end(code stt.ErrorCode) {
	if !c.active {
		return
	}
	c.active = false
	if code != "" {
		c.emit(stt.Event{Type: stt.EventError, Error: code})
	}
	c.emit(stt.Event{Type: stt.EventEnd})
}

func (c *Capture) emit(ev stt.Event) {
	ev.Timestamp = time.Now()
	ev.Session = c.cfg.Session
	c.events.Put(ev)
}
