package bridge

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/chriscow/utero-voice/internal/mailbox"
	"github.com/chriscow/utero-voice/pkg/ai/stt"
	"github.com/chriscow/utero-voice/pkg/ai/tts"
)

// ErrClosed is returned by engine calls after the connection has gone away.
var ErrClosed = errors.New("bridge connection closed")

// sender queues an envelope for the browser without blocking.
type sender func(*Envelope) bool

// remoteCapture is the browser's recognition engine seen from the controller.
type remoteCapture struct {
	send   sender
	events *mailbox.Mailbox[stt.Event]
}

func newRemoteCapture(send sender) *remoteCapture {
	return &remoteCapture{send: send, events: mailbox.New[stt.Event]()}
}

func (c *remoteCapture) Start(ctx context.Context, cfg stt.Config) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !c.send(&Envelope{Type: TypeCaptureStart, Config: &cfg}) {
		return ErrClosed
	}
	return nil
}

func (c *remoteCapture) Stop() error {
	if !c.send(&Envelope{Type: TypeCaptureStop}) {
		return ErrClosed
	}
	return nil
}

func (c *remoteCapture) Abort() error {
	if !c.send(&Envelope{Type: TypeCaptureAbort}) {
		return ErrClosed
	}
	return nil
}

func (c *remoteCapture) Events() <-chan stt.Event {
	return c.events.Out()
}

func (c *remoteCapture) deliver(ev stt.Event) {
	ev.Timestamp = time.Now()
	c.events.Put(ev)
}

func (c *remoteCapture) close() {
	c.events.Close()
}

// remotePlayback is the browser's synthesis engine seen from the controller.
type remotePlayback struct {
	send   sender
	events *mailbox.Mailbox[tts.Event]

	mu     sync.RWMutex
	voices []tts.Voice
}

func newRemotePlayback(send sender) *remotePlayback {
	return &remotePlayback{send: send, events: mailbox.New[tts.Event]()}
}

func (p *remotePlayback) Speak(ctx context.Context, u tts.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if !p.send(&Envelope{Type: TypeSpeak, Utterance: &u}) {
		return ErrClosed
	}
	return nil
}

func (p *remotePlayback) Cancel() error {
	if !p.send(&Envelope{Type: TypeCancel}) {
		return ErrClosed
	}
	return nil
}

func (p *remotePlayback) Voices() []tts.Voice {
	p.mu.RLock()
	defer p.mu.RUnlock()
	out := make([]tts.Voice, len(p.voices))
	copy(out, p.voices)
	return out
}

func (p *remotePlayback) Events() <-chan tts.Event {
	return p.events.Out()
}

func (p *remotePlayback) setVoices(voices []tts.Voice) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.voices = append([]tts.Voice(nil), voices...)
}

func (p *remotePlayback) deliver(ev tts.Event) {
	ev.Timestamp = time.Now()
	p.events.Put(ev)
}

func (p *remotePlayback) close() {
	p.events.Close()
}
