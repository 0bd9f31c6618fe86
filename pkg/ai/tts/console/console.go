// Package console implements a playback engine that narrates responses on a
// terminal one sentence at a time, paced like speech.
package console

import (
	"context"
	"fmt"
	"io"
	"strings"
	"sync"
	"time"

	"github.com/neurosnap/sentences"
	"github.com/neurosnap/sentences/english"

	"github.com/chriscow/utero-voice/internal/mailbox"
	"github.com/chriscow/utero-voice/pkg/ai/tts"
)

// DefaultWordDelay approximates speaking pace at rate 1.
const DefaultWordDelay = 250 * time.Millisecond

// Config configures console playback.
type Config struct {
	Out       io.Writer
	Prefix    string        // printed before each sentence
	WordDelay time.Duration // pause per word at rate 1; negative disables pacing
	Voices    []tts.Voice
}

// Playback prints utterances sentence by sentence.
type Playback struct {
	out       io.Writer
	prefix    string
	wordDelay time.Duration
	voices    []tts.Voice
	tokenizer *sentences.DefaultSentenceTokenizer
	events    *mailbox.Mailbox[tts.Event]

	mu      sync.Mutex
	writeMu sync.Mutex
	current *speech
}

type speech struct {
	id     string
	cancel context.CancelFunc
	done   chan struct{}
}

// New creates a console playback engine.
func New(cfg Config) (*Playback, error) {
	tokenizer, err := english.NewSentenceTokenizer(nil)
	if err != nil {
		return nil, fmt.Errorf("load sentence tokenizer: %w", err)
	}
	if cfg.Out == nil {
		return nil, fmt.Errorf("Out is required")
	}
	if cfg.WordDelay == 0 {
		cfg.WordDelay = DefaultWordDelay
	}
	if len(cfg.Voices) == 0 {
		cfg.Voices = []tts.Voice{
			{Name: "Console", Lang: "id-ID", Default: true},
			{Name: "Console English", Lang: "en-US"},
		}
	}
	return &Playback{
		out:       cfg.Out,
		prefix:    cfg.Prefix,
		wordDelay: cfg.WordDelay,
		voices:    cfg.Voices,
		tokenizer: tokenizer,
		events:    mailbox.New[tts.Event](),
	}, nil
}

// Speak interrupts any current narration and starts u.
func (p *Playback) Speak(ctx context.Context, u tts.Utterance) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	p.interruptLocked()

	sctx, cancel := context.WithCancel(context.Background())
	s := &speech{id: u.ID, cancel: cancel, done: make(chan struct{})}
	p.current = s
	go p.narrate(sctx, s, u)
	return nil
}

// Cancel interrupts the current narration, if any.
func (p *Playback) Cancel() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.interruptLocked()
	return nil
}

// Voices lists the configured voices.
func (p *Playback) Voices() []tts.Voice {
	out := make([]tts.Voice, len(p.voices))
	copy(out, p.voices)
	return out
}

// Events returns the engine's event channel.
func (p *Playback) Events() <-chan tts.Event {
	return p.events.Out()
}

// Close interrupts narration and releases the event channel.
func (p *Playback) Close() error {
	_ = p.Cancel()
	p.events.Close()
	return nil
}

// interruptLocked stops the current narration and waits for it to report.
func (p *Playback) interruptLocked() {
	if p.current == nil {
		return
	}
	p.current.cancel()
	<-p.current.done
	p.current = nil
}

func (p *Playback) narrate(ctx context.Context, s *speech, u tts.Utterance) {
	defer close(s.done)
	defer s.cancel()

	p.emit(tts.EventStart, s.id, "")

	rate := u.Rate
	if rate <= 0 {
		rate = 1
	}

	for _, line := range strings.Split(u.Text, "\n") {
		for _, sentence := range p.tokenizer.Tokenize(line) {
			text := strings.TrimSpace(sentence.Text)
			if text == "" {
				continue
			}
			if ctx.Err() != nil {
				p.emit(tts.EventError, s.id, tts.ErrorInterrupted)
				return
			}
			p.writeMu.Lock()
			_, err := fmt.Fprintf(p.out, "%s%s\n", p.prefix, text)
			p.writeMu.Unlock()
			if err != nil {
				p.emit(tts.EventError, s.id, tts.ErrorSynthesisFailed)
				return
			}
			if !p.pause(ctx, text, rate) {
				p.emit(tts.EventError, s.id, tts.ErrorInterrupted)
				return
			}
		}
	}
	p.emit(tts.EventEnd, s.id, "")
}

// pause waits for the sentence to "finish speaking". It reports false when
// interrupted.
func (p *Playback) pause(ctx context.Context, text string, rate float64) bool {
	if p.wordDelay < 0 {
		return ctx.Err() == nil
	}
	words := len(strings.Fields(text))
	d := time.Duration(float64(p.wordDelay) * float64(words) / rate)
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

func (p *Playback) emit(typ tts.EventType, id string, code tts.ErrorCode) {
	p.events.Put(tts.Event{Type: typ, UtteranceID: id, Error: code, Timestamp: time.Now()})
}
