// Package tts defines the speech playback contract consumed by the voice controller.
package tts

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai"
)

// TTS-specific error variables for backward compatibility
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// Utterance contains parameters for one spoken response.
type Utterance struct {
	ID     string  `json:"id"`
	Text   string  `json:"text"`
	Lang   string  `json:"lang"`
	Rate   float64 `json:"rate"`
	Pitch  float64 `json:"pitch"`
	Volume float64 `json:"volume"`
	Voice  string  `json:"voice,omitempty"` // preferred voice name, engine default when empty
}

// Voice describes a voice offered by the playback engine.
type Voice struct {
	Name    string `json:"name"`
	Lang    string `json:"lang"`
	Default bool   `json:"default,omitempty"`
}

// PreferredVoice picks the first voice whose language matches lang, first by the
// full tag ("id-ID") and then by the language code substring ("id").
func PreferredVoice(voices []Voice, lang string) (Voice, bool) {
	lang = strings.ToLower(strings.TrimSpace(lang))
	if lang == "" {
		return Voice{}, false
	}
	normalise := func(s string) string {
		return strings.ReplaceAll(strings.ToLower(s), "_", "-")
	}
	for _, v := range voices {
		if normalise(v.Lang) == lang {
			return v, true
		}
	}
	code, _, _ := strings.Cut(lang, "-")
	for _, v := range voices {
		if strings.Contains(normalise(v.Lang), code) {
			return v, true
		}
	}
	return Voice{}, false
}

// EventType represents the type of playback event.
type EventType int

const (
	EventStart EventType = iota
	EventEnd
	EventError
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventEnd:
		return "end"
	case EventError:
		return "error"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// ErrorCode categorises playback failures.
type ErrorCode string

const (
	ErrorInterrupted      ErrorCode = "interrupted"
	ErrorCanceled         ErrorCode = "canceled"
	ErrorAudioBusy        ErrorCode = "audio-busy"
	ErrorNetwork          ErrorCode = "network"
	ErrorSynthesisFailed  ErrorCode = "synthesis-failed"
	ErrorVoiceUnavailable ErrorCode = "voice-unavailable"
)

// Intentional reports errors caused by our own cancellation.
func (c ErrorCode) Intentional() bool {
	return c == ErrorInterrupted || c == ErrorCanceled
}

// Event is a single playback engine notification.
type Event struct {
	Type        EventType
	UtteranceID string
	Error       ErrorCode // only set for EventError
	Timestamp   time.Time
}

// Playback is the speech synthesis engine driven by the controller.
type Playback interface {
	// Speak queues the utterance; progress is reported through Events.
	Speak(ctx context.Context, u Utterance) error

	// Cancel stops any in-progress output immediately.
	Cancel() error

	// Voices lists the voices the engine can use.
	Voices() []Voice

	// Events returns the channel of engine notifications.
	Events() <-chan Event
}
