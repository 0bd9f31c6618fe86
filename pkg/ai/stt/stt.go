// Package stt defines the speech capture contract consumed by the voice controller.
// A capture engine listens continuously, emits indexed interim/final recognition
// results, lifecycle signals and categorised errors.
package stt

import (
	"context"
	"fmt"
	"strings"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai"
)

// STT-specific error variables for backward compatibility
var (
	ErrRecoverable = ai.ErrRecoverable
	ErrFatal       = ai.ErrFatal
)

// DefaultLanguage is the recognition locale used when none is configured.
const DefaultLanguage = "id-ID"

// Config contains configuration for a capture session.
type Config struct {
	Lang            string `json:"lang"`
	Continuous      bool   `json:"continuous"`
	InterimResults  bool   `json:"interimResults"`
	MaxAlternatives int    `json:"maxAlternatives"`

	// Session identifies this capture session. Engines echo it on every
	// event they emit for the session.
	Session uint64 `json:"session,omitempty"`
}

// Alternative is one candidate transcription of a result.
type Alternative struct {
	Transcript string  `json:"transcript"`
	Confidence float64 `json:"confidence"`
}

// Result is one recognised fragment. Results are ordered within a session and
// never change once IsFinal is set.
type Result struct {
	Alternatives []Alternative `json:"alternatives"`
	IsFinal      bool          `json:"isFinal"`
}

// Transcript returns the top alternative, or "" when there is none.
func (r Result) Transcript() string {
	if len(r.Alternatives) == 0 {
		return ""
	}
	return r.Alternatives[0].Transcript
}

// FinalResult builds a final result with a single alternative.
func FinalResult(text string) Result {
	return Result{Alternatives: []Alternative{{Transcript: text, Confidence: 1}}, IsFinal: true}
}

// InterimResult builds an interim result with a single alternative.
func InterimResult(text string) Result {
	return Result{Alternatives: []Alternative{{Transcript: text}}}
}

// EventType represents the type of capture event.
type EventType int

const (
	// EventStart is emitted once the engine is actually listening
	EventStart EventType = iota
	// EventSpeechStart is emitted when the engine hears speech (again)
	EventSpeechStart
	// EventResult carries the session's result list
	EventResult
	// EventError carries a categorised failure
	EventError
	// EventEnd is emitted when the engine stops, for whatever reason
	EventEnd
)

func (t EventType) String() string {
	switch t {
	case EventStart:
		return "start"
	case EventSpeechStart:
		return "speech-start"
	case EventResult:
		return "result"
	case EventError:
		return "error"
	case EventEnd:
		return "end"
	default:
		return fmt.Sprintf("unknown(%d)", int(t))
	}
}

// Event is a single capture engine notification.
type Event struct {
	Type EventType

	// ResultIndex is the lowest index in Results that changed in this event.
	ResultIndex int
	// Results is the cumulative result list of the current session.
	Results []Result

	Error   ErrorCode // only set for EventError
	Message string    // optional engine diagnostic

	// Session is copied from Config.Session. Zero means untagged.
	Session uint64

	Timestamp time.Time
}

// ErrorCode categorises capture failures the way browser engines report them.
type ErrorCode string

const (
	ErrorNoSpeech             ErrorCode = "no-speech"
	ErrorAborted              ErrorCode = "aborted"
	ErrorAudioCapture         ErrorCode = "audio-capture"
	ErrorNetwork              ErrorCode = "network"
	ErrorNotAllowed           ErrorCode = "not-allowed"
	ErrorServiceNotAllowed    ErrorCode = "service-not-allowed"
	ErrorBadGrammar           ErrorCode = "bad-grammar"
	ErrorLanguageNotSupported ErrorCode = "language-not-supported"
	ErrorUnsupported          ErrorCode = "unsupported"
)

// Benign reports codes that are not failures: silence and our own aborts.
func (c ErrorCode) Benign() bool {
	return c == ErrorNoSpeech || c == ErrorAborted
}

// Transient reports codes that are expected to clear up on retry.
func (c ErrorCode) Transient() bool {
	return c == ErrorNetwork
}

// Err converts the code into an error classified as recoverable or fatal.
func (c ErrorCode) Err() error {
	return &CaptureError{Code: c}
}

// CaptureError is the error form of an ErrorCode.
type CaptureError struct {
	Code    ErrorCode
	Message string
}

func (e *CaptureError) Error() string {
	if e.Message != "" {
		return fmt.Sprintf("speech capture error %q: %s", string(e.Code), e.Message)
	}
	return fmt.Sprintf("speech capture error %q", string(e.Code))
}

func (e *CaptureError) Unwrap() error {
	if e.Code.Transient() {
		return ai.ErrRecoverable
	}
	return ai.ErrFatal
}

// ParseErrorCode normalises an engine supplied error string.
func ParseErrorCode(s string) ErrorCode {
	return ErrorCode(strings.ToLower(strings.TrimSpace(s)))
}

// Capture is the speech recognition engine driven by the controller.
type Capture interface {
	// Start begins a new recognition session. Results of the previous session
	// are discarded by the engine.
	Start(ctx context.Context, cfg Config) error

	// Stop asks the engine to finish gracefully; an EventEnd follows.
	Stop() error

	// Abort stops immediately, discarding pending audio; an EventEnd follows.
	Abort() error

	// Events returns the channel of engine notifications. It spans sessions.
	Events() <-chan Event
}
