// Package bridge connects a browser hosting the speech engines to a voice
// controller running on the server. The browser relays recognition and
// playback events over a websocket; the server answers with engine commands
// and controller snapshots. One controller runs per connection.
package bridge

import (
	"fmt"

	"github.com/chriscow/utero-voice/pkg/agent"
	"github.com/chriscow/utero-voice/pkg/ai/stt"
	"github.com/chriscow/utero-voice/pkg/ai/tts"
)

// MessageType names an envelope.
type MessageType string

// Browser → server.
const (
	TypeHello    MessageType = "hello"    // voices the browser can speak with
	TypeCommand  MessageType = "command"  // user pressed a control
	TypeCapture  MessageType = "capture"  // recognition engine event
	TypePlayback MessageType = "playback" // synthesis engine event
	TypePing     MessageType = "ping"
)

// Server → browser.
const (
	TypeCaptureStart MessageType = "capture.start"
	TypeCaptureStop  MessageType = "capture.stop"
	TypeCaptureAbort MessageType = "capture.abort"
	TypeSpeak        MessageType = "speak"
	TypeCancel       MessageType = "cancel"
	TypeSnapshot     MessageType = "snapshot"
	TypeError        MessageType = "error"
	TypePong         MessageType = "pong"
	TypeSession      MessageType = "session" // sent once after connect
)

// Commands carried by TypeCommand.
const (
	CommandStart  = "start"
	CommandStop   = "stop"
	CommandToggle = "toggle"
	CommandModel  = "model"
)

// Envelope is the single JSON message shape exchanged in both directions.
type Envelope struct {
	Type MessageType `json:"type"`

	// Engine event name for capture and playback messages.
	Event       string       `json:"event,omitempty"`
	ResultIndex int          `json:"resultIndex,omitempty"`
	Results     []stt.Result `json:"results,omitempty"`
	Error       string       `json:"error,omitempty"`
	Message     string       `json:"message,omitempty"`
	UtteranceID string       `json:"utteranceId,omitempty"`

	Voices  []tts.Voice `json:"voices,omitempty"`
	Command string      `json:"command,omitempty"`
	Model   string      `json:"model,omitempty"`
	Session string      `json:"session,omitempty"`

	// CaptureSession echoes stt.Config.Session on capture events.
	CaptureSession uint64 `json:"captureSession,omitempty"`

	Config    *stt.Config     `json:"config,omitempty"`
	Utterance *tts.Utterance  `json:"utterance,omitempty"`
	Snapshot  *agent.Snapshot `json:"snapshot,omitempty"`
}

var captureEvents = map[string]stt.EventType{
	"start":        stt.EventStart,
	"speech-start": stt.EventSpeechStart,
	"result":       stt.EventResult,
	"error":        stt.EventError,
	"end":          stt.EventEnd,
}

var playbackEvents = map[string]tts.EventType{
	"start": tts.EventStart,
	"end":   tts.EventEnd,
	"error": tts.EventError,
}

// CaptureEvent converts a capture envelope into an engine event.
func (e *Envelope) CaptureEvent() (stt.Event, error) {
	typ, ok := captureEvents[e.Event]
	if !ok {
		return stt.Event{}, fmt.Errorf("unknown capture event %q", e.Event)
	}
	ev := stt.Event{Type: typ, Message: e.Message, Session: e.CaptureSession}
	switch typ {
	case stt.EventResult:
		ev.ResultIndex = e.ResultIndex
		ev.Results = e.Results
	case stt.EventError:
		ev.Error = stt.ParseErrorCode(e.Error)
	}
	return ev, nil
}

// PlaybackEvent converts a playback envelope into an engine event.
func (e *Envelope) PlaybackEvent() (tts.Event, error) {
	typ, ok := playbackEvents[e.Event]
	if !ok {
		return tts.Event{}, fmt.Errorf("unknown playback event %q", e.Event)
	}
	ev := tts.Event{Type: typ, UtteranceID: e.UtteranceID}
	if typ == tts.EventError {
		ev.Error = tts.ErrorCode(e.Error)
	}
	return ev, nil
}
