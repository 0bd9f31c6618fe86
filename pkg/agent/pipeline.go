package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/chriscow/utero-voice/pkg/ai"
	"github.com/chriscow/utero-voice/pkg/ai/llm"
	"github.com/chriscow/utero-voice/pkg/ai/tts"
	"github.com/chriscow/utero-voice/pkg/narrate"
)

// completionResult carries a finished request back to the run loop.
type completionResult struct {
	seq     uint64
	resp    llm.ChatResponse
	err     error
	started time.Time
}

// sendCompletion appends the user turn and issues one completion request in
// the background. The history sent is read before the new turn is appended.
func (a *Agent) sendCompletion(text string) {
	history := a.history()
	a.appendLog(llm.RoleUser, text)

	provider, err := a.models.Provider(a.model)
	if err != nil {
		a.failCompletion(err)
		return
	}
	req := llm.ChatRequest{
		Message:  text,
		Model:    a.model,
		Provider: provider,
		History:  history,
	}

	a.seq++
	seq := a.seq
	ctx, cancel := context.WithCancel(a.runCtx)
	a.cancelRequest = cancel
	started := a.clock.Now()

	a.logger.Debug("Sending completion request",
		slog.String("model", req.Model),
		slog.String("provider", string(req.Provider)),
		slog.Int("history", len(req.History)))

	go func() {
		resp, err := a.llm.Chat(ctx, req)
		select {
		case a.completions <- completionResult{seq: seq, resp: resp, err: err, started: started}:
		case <-a.done:
		}
	}()
}

func (a *Agent) handleCompletion(r completionResult) {
	if r.seq != a.seq || a.currentState() != StateProcessing {
		return
	}
	a.abandonRequest()
	a.metrics.CompletionLatency.Set(float64(a.clock.Now().Sub(r.started).Milliseconds()))

	if r.err != nil {
		a.failCompletion(r.err)
		return
	}

	text, ok := r.resp.Text()
	if !ok {
		text = a.messages.NoAnswer
	}
	text = narrate.Sanitize(text)
	if text == "" {
		text = a.messages.NoAnswer
	}
	a.appendLog(llm.RoleAssistant, text)
	a.response = text
	a.speak(text)
}

// failCompletion shows the apology; the failed assistant turn is not logged.
func (a *Agent) failCompletion(err error) {
	a.response = a.messages.Apology
	a.metrics.CompletionFailures.Add(1)
	a.logger.Error("Completion failed",
		slog.String("error", err.Error()),
		slog.Bool("recoverable", ai.IsRecoverable(err)))
	a.setState(StateIdle)
	a.reportError(fmt.Errorf("completion: %w", err))
}

// abandonRequest cancels the in-flight request; its result will be ignored.
func (a *Agent) abandonRequest() {
	if a.cancelRequest != nil {
		a.cancelRequest()
		a.cancelRequest = nil
	}
	a.seq++
}

func (a *Agent) speak(text string) {
	if strings.TrimSpace(text) == "" {
		a.setState(StateIdle)
		return
	}
	if err := a.playback.Cancel(); err != nil {
		a.logger.Warn("Failed to cancel playback", slog.String("error", err.Error()))
	}

	u := tts.Utterance{
		ID:     uuid.NewString(),
		Text:   text,
		Lang:   a.language,
		Rate:   a.rate,
		Pitch:  a.pitch,
		Volume: a.volume,
	}
	if v, ok := tts.PreferredVoice(a.playback.Voices(), a.language); ok {
		u.Voice = v.Name
	}

	a.utteranceID = u.ID
	a.setState(StateSpeaking)
	if err := a.playback.Speak(a.runCtx, u); err != nil {
		a.utteranceID = ""
		a.setState(StateIdle)
		a.logger.Error("Playback failed to start", slog.String("error", err.Error()))
		a.reportError(fmt.Errorf("speak: %w", err))
	}
}

func (a *Agent) appendLog(role llm.MessageRole, content string) {
	a.log = append(a.log, llm.Message{
		ID:        uuid.NewString(),
		Role:      role,
		Content:   content,
		CreatedAt: a.clock.Now(),
	})
}

// history returns a copy of the most recent log entries, oldest first.
func (a *Agent) history() []llm.Message {
	start := max(len(a.log)-a.historyLimit, 0)
	out := make([]llm.Message, len(a.log)-start)
	copy(out, a.log[start:])
	return out
}
