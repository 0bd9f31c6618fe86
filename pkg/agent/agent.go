// Package agent implements the voice interaction controller: a finite state
// machine that moves a conversation through Idle → Listening → Processing →
// Speaking, turning speech recognition events into completion requests and
// spoken replies.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai"
	"github.com/chriscow/utero-voice/pkg/ai/llm"
	"github.com/chriscow/utero-voice/pkg/ai/stt"
	"github.com/chriscow/utero-voice/pkg/ai/tts"
	"github.com/chriscow/utero-voice/pkg/clock"
	"github.com/chriscow/utero-voice/pkg/models"
)

const (
	// DefaultDebounceDelay is the quiet period after a final result before the
	// utterance is committed.
	DefaultDebounceDelay = 2500 * time.Millisecond

	// DefaultHistoryLimit is the number of log entries sent as context.
	DefaultHistoryLimit = 10
)

var (
	// ErrInvalidTransition is returned when a command is not allowed in the current state.
	ErrInvalidTransition = errors.New("invalid state transition")

	// ErrUnknownModel is returned when selecting a model missing from the registry.
	ErrUnknownModel = models.ErrUnknownModel

	// ErrStopped is returned by commands issued after Run has returned.
	ErrStopped = errors.New("agent stopped")

	// ErrAlreadyRunning is returned when Run is called twice.
	ErrAlreadyRunning = errors.New("agent already running")
)

// Config holds configuration for creating an Agent.
type Config struct {
	Capture  stt.Capture
	Playback tts.Playback
	LLM      llm.LLM

	// Models resolves the provider of the selected model. Defaults to models.Default().
	Models *models.Registry
	// Model is the initially selected model. Defaults to the registry default.
	Model string

	// Language is used for recognition and playback. Defaults to stt.DefaultLanguage.
	Language string
	// Rate, Pitch and Volume are passed to the playback engine. Zero means 1.
	Rate   float64
	Pitch  float64
	Volume float64

	DebounceDelay time.Duration
	// Retry governs capture restarts after network errors. Nil selects
	// ai.DefaultRetryConfig; MaxRetries 0 disables restarts. A zero BaseDelay
	// selects the default delay.
	Retry        *ai.RetryConfig
	HistoryLimit int

	Messages Messages
	Clock    clock.Clock
	Logger   *slog.Logger
	Metrics  *Metrics

	// OnUpdate receives a snapshot whenever the observable state changes. It is
	// called on the run goroutine and must not call back into the Agent.
	OnUpdate func(Snapshot)
	// OnError receives session-ending and completion failures.
	OnError func(error)
}

// Agent is the voice interaction controller. All state is owned by the
// goroutine executing Run; the exported methods post commands to it.
type Agent struct {
	capture  stt.Capture
	playback tts.Playback
	llm      llm.LLM
	models   *models.Registry

	language      string
	rate          float64
	pitch         float64
	volume        float64
	debounceDelay time.Duration
	retryConfig   ai.RetryConfig
	historyLimit  int
	messages      Messages

	clock    clock.Clock
	logger   *slog.Logger
	metrics  *Metrics
	onUpdate func(Snapshot)
	onError  func(error)

	state   atomic.Int32
	running atomic.Bool

	commands    chan command
	fires       chan timerFire
	completions chan completionResult
	done        chan struct{}

	// Owned by the run goroutine.
	runCtx        context.Context
	transcript    transcript
	pendingText   string
	debounce      *timer
	retry         *timer
	retryCount    int
	networkError  bool
	errMsg        string
	captureActive bool
	response      string
	log           []llm.Message
	model         string
	seq           uint64
	cancelRequest context.CancelFunc
	utteranceID   string

	// captureSession tags the current capture session; events carrying
	// another tag belong to a session that was already stopped or aborted.
	captureSession uint64

	snapMu sync.RWMutex
	snap   Snapshot
}

type command struct {
	fn    func() error
	reply chan error
}

// New creates a new Agent with the given configuration.
func New(cfg Config) (*Agent, error) {
	if cfg.Capture == nil {
		return nil, fmt.Errorf("Capture is required")
	}
	if cfg.Playback == nil {
		return nil, fmt.Errorf("Playback is required")
	}
	if cfg.LLM == nil {
		return nil, fmt.Errorf("LLM is required")
	}

	if cfg.Models == nil {
		cfg.Models = models.Default()
	}
	if cfg.Model == "" {
		cfg.Model = cfg.Models.DefaultID()
	}
	if _, ok := cfg.Models.Lookup(cfg.Model); !ok {
		return nil, fmt.Errorf("model %q: %w", cfg.Model, ErrUnknownModel)
	}
	if cfg.Language == "" {
		cfg.Language = stt.DefaultLanguage
	}
	if cfg.DebounceDelay <= 0 {
		cfg.DebounceDelay = DefaultDebounceDelay
	}
	retry := ai.DefaultRetryConfig
	if cfg.Retry != nil {
		retry = *cfg.Retry
		if retry.BaseDelay <= 0 {
			retry.BaseDelay = ai.DefaultRetryConfig.BaseDelay
		}
	}
	if retry.MaxRetries < 0 {
		return nil, fmt.Errorf("Retry.MaxRetries cannot be negative")
	}
	if cfg.HistoryLimit <= 0 {
		cfg.HistoryLimit = DefaultHistoryLimit
	}
	if cfg.Clock == nil {
		cfg.Clock = clock.Real()
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Metrics == nil {
		cfg.Metrics = NewMetrics()
	}

	a := &Agent{
		capture:       cfg.Capture,
		playback:      cfg.Playback,
		llm:           cfg.LLM,
		models:        cfg.Models,
		language:      cfg.Language,
		rate:          orOne(cfg.Rate),
		pitch:         orOne(cfg.Pitch),
		volume:        orOne(cfg.Volume),
		debounceDelay: cfg.DebounceDelay,
		retryConfig:   retry,
		historyLimit:  cfg.HistoryLimit,
		messages:      cfg.Messages.withDefaults(),
		clock:         cfg.Clock,
		logger:        cfg.Logger,
		metrics:       cfg.Metrics,
		onUpdate:      cfg.OnUpdate,
		onError:       cfg.OnError,
		commands:      make(chan command),
		fires:         make(chan timerFire),
		completions:   make(chan completionResult),
		done:          make(chan struct{}),
		model:         cfg.Model,
	}
	a.debounce = newTimer(debounceTimer, a.clock, a.fires, a.done)
	a.retry = newTimer(retryTimer, a.clock, a.fires, a.done)
	a.snap = a.buildSnapshot()
	return a, nil
}

func orOne(v float64) float64 {
	if v == 0 {
		return 1
	}
	return v
}

// Run processes engine events and commands until ctx is cancelled. It returns
// ctx.Err() after tearing down any active capture, playback or request.
func (a *Agent) Run(ctx context.Context) error {
	if !a.running.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(a.done)

	a.runCtx = ctx
	captureEvents := a.capture.Events()
	playbackEvents := a.playback.Events()

	for {
		select {
		case <-ctx.Done():
			a.shutdown()
			a.publish()
			return ctx.Err()

		case cmd := <-a.commands:
			err := cmd.fn()
			a.publish()
			cmd.reply <- err
			continue

		case ev, ok := <-captureEvents:
			if !ok {
				captureEvents = nil
				a.handleCaptureClosed()
				break
			}
			a.handleCaptureEvent(ev)

		case ev, ok := <-playbackEvents:
			if !ok {
				playbackEvents = nil
				a.handlePlaybackClosed()
				break
			}
			a.handlePlaybackEvent(ev)

		case f := <-a.fires:
			a.handleTimer(f)

		case r := <-a.completions:
			a.handleCompletion(r)
		}
		a.publish()
	}
}

// do runs fn on the run goroutine and waits for its result.
func (a *Agent) do(ctx context.Context, fn func() error) error {
	cmd := command{fn: fn, reply: make(chan error, 1)}
	select {
	case a.commands <- cmd:
	case <-a.done:
		return ErrStopped
	case <-ctx.Done():
		return ctx.Err()
	}
	return <-cmd.reply
}

// Start begins a listening session. It is only allowed from idle.
func (a *Agent) Start(ctx context.Context) error {
	return a.do(ctx, a.startListening)
}

// Stop ends the current listening session or cuts off playback.
func (a *Agent) Stop(ctx context.Context) error {
	return a.do(ctx, a.stop)
}

// Toggle starts listening when idle and stops otherwise, like a microphone button.
func (a *Agent) Toggle(ctx context.Context) error {
	return a.do(ctx, func() error {
		if a.currentState() == StateIdle {
			return a.startListening()
		}
		return a.stop()
	})
}

// SetModel selects the model used for subsequent requests. A request already
// in flight keeps the model it was issued with.
func (a *Agent) SetModel(ctx context.Context, id string) error {
	return a.do(ctx, func() error {
		if _, ok := a.models.Lookup(id); !ok {
			return fmt.Errorf("model %q: %w", id, ErrUnknownModel)
		}
		if id != a.model {
			a.logger.Info("Model selected", slog.String("model", id))
		}
		a.model = id
		return nil
	})
}

// State returns the current interaction state.
func (a *Agent) State() State {
	return State(a.state.Load())
}

// Snapshot returns the most recently published view of the controller.
func (a *Agent) Snapshot() Snapshot {
	a.snapMu.RLock()
	defer a.snapMu.RUnlock()
	return a.snap
}

// Metrics returns the controller's metrics.
func (a *Agent) Metrics() *Metrics {
	return a.metrics
}

// Done is closed when Run returns.
func (a *Agent) Done() <-chan struct{} {
	return a.done
}

func (a *Agent) currentState() State {
	return State(a.state.Load())
}

// setState updates the state and records the transition.
func (a *Agent) setState(next State) {
	prev := State(a.state.Swap(int32(next)))
	if prev == next {
		return
	}
	a.metrics.recordTransition(prev, next)
	a.logger.Debug("State transition",
		slog.String("from", prev.String()),
		slog.String("to", next.String()))
}

func (a *Agent) startListening() error {
	if s := a.currentState(); s != StateIdle {
		a.logger.Warn("Start ignored", slog.String("state", s.String()))
		return fmt.Errorf("start from %s: %w", s, ErrInvalidTransition)
	}

	if err := a.playback.Cancel(); err != nil {
		a.logger.Warn("Failed to cancel playback", slog.String("error", err.Error()))
	}
	a.transcript.reset()
	a.pendingText = ""
	a.retryCount = 0
	a.debounce.cancel()
	a.retry.cancel()
	a.networkError = false
	a.errMsg = ""
	a.setState(StateListening)

	a.captureSession++
	if err := a.capture.Start(a.runCtx, a.captureConfig()); err != nil {
		a.endSession(captureCode(err), fmt.Errorf("start capture: %w", err))
		return fmt.Errorf("start capture: %w", err)
	}
	return nil
}

func (a *Agent) stop() error {
	switch s := a.currentState(); s {
	case StateListening:
		a.debounce.cancel()
		a.retry.cancel()
		a.pendingText = ""
		a.networkError = false
		a.retryCount = 0
		if err := a.capture.Abort(); err != nil {
			a.logger.Warn("Failed to abort capture", slog.String("error", err.Error()))
		}
		a.setState(StateIdle)
		return nil
	case StateSpeaking:
		if err := a.playback.Cancel(); err != nil {
			a.logger.Warn("Failed to cancel playback", slog.String("error", err.Error()))
		}
		a.utteranceID = ""
		a.setState(StateIdle)
		return nil
	default:
		a.logger.Warn("Stop ignored", slog.String("state", s.String()))
		return fmt.Errorf("stop from %s: %w", s, ErrInvalidTransition)
	}
}

func (a *Agent) captureConfig() stt.Config {
	return stt.Config{
		Lang:            a.language,
		Continuous:      true,
		InterimResults:  true,
		MaxAlternatives: 1,
		Session:         a.captureSession,
	}
}

func (a *Agent) handleCaptureEvent(ev stt.Event) {
	if ev.Session != 0 && ev.Session != a.captureSession {
		a.logger.Debug("Ignoring stale capture event",
			slog.String("type", ev.Type.String()),
			slog.Uint64("session", ev.Session),
			slog.Uint64("current", a.captureSession))
		return
	}

	switch ev.Type {
	case stt.EventStart:
		a.captureActive = true
		a.networkError = false

	case stt.EventSpeechStart:
		if a.currentState() == StateListening {
			a.speechResumed()
		}

	case stt.EventResult:
		if a.currentState() != StateListening {
			return
		}
		changed, lastFinal := a.transcript.apply(ev.ResultIndex, ev.Results)
		if !changed {
			return
		}
		if lastFinal {
			a.scheduleCommit(a.transcript.text())
		} else if a.transcript.interim != "" {
			a.speechResumed()
		}

	case stt.EventError:
		a.handleCaptureError(ev.Error, ev.Message)

	case stt.EventEnd:
		a.captureActive = false
		if a.currentState() == StateListening && !a.debounce.pending() && !a.retry.pending() {
			a.logger.Debug("Capture ended with nothing pending")
			a.setState(StateIdle)
		}
	}
}

// scheduleCommit restarts the debounce window for text.
func (a *Agent) scheduleCommit(text string) {
	a.pendingText = text
	a.debounce.arm(a.debounceDelay)
}

// speechResumed cancels a pending commit; the next final result re-arms it.
func (a *Agent) speechResumed() {
	a.debounce.cancel()
}

func (a *Agent) handleCaptureError(code stt.ErrorCode, msg string) {
	if code.Benign() {
		a.logger.Debug("Ignoring capture error", slog.String("code", string(code)))
		return
	}

	state := a.currentState()
	if code.Transient() {
		if state != StateListening {
			a.logger.Debug("Ignoring stale capture error",
				slog.String("code", string(code)),
				slog.String("state", state.String()))
			return
		}
		if a.retryCount < a.retryConfig.MaxRetries {
			a.retryCount++
			a.networkError = true
			delay := a.retryConfig.Delay(a.retryCount)
			a.metrics.CaptureRetries.Add(1)
			a.logger.Warn("Capture network error, retrying",
				slog.Int("attempt", a.retryCount),
				slog.Int("max_retries", a.retryConfig.MaxRetries),
				slog.Duration("delay", delay))
			a.retry.arm(delay)
			return
		}
	}

	if state == StateIdle {
		return
	}
	err := &stt.CaptureError{Code: code, Message: msg}
	a.endSession(code, fmt.Errorf("capture: %w", err))
}

// endSession tears down whatever is active after a capture failure and
// returns to idle with a user-facing message.
func (a *Agent) endSession(code stt.ErrorCode, err error) {
	a.debounce.cancel()
	a.retry.cancel()
	a.pendingText = ""
	a.networkError = false
	a.retryCount = 0
	a.errMsg = a.messages.forCaptureError(code)

	switch a.currentState() {
	case StateListening:
		if abortErr := a.capture.Abort(); abortErr != nil {
			a.logger.Warn("Failed to abort capture", slog.String("error", abortErr.Error()))
		}
	case StateProcessing:
		a.abandonRequest()
	case StateSpeaking:
		if cancelErr := a.playback.Cancel(); cancelErr != nil {
			a.logger.Warn("Failed to cancel playback", slog.String("error", cancelErr.Error()))
		}
		a.utteranceID = ""
	}
	a.setState(StateIdle)

	a.logger.Error("Session ended", slog.String("error", err.Error()))
	a.reportError(err)
}

func (a *Agent) handleCaptureClosed() {
	a.captureActive = false
	if a.currentState() == StateListening {
		a.endSession("", errors.New("capture: event stream closed"))
	}
}

func (a *Agent) handleTimer(f timerFire) {
	switch f.kind {
	case debounceTimer:
		if a.debounce.accept(f) {
			a.commit()
		}
	case retryTimer:
		if a.retry.accept(f) {
			a.restartCapture()
		}
	}
}

// commit hands the pending utterance to the response pipeline.
func (a *Agent) commit() {
	text := strings.TrimSpace(a.pendingText)
	a.pendingText = ""
	if a.currentState() != StateListening {
		return
	}
	if text == "" {
		if !a.captureActive && !a.retry.pending() {
			a.setState(StateIdle)
		}
		return
	}

	a.retry.cancel()
	if err := a.capture.Stop(); err != nil {
		a.logger.Warn("Failed to stop capture", slog.String("error", err.Error()))
	}
	a.setState(StateProcessing)
	a.metrics.Commits.Add(1)
	a.logger.Info("Utterance committed", slog.Int("length", len(text)))
	a.sendCompletion(text)
}

func (a *Agent) restartCapture() {
	if a.currentState() != StateListening {
		return
	}
	a.transcript.restart()
	a.logger.Info("Restarting capture", slog.Int("attempt", a.retryCount))
	a.captureSession++
	if err := a.capture.Start(a.runCtx, a.captureConfig()); err != nil {
		a.endSession(captureCode(err), fmt.Errorf("restart capture: %w", err))
	}
}

func (a *Agent) handlePlaybackEvent(ev tts.Event) {
	if ev.UtteranceID != "" && ev.UtteranceID != a.utteranceID {
		return
	}

	switch ev.Type {
	case tts.EventStart:
		a.logger.Debug("Playback started", slog.String("utterance_id", ev.UtteranceID))

	case tts.EventEnd:
		if a.currentState() == StateSpeaking {
			a.utteranceID = ""
			a.setState(StateIdle)
		}

	case tts.EventError:
		if a.currentState() != StateSpeaking {
			return
		}
		a.utteranceID = ""
		a.setState(StateIdle)
		if ev.Error.Intentional() {
			return
		}
		err := fmt.Errorf("playback error %q: %w", string(ev.Error), ai.ErrFatal)
		a.logger.Error("Playback failed", slog.String("code", string(ev.Error)))
		a.reportError(err)
	}
}

func (a *Agent) handlePlaybackClosed() {
	if a.currentState() == StateSpeaking {
		a.utteranceID = ""
		a.setState(StateIdle)
	}
}

// shutdown releases everything the controller holds when Run exits.
func (a *Agent) shutdown() {
	a.debounce.cancel()
	a.retry.cancel()
	switch a.currentState() {
	case StateListening:
		if err := a.capture.Abort(); err != nil {
			a.logger.Warn("Failed to abort capture", slog.String("error", err.Error()))
		}
	case StateProcessing:
		a.abandonRequest()
	case StateSpeaking:
		if err := a.playback.Cancel(); err != nil {
			a.logger.Warn("Failed to cancel playback", slog.String("error", err.Error()))
		}
	}
	a.setState(StateIdle)
}

func (a *Agent) reportError(err error) {
	if a.onError != nil {
		a.onError(err)
	}
}

// captureCode extracts the capture error code from err, if it carries one.
func captureCode(err error) stt.ErrorCode {
	var ce *stt.CaptureError
	if errors.As(err, &ce) {
		return ce.Code
	}
	return ""
}
