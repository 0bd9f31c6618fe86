package bridge

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"github.com/chriscow/utero-voice/internal/mailbox"
	"github.com/chriscow/utero-voice/pkg/agent"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingPeriod     = pongWait * 9 / 10
	maxMessageSize = 256 << 10
)

// Session couples one browser connection to one controller.
type Session struct {
	id       string
	conn     *websocket.Conn
	logger   *slog.Logger
	out      *mailbox.Mailbox[*Envelope]
	capture  *remoteCapture
	playback *remotePlayback
	agent    *agent.Agent
}

// NewSession creates a session for conn. cfg is the controller template; its
// engines are replaced by the browser's and its callbacks are chained after
// the session's own.
func NewSession(conn *websocket.Conn, cfg agent.Config) (*Session, error) {
	s := &Session{
		id:   uuid.NewString(),
		conn: conn,
		out:  mailbox.New[*Envelope](),
	}
	logger := cfg.Logger
	if logger == nil {
		logger = slog.Default()
	}
	s.logger = logger.With(slog.String("session", s.id))
	s.capture = newRemoteCapture(s.send)
	s.playback = newRemotePlayback(s.send)

	onUpdate, onError := cfg.OnUpdate, cfg.OnError
	cfg.Capture = s.capture
	cfg.Playback = s.playback
	cfg.Logger = s.logger
	cfg.OnUpdate = func(snap agent.Snapshot) {
		s.send(&Envelope{Type: TypeSnapshot, Snapshot: &snap})
		if onUpdate != nil {
			onUpdate(snap)
		}
	}
	cfg.OnError = func(err error) {
		s.send(&Envelope{Type: TypeError, Message: err.Error()})
		if onError != nil {
			onError(err)
		}
	}

	a, err := agent.New(cfg)
	if err != nil {
		s.out.Close()
		s.capture.close()
		s.playback.close()
		return nil, fmt.Errorf("create agent: %w", err)
	}
	s.agent = a
	return s, nil
}

// ID returns the session identifier.
func (s *Session) ID() string {
	return s.id
}

// Agent returns the session's controller.
func (s *Session) Agent() *agent.Agent {
	return s.agent
}

func (s *Session) send(e *Envelope) bool {
	return s.out.Put(e)
}

// Run serves the connection until the browser disconnects or ctx is
// cancelled. A clean close returns nil.
func (s *Session) Run(ctx context.Context) error {
	s.logger.Info("Bridge session started")
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	snap := s.agent.Snapshot()
	s.send(&Envelope{Type: TypeSession, Session: s.id, Snapshot: &snap})

	var wg sync.WaitGroup
	results := make(chan error, 3)

	// Envelope reader
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.readEnvelopes(ctx); err != nil {
			results <- fmt.Errorf("read envelopes: %w", err)
			return
		}
		results <- nil
	}()

	// Envelope writer
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.writeEnvelopes(ctx); err != nil {
			results <- fmt.Errorf("write envelopes: %w", err)
			return
		}
		results <- nil
	}()

	// Controller
	wg.Add(1)
	go func() {
		defer wg.Done()
		if err := s.agent.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			results <- fmt.Errorf("agent: %w", err)
			return
		}
		results <- nil
	}()

	var err error
	select {
	case err = <-results:
	case <-ctx.Done():
	}

	cancel()
	if cerr := s.conn.Close(); cerr != nil && err == nil && !errors.Is(cerr, websocket.ErrCloseSent) {
		s.logger.Debug("Error closing websocket", slog.String("error", cerr.Error()))
	}
	wg.Wait()

	s.capture.close()
	s.playback.close()
	s.out.Close()

	if err != nil {
		s.logger.Warn("Bridge session ended", slog.String("error", err.Error()))
	} else {
		s.logger.Info("Bridge session ended")
	}
	return err
}

func (s *Session) readEnvelopes(ctx context.Context) error {
	s.conn.SetReadLimit(maxMessageSize)
	_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))
	s.conn.SetPongHandler(func(string) error {
		return s.conn.SetReadDeadline(time.Now().Add(pongWait))
	})

	for {
		_, data, err := s.conn.ReadMessage()
		if err != nil {
			if ctx.Err() != nil || websocket.IsCloseError(err, websocket.CloseNormalClosure, websocket.CloseGoingAway) {
				return nil
			}
			return err
		}
		_ = s.conn.SetReadDeadline(time.Now().Add(pongWait))

		var env Envelope
		if err := json.Unmarshal(data, &env); err != nil {
			s.logger.Warn("Malformed envelope", slog.String("error", err.Error()))
			s.send(&Envelope{Type: TypeError, Message: "malformed message"})
			continue
		}
		s.handleEnvelope(ctx, &env)
	}
}

func (s *Session) writeEnvelopes(ctx context.Context) error {
	ticker := time.NewTicker(pingPeriod)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			deadline := time.Now().Add(writeWait)
			_ = s.conn.WriteControl(websocket.CloseMessage,
				websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""), deadline)
			return nil
		case env, ok := <-s.out.Out():
			if !ok {
				return nil
			}
			_ = s.conn.SetWriteDeadline(time.Now().Add(writeWait))
			if err := s.conn.WriteJSON(env); err != nil {
				return err
			}
			s.logger.Debug("Sent envelope", slog.String("type", string(env.Type)))
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(writeWait)); err != nil {
				return err
			}
		}
	}
}

func (s *Session) handleEnvelope(ctx context.Context, env *Envelope) {
	s.logger.Debug("Received envelope", slog.String("type", string(env.Type)))

	switch env.Type {
	case TypeHello:
		s.playback.setVoices(env.Voices)
		s.logger.Info("Browser engines ready", slog.Int("voices", len(env.Voices)))

	case TypeCommand:
		if err := s.handleCommand(ctx, env); err != nil {
			s.send(&Envelope{Type: TypeError, Command: env.Command, Message: err.Error()})
		}

	case TypeCapture:
		ev, err := env.CaptureEvent()
		if err != nil {
			s.send(&Envelope{Type: TypeError, Message: err.Error()})
			return
		}
		s.capture.deliver(ev)

	case TypePlayback:
		ev, err := env.PlaybackEvent()
		if err != nil {
			s.send(&Envelope{Type: TypeError, Message: err.Error()})
			return
		}
		s.playback.deliver(ev)

	case TypePing:
		s.send(&Envelope{Type: TypePong})

	default:
		s.logger.Warn("Unknown envelope type", slog.String("type", string(env.Type)))
		s.send(&Envelope{Type: TypeError, Message: fmt.Sprintf("unknown message type %q", env.Type)})
	}
}

func (s *Session) handleCommand(ctx context.Context, env *Envelope) error {
	switch env.Command {
	case CommandStart:
		return s.agent.Start(ctx)
	case CommandStop:
		return s.agent.Stop(ctx)
	case CommandToggle:
		return s.agent.Toggle(ctx)
	case CommandModel:
		return s.agent.SetModel(ctx, env.Model)
	default:
		return fmt.Errorf("unknown command %q", env.Command)
	}
}
