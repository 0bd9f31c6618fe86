package bridge

import (
	"context"
	"embed"
	"encoding/json"
	"errors"
	"expvar"
	"fmt"
	"io/fs"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"github.com/chriscow/utero-voice/pkg/agent"
	"github.com/chriscow/utero-voice/pkg/models"
	"github.com/chriscow/utero-voice/pkg/version"
)

//go:embed static/*
var staticFiles embed.FS

// ServerConfig configures the bridge server.
type ServerConfig struct {
	// Agent is the template every session's controller is built from. Its
	// Capture and Playback are supplied per connection. Metrics, when set, are
	// shared by all sessions.
	Agent agent.Config

	Logger *slog.Logger

	// CheckOrigin decides whether a websocket upgrade is accepted. Nil allows
	// every origin.
	CheckOrigin func(r *http.Request) bool
}

// Server accepts browser connections and runs a controller for each.
type Server struct {
	cfg      agent.Config
	logger   *slog.Logger
	upgrader websocket.Upgrader

	ctx    context.Context
	cancel context.CancelFunc
	wg     sync.WaitGroup
	active atomic.Int64
}

// NewServer creates a bridge server.
func NewServer(cfg ServerConfig) (*Server, error) {
	if cfg.Agent.LLM == nil {
		return nil, fmt.Errorf("Agent.LLM is required")
	}
	if cfg.Logger == nil {
		cfg.Logger = slog.Default()
	}
	if cfg.Agent.Metrics == nil {
		cfg.Agent.Metrics = agent.NewMetrics()
	}
	if cfg.Agent.Models == nil {
		cfg.Agent.Models = models.Default()
	}
	checkOrigin := cfg.CheckOrigin
	if checkOrigin == nil {
		checkOrigin = func(*http.Request) bool { return true }
	}
	ctx, cancel := context.WithCancel(context.Background())
	return &Server{
		cfg:    cfg.Agent,
		logger: cfg.Logger,
		upgrader: websocket.Upgrader{
			HandshakeTimeout: 10 * time.Second,
			ReadBufferSize:   4096,
			WriteBufferSize:  4096,
			CheckOrigin:      checkOrigin,
		},
		ctx:    ctx,
		cancel: cancel,
	}, nil
}

// Metrics returns the metrics shared by all sessions.
func (s *Server) Metrics() *agent.Metrics {
	return s.cfg.Metrics
}

// Sessions returns the number of connected browsers.
func (s *Server) Sessions() int64 {
	return s.active.Load()
}

// Handler returns the server's routes.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("/ws", s.ServeWS)
	mux.HandleFunc("/healthz", s.serveHealth)
	mux.HandleFunc("/models", s.serveModels)
	mux.Handle("/debug/vars", expvar.Handler())

	static, err := fs.Sub(staticFiles, "static")
	if err == nil {
		mux.Handle("/", http.FileServer(http.FS(static)))
	}
	return mux
}

// ServeWS upgrades the request and runs a session until the browser leaves.
func (s *Server) ServeWS(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Warn("Websocket upgrade failed", slog.String("error", err.Error()))
		return
	}

	cfg := s.cfg
	cfg.Logger = s.logger
	session, err := NewSession(conn, cfg)
	if err != nil {
		s.logger.Error("Failed to create session", slog.String("error", err.Error()))
		_ = conn.WriteJSON(&Envelope{Type: TypeError, Message: err.Error()})
		_ = conn.Close()
		return
	}

	s.wg.Add(1)
	defer s.wg.Done()
	s.active.Add(1)
	defer s.active.Add(-1)

	ctx, cancel := context.WithCancel(r.Context())
	defer cancel()
	stop := context.AfterFunc(s.ctx, cancel)
	defer stop()

	if err := session.Run(ctx); err != nil {
		s.logger.Debug("Session error", slog.String("session", session.ID()), slog.String("error", err.Error()))
	}
}

type health struct {
	Status   string `json:"status"`
	Version  string `json:"version"`
	Sessions int64  `json:"sessions"`
}

func (s *Server) serveHealth(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(health{
		Status:   "ok",
		Version:  version.Version,
		Sessions: s.active.Load(),
	})
}

func (s *Server) serveModels(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(s.cfg.Models.List())
}

// Close ends every session and waits for them to finish.
func (s *Server) Close() {
	s.cancel()
	s.wg.Wait()
}

// ListenAndServe serves on addr until ctx is cancelled, then shuts down
// gracefully.
func (s *Server) ListenAndServe(ctx context.Context, addr string) error {
	ln, err := net.Listen("tcp", addr)
	if err != nil {
		return fmt.Errorf("listen %s: %w", addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve serves on ln until ctx is cancelled.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		s.logger.Info("Bridge server listening", slog.String("addr", ln.Addr().String()))
		errCh <- srv.Serve(ln)
	}()

	select {
	case err := <-errCh:
		s.Close()
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	s.logger.Info("Bridge server shutting down")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	err := srv.Shutdown(shutdownCtx)
	s.Close()
	if err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("shutdown: %w", err)
	}
	return nil
}
