package main

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"
	"net/url"
	"os"
	"os/signal"
	"slices"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chriscow/utero-voice/pkg/bridge"
	"github.com/chriscow/utero-voice/pkg/plugin"
	"github.com/chriscow/utero-voice/pkg/version"
)

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve the browser voice client",
	Long: `Serve the browser client and its websocket bridge. Each connected browser
gets its own controller, driven by the browser's speech recognition and speech
synthesis.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, os.Stdout)
		if err != nil {
			return err
		}

		provider, err := plugin.NewLLM(cfg.Completion.Provider, cfg.PluginConfig())
		if err != nil {
			return err
		}
		agentCfg, err := cfg.AgentConfig()
		if err != nil {
			return err
		}
		agentCfg.LLM = provider

		srv, err := bridge.NewServer(bridge.ServerConfig{
			Agent:       agentCfg,
			Logger:      logger,
			CheckOrigin: originChecker(cfg.Server.AllowedOrigins),
		})
		if err != nil {
			return fmt.Errorf("create server: %w", err)
		}
		srv.Metrics().Publish("utero")

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		logger.Info("Starting utero-voice",
			slog.String("version", version.Version),
			slog.String("addr", cfg.Server.Addr),
			slog.String("provider", cfg.Completion.Provider),
			slog.String("language", cfg.Voice.Language))
		return srv.ListenAndServe(ctx, cfg.Server.Addr)
	},
}

// originChecker accepts same-host requests, requests without an Origin
// header and the listed origins. An empty list accepts everything.
func originChecker(allowed []string) func(*http.Request) bool {
	if len(allowed) == 0 {
		return nil
	}
	return func(r *http.Request) bool {
		origin := r.Header.Get("Origin")
		if origin == "" || slices.Contains(allowed, origin) {
			return true
		}
		u, err := url.Parse(origin)
		return err == nil && u.Host == r.Host
	}
}
