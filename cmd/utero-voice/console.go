package main

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/chriscow/utero-voice/internal/mailbox"
	"github.com/chriscow/utero-voice/pkg/agent"
	sttconsole "github.com/chriscow/utero-voice/pkg/ai/stt/console"
	"github.com/chriscow/utero-voice/pkg/models"
	"github.com/chriscow/utero-voice/pkg/plugin"
)

var consoleCmd = &cobra.Command{
	Use:   "console",
	Short: "Talk to the assistant from the terminal",
	Long: `Run the controller in the terminal. Typed lines stand in for recognized
speech and replies are narrated on stdout.

Commands: /start, /stop, /model <id>, /models, /quit`,
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, logger, err := loadConfig(cmd, os.Stderr)
		if err != nil {
			return err
		}

		provider, err := plugin.NewLLM(cfg.Completion.Provider, cfg.PluginConfig())
		if err != nil {
			return err
		}
		playbackName, _ := cmd.Flags().GetString("playback")
		playback, err := plugin.NewPlayback(playbackName, map[string]any{})
		if err != nil {
			return err
		}
		capture := sttconsole.New()
		defer capture.Close()

		agentCfg, err := cfg.AgentConfig()
		if err != nil {
			return err
		}
		agentCfg.LLM = provider
		agentCfg.Capture = capture
		agentCfg.Playback = playback
		agentCfg.Logger = logger

		ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer cancel()

		return runConsole(ctx, agentCfg, capture, cmd.InOrStdin(), cmd.OutOrStdout())
	},
}

func init() {
	consoleCmd.Flags().String("playback", "console", "Playback engine plugin")
}

// console drives an Agent from typed lines.
type console struct {
	agent   *agent.Agent
	capture *sttconsole.Capture
	models  *models.Registry
	out     io.Writer
	updates *mailbox.Mailbox[agent.Snapshot]

	last agent.Snapshot
	fed  bool
}

// runConsole runs the agent until ctx is cancelled, /quit is typed, or in
// reaches EOF and the current turn has finished.
func runConsole(ctx context.Context, cfg agent.Config, capture *sttconsole.Capture, in io.Reader, out io.Writer) error {
	updates := mailbox.New[agent.Snapshot]()
	defer updates.Close()

	onUpdate := cfg.OnUpdate
	cfg.OnUpdate = func(s agent.Snapshot) {
		updates.Put(s)
		if onUpdate != nil {
			onUpdate(s)
		}
	}

	if cfg.Models == nil {
		cfg.Models = models.Default()
	}
	a, err := agent.New(cfg)
	if err != nil {
		return err
	}
	c := &console{
		agent:   a,
		capture: capture,
		models:  cfg.Models,
		out:     out,
		updates: updates,
		last:    a.Snapshot(),
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	runErr := make(chan error, 1)
	go func() { runErr <- a.Run(ctx) }()

	lines := make(chan string)
	go func() {
		defer close(lines)
		scanner := bufio.NewScanner(in)
		for scanner.Scan() {
			select {
			case lines <- scanner.Text():
			case <-ctx.Done():
				return
			}
		}
	}()

	fmt.Fprintf(out, "Model %s. Type to talk, /quit to leave.\n", c.last.Model)

	eof := false
	for {
		select {
		case <-ctx.Done():
			return c.finish(cancel, runErr)
		case err := <-runErr:
			if errors.Is(err, context.Canceled) {
				return nil
			}
			return err
		case s := <-updates.Out():
			c.render(s)
			if eof && c.agent.State() == agent.StateIdle {
				return c.finish(cancel, runErr)
			}
		case line, ok := <-lines:
			if !ok {
				lines = nil
				eof = true
				if c.settled(ctx) {
					return c.finish(cancel, runErr)
				}
				continue
			}
			quit, err := c.handle(ctx, line)
			if err != nil {
				fmt.Fprintf(out, "! %v\n", err)
			}
			if quit {
				return c.finish(cancel, runErr)
			}
		}
	}
}

// settled reports whether no turn is left to finish after input ends. An
// empty listening session is stopped.
func (c *console) settled(ctx context.Context) bool {
	switch c.agent.State() {
	case agent.StateIdle:
		return true
	case agent.StateListening:
		if c.fed {
			return false
		}
		_ = c.agent.Stop(ctx)
		return true
	default:
		return false
	}
}

func (c *console) finish(cancel context.CancelFunc, runErr <-chan error) error {
	cancel()
	err := <-runErr
	if errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func (c *console) handle(ctx context.Context, line string) (quit bool, err error) {
	line = strings.TrimSpace(line)
	if line == "" {
		return false, nil
	}
	if strings.HasPrefix(line, "/") {
		return c.command(ctx, line)
	}

	switch c.agent.State() {
	case agent.StateProcessing:
		return false, errors.New("still waiting for the previous answer")
	case agent.StateSpeaking:
		if err := c.agent.Stop(ctx); err != nil {
			return false, err
		}
		fallthrough
	case agent.StateIdle:
		if err := c.agent.Start(ctx); err != nil {
			return false, err
		}
		c.fed = false
	}
	if err := c.capture.Feed(line); err != nil {
		return false, err
	}
	c.fed = true
	return false, nil
}

func (c *console) command(ctx context.Context, line string) (bool, error) {
	fields := strings.Fields(line)
	switch fields[0] {
	case "/quit", "/exit":
		return true, nil
	case "/start":
		return false, c.agent.Start(ctx)
	case "/stop":
		return false, c.agent.Stop(ctx)
	case "/models":
		printModels(c.out, c.models, c.agent.Snapshot().Model)
		return false, nil
	case "/model":
		if len(fields) != 2 {
			return false, errors.New("usage: /model <id>")
		}
		return false, c.agent.SetModel(ctx, fields[1])
	case "/help":
		fmt.Fprintln(c.out, "Commands: /start, /stop, /model <id>, /models, /quit")
		return false, nil
	default:
		return false, fmt.Errorf("unknown command %s", fields[0])
	}
}

// render prints what changed since the previous snapshot. Narration itself
// is printed by the playback engine.
func (c *console) render(s agent.Snapshot) {
	prev := c.last
	c.last = s

	// Updates are delivered asynchronously, so the live state decides
	// whether the typed turn is over.
	if c.agent.State() == agent.StateIdle {
		c.fed = false
	}
	if s.State != prev.State {
		slog.Debug("Console state", slog.String("state", s.State.String()))
		if s.State == agent.StateProcessing {
			fmt.Fprintf(c.out, "… %s\n", s.Transcript)
		}
	}
	if s.Model != prev.Model {
		fmt.Fprintf(c.out, "Model %s (%s)\n", s.Model, s.Provider)
	}
	if s.NetworkError && s.RetryCount != prev.RetryCount {
		fmt.Fprintf(c.out, "! network error, retry %d\n", s.RetryCount)
	}
	if s.Error != "" && s.Error != prev.Error {
		fmt.Fprintf(c.out, "! %s\n", s.Error)
	}
}
