package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/chriscow/utero-voice/internal/config"
	"github.com/chriscow/utero-voice/internal/logging"
	"github.com/chriscow/utero-voice/pkg/models"
	"github.com/chriscow/utero-voice/pkg/narrate"
	"github.com/chriscow/utero-voice/pkg/plugin"
	_ "github.com/chriscow/utero-voice/pkg/plugin/console" // Import to register console engines
	_ "github.com/chriscow/utero-voice/pkg/plugin/fake"    // Import to register fake providers
	_ "github.com/chriscow/utero-voice/pkg/plugin/openai"  // Import to register the OpenAI-compatible provider
	_ "github.com/chriscow/utero-voice/pkg/plugin/proxy"   // Import to register the chat proxy provider
	"github.com/chriscow/utero-voice/pkg/version"
)

var rootCmd = &cobra.Command{
	Use:   "utero-voice",
	Short: "Utero Voice - voice assistant controller",
	Long: `utero-voice runs the Utero voice assistant: it listens through a speech
recognition engine, sends each finished utterance to a completion service and
speaks the cleaned-up reply.`,
	SilenceUsage: true,
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Println(version.GetVersionInfo())
	},
}

var modelsCmd = &cobra.Command{
	Use:   "models",
	Short: "List selectable completion models",
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, _, err := loadConfig(cmd, io.Discard)
		if err != nil {
			return err
		}
		reg, err := cfg.Registry()
		if err != nil {
			return err
		}
		printModels(cmd.OutOrStdout(), reg, cfg.Completion.Model)
		return nil
	},
}

var sanitizeCmd = &cobra.Command{
	Use:   "sanitize [text]",
	Short: "Strip markdown and reasoning blocks the way replies are cleaned before speaking",
	Long: `Print text as it would be spoken. The text is taken from the arguments, or
from stdin when there are none.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		var text string
		if len(args) > 0 {
			text = strings.Join(args, " ")
		} else {
			b, err := io.ReadAll(cmd.InOrStdin())
			if err != nil {
				return fmt.Errorf("read stdin: %w", err)
			}
			text = string(b)
		}
		fmt.Fprintln(cmd.OutOrStdout(), narrate.Sanitize(text))
		return nil
	},
}

var pluginsCmd = &cobra.Command{
	Use:   "plugins [kind]",
	Short: "List registered providers and engines",
	Long: `List all registered plugins or plugins of a specific kind.
Available kinds: llm, stt, tts`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		kind := ""
		if len(args) > 0 {
			kind = args[0]
		}
		out := cmd.OutOrStdout()

		plugins := plugin.List(kind)
		if len(plugins) == 0 {
			if kind == "" {
				fmt.Fprintln(out, "No plugins registered")
			} else {
				fmt.Fprintf(out, "No plugins registered for kind: %s\n", kind)
			}
			return nil
		}

		fmt.Fprintf(out, "%-6s %-10s %-10s %s\n", "KIND", "NAME", "VERSION", "DESCRIPTION")
		fmt.Fprintln(out, "------------------------------------------------------------")
		for _, p := range plugins {
			v := p.Version
			if v == "" {
				v = "N/A"
			}
			fmt.Fprintf(out, "%-6s %-10s %-10s %s\n", p.Kind, p.Name, v, p.Description)
		}
		return nil
	},
}

func printModels(w io.Writer, reg *models.Registry, selected string) {
	if selected == "" {
		selected = reg.DefaultID()
	}
	fmt.Fprintf(w, "  %-36s %-11s %s\n", "ID", "PROVIDER", "NAME")
	for _, m := range reg.List() {
		mark := " "
		if m.ID == selected {
			mark = "*"
		}
		fmt.Fprintf(w, "%s %-36s %-11s %s\n", mark, m.ID, m.Provider, m.Name)
	}
}

// loadConfig loads the configuration, applies command-line overrides,
// validates it and installs the logger.
func loadConfig(cmd *cobra.Command, logOut io.Writer) (*config.Config, *slog.Logger, error) {
	path, _ := cmd.Flags().GetString("config")
	cfg, err := config.Load(path)
	if err != nil {
		return nil, nil, err
	}

	flags := cmd.Flags()
	override := func(name string, dst *string) {
		if flags.Changed(name) {
			*dst, _ = flags.GetString(name)
		}
	}
	override("log-level", &cfg.Log.Level)
	override("log-format", &cfg.Log.Format)
	override("provider", &cfg.Completion.Provider)
	override("model", &cfg.Completion.Model)
	override("language", &cfg.Voice.Language)
	if flags.Lookup("addr") != nil {
		override("addr", &cfg.Server.Addr)
	}
	if flags.Changed("debounce") {
		d, _ := flags.GetDuration("debounce")
		cfg.Turn.DebounceDelay = config.Duration(d)
	}

	if err := cfg.Validate(); err != nil {
		return nil, nil, err
	}
	logger, err := logging.Setup(cfg.Log.Level, cfg.Log.Format, logOut)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func init() {
	pf := rootCmd.PersistentFlags()
	pf.String("config", "", "TOML configuration file (default ./utero.toml when present)")
	pf.String("log-level", "", "Log level: debug, info, warn, error (env UTERO_LOG_LEVEL)")
	pf.String("log-format", "", "Log format: json or console (env UTERO_LOG_FORMAT)")
	pf.String("provider", "", "Completion provider plugin: proxy, openai, fake")
	pf.String("model", "", "Initially selected model id")
	pf.String("language", "", "Recognition and playback language (default id-ID)")
	pf.Duration("debounce", 0, "Quiet period after a final result before committing")

	serveCmd.Flags().String("addr", "", "Listen address (default :8080, env UTERO_ADDR)")

	rootCmd.AddCommand(versionCmd, serveCmd, consoleCmd, modelsCmd, sanitizeCmd, pluginsCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		os.Exit(1)
	}
}
