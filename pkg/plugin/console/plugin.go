// Package console registers the terminal capture and playback engines.
package console

import (
	"os"

	sttconsole "github.com/chriscow/utero-voice/pkg/ai/stt/console"
	ttsconsole "github.com/chriscow/utero-voice/pkg/ai/tts/console"
	"github.com/chriscow/utero-voice/pkg/plugin"
)

func newConsoleSTT(cfg map[string]any) (any, error) {
	return sttconsole.New(), nil
}

func newConsoleTTS(cfg map[string]any) (any, error) {
	delay, err := plugin.Duration(cfg, "word_delay", ttsconsole.DefaultWordDelay)
	if err != nil {
		return nil, err
	}
	return ttsconsole.New(ttsconsole.Config{
		Out:       os.Stdout,
		Prefix:    plugin.String(cfg, "prefix", "🔊 "),
		WordDelay: delay,
	})
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "console",
		Factory:     newConsoleSTT,
		Description: "Typed terminal lines as final recognition results",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "console",
		Factory:     newConsoleTTS,
		Description: "Sentence-paced narration on stdout",
		Version:     "1.0.0",
		Config: map[string]any{
			"prefix":     "text printed before each sentence",
			"word_delay": ttsconsole.DefaultWordDelay.String(),
		},
	})
}
