// Package fake registers the fake completion, capture and playback providers
// so the controller can be exercised end to end without real engines.
package fake

import (
	llmfake "github.com/chriscow/utero-voice/pkg/ai/llm/fake"
	sttfake "github.com/chriscow/utero-voice/pkg/ai/stt/fake"
	ttsfake "github.com/chriscow/utero-voice/pkg/ai/tts/fake"
	"github.com/chriscow/utero-voice/pkg/plugin"
)

// newFakeLLM creates a fake completion provider that cycles through the
// configured responses.
func newFakeLLM(cfg map[string]any) (any, error) {
	return llmfake.NewFakeLLM(plugin.Strings(cfg, "responses")...), nil
}

// newFakeSTT creates a capture engine driven by the caller.
func newFakeSTT(cfg map[string]any) (any, error) {
	return sttfake.NewFakeCapture(), nil
}

// newFakeTTS creates a playback engine driven by the caller.
func newFakeTTS(cfg map[string]any) (any, error) {
	return ttsfake.NewFakePlayback(), nil
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "fake",
		Factory:     newFakeLLM,
		Description: "Fake completion provider for testing and development",
		Version:     "1.0.0",
		Config: map[string]any{
			"responses": []string{"List of predefined responses"},
		},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindSTT,
		Name:        "fake",
		Factory:     newFakeSTT,
		Description: "Scriptable speech capture engine for testing",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})

	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindTTS,
		Name:        "fake",
		Factory:     newFakeTTS,
		Description: "Scriptable speech playback engine for testing",
		Version:     "1.0.0",
		Config:      map[string]any{},
	})
}
