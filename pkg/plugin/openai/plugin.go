// Package openai registers a completion provider that talks to
// OpenAI-compatible APIs (Groq, OpenRouter, OpenAI) without the proxy.
package openai

import (
	"os"

	"github.com/chriscow/utero-voice/pkg/ai/llm"
	"github.com/chriscow/utero-voice/pkg/plugin"
)

// newOpenAILLM is the factory function for the direct completion client.
func newOpenAILLM(cfg map[string]any) (any, error) {
	config := Config{
		Endpoints: make(map[llm.Provider]Endpoint),
		Fallback: Endpoint{
			BaseURL: plugin.String(cfg, "base_url", OpenAIBaseURL),
			APIKey:  plugin.String(cfg, "api_key", os.Getenv("OPENAI_API_KEY")),
		},
		Model:        plugin.String(cfg, "model", ""),
		SystemPrompt: plugin.String(cfg, "system_prompt", ""),
	}

	if key := plugin.String(cfg, "groq_api_key", os.Getenv("GROQ_API_KEY")); key != "" {
		config.Endpoints[llm.ProviderGroq] = Endpoint{
			BaseURL: plugin.String(cfg, "groq_base_url", GroqBaseURL),
			APIKey:  key,
		}
	}
	if key := plugin.String(cfg, "openrouter_api_key", os.Getenv("OPENROUTER_API_KEY")); key != "" {
		config.Endpoints[llm.ProviderOpenRouter] = Endpoint{
			BaseURL: plugin.String(cfg, "openrouter_base_url", OpenRouterBaseURL),
			APIKey:  key,
		}
	}

	return NewLLM(config)
}

func init() {
	plugin.RegisterWithMetadata(&plugin.Plugin{
		Kind:        plugin.KindLLM,
		Name:        "openai",
		Factory:     newOpenAILLM,
		Description: "Direct OpenAI-compatible chat completions (Groq, OpenRouter, OpenAI)",
		Version:     "1.0.0",
		Config: map[string]any{
			"api_key":             "fallback API key (or set OPENAI_API_KEY env var)",
			"base_url":            OpenAIBaseURL,
			"groq_api_key":        "Groq API key (or set GROQ_API_KEY env var)",
			"groq_base_url":       GroqBaseURL,
			"openrouter_api_key":  "OpenRouter API key (or set OPENROUTER_API_KEY env var)",
			"openrouter_base_url": OpenRouterBaseURL,
			"model":               "model used when a request names none",
			"system_prompt":       "optional system prompt",
		},
	})
}
