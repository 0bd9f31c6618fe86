// Package models is the static catalogue of completion models the controller
// can select, and the provider each one is served by.
package models

import (
	"errors"
	"fmt"

	"github.com/chriscow/utero-voice/pkg/ai/llm"
)

// ErrUnknownModel is returned when a model identifier is not in the registry.
var ErrUnknownModel = errors.New("unknown model")

// Model describes one selectable completion model.
type Model struct {
	ID       string       `json:"id" toml:"id"`
	Name     string       `json:"name" toml:"name"`
	Provider llm.Provider `json:"provider" toml:"provider"`
}

// Registry maps model identifiers to their provider. It is read-only after
// construction and safe for concurrent use.
type Registry struct {
	models    []Model
	byID      map[string]Model
	defaultID string
}

// NewRegistry builds a registry. defaultID must be one of models.
func NewRegistry(defaultID string, models ...Model) (*Registry, error) {
	r := &Registry{byID: make(map[string]Model, len(models)), defaultID: defaultID}
	for _, m := range models {
		if m.ID == "" {
			return nil, errors.New("model id cannot be empty")
		}
		if _, dup := r.byID[m.ID]; dup {
			return nil, fmt.Errorf("model %q registered twice", m.ID)
		}
		if m.Name == "" {
			m.Name = m.ID
		}
		r.byID[m.ID] = m
		r.models = append(r.models, m)
	}
	if _, ok := r.byID[defaultID]; !ok {
		return nil, fmt.Errorf("default model %q: %w", defaultID, ErrUnknownModel)
	}
	return r, nil
}

// Default returns the built-in catalogue.
func Default() *Registry {
	r, err := NewRegistry("llama-3.3-70b-versatile",
		Model{ID: "llama-3.3-70b-versatile", Name: "Llama 3.3 70B", Provider: llm.ProviderGroq},
		Model{ID: "llama-3.1-8b-instant", Name: "Llama 3.1 8B Instant", Provider: llm.ProviderGroq},
		Model{ID: "openai/gpt-oss-120b", Name: "GPT-OSS 120B", Provider: llm.ProviderGroq},
		Model{ID: "qwen/qwen3-32b", Name: "Qwen3 32B", Provider: llm.ProviderGroq},
		Model{ID: "deepseek/deepseek-r1:free", Name: "DeepSeek R1", Provider: llm.ProviderOpenRouter},
		Model{ID: "google/gemini-2.0-flash-exp:free", Name: "Gemini 2.0 Flash", Provider: llm.ProviderOpenRouter},
	)
	if err != nil {
		panic(err)
	}
	return r
}

// Lookup returns the model with the given identifier.
func (r *Registry) Lookup(id string) (Model, bool) {
	m, ok := r.byID[id]
	return m, ok
}

// Provider infers the provider serving the given model.
func (r *Registry) Provider(id string) (llm.Provider, error) {
	m, ok := r.byID[id]
	if !ok {
		return "", fmt.Errorf("model %q: %w", id, ErrUnknownModel)
	}
	return m.Provider, nil
}

// List returns every model in registration order.
func (r *Registry) List() []Model {
	out := make([]Model, len(r.models))
	copy(out, r.models)
	return out
}

// DefaultID returns the identifier selected when none is configured.
func (r *Registry) DefaultID() string {
	return r.defaultID
}
