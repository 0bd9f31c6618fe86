// Package plugin provides a registry of named provider factories for the
// completion service (llm), speech capture (stt) and speech playback (tts)
// collaborators. Provider packages register themselves from init().
package plugin

import (
	"fmt"
	"sort"
	"sync"
	"time"

	"github.com/chriscow/utero-voice/pkg/ai/llm"
	"github.com/chriscow/utero-voice/pkg/ai/stt"
	"github.com/chriscow/utero-voice/pkg/ai/tts"
)

// Plugin kinds.
const (
	KindLLM = "llm"
	KindSTT = "stt"
	KindTTS = "tts"
)

// Factory creates a new provider instance from configuration.
// The returned value should be cast to the type matching the plugin kind
// (llm.LLM, stt.Capture or tts.Playback).
type Factory func(cfg map[string]any) (any, error)

// Plugin represents a registered plugin with its metadata.
type Plugin struct {
	Kind        string         // "llm", "stt", "tts"
	Name        string         // Plugin name (e.g., "proxy", "openai")
	Factory     Factory        // Factory function to create instances
	Description string         // Human-readable description
	Version     string         // Plugin version
	Config      map[string]any // Configuration keys and their meaning
}

// Registry manages plugin registration and lookup.
type Registry struct {
	mu      sync.RWMutex
	plugins map[string]map[string]*Plugin // [kind][name] -> Plugin
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{plugins: make(map[string]map[string]*Plugin)}
}

// Global registry instance
var globalRegistry = NewRegistry()

// Register adds a plugin to the global registry.
// Panics if a plugin with the same kind and name is already registered.
func Register(kind, name string, factory Factory) {
	globalRegistry.Register(kind, name, factory)
}

// RegisterWithMetadata adds a plugin with additional metadata to the global registry.
// Panics if a plugin with the same kind and name is already registered.
func RegisterWithMetadata(plugin *Plugin) {
	globalRegistry.RegisterWithMetadata(plugin)
}

// Get retrieves a plugin factory from the global registry.
func Get(kind, name string) (Factory, bool) {
	return globalRegistry.Get(kind, name)
}

// List returns all registered plugins of a specific kind.
// If kind is empty, returns all plugins.
func List(kind string) []*Plugin {
	return globalRegistry.List(kind)
}

// ListKinds returns all registered plugin kinds.
func ListKinds() []string {
	return globalRegistry.ListKinds()
}

// NewLLM builds a completion provider from the global registry.
func NewLLM(name string, cfg map[string]any) (llm.LLM, error) {
	return build[llm.LLM](globalRegistry, KindLLM, name, cfg)
}

// NewCapture builds a speech capture engine from the global registry.
func NewCapture(name string, cfg map[string]any) (stt.Capture, error) {
	return build[stt.Capture](globalRegistry, KindSTT, name, cfg)
}

// NewPlayback builds a speech playback engine from the global registry.
func NewPlayback(name string, cfg map[string]any) (tts.Playback, error) {
	return build[tts.Playback](globalRegistry, KindTTS, name, cfg)
}

func build[T any](r *Registry, kind, name string, cfg map[string]any) (T, error) {
	var zero T
	factory, ok := r.Get(kind, name)
	if !ok {
		return zero, fmt.Errorf("%s plugin %q not registered", kind, name)
	}
	if cfg == nil {
		cfg = map[string]any{}
	}
	instance, err := factory(cfg)
	if err != nil {
		return zero, fmt.Errorf("create %s plugin %q: %w", kind, name, err)
	}
	typed, ok := instance.(T)
	if !ok {
		return zero, fmt.Errorf("%s plugin %q returned %T", kind, name, instance)
	}
	return typed, nil
}

// Register adds a plugin to this registry instance.
// Panics if a plugin with the same kind and name is already registered.
func (r *Registry) Register(kind, name string, factory Factory) {
	r.RegisterWithMetadata(&Plugin{
		Kind:    kind,
		Name:    name,
		Factory: factory,
	})
}

// RegisterWithMetadata adds a plugin with metadata to this registry instance.
// Panics if a plugin with the same kind and name is already registered.
func (r *Registry) RegisterWithMetadata(plugin *Plugin) {
	if plugin.Kind == "" {
		panic("plugin kind cannot be empty")
	}
	if plugin.Name == "" {
		panic("plugin name cannot be empty")
	}
	if plugin.Factory == nil {
		panic("plugin factory cannot be nil")
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.plugins[plugin.Kind] == nil {
		r.plugins[plugin.Kind] = make(map[string]*Plugin)
	}

	if existing, exists := r.plugins[plugin.Kind][plugin.Name]; exists {
		panic(fmt.Sprintf("plugin %s/%s already registered (existing version: %s, new version: %s)",
			plugin.Kind, plugin.Name, existing.Version, plugin.Version))
	}

	r.plugins[plugin.Kind][plugin.Name] = plugin
}

// Get retrieves a plugin factory from this registry instance.
// Returns the factory and true if found, nil and false otherwise.
func (r *Registry) Get(kind, name string) (Factory, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	plugin, exists := r.plugins[kind][name]
	if !exists {
		return nil, false
	}
	return plugin.Factory, true
}

// List returns all registered plugins of a specific kind.
// If kind is empty, returns all plugins sorted by kind then name.
func (r *Registry) List(kind string) []*Plugin {
	r.mu.RLock()
	defer r.mu.RUnlock()

	var plugins []*Plugin
	for k, kindMap := range r.plugins {
		if kind != "" && k != kind {
			continue
		}
		for _, plugin := range kindMap {
			plugins = append(plugins, plugin)
		}
	}

	sort.Slice(plugins, func(i, j int) bool {
		if plugins[i].Kind != plugins[j].Kind {
			return plugins[i].Kind < plugins[j].Kind
		}
		return plugins[i].Name < plugins[j].Name
	})

	return plugins
}

// ListKinds returns all registered plugin kinds in sorted order.
func (r *Registry) ListKinds() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	kinds := make([]string, 0, len(r.plugins))
	for kind := range r.plugins {
		kinds = append(kinds, kind)
	}

	sort.Strings(kinds)
	return kinds
}

// Clear removes all plugins from this registry instance.
// This is primarily useful for testing.
func (r *Registry) Clear() {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.plugins = make(map[string]map[string]*Plugin)
}

// String returns cfg[key] as a string, or def when missing or empty.
func String(cfg map[string]any, key, def string) string {
	if v, ok := cfg[key].(string); ok && v != "" {
		return v
	}
	return def
}

// Duration returns cfg[key] as a duration. Strings are parsed with
// time.ParseDuration and numbers are taken as seconds.
func Duration(cfg map[string]any, key string, def time.Duration) (time.Duration, error) {
	switch v := cfg[key].(type) {
	case nil:
		return def, nil
	case time.Duration:
		return v, nil
	case string:
		if v == "" {
			return def, nil
		}
		d, err := time.ParseDuration(v)
		if err != nil {
			return 0, fmt.Errorf("%s: %w", key, err)
		}
		return d, nil
	case int:
		return time.Duration(v) * time.Second, nil
	case int64:
		return time.Duration(v) * time.Second, nil
	case float64:
		return time.Duration(v * float64(time.Second)), nil
	default:
		return 0, fmt.Errorf("%s: unsupported duration type %T", key, v)
	}
}

// Strings returns cfg[key] as a string slice.
func Strings(cfg map[string]any, key string) []string {
	switch v := cfg[key].(type) {
	case []string:
		return v
	case []any:
		out := make([]string, 0, len(v))
		for _, item := range v {
			if s, ok := item.(string); ok {
				out = append(out, s)
			}
		}
		return out
	case string:
		if v != "" {
			return []string{v}
		}
	}
	return nil
}
