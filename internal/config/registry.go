package config

import (
	"errors"
	"fmt"
	"slices"
	"sync"

	"github.com/MrWong99/prosodia/pkg/provider/synth"
)

// ErrProviderNotRegistered is returned by [Registry.CreateSynth] when no
// factory has been registered under the requested provider name.
var ErrProviderNotRegistered = errors.New("config: provider not registered")

// SynthFactory builds a synthesis backend from its configuration entry.
type SynthFactory func(ProviderEntry) (synth.Provider, error)

// Registry maps provider names to their constructor functions. It is safe
// for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	synth map[string]SynthFactory
}

// NewRegistry returns an empty, ready-to-use [Registry].
func NewRegistry() *Registry {
	return &Registry{synth: make(map[string]SynthFactory)}
}

// RegisterSynth registers a synthesis backend factory under name.
// Subsequent calls with the same name overwrite the previous registration.
func (r *Registry) RegisterSynth(name string, factory SynthFactory) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.synth[name] = factory
}

// CreateSynth instantiates a backend using the factory registered under
// entry.Name. Returns [ErrProviderNotRegistered] if there is none.
func (r *Registry) CreateSynth(entry ProviderEntry) (synth.Provider, error) {
	r.mu.RLock()
	factory, ok := r.synth[entry.Name]
	r.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: synth/%q", ErrProviderNotRegistered, entry.Name)
	}
	return factory(entry)
}

// SynthNames returns the registered backend names in sorted order.
func (r *Registry) SynthNames() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.synth))
	for name := range r.synth {
		names = append(names, name)
	}
	slices.Sort(names)
	return names
}

// OptionString returns the string value stored under key in e.Options, or
// "" when it is missing or not a string.
func (e ProviderEntry) OptionString(key string) string {
	s, _ := e.Options[key].(string)
	return s
}
