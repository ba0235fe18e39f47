// internal/ranking/ml/handle.go
package ml

import (
	"sync/atomic"

	"proposition-engine/internal/features"
)

// ModelHandle is an immutable logistic-regression artifact paired with
// the feature schema it was trained against. Handles are never mutated
// after load; hot swaps publish a whole new handle.
type ModelHandle struct {
	Version string
	Schema  features.Schema
	Bias    float64
	Weights map[string]float64
}

// Provider publishes the active model handle. Readers load a pointer
// once per request, so a concurrent swap never mixes the weights of one
// version with the schema of another.
type Provider struct {
	handle atomic.Pointer[ModelHandle]
}

func NewProvider(initial *ModelHandle) *Provider {
	p := &Provider{}
	if initial != nil {
		p.handle.Store(initial)
	}
	return p
}

// Current returns the active handle, or nil when no model is loaded.
func (p *Provider) Current() *ModelHandle {
	return p.handle.Load()
}

// Swap atomically replaces the active model and returns the new
// version. Callers use the returned version to invalidate downstream
// caches keyed on it.
func (p *Provider) Swap(h *ModelHandle) string {
	p.handle.Store(h)
	if h == nil {
		return ""
	}
	return h.Version
}
