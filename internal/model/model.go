// Package model defines the capability boundary between kiln and the tensor
// library that executes forward passes. The server depends on exactly one
// operation: Forward(tokens, cache) -> logits, with the cache owned by the
// calling session.
package model

import (
	"github.com/kilnserve/kiln/internal/backend"
)

// Cache is opaque per-layer decode state from prior forward passes. A cache
// belongs to exactly one generation session and is never shared.
type Cache interface {
	// Positions reports how many token positions the cache currently holds.
	Positions() int
	// Reset discards all cached state.
	Reset()
}

// Runtime is the forward-pass oracle. Forward consumes the given tokens,
// extends the caller-owned cache in place, and returns the logits over the
// vocabulary for the last position. Implementations must be safe for
// concurrent calls with distinct caches: the weights behind a Runtime are
// read-only.
type Runtime interface {
	Forward(tokens []int, cache Cache) ([]float32, error)
	NewCache() Cache
}

// Info describes the loaded model.
type Info struct {
	ID            string
	VocabSize     int
	EOSTokenID    int
	ContextWindow int
}

// Handle owns the loaded model and the device it is bound to. It is built
// once at startup and read-only afterwards; every request shares the same
// handle.
type Handle struct {
	rt     Runtime
	info   Info
	device backend.Device
}

// NewHandle binds a runtime to a device.
func NewHandle(rt Runtime, info Info, device backend.Device) *Handle {
	return &Handle{rt: rt, info: info, device: device}
}

// Forward delegates to the runtime. The cache belongs to the caller.
func (h *Handle) Forward(tokens []int, cache Cache) ([]float32, error) {
	return h.rt.Forward(tokens, cache)
}

// NewCache allocates a fresh cache for one session.
func (h *Handle) NewCache() Cache { return h.rt.NewCache() }

func (h *Handle) Info() Info             { return h.info }
func (h *Handle) Device() backend.Device { return h.device }
