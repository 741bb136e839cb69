// Package backend selects the compute device the model handle is bound to.
// Providers are probed in a fixed priority order at startup; a provider that
// fails to initialize is skipped, and only a full miss is fatal.
package backend

import (
	"errors"
	"fmt"
	"strings"

	"github.com/kilnserve/kiln/internal/logger"
)

// Device identifies the compute backend a loaded model runs on. It is chosen
// once at startup and fixed for the process lifetime.
type Device string

const (
	CPU       Device = "cpu"
	Optimized Device = "optimized-cpu"
	CUDA      Device = "cuda"
	Metal     Device = "metal"
)

// Auto asks the selector to probe all providers in priority order.
const Auto = "auto"

// ErrUnavailable marks a provider that cannot initialize in this build or on
// this host. Selection skips it and moves to the next provider.
var ErrUnavailable = errors.New("backend unavailable")

// Provider probes one device. Probe returns nil when the device is usable.
type Provider interface {
	Device() Device
	Probe() error
}

// providers returns the probe order: GPU acceleration first, then platform
// acceleration, then optimized CPU, then plain CPU.
func providers() []Provider {
	return []Provider{
		cudaProvider{},
		metalProvider{},
		optimizedCPUProvider{},
		cpuProvider{},
	}
}

// Normalize validates a requested backend name. Empty means auto.
func Normalize(name string) (string, error) {
	name = strings.ToLower(strings.TrimSpace(name))
	if name == "" {
		return Auto, nil
	}
	switch Device(name) {
	case CPU, Optimized, CUDA, Metal:
		return name, nil
	default:
		if name == Auto {
			return name, nil
		}
		return "", fmt.Errorf("unknown backend %q (expected auto, cuda, metal, optimized-cpu, or cpu)", name)
	}
}

// Select probes providers in priority order and returns the first usable
// device. A non-auto request pins selection to that one provider. Selection
// failure for every provider is a fatal startup error.
func Select(log logger.Logger, requested string) (Device, error) {
	requested, err := Normalize(requested)
	if err != nil {
		return "", err
	}

	var probeErrs []error
	for _, p := range providers() {
		if requested != Auto && Device(requested) != p.Device() {
			continue
		}
		if err := p.Probe(); err != nil {
			probeErrs = append(probeErrs, fmt.Errorf("%s: %w", p.Device(), err))
			log.Warn("backend probe failed, skipping", "device", string(p.Device()), "error", err)
			continue
		}
		log.Info("backend selected", "device", string(p.Device()))
		return p.Device(), nil
	}

	return "", fmt.Errorf("no usable backend: %w", errors.Join(probeErrs...))
}

// Available lists the devices whose probe currently succeeds.
func Available() []Device {
	var out []Device
	for _, p := range providers() {
		if p.Probe() == nil {
			out = append(out, p.Device())
		}
	}
	return out
}
