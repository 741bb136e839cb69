//go:build metal && darwin

package backend

type metalProvider struct{}

func (metalProvider) Device() Device { return Metal }

func (metalProvider) Probe() error { return nil }
