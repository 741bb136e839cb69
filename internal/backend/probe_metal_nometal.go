//go:build !metal || !darwin

package backend

import "fmt"

type metalProvider struct{}

func (metalProvider) Device() Device { return Metal }

func (metalProvider) Probe() error {
	return fmt.Errorf("built without metal support: %w", ErrUnavailable)
}
