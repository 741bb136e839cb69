//go:build !cuda

package backend

import "fmt"

type cudaProvider struct{}

func (cudaProvider) Device() Device { return CUDA }

func (cudaProvider) Probe() error {
	return fmt.Errorf("built without cuda support: %w", ErrUnavailable)
}
