//go:build cuda

package backend

import (
	"fmt"
	"os"
)

type cudaProvider struct{}

func (cudaProvider) Device() Device { return CUDA }

// Probe checks for an NVIDIA driver on the host. The kernels themselves live
// behind the model runtime; this only decides whether binding to CUDA can
// possibly work.
func (cudaProvider) Probe() error {
	if _, err := os.Stat("/dev/nvidiactl"); err != nil {
		return fmt.Errorf("nvidia driver not present: %w", ErrUnavailable)
	}
	return nil
}
