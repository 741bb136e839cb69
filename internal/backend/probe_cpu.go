package backend

import (
	"fmt"
	"runtime"

	"golang.org/x/sys/cpu"
)

type cpuProvider struct{}

func (cpuProvider) Device() Device { return CPU }

// Probe always succeeds: plain CPU is the floor every build can stand on.
func (cpuProvider) Probe() error { return nil }

type optimizedCPUProvider struct{}

func (optimizedCPUProvider) Device() Device { return Optimized }

// Probe reports whether the host CPU carries the vector extensions the
// optimized kernels are compiled against.
func (optimizedCPUProvider) Probe() error {
	switch runtime.GOARCH {
	case "amd64":
		if cpu.X86.HasAVX2 && cpu.X86.HasFMA {
			return nil
		}
		return fmt.Errorf("amd64 without AVX2+FMA: %w", ErrUnavailable)
	case "arm64":
		if cpu.ARM64.HasASIMD {
			return nil
		}
		return fmt.Errorf("arm64 without ASIMD: %w", ErrUnavailable)
	default:
		return fmt.Errorf("no optimized kernels for %s: %w", runtime.GOARCH, ErrUnavailable)
	}
}
