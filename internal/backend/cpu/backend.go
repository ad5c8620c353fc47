package cpu

import (
	"sync"

	"github.com/born-ml/nnue/internal/parallel"
	"github.com/born-ml/nnue/internal/tensor"
)

// DefaultLeakySlope is the negative-side slope of the leaky squared ReLU.
const DefaultLeakySlope = 0.01

// Config configures the CPU backend.
type Config struct {
	Parallel   parallel.Config // Worker fan-out for kernels
	LeakySlope float32         // Slope of LeakySReLU for x <= 0 (default: 0.01)
}

// DefaultConfig returns the multi-threaded configuration.
func DefaultConfig() Config {
	return Config{
		Parallel:   parallel.DefaultConfig(),
		LeakySlope: DefaultLeakySlope,
	}
}

// CPUBackend implements tensor.Backend on the host.
type CPUBackend struct {
	cfg Config

	// ones is the workspace vector used by ReduceSum as the right-hand side of a
	// matrix-vector product. It grows to the largest batch seen.
	mu       sync.Mutex
	ones     []float32
	released bool
}

// Compile-time check.
var _ tensor.Backend = (*CPUBackend)(nil)

// New creates a CPU backend with DefaultConfig.
func New() *CPUBackend {
	return NewWithConfig(DefaultConfig())
}

// NewWithConfig creates a CPU backend with the given configuration.
// Zero fields fall back to defaults.
func NewWithConfig(cfg Config) *CPUBackend {
	if cfg.Parallel.NumWorkers == 0 {
		cfg.Parallel = parallel.DefaultConfig()
	}
	if cfg.Parallel.MinChunkSize <= 0 {
		cfg.Parallel.MinChunkSize = 1
	}
	if cfg.LeakySlope == 0 {
		cfg.LeakySlope = DefaultLeakySlope
	}
	return &CPUBackend{cfg: cfg}
}

// Name returns the backend name.
func (cpu *CPUBackend) Name() string {
	return "CPU"
}

// Device returns the compute device.
func (cpu *CPUBackend) Device() tensor.Device {
	return tensor.CPU
}

// Config returns the active configuration.
func (cpu *CPUBackend) Config() Config {
	return cpu.cfg
}

// Release drops the workspace. Later kernel calls fail with ErrBackendReleased.
func (cpu *CPUBackend) Release() {
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	cpu.ones = nil
	cpu.released = true
}

func (cpu *CPUBackend) onesVector(n int) ([]float32, error) {
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	if cpu.released {
		return nil, tensor.ErrBackendReleased
	}
	if len(cpu.ones) < n {
		cpu.ones = make([]float32, n)
		for i := range cpu.ones {
			cpu.ones[i] = 1
		}
	}
	return cpu.ones[:n], nil
}

func (cpu *CPUBackend) live() error {
	cpu.mu.Lock()
	defer cpu.mu.Unlock()
	if cpu.released {
		return tensor.ErrBackendReleased
	}
	return nil
}

// forRange runs f over [0, n) using the configured fan-out.
func (cpu *CPUBackend) forRange(n int, f func(lo, hi int)) {
	parallel.ForRange(n, f, cpu.cfg.Parallel)
}
