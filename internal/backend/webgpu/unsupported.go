//go:build !windows

package webgpu

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// Backend is unavailable on this platform. Every kernel reports
// tensor.ErrUnsupportedDevice.
type Backend struct{}

var _ tensor.Backend = (*Backend)(nil)

// New reports that WebGPU is not supported on this platform.
func New() (*Backend, error) {
	return nil, tensor.ErrUnsupportedDevice
}

// NewWithConfig reports that WebGPU is not supported on this platform.
func NewWithConfig(Config) (*Backend, error) {
	return nil, tensor.ErrUnsupportedDevice
}

// IsAvailable always returns false on this platform.
func IsAvailable() bool { return false }

// Name returns the backend name.
func (*Backend) Name() string { return "WebGPU (unsupported)" }

// Device returns the compute device.
func (*Backend) Device() tensor.Device { return tensor.WebGPU }

// Release is a no-op.
func (*Backend) Release() {}

// Kernels.
func (*Backend) MatMul(_, _, _ *tensor.Dense) error          { return tensor.ErrUnsupportedDevice }
func (*Backend) MatMulT(_, _, _ *tensor.Dense) error         { return tensor.ErrUnsupportedDevice }
func (*Backend) OuterAccumulate(_, _, _ *tensor.Dense) error { return tensor.ErrUnsupportedDevice }
func (*Backend) ReduceSum(_, _ *tensor.Dense) error          { return tensor.ErrUnsupportedDevice }
func (*Backend) AddTo(_, _ *tensor.Dense) error              { return tensor.ErrUnsupportedDevice }
func (*Backend) AddBias(_, _ *tensor.Dense) error            { return tensor.ErrUnsupportedDevice }
func (*Backend) PairwiseMul(_, _ *tensor.Dense) error        { return tensor.ErrUnsupportedDevice }

func (*Backend) PairwiseMulBackward(_, _, _ *tensor.Dense) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) SparseAffine(_, _ *tensor.Dense, _ *tensor.Features, _ *tensor.Dense) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) SparseAffineDual(_, _ *tensor.Dense, _, _ *tensor.Features, _ *tensor.Dense) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) SparseAffineBackward(_, _ *tensor.Dense, _ *tensor.Features, _, _ *tensor.Dense, _ float32) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) SparseAffineDualBackward(_, _ *tensor.Dense, _, _ *tensor.Features, _, _ *tensor.Dense, _ float32) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) Activate(tensor.Activation, *tensor.Dense, *tensor.Dense) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) ActivateBackward(tensor.Activation, *tensor.Dense, *tensor.Dense) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) Select(*tensor.Dense, []int, *tensor.Dense) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) SelectBackward(*tensor.Dense, []int, *tensor.Dense) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) SigmoidMPE(_, _, _, _ *tensor.Dense, _ float32) error {
	return tensor.ErrUnsupportedDevice
}

func (*Backend) AdamW(*tensor.Params, tensor.AdamWArgs) error {
	return tensor.ErrUnsupportedDevice
}
