// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package tensor exposes the buffers and the compute context the trainer
// issues every kernel through.
//
// Example:
//
//	import (
//	    "github.com/born-ml/nnue/backend/cpu"
//	    "github.com/born-ml/nnue/tensor"
//	)
//
//	func main() {
//	    backend := cpu.New()
//	    w := tensor.NewDense(768, 256)
//	    bias := tensor.NewDense(1, 256)
//	    in := tensor.NewFeatures(1, 32)
//	    _ = in.Set(0, []int32{0, 65, 700})
//	    out := tensor.NewDense(1, 256)
//	    if err := backend.SparseAffine(w, bias, in, out); err != nil {
//	        log.Fatal(err)
//	    }
//	}
package tensor

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// Dense is a row-major float32 matrix.
type Dense = tensor.Dense

// Features is a packed sparse input stream.
type Features = tensor.Features

// Params is the flattened parameter vector with gradients and optimizer moments.
type Params = tensor.Params

// Backend is the compute context.
type Backend = tensor.Backend

// Device identifies where a backend runs.
type Device = tensor.Device

// Activation selects an elementwise nonlinearity.
type Activation = tensor.Activation

// AdamWArgs parameterizes one fused optimizer step.
type AdamWArgs = tensor.AdamWArgs

// ContractError reports a kernel input that violates its contract.
type ContractError = tensor.ContractError

// Devices.
const (
	CPU    = tensor.CPU
	WebGPU = tensor.WebGPU
)

// Activations.
const (
	ReLU       = tensor.ReLU
	CReLU      = tensor.CReLU
	SCReLU     = tensor.SCReLU
	SqrReLU    = tensor.SqrReLU
	LeakySReLU = tensor.LeakySReLU
)

// Sentinel marks an unused feature slot.
const Sentinel = tensor.Sentinel

// Error categories, matched with errors.Is.
var (
	ErrShapeMismatch     = tensor.ErrShapeMismatch
	ErrIndexOutOfRange   = tensor.ErrIndexOutOfRange
	ErrBucketOutOfRange  = tensor.ErrBucketOutOfRange
	ErrSentinelMisuse    = tensor.ErrSentinelMisuse
	ErrInvalidArgument   = tensor.ErrInvalidArgument
	ErrDevice            = tensor.ErrDevice
	ErrBackendReleased   = tensor.ErrBackendReleased
	ErrUnsupportedDevice = tensor.ErrUnsupportedDevice
)

// NewDense allocates a zeroed rows x cols matrix.
func NewDense(rows, cols int) *Dense {
	return tensor.NewDense(rows, cols)
}

// DenseFrom wraps data as a rows x cols matrix without copying.
func DenseFrom(data []float32, rows, cols int) (*Dense, error) {
	return tensor.DenseFrom(data, rows, cols)
}

// NewFeatures allocates a stream of batch samples with every slot empty.
func NewFeatures(batch, maxActive int) *Features {
	return tensor.NewFeatures(batch, maxActive)
}

// NewParams allocates a zeroed parameter vector of length n.
func NewParams(n int) *Params {
	return tensor.NewParams(n)
}
