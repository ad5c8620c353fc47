// Package webgpu implements the training kernels as WGSL compute shaders.
// Uses go-webgpu (github.com/go-webgpu/webgpu) for zero-CGO WebGPU bindings.
//
// Every method uploads its host buffers, dispatches one compute pass and
// downloads the outputs before returning, so results are visible to the caller
// exactly as with the CPU backend. Accumulator outputs are uploaded as well and
// updated in place on the device.
//
// Gradient scatters are partitioned by output column, one invocation per
// column, so no kernel needs atomics.
//
// The backend is built on Windows, where the wgpu-native library is loaded at
// runtime. Elsewhere New returns tensor.ErrUnsupportedDevice.
package webgpu
