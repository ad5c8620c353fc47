// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package webgpu provides the GPU backend. Every kernel is a WGSL compute
// shader with the same numeric contract as the CPU backend.
//
// Example:
//
//	var backend tensor.Backend = cpu.New()
//	if webgpu.IsAvailable() {
//	    gpu, err := webgpu.New()
//	    if err != nil {
//	        log.Fatal(err)
//	    }
//	    defer gpu.Release()
//	    backend = gpu
//	}
package webgpu

import (
	internalwebgpu "github.com/born-ml/nnue/internal/backend/webgpu"
	"github.com/born-ml/nnue/tensor"
)

// Backend represents the WebGPU backend implementation.
type Backend = internalwebgpu.Backend

// Config configures the WebGPU backend.
type Config = internalwebgpu.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a WebGPU backend. Call Release when done.
//
// Returns an error if no compatible adapter is found or the platform is not
// supported.
func New() (*Backend, error) {
	return internalwebgpu.New()
}

// NewWithConfig creates a WebGPU backend with the given configuration.
func NewWithConfig(cfg Config) (*Backend, error) {
	return internalwebgpu.NewWithConfig(cfg)
}

// IsAvailable checks if WebGPU is available on the current system.
func IsAvailable() bool {
	return internalwebgpu.IsAvailable()
}
