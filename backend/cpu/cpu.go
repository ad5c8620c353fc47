// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package cpu provides the host backend. Kernels are pure Go and split across
// a worker pool when the batch is large enough.
//
// Example:
//
//	backend := cpu.NewWithThreads(8)
//	net, err := nn.New(backend, nn.Simple(768, 32, 512, 16384))
package cpu

import (
	internalcpu "github.com/born-ml/nnue/internal/backend/cpu"
	"github.com/born-ml/nnue/internal/parallel"
	"github.com/born-ml/nnue/tensor"
)

// Backend represents the CPU backend implementation.
type Backend = internalcpu.CPUBackend

// Config configures the CPU backend.
type Config = internalcpu.Config

// Compile-time check that Backend implements tensor.Backend.
var _ tensor.Backend = (*Backend)(nil)

// New creates a CPU backend using every core.
func New() *Backend {
	return internalcpu.New()
}

// NewWithThreads creates a CPU backend with a fixed worker count. One thread
// runs every kernel on the calling goroutine; zero uses every core.
func NewWithThreads(threads int) *Backend {
	return internalcpu.NewWithConfig(Config{Parallel: parallel.DefaultConfig().WithWorkers(threads)})
}

// NewWithConfig creates a CPU backend with the given configuration.
func NewWithConfig(cfg Config) *Backend {
	return internalcpu.NewWithConfig(cfg)
}
