// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package nn builds NNUE networks: a sparse feature transformer followed by
// bucketed dense layers.
//
// Example:
//
//	cfg := nn.Config{
//	    Inputs:       768,
//	    MaxActive:    32,
//	    Hidden:       512,
//	    Dual:         true,
//	    FTActivation: tensor.SCReLU,
//	    Layers:       []nn.LayerConfig{{Size: 16, Activation: tensor.CReLU}, {Size: 1}},
//	    Buckets:      8,
//	    MaxBatch:     16384,
//	}
//	net, err := nn.New(cpu.New(), cfg)
package nn

import (
	"github.com/born-ml/nnue/internal/nn"
	"github.com/born-ml/nnue/tensor"
)

// Config describes a network architecture.
type Config = nn.Config

// LayerConfig describes one dense layer.
type LayerConfig = nn.LayerConfig

// Network is a trainable NNUE network bound to a backend.
type Network = nn.Network

// ErrConfig is returned for invalid architectures.
var ErrConfig = nn.ErrConfig

// New allocates and initializes a network on backend.
func New(backend tensor.Backend, cfg Config) (*Network, error) {
	return nn.New(backend, cfg)
}

// Simple returns the dual-perspective SCReLU architecture (inputs -> hidden)x2 -> 1.
func Simple(inputs, maxActive, hidden, maxBatch int) Config {
	return nn.Simple(inputs, maxActive, hidden, maxBatch)
}
