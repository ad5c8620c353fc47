// Copyright 2025 Born ML Framework. All rights reserved.
// Use of this source code is governed by an Apache 2.0
// license that can be found in the LICENSE file.

// Package optim provides the AdamW optimizer used to train networks.
package optim

import (
	"github.com/born-ml/nnue/internal/optim"
)

// Optimizer updates a parameter vector from its accumulated gradients.
type Optimizer = optim.Optimizer

// AdamW is decoupled-weight-decay Adam with weight clipping.
type AdamW = optim.AdamW

// AdamWConfig holds the AdamW hyperparameters.
type AdamWConfig = optim.AdamWConfig

// NewAdamW creates an AdamW optimizer.
func NewAdamW(cfg AdamWConfig) (*AdamW, error) {
	return optim.NewAdamW(cfg)
}

// DefaultAdamWConfig returns the standard hyperparameters.
func DefaultAdamWConfig() AdamWConfig {
	return optim.DefaultAdamWConfig()
}
