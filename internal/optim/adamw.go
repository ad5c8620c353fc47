package optim

import (
	"fmt"

	"github.com/born-ml/nnue/internal/tensor"
)

// AdamWConfig holds the per-run AdamW hyperparameters.
//
// There is no bias correction; the moments start at zero and the weight clip
// keeps early steps bounded.
type AdamWConfig struct {
	Beta1     float32 // First-moment decay (default: 0.9)
	Beta2     float32 // Second-moment decay (default: 0.999)
	Eps       float32 // Denominator guard (default: 1e-8)
	Decay     float32 // Decoupled weight decay, zero disables it
	MinWeight float32 // Lower clip bound (default: -1.98)
	MaxWeight float32 // Upper clip bound (default: 1.98)
	GradScale float32 // Gradient multiplier, e.g. 1/batch for mean loss (default: 1)
}

// DefaultAdamWConfig returns the configuration used by the reference networks.
func DefaultAdamWConfig() AdamWConfig {
	return AdamWConfig{
		Beta1:     0.9,
		Beta2:     0.999,
		Eps:       1e-8,
		Decay:     0.01,
		MinWeight: -1.98,
		MaxWeight: 1.98,
		GradScale: 1,
	}
}

// withDefaults fills unset fields. Decay is left as given since zero is a
// meaningful value.
func (c AdamWConfig) withDefaults() AdamWConfig {
	d := DefaultAdamWConfig()
	if c.Beta1 == 0 {
		c.Beta1 = d.Beta1
	}
	if c.Beta2 == 0 {
		c.Beta2 = d.Beta2
	}
	if c.Eps == 0 {
		c.Eps = d.Eps
	}
	if c.MinWeight == 0 && c.MaxWeight == 0 {
		c.MinWeight, c.MaxWeight = d.MinWeight, d.MaxWeight
	}
	if c.GradScale == 0 {
		c.GradScale = d.GradScale
	}
	return c
}

// Validate checks the hyperparameters.
func (c AdamWConfig) Validate() error {
	if c.Beta1 < 0 || c.Beta1 >= 1 || c.Beta2 < 0 || c.Beta2 >= 1 {
		return fmt.Errorf("optim: betas must lie in [0, 1), got %v, %v", c.Beta1, c.Beta2)
	}
	if c.MinWeight > c.MaxWeight {
		return fmt.Errorf("optim: min weight %v exceeds max weight %v", c.MinWeight, c.MaxWeight)
	}
	if c.Decay < 0 {
		return fmt.Errorf("optim: negative decay %v", c.Decay)
	}
	return nil
}

// AdamW is decoupled-weight-decay Adam over a flattened parameter vector.
type AdamW struct {
	cfg   AdamWConfig
	steps int64
}

var _ Optimizer = (*AdamW)(nil)

// NewAdamW creates an AdamW optimizer. Unset fields take DefaultAdamWConfig
// values except Decay.
func NewAdamW(cfg AdamWConfig) (*AdamW, error) {
	cfg = cfg.withDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &AdamW{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (a *AdamW) Config() AdamWConfig {
	return a.cfg
}

// Args returns the kernel arguments for a step at learning rate lr.
func (a *AdamW) Args(lr float32) tensor.AdamWArgs {
	return tensor.AdamWArgs{
		LR:        lr,
		Beta1:     a.cfg.Beta1,
		Beta2:     a.cfg.Beta2,
		Eps:       a.cfg.Eps,
		Decay:     a.cfg.Decay,
		MinWeight: a.cfg.MinWeight,
		MaxWeight: a.cfg.MaxWeight,
		GradScale: a.cfg.GradScale,
	}
}

// SetGradScale changes the gradient multiplier, e.g. when the batch size changes.
func (a *AdamW) SetGradScale(scale float32) {
	a.cfg.GradScale = scale
}

// Step runs the fused update kernel once. The step counter only advances on success.
func (a *AdamW) Step(backend tensor.Backend, params *tensor.Params, lr float32) error {
	if lr < 0 {
		return fmt.Errorf("optim: negative learning rate %v", lr)
	}
	if err := backend.AdamW(params, a.Args(lr)); err != nil {
		return fmt.Errorf("optim: adamw step %d: %w", a.steps+1, err)
	}
	a.steps++
	return nil
}

// Steps returns the number of successful updates.
func (a *AdamW) Steps() int64 {
	return a.steps
}

// Restore sets the step counter, e.g. after loading a checkpoint.
func (a *AdamW) Restore(steps int64) {
	a.steps = steps
}
