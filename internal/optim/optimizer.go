// Package optim drives the fused parameter-update kernel.
//
// The optimizer owns hyperparameters and the step counter; the numeric update
// itself runs on the backend over the flattened parameter vector:
//
//	opt, _ := optim.NewAdamW(optim.AdamWConfig{Decay: 0.01})
//	for step := range steps {
//	    params.ZeroGrad()
//	    // forward, loss, backward ...
//	    if err := opt.Step(backend, params, lr); err != nil {
//	        return err
//	    }
//	}
package optim

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// Optimizer updates a parameter vector from its accumulated gradients.
type Optimizer interface {
	// Step applies one update with the given learning rate. The gradient is
	// read but not cleared.
	Step(backend tensor.Backend, params *tensor.Params, lr float32) error

	// Steps returns the number of successful updates.
	Steps() int64
}
