package cpu

import (
	"math"

	"github.com/born-ml/nnue/internal/tensor"
)

// AdamW applies one decoupled-weight-decay Adam step to every parameter:
//
//	g = GradScale · grad
//	m = β1·m + (1-β1)·g
//	v = β2·v + (1-β2)·g²
//	θ = θ·(1 - Decay·LR) - LR·m / (sqrt(v) + Eps)
//	θ = clamp(θ, MinWeight, MaxWeight)
//
// The clamp runs on every element regardless of decay or gradient.
func (cpu *CPUBackend) AdamW(p *tensor.Params, args tensor.AdamWArgs) error {
	const kernel = "adamw"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckAdamW(kernel, p, args); err != nil {
		return err
	}

	decay := 1 - args.Decay*args.LR
	cpu.forRange(p.Len(), func(lo, hi int) {
		theta := p.Values[lo:hi]
		grads := p.Grads[lo:hi]
		m := p.Momentum[lo:hi]
		v := p.Velocity[lo:hi]
		for i := range theta {
			g := args.GradScale * grads[i]
			m[i] = args.Beta1*m[i] + (1-args.Beta1)*g
			v[i] = args.Beta2*v[i] + (1-args.Beta2)*g*g
			w := theta[i]*decay - args.LR*m[i]/(float32(math.Sqrt(float64(v[i])))+args.Eps)
			theta[i] = min(max(w, args.MinWeight), args.MaxWeight)
		}
	})
	return nil
}
