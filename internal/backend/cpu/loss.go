package cpu

import (
	"math"

	"github.com/born-ml/nnue/internal/tensor"
)

// SigmoidMPE computes the mean power error between σ(pred) and target:
//
//	loss = |σ(pred) - target|^power
//	grad = power · |d|^(power-1) · sign(d) · σ(pred)·(1-σ(pred))
//
// A zero difference yields a zero gradient for every power.
func (cpu *CPUBackend) SigmoidMPE(pred, target, grad, loss *tensor.Dense, power float32) error {
	const kernel = "sigmoid_mpe"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckLoss(kernel, pred, target, grad, loss, power); err != nil {
		return err
	}

	p, t, g, l := pred.Data(), target.Data(), grad.Data(), loss.Data()
	cpu.forRange(len(p), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			g[i], l[i] = sigmoidMPE(p[i], t[i], power)
		}
	})
	return nil
}

func sigmoidMPE(pred, target, power float32) (grad, loss float32) {
	s := 1 / (1 + math.Exp(-float64(pred)))
	d := s - float64(target)
	a := math.Abs(d)
	loss = float32(math.Pow(a, float64(power)))
	if d == 0 {
		return 0, loss
	}
	g := float64(power) * math.Pow(a, float64(power)-1) * s * (1 - s)
	if d < 0 {
		g = -g
	}
	return float32(g), loss
}
