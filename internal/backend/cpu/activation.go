package cpu

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// Activate sets y = f(x) elementwise. y may alias x.
func (cpu *CPUBackend) Activate(act tensor.Activation, x, y *tensor.Dense) error {
	const kernel = "activate"
	if err := cpu.checkActivation(kernel, act, x, y); err != nil {
		return err
	}

	f := forwardFunc(act, cpu.cfg.LeakySlope)
	src, dst := x.Data(), y.Data()
	cpu.forRange(len(src), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			dst[i] = f(src[i])
		}
	})
	return nil
}

// ActivateBackward scales grad in place by f'(x), where x is the
// pre-activation input of the forward pass.
func (cpu *CPUBackend) ActivateBackward(act tensor.Activation, x, grad *tensor.Dense) error {
	const kernel = "activate_backward"
	if err := cpu.checkActivation(kernel, act, x, grad); err != nil {
		return err
	}

	df := derivativeFunc(act, cpu.cfg.LeakySlope)
	src, g := x.Data(), grad.Data()
	cpu.forRange(len(src), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			g[i] *= df(src[i])
		}
	})
	return nil
}

func (cpu *CPUBackend) checkActivation(kernel string, act tensor.Activation, x, y *tensor.Dense) error {
	if err := cpu.live(); err != nil {
		return err
	}
	return tensor.CheckActivation(kernel, act, x, y)
}

// forwardFunc returns the scalar forward function of act.
func forwardFunc(act tensor.Activation, slope float32) func(float32) float32 {
	switch act {
	case tensor.ReLU:
		return func(x float32) float32 { return max(x, 0) }
	case tensor.CReLU:
		return func(x float32) float32 { return min(max(x, 0), 1) }
	case tensor.SCReLU:
		return func(x float32) float32 {
			c := min(max(x, 0), 1)
			return c * c
		}
	case tensor.SqrReLU:
		return func(x float32) float32 {
			c := max(x, 0)
			return c * c
		}
	default:
		return func(x float32) float32 {
			if x > 0 {
				return x * x
			}
			return slope * x * x
		}
	}
}

// derivativeFunc returns f' of act. Saturated regions and the clip boundaries
// themselves have zero derivative.
func derivativeFunc(act tensor.Activation, slope float32) func(float32) float32 {
	switch act {
	case tensor.ReLU:
		return func(x float32) float32 {
			if x > 0 {
				return 1
			}
			return 0
		}
	case tensor.CReLU:
		return func(x float32) float32 {
			if x > 0 && x < 1 {
				return 1
			}
			return 0
		}
	case tensor.SCReLU:
		return func(x float32) float32 {
			if x > 0 && x < 1 {
				return 2 * x
			}
			return 0
		}
	case tensor.SqrReLU:
		return func(x float32) float32 {
			if x > 0 {
				return 2 * x
			}
			return 0
		}
	default:
		return func(x float32) float32 {
			if x > 0 {
				return 2 * x
			}
			return 2 * slope * x
		}
	}
}
