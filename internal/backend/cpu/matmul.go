package cpu

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// MatMul computes Y[b] = A·X[b] for every sample b.
// A is (out, in), X is (B, in), Y is (B, out). Y is overwritten.
func (cpu *CPUBackend) MatMul(a, x, y *tensor.Dense) error {
	const kernel = "matmul"
	if err := cpu.live(); err != nil {
		return err
	}
	if a == nil || x == nil {
		return tensor.Violation(kernel, "operands present", tensor.ErrInvalidArgument, "nil buffer")
	}
	out, in := a.Rows(), a.Cols()
	if err := tensor.CheckShape(kernel, "x", x, x.Rows(), in); err != nil {
		return err
	}
	if err := tensor.CheckShape(kernel, "y", y, x.Rows(), out); err != nil {
		return err
	}

	w := a.Data()
	cpu.forRange(x.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			xr, yr := x.Row(b), y.Row(b)
			for o := 0; o < out; o++ {
				wr := w[o*in : (o+1)*in]
				var sum float32
				for i, v := range xr {
					sum += wr[i] * v
				}
				yr[o] = sum
			}
		}
	})
	return nil
}

// MatMulT computes X[b] = Aᵀ·Y[b] reading A in place.
// A is (out, in), Y is (B, out), X is (B, in). X is overwritten.
func (cpu *CPUBackend) MatMulT(a, y, x *tensor.Dense) error {
	const kernel = "matmul_transposed"
	if err := cpu.live(); err != nil {
		return err
	}
	if a == nil || y == nil {
		return tensor.Violation(kernel, "operands present", tensor.ErrInvalidArgument, "nil buffer")
	}
	out, in := a.Rows(), a.Cols()
	if err := tensor.CheckShape(kernel, "y", y, y.Rows(), out); err != nil {
		return err
	}
	if err := tensor.CheckShape(kernel, "x", x, y.Rows(), in); err != nil {
		return err
	}

	w := a.Data()
	cpu.forRange(y.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			yr, xr := y.Row(b), x.Row(b)
			clear(xr)
			for o, g := range yr {
				if g == 0 {
					continue
				}
				wr := w[o*in : (o+1)*in]
				for i := range xr {
					xr[i] += wr[i] * g
				}
			}
		}
	})
	return nil
}

// OuterAccumulate adds Σ_b yGrad[b] ⊗ x[b] into aGrad.
// yGrad is (B, out), x is (B, in), aGrad is (out, in).
func (cpu *CPUBackend) OuterAccumulate(yGrad, x, aGrad *tensor.Dense) error {
	const kernel = "outer_accumulate"
	if err := cpu.live(); err != nil {
		return err
	}
	if yGrad == nil || x == nil {
		return tensor.Violation(kernel, "operands present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "x", x, yGrad.Rows(), x.Cols()); err != nil {
		return err
	}
	out, in := yGrad.Cols(), x.Cols()
	if err := tensor.CheckShape(kernel, "a_grad", aGrad, out, in); err != nil {
		return err
	}

	g := aGrad.Data()
	batch := yGrad.Rows()
	// Each worker owns a block of gradient rows.
	cpu.forRange(out, func(lo, hi int) {
		for b := 0; b < batch; b++ {
			yr, xr := yGrad.Row(b), x.Row(b)
			for o := lo; o < hi; o++ {
				e := yr[o]
				if e == 0 {
					continue
				}
				gr := g[o*in : (o+1)*in]
				for i, v := range xr {
					gr[i] += e * v
				}
			}
		}
	})
	return nil
}

// ReduceSum adds Σ_b x[b] into dst (1, n), computed as xᵀ·ones.
func (cpu *CPUBackend) ReduceSum(x, dst *tensor.Dense) error {
	const kernel = "reduce_sum"
	if x == nil {
		return tensor.Violation(kernel, "x present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "dst", dst, 1, x.Cols()); err != nil {
		return err
	}
	ones, err := cpu.onesVector(x.Rows())
	if err != nil {
		return err
	}

	n := x.Cols()
	src, out := x.Data(), dst.Data()
	cpu.forRange(n, func(lo, hi int) {
		for j := lo; j < hi; j++ {
			var sum float32
			for b, one := range ones {
				sum += src[b*n+j] * one
			}
			out[j] += sum
		}
	})
	return nil
}

// AddTo computes dst += src elementwise.
func (cpu *CPUBackend) AddTo(src, dst *tensor.Dense) error {
	const kernel = "add_to"
	if err := cpu.live(); err != nil {
		return err
	}
	if src == nil {
		return tensor.Violation(kernel, "src present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "dst", dst, src.Rows(), src.Cols()); err != nil {
		return err
	}

	s, d := src.Data(), dst.Data()
	cpu.forRange(len(d), func(lo, hi int) {
		for i := lo; i < hi; i++ {
			d[i] += s[i]
		}
	})
	return nil
}

// AddBias adds the (1, n) bias to every row of y.
func (cpu *CPUBackend) AddBias(bias, y *tensor.Dense) error {
	const kernel = "add_bias"
	if err := cpu.live(); err != nil {
		return err
	}
	if y == nil {
		return tensor.Violation(kernel, "y present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "bias", bias, 1, y.Cols()); err != nil {
		return err
	}

	bv := bias.Data()
	cpu.forRange(y.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			yr := y.Row(b)
			for i, v := range bv {
				yr[i] += v
			}
		}
	})
	return nil
}

// PairwiseMul sets out[b][i] = in[b][i]·in[b][i+n] where in is (B, 2n).
func (cpu *CPUBackend) PairwiseMul(in, out *tensor.Dense) error {
	const kernel = "pairwise_mul"
	if err := cpu.live(); err != nil {
		return err
	}
	if out == nil {
		return tensor.Violation(kernel, "out present", tensor.ErrInvalidArgument, "nil buffer")
	}
	n := out.Cols()
	if err := tensor.CheckShape(kernel, "in", in, out.Rows(), 2*n); err != nil {
		return err
	}

	cpu.forRange(out.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			ir, or := in.Row(b), out.Row(b)
			for i := range or {
				or[i] = ir[i] * ir[i+n]
			}
		}
	})
	return nil
}

// PairwiseMulBackward adds d(out)/d(in)·outGrad into inGrad.
func (cpu *CPUBackend) PairwiseMulBackward(in, outGrad, inGrad *tensor.Dense) error {
	const kernel = "pairwise_mul_backward"
	if err := cpu.live(); err != nil {
		return err
	}
	if outGrad == nil {
		return tensor.Violation(kernel, "out_grad present", tensor.ErrInvalidArgument, "nil buffer")
	}
	n := outGrad.Cols()
	if err := tensor.CheckShape(kernel, "in", in, outGrad.Rows(), 2*n); err != nil {
		return err
	}
	if err := tensor.CheckShape(kernel, "in_grad", inGrad, outGrad.Rows(), 2*n); err != nil {
		return err
	}

	cpu.forRange(outGrad.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			ir, gr, dr := in.Row(b), outGrad.Row(b), inGrad.Row(b)
			for i, g := range gr {
				dr[i] += g * ir[i+n]
				dr[i+n] += g * ir[i]
			}
		}
	})
	return nil
}
