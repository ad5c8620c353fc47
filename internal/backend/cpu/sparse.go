package cpu

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// SparseAffine computes out[b] = bias + Σ_{f in active(b)} W[f] where W is
// (inputs, n) and rows are selected by the sample's feature indices.
// A sample with no active features gets the bias.
func (cpu *CPUBackend) SparseAffine(w, bias *tensor.Dense, in *tensor.Features, out *tensor.Dense) error {
	const kernel = "sparse_affine_forward"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckSparse(kernel, w, bias, out, 1); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "in", in, out.Rows(), w.Rows()); err != nil {
		return err
	}

	cpu.forRange(out.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			accumulateRows(out.Row(b), w, bias.Data(), in.Sample(b))
		}
	})
	return nil
}

// SparseAffineDual runs the transform over two feature streams that share W
// and bias. Stream stm fills columns [0, n) and nstm fills [n, 2n) of out.
func (cpu *CPUBackend) SparseAffineDual(w, bias *tensor.Dense, stm, nstm *tensor.Features, out *tensor.Dense) error {
	const kernel = "sparse_affine_dual_forward"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckSparse(kernel, w, bias, out, 2); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "stm", stm, out.Rows(), w.Rows()); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "nstm", nstm, out.Rows(), w.Rows()); err != nil {
		return err
	}

	n := w.Cols()
	cpu.forRange(out.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			row := out.Row(b)
			accumulateRows(row[:n], w, bias.Data(), stm.Sample(b))
			accumulateRows(row[n:], w, bias.Data(), nstm.Sample(b))
		}
	})
	return nil
}

// SparseAffineBackward adds err[b]+ftReg·out[b] into wGrad rows of the active
// features of sample b and into biasGrad.
func (cpu *CPUBackend) SparseAffineBackward(wGrad, biasGrad *tensor.Dense, in *tensor.Features, errs, out *tensor.Dense, ftReg float32) error {
	const kernel = "sparse_affine_backward"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckSparseBackward(kernel, wGrad, biasGrad, errs, out, 1); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "in", in, errs.Rows(), wGrad.Rows()); err != nil {
		return err
	}

	n := wGrad.Cols()
	// Columns are partitioned across workers: every sample may touch every
	// gradient row, but a worker only writes its own column block.
	cpu.forRange(n, func(lo, hi int) {
		for b := 0; b < errs.Rows(); b++ {
			scatterRows(wGrad, biasGrad.Data(), in.Sample(b), errs.Row(b), out.Row(b), ftReg, lo, hi)
		}
	})
	return nil
}

// SparseAffineDualBackward is the backward pass of SparseAffineDual. Both
// halves of errs accumulate into the shared gradient.
func (cpu *CPUBackend) SparseAffineDualBackward(wGrad, biasGrad *tensor.Dense, stm, nstm *tensor.Features, errs, out *tensor.Dense, ftReg float32) error {
	const kernel = "sparse_affine_dual_backward"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckSparseBackward(kernel, wGrad, biasGrad, errs, out, 2); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "stm", stm, errs.Rows(), wGrad.Rows()); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "nstm", nstm, errs.Rows(), wGrad.Rows()); err != nil {
		return err
	}

	n := wGrad.Cols()
	cpu.forRange(n, func(lo, hi int) {
		for b := 0; b < errs.Rows(); b++ {
			er, or := errs.Row(b), out.Row(b)
			scatterRows(wGrad, biasGrad.Data(), stm.Sample(b), er[:n], or[:n], ftReg, lo, hi)
			scatterRows(wGrad, biasGrad.Data(), nstm.Sample(b), er[n:], or[n:], ftReg, lo, hi)
		}
	})
	return nil
}

func accumulateRows(dst []float32, w *tensor.Dense, bias []float32, active []int32) {
	copy(dst, bias)
	for _, f := range active {
		if f == tensor.Sentinel {
			continue
		}
		for i, v := range w.Row(int(f)) {
			dst[i] += v
		}
	}
}

func scatterRows(wGrad *tensor.Dense, biasGrad []float32, active []int32, errs, out []float32, ftReg float32, lo, hi int) {
	for j := lo; j < hi; j++ {
		e := errs[j] + ftReg*out[j]
		if e == 0 {
			continue
		}
		biasGrad[j] += e
		for _, f := range active {
			if f == tensor.Sentinel {
				continue
			}
			wGrad.Row(int(f))[j] += e
		}
	}
}
