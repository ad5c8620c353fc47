package cpu

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// Select copies slice buckets[b] of each candidate row into out[b].
// in is (B, k·n) with one candidate set per sample, or (1, k·n) for a table
// shared by the whole batch. out is (B, n).
func (cpu *CPUBackend) Select(in *tensor.Dense, buckets []int, out *tensor.Dense) error {
	const kernel = "select_forward"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckSelect(kernel, in, buckets, out); err != nil {
		return err
	}

	n := out.Cols()
	shared := in.Rows() == 1 && out.Rows() != 1
	cpu.forRange(out.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			src := in.Data()
			if !shared {
				src = in.Row(b)
			}
			off := buckets[b] * n
			copy(out.Row(b), src[off:off+n])
		}
	})
	return nil
}

// SelectBackward adds grad[b] into the slice of inGrad that Select read for
// sample b. Other buckets are left untouched. A one-row inGrad collects the
// sum over the batch.
func (cpu *CPUBackend) SelectBackward(grad *tensor.Dense, buckets []int, inGrad *tensor.Dense) error {
	const kernel = "select_backward"
	if err := cpu.live(); err != nil {
		return err
	}
	if err := tensor.CheckSelect(kernel, inGrad, buckets, grad); err != nil {
		return err
	}

	n := grad.Cols()
	if inGrad.Rows() == 1 && grad.Rows() != 1 {
		dst := inGrad.Data()
		// Workers own columns of the slice so concurrent samples never collide.
		cpu.forRange(n, func(lo, hi int) {
			for b, bucket := range buckets {
				gr := grad.Row(b)
				off := bucket * n
				for j := lo; j < hi; j++ {
					dst[off+j] += gr[j]
				}
			}
		})
		return nil
	}

	cpu.forRange(grad.Rows(), func(lo, hi int) {
		for b := lo; b < hi; b++ {
			gr, dr := grad.Row(b), inGrad.Row(b)
			off := buckets[b] * n
			for j, g := range gr {
				dr[off+j] += g
			}
		}
	})
	return nil
}
