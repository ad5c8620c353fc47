//go:build windows

package webgpu

import (
	"github.com/born-ml/nnue/internal/tensor"
)

// MatMul computes Y[b] = A·X[b]. Y is overwritten.
func (b *Backend) MatMul(a, x, y *tensor.Dense) error {
	const kernel = "matmul"
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

	params := uniforms{}.u32(y.Len()).u32(out).u32(in)
	return b.dispatch(kernel, matmulShader, y.Len(), params,
		input(a.Data()), input(x.Data()), output(y.Data()))
}

// MatMulT computes X[b] = Aᵀ·Y[b] reading A in place. X is overwritten.
func (b *Backend) MatMulT(a, y, x *tensor.Dense) error {
	const kernel = "matmul_transposed"
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

	params := uniforms{}.u32(x.Len()).u32(out).u32(in)
	return b.dispatch(kernel, matmulTransposedShader, x.Len(), params,
		input(a.Data()), input(y.Data()), output(x.Data()))
}

// OuterAccumulate adds Σ_b yGrad[b] ⊗ x[b] into aGrad.
func (b *Backend) OuterAccumulate(yGrad, x, aGrad *tensor.Dense) error {
	const kernel = "outer_accumulate"
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

	params := uniforms{}.u32(aGrad.Len()).u32(yGrad.Rows()).u32(out).u32(in)
	return b.dispatch(kernel, outerAccumulateShader, aGrad.Len(), params,
		input(yGrad.Data()), input(x.Data()), accumulate(aGrad.Data()))
}

// ReduceSum adds Σ_b x[b] into dst, computed as xᵀ·ones.
func (b *Backend) ReduceSum(x, dst *tensor.Dense) error {
	const kernel = "reduce_sum"
	if x == nil {
		return tensor.Violation(kernel, "x present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "dst", dst, 1, x.Cols()); err != nil {
		return err
	}

	params := uniforms{}.u32(x.Cols()).u32(x.Rows())
	return b.dispatch(kernel, reduceSumShader, x.Cols(), params,
		input(x.Data()), input(b.onesVector(x.Rows())), accumulate(dst.Data()))
}

// AddTo computes dst += src.
func (b *Backend) AddTo(src, dst *tensor.Dense) error {
	const kernel = "add_to"
	if src == nil {
		return tensor.Violation(kernel, "src present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "dst", dst, src.Rows(), src.Cols()); err != nil {
		return err
	}

	params := uniforms{}.u32(dst.Len())
	return b.dispatch(kernel, addToShader, dst.Len(), params,
		input(src.Data()), accumulate(dst.Data()))
}

// AddBias adds the (1, n) bias to every row of y.
func (b *Backend) AddBias(bias, y *tensor.Dense) error {
	const kernel = "add_bias"
	if y == nil {
		return tensor.Violation(kernel, "y present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "bias", bias, 1, y.Cols()); err != nil {
		return err
	}

	params := uniforms{}.u32(y.Len()).u32(y.Cols())
	return b.dispatch(kernel, addBiasShader, y.Len(), params,
		input(bias.Data()), accumulate(y.Data()))
}

// PairwiseMul sets out[b][i] = in[b][i]·in[b][i+n].
func (b *Backend) PairwiseMul(in, out *tensor.Dense) error {
	const kernel = "pairwise_mul"
	if out == nil {
		return tensor.Violation(kernel, "out present", tensor.ErrInvalidArgument, "nil buffer")
	}
	if err := tensor.CheckShape(kernel, "in", in, out.Rows(), 2*out.Cols()); err != nil {
		return err
	}

	params := uniforms{}.u32(out.Len()).u32(out.Cols())
	return b.dispatch(kernel, pairwiseMulShader, out.Len(), params,
		input(in.Data()), output(out.Data()))
}

// PairwiseMulBackward adds the gradient of PairwiseMul into inGrad.
func (b *Backend) PairwiseMulBackward(in, outGrad, inGrad *tensor.Dense) error {
	const kernel = "pairwise_mul_backward"
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

	params := uniforms{}.u32(outGrad.Len()).u32(n)
	return b.dispatch(kernel, pairwiseMulBackwardShader, outGrad.Len(), params,
		input(in.Data()), input(outGrad.Data()), accumulate(inGrad.Data()))
}

// SparseAffine sets out[b] = bias + Σ W[f] over the active features of sample b.
func (b *Backend) SparseAffine(w, bias *tensor.Dense, in *tensor.Features, out *tensor.Dense) error {
	const kernel = "sparse_affine_forward"
	if err := tensor.CheckSparse(kernel, w, bias, out, 1); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "in", in, out.Rows(), w.Rows()); err != nil {
		return err
	}
	return b.sparseAffine(kernel, w, bias, out, in)
}

// SparseAffineDual runs SparseAffine over two streams sharing W and bias.
func (b *Backend) SparseAffineDual(w, bias *tensor.Dense, stm, nstm *tensor.Features, out *tensor.Dense) error {
	const kernel = "sparse_affine_dual_forward"
	if err := tensor.CheckSparse(kernel, w, bias, out, 2); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "stm", stm, out.Rows(), w.Rows()); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "nstm", nstm, out.Rows(), w.Rows()); err != nil {
		return err
	}
	return b.sparseAffine(kernel, w, bias, out, stm, nstm)
}

func (b *Backend) sparseAffine(kernel string, w, bias, out *tensor.Dense, streams ...*tensor.Features) error {
	indices, maxActive := packStreams(out.Rows(), streams)
	params := uniforms{}.
		u32(out.Len()).
		u32(out.Rows()).
		u32(w.Cols()).
		u32(maxActive).
		u32(len(streams))
	return b.dispatch(kernel, sparseAffineShader, out.Len(), params,
		input(w.Data()), input(bias.Data()), inputInts(indices), output(out.Data()))
}

// SparseAffineBackward adds err[b]+ftReg·out[b] into the gradient rows of the
// active features of sample b and into biasGrad.
func (b *Backend) SparseAffineBackward(wGrad, biasGrad *tensor.Dense, in *tensor.Features, errs, out *tensor.Dense, ftReg float32) error {
	const kernel = "sparse_affine_backward"
	if err := tensor.CheckSparseBackward(kernel, wGrad, biasGrad, errs, out, 1); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "in", in, errs.Rows(), wGrad.Rows()); err != nil {
		return err
	}
	return b.sparseAffineBackward(kernel, wGrad, biasGrad, errs, out, ftReg, in)
}

// SparseAffineDualBackward is the backward pass of SparseAffineDual.
func (b *Backend) SparseAffineDualBackward(wGrad, biasGrad *tensor.Dense, stm, nstm *tensor.Features, errs, out *tensor.Dense, ftReg float32) error {
	const kernel = "sparse_affine_dual_backward"
	if err := tensor.CheckSparseBackward(kernel, wGrad, biasGrad, errs, out, 2); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "stm", stm, errs.Rows(), wGrad.Rows()); err != nil {
		return err
	}
	if err := tensor.CheckFeatures(kernel, "nstm", nstm, errs.Rows(), wGrad.Rows()); err != nil {
		return err
	}
	return b.sparseAffineBackward(kernel, wGrad, biasGrad, errs, out, ftReg, stm, nstm)
}

func (b *Backend) sparseAffineBackward(kernel string, wGrad, biasGrad, errs, out *tensor.Dense, ftReg float32, streams ...*tensor.Features) error {
	indices, maxActive := packStreams(errs.Rows(), streams)
	params := uniforms{}.
		u32(wGrad.Cols()).
		u32(errs.Rows()).
		u32(maxActive).
		u32(len(streams)).
		f32(ftReg)
	return b.dispatch(kernel, sparseAffineBackwardShader, wGrad.Cols(), params,
		inputInts(indices), input(errs.Data()), input(out.Data()),
		accumulate(wGrad.Data()), accumulate(biasGrad.Data()))
}

// packStreams lays the feature streams out back to back with a common slot
// count, padding short samples with tensor.Sentinel.
func packStreams(batch int, streams []*tensor.Features) ([]int32, int) {
	maxActive := 0
	for _, s := range streams {
		maxActive = max(maxActive, s.MaxActive())
	}
	indices := make([]int32, len(streams)*batch*maxActive)
	for i := range indices {
		indices[i] = tensor.Sentinel
	}
	for s, f := range streams {
		for smp := 0; smp < batch; smp++ {
			copy(indices[(s*batch+smp)*maxActive:], f.Sample(smp))
		}
	}
	return indices, maxActive
}

// Activate sets y = f(x). y may alias x.
func (b *Backend) Activate(act tensor.Activation, x, y *tensor.Dense) error {
	const kernel = "activate"
	if err := tensor.CheckActivation(kernel, act, x, y); err != nil {
		return err
	}

	params := uniforms{}.u32(x.Len()).u32(int(act)).f32(b.cfg.LeakySlope)
	return b.dispatch(kernel, activateShader, x.Len(), params,
		input(x.Data()), output(y.Data()))
}

// ActivateBackward scales grad in place by f'(x).
func (b *Backend) ActivateBackward(act tensor.Activation, x, grad *tensor.Dense) error {
	const kernel = "activate_backward"
	if err := tensor.CheckActivation(kernel, act, x, grad); err != nil {
		return err
	}

	params := uniforms{}.u32(x.Len()).u32(int(act)).f32(b.cfg.LeakySlope)
	return b.dispatch(kernel, activateBackwardShader, x.Len(), params,
		input(x.Data()), accumulate(grad.Data()))
}

// Select copies slice buckets[b] of each candidate row into out[b].
func (b *Backend) Select(in *tensor.Dense, buckets []int, out *tensor.Dense) error {
	const kernel = "select_forward"
	if err := tensor.CheckSelect(kernel, in, buckets, out); err != nil {
		return err
	}

	params := uniforms{}.
		u32(out.Len()).
		u32(out.Cols()).
		u32(in.Cols()).
		u32(sharedFlag(in, out))
	return b.dispatch(kernel, selectShader, out.Len(), params,
		input(in.Data()), inputInts(bucketIndices(buckets)), output(out.Data()))
}

// SelectBackward adds grad[b] into the slice of inGrad that Select read.
func (b *Backend) SelectBackward(grad *tensor.Dense, buckets []int, inGrad *tensor.Dense) error {
	const kernel = "select_backward"
	if err := tensor.CheckSelect(kernel, inGrad, buckets, grad); err != nil {
		return err
	}

	shared := sharedFlag(inGrad, grad)
	threads := grad.Len()
	if shared == 1 {
		threads = grad.Cols()
	}
	params := uniforms{}.
		u32(threads).
		u32(grad.Cols()).
		u32(inGrad.Cols()).
		u32(shared).
		u32(grad.Rows())
	return b.dispatch(kernel, selectBackwardShader, threads, params,
		input(grad.Data()), inputInts(bucketIndices(buckets)), accumulate(inGrad.Data()))
}

// sharedFlag is 1 when a single candidate row serves the whole batch.
func sharedFlag(candidates, selected *tensor.Dense) int {
	if candidates.Rows() == 1 && selected.Rows() != 1 {
		return 1
	}
	return 0
}

func bucketIndices(buckets []int) []int32 {
	out := make([]int32, len(buckets))
	for i, k := range buckets {
		//nolint:gosec // G115: validated against the bucket count
		out[i] = int32(k)
	}
	return out
}

// SigmoidMPE writes loss = |σ(pred)-target|^power and its gradient.
func (b *Backend) SigmoidMPE(pred, target, grad, loss *tensor.Dense, power float32) error {
	const kernel = "sigmoid_mpe"
	if err := tensor.CheckLoss(kernel, pred, target, grad, loss, power); err != nil {
		return err
	}

	params := uniforms{}.u32(pred.Len()).f32(power)
	return b.dispatch(kernel, sigmoidMPEShader, pred.Len(), params,
		input(pred.Data()), input(target.Data()), output(grad.Data()), output(loss.Data()))
}

// AdamW applies one fused AdamW step with weight clipping.
func (b *Backend) AdamW(p *tensor.Params, args tensor.AdamWArgs) error {
	const kernel = "adamw"
	if err := tensor.CheckAdamW(kernel, p, args); err != nil {
		return err
	}

	params := uniforms{}.
		u32(p.Len()).
		f32(args.LR).
		f32(args.Beta1).
		f32(args.Beta2).
		f32(args.Eps).
		f32(args.Decay).
		f32(args.MinWeight).
		f32(args.MaxWeight).
		f32(args.GradScale)
	return b.dispatch(kernel, adamwShader, p.Len(), params,
		input(p.Grads), accumulate(p.Values), accumulate(p.Momentum), accumulate(p.Velocity))
}

// onesVector returns a batch-long vector of ones, reusing the cached one.
func (b *Backend) onesVector(n int) []float32 {
	b.onesMu.Lock()
	defer b.onesMu.Unlock()
	if len(b.ones) < n {
		b.ones = make([]float32, n)
		for i := range b.ones {
			b.ones[i] = 1
		}
	}
	return b.ones[:n]
}
