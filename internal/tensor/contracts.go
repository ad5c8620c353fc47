package tensor

// Shared argument checks. Every backend runs these before touching a buffer so
// that contract violations are reported identically.

// CheckAdamW validates an update over p.
func CheckAdamW(kernel string, p *Params, args AdamWArgs) error {
	if p == nil {
		return Violation(kernel, "params present", ErrInvalidArgument, "nil params")
	}
	if err := p.Validate(); err != nil {
		return &ContractError{Kernel: kernel, Invariant: "parallel arrays share one length", Details: err.Error(), Err: ErrShapeMismatch}
	}
	if !(args.MinWeight <= args.MaxWeight) {
		return Violation(kernel, "min_weight <= max_weight", ErrInvalidArgument,
			"[%v, %v]", args.MinWeight, args.MaxWeight)
	}
	if !(args.Eps > 0) {
		return Violation(kernel, "eps > 0", ErrInvalidArgument, "eps %v", args.Eps)
	}
	return nil
}

// CheckLoss validates the loss operands, which all share the shape of pred.
func CheckLoss(kernel string, pred, target, grad, loss *Dense, power float32) error {
	if pred == nil {
		return Violation(kernel, "pred present", ErrInvalidArgument, "nil buffer")
	}
	if !(power > 0) {
		return Violation(kernel, "power > 0", ErrInvalidArgument, "power %v", power)
	}
	for _, c := range []struct {
		name string
		d    *Dense
	}{{"target", target}, {"grad", grad}, {"loss", loss}} {
		if err := CheckShape(kernel, c.name, c.d, pred.Rows(), pred.Cols()); err != nil {
			return err
		}
	}
	return nil
}

// CheckSelect validates a bucket selection between candidates (B or 1 rows of
// k·n) and selected (B x n).
func CheckSelect(kernel string, candidates *Dense, buckets []int, selected *Dense) error {
	if candidates == nil || selected == nil {
		return Violation(kernel, "operands present", ErrInvalidArgument, "nil buffer")
	}
	n := selected.Cols()
	if n == 0 || candidates.Cols()%n != 0 {
		return Violation(kernel, "candidate width is a multiple of output width", ErrShapeMismatch,
			"%d candidates for output width %d", candidates.Cols(), n)
	}
	if candidates.Rows() != 1 && candidates.Rows() != selected.Rows() {
		return Violation(kernel, "one candidate row per sample or one shared row", ErrShapeMismatch,
			"%d candidate rows for %d samples", candidates.Rows(), selected.Rows())
	}
	return CheckBuckets(kernel, buckets, selected.Rows(), candidates.Cols()/n)
}

// CheckSparse validates a sparse affine forward over streams input streams.
func CheckSparse(kernel string, w, bias, out *Dense, streams int) error {
	if w == nil || out == nil {
		return Violation(kernel, "operands present", ErrInvalidArgument, "nil buffer")
	}
	if err := CheckShape(kernel, "bias", bias, 1, w.Cols()); err != nil {
		return err
	}
	return CheckShape(kernel, "out", out, out.Rows(), streams*w.Cols())
}

// CheckSparseBackward validates a sparse affine backward over streams input streams.
func CheckSparseBackward(kernel string, wGrad, biasGrad, errs, out *Dense, streams int) error {
	if wGrad == nil || errs == nil {
		return Violation(kernel, "operands present", ErrInvalidArgument, "nil buffer")
	}
	n := wGrad.Cols()
	if err := CheckShape(kernel, "bias_grad", biasGrad, 1, n); err != nil {
		return err
	}
	if err := CheckShape(kernel, "errors", errs, errs.Rows(), streams*n); err != nil {
		return err
	}
	return CheckShape(kernel, "out", out, errs.Rows(), streams*n)
}

// CheckActivation validates an elementwise activation from x into y.
func CheckActivation(kernel string, act Activation, x, y *Dense) error {
	if !act.Valid() {
		return Violation(kernel, "known activation", ErrInvalidArgument, "activation %d", int(act))
	}
	if x == nil {
		return Violation(kernel, "x present", ErrInvalidArgument, "nil buffer")
	}
	return CheckShape(kernel, "output", y, x.Rows(), x.Cols())
}
