package tensor

// Device identifies where a backend executes kernels.
type Device int

// Supported compute devices.
const (
	CPU Device = iota
	WebGPU
)

// String returns a human-readable device name.
func (d Device) String() string {
	switch d {
	case CPU:
		return "CPU"
	case WebGPU:
		return "WebGPU"
	default:
		return "Unknown"
	}
}

// Activation selects an elementwise nonlinearity.
type Activation int

// Supported activations.
const (
	ReLU       Activation = iota // max(x, 0)
	CReLU                        // clamp(x, 0, 1)
	SCReLU                       // clamp(x, 0, 1)^2
	SqrReLU                      // max(x, 0)^2
	LeakySReLU                   // x^2 for x > 0, slope*x^2 otherwise
)

// String returns the activation name.
func (a Activation) String() string {
	switch a {
	case ReLU:
		return "ReLU"
	case CReLU:
		return "CReLU"
	case SCReLU:
		return "SCReLU"
	case SqrReLU:
		return "SqrReLU"
	case LeakySReLU:
		return "LeakySReLU"
	default:
		return "Unknown"
	}
}

// Valid reports whether a names a supported activation.
func (a Activation) Valid() bool {
	return a >= ReLU && a <= LeakySReLU
}

// AdamWArgs parameterizes one fused AdamW update.
type AdamWArgs struct {
	LR        float32 // Effective learning rate for this step
	Beta1     float32 // First-moment decay
	Beta2     float32 // Second-moment decay
	Eps       float32 // Denominator guard
	Decay     float32 // Decoupled weight decay
	MinWeight float32 // Lower clip bound
	MaxWeight float32 // Upper clip bound
	GradScale float32 // Multiplier applied to raw gradients
}

// Backend is the compute context every training kernel is issued through.
//
// Implementations:
//   - cpu: sequential or multi-threaded reference kernels
//   - webgpu: WGSL compute shaders
//
// Both implement identical numeric contracts. Shapes below use B for the batch
// size (rows of the batched buffers).
//
// Outputs documented as accumulators add into their existing contents; callers
// zero them before the first use in a step. Every other output is overwritten.
type Backend interface {
	// Name returns the backend name.
	Name() string

	// Device returns the compute device.
	Device() Device

	// MatMul computes Y[b] = A·X[b]. A is out x in, X is B x in, Y is B x out.
	MatMul(a, x, y *Dense) error

	// MatMulT computes X[b] = Aᵀ·Y[b] without transposing A.
	// A is out x in, Y is B x out, X is B x in.
	MatMulT(a, y, x *Dense) error

	// OuterAccumulate adds Σ_b Y[b] ⊗ X[b] into aGrad (accumulator).
	// yGrad is B x out, X is B x in, aGrad is out x in.
	OuterAccumulate(yGrad, x, aGrad *Dense) error

	// ReduceSum adds the column sums of X (B x n) into dst (1 x n, accumulator).
	ReduceSum(x, dst *Dense) error

	// AddTo adds src into dst elementwise (accumulator).
	AddTo(src, dst *Dense) error

	// AddBias adds the 1 x n row bias to every row of y (accumulator).
	AddBias(bias, y *Dense) error

	// PairwiseMul sets out[b][i] = in[b][i]·in[b][i+n]. in is B x 2n, out is B x n.
	PairwiseMul(in, out *Dense) error

	// PairwiseMulBackward adds the gradient of PairwiseMul into inGrad (accumulator).
	PairwiseMulBackward(in, outGrad, inGrad *Dense) error

	// SparseAffine sets out[b] = bias + Σ_{f in active(b)} W[f].
	// W is inputs x n, bias is 1 x n, out is B x n.
	SparseAffine(w, bias *Dense, in *Features, out *Dense) error

	// SparseAffineDual runs SparseAffine on two streams sharing W and bias.
	// out is B x 2n: columns [0,n) from stm, [n,2n) from nstm.
	SparseAffineDual(w, bias *Dense, stm, nstm *Features, out *Dense) error

	// SparseAffineBackward adds err[b] + ftReg·out[b] into the gradient rows of
	// the active features of sample b and into biasGrad (accumulators).
	SparseAffineBackward(wGrad, biasGrad *Dense, in *Features, errs, out *Dense, ftReg float32) error

	// SparseAffineDualBackward is the backward pass of SparseAffineDual.
	SparseAffineDualBackward(wGrad, biasGrad *Dense, stm, nstm *Features, errs, out *Dense, ftReg float32) error

	// Activate sets y = f(x) elementwise. y may alias x.
	Activate(act Activation, x, y *Dense) error

	// ActivateBackward scales grad in place by f'(x).
	ActivateBackward(act Activation, x, grad *Dense) error

	// Select copies bucket slice buckets[b] of in into out[b]. in is B x (k·n)
	// or 1 x (k·n) for a shared table, out is B x n.
	Select(in *Dense, buckets []int, out *Dense) error

	// SelectBackward adds grad[b] into the selected slice of inGrad (accumulator).
	// A one-row inGrad receives the sum over the batch.
	SelectBackward(grad *Dense, buckets []int, inGrad *Dense) error

	// SigmoidMPE writes loss = |σ(pred)-target|^power and its gradient with
	// respect to pred. All four buffers share one shape.
	SigmoidMPE(pred, target, grad, loss *Dense, power float32) error

	// AdamW applies one fused decoupled-weight-decay Adam step over p and clips
	// every value into [MinWeight, MaxWeight].
	AdamW(p *Params, args AdamWArgs) error

	// Release frees device resources. The backend is unusable afterwards.
	Release()
}
