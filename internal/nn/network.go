package nn

import (
	"fmt"
	"math"
	"math/rand"

	"github.com/born-ml/nnue/internal/tensor"
)

// Network is an NNUE layer stack bound to a backend.
//
// A Network is not safe for concurrent use: forward and backward share the
// session buffers.
type Network struct {
	cfg     Config
	backend tensor.Backend
	params  *tensor.Params

	ft     *featureTransformer
	layers []*denseLayer

	// Session state between Forward and Backward.
	n          int
	stm, nstm  *tensor.Features
	buckets    []int
	output     *tensor.Dense
	lossBuf    *tensor.Dense
	lossSum    *tensor.Dense
	evalSTM    *tensor.Features
	evalNSTM   *tensor.Features
	evalBucket []int
}

// New builds a network with freshly initialized parameters.
func New(backend tensor.Backend, cfg Config) (*Network, error) {
	if backend == nil {
		return nil, fmt.Errorf("%w: nil backend", ErrConfig)
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	cfg = cfg.withDefaults()

	net := &Network{
		cfg:        cfg,
		backend:    backend,
		params:     tensor.NewParams(cfg.NumParams()),
		lossBuf:    tensor.NewDense(cfg.MaxBatch, 1),
		lossSum:    tensor.NewDense(1, 1),
		evalSTM:    tensor.NewFeatures(1, cfg.MaxActive),
		evalNSTM:   tensor.NewFeatures(1, cfg.MaxActive),
		evalBucket: make([]int, 1),
	}

	ft, offset, err := newFeatureTransformer(cfg, net.params, 0)
	if err != nil {
		return nil, err
	}
	net.ft = ft

	in, inGrad := cfg.inputWidth(), ft.outGrad
	for i, lc := range cfg.Layers {
		layer, next, err := newDenseLayer(cfg, lc, in, i == len(cfg.Layers)-1, net.params, offset, inGrad)
		if err != nil {
			return nil, err
		}
		net.layers = append(net.layers, layer)
		offset, in, inGrad = next, lc.Size, layer.grad
	}
	if offset != net.params.Len() {
		return nil, fmt.Errorf("nn: parameter layout covers %d of %d values", offset, net.params.Len())
	}

	net.initialize(rand.New(rand.NewSource(cfg.Seed)))
	return net, nil
}

// initialize fills weights with Xavier uniform values and zeroes biases. The
// transformer fan-in is the number of rows a sample sums, not the input size.
func (net *Network) initialize(rng *rand.Rand) {
	xavier(rng, net.ft.w, net.cfg.MaxActive, net.cfg.Hidden)
	in := net.cfg.inputWidth()
	for _, l := range net.layers {
		xavier(rng, l.w, in, l.size)
		in = l.size
	}
}

func xavier(rng *rand.Rand, w *tensor.Dense, fanIn, fanOut int) {
	bound := math.Sqrt(6.0 / float64(fanIn+fanOut))
	for i := range w.Data() {
		//nolint:gosec // Weight initialization is not security-critical.
		w.Data()[i] = float32((rng.Float64()*2 - 1) * bound)
	}
}

// Config returns the network configuration with defaults applied.
func (net *Network) Config() Config { return net.cfg }

// Backend returns the compute backend.
func (net *Network) Backend() tensor.Backend { return net.backend }

// Params returns the flattened parameter vector.
func (net *Network) Params() *tensor.Params { return net.params }

// ZeroGrad clears all parameter gradients.
func (net *Network) ZeroGrad() { net.params.ZeroGrad() }

// Forward runs the stack on the first stm.Batch() samples and returns the
// B x 1 output view. nstm is ignored by single-perspective networks and
// buckets by single-bucket networks.
func (net *Network) Forward(stm, nstm *tensor.Features, buckets []int) (*tensor.Dense, error) {
	if stm == nil {
		return nil, fmt.Errorf("nn: forward: %w: nil stm features", tensor.ErrInvalidArgument)
	}
	n := stm.Batch()
	if n == 0 || n > net.cfg.MaxBatch {
		return nil, fmt.Errorf("nn: forward: %w: batch %d outside [1, %d]", tensor.ErrShapeMismatch, n, net.cfg.MaxBatch)
	}
	if net.cfg.Dual && (nstm == nil || nstm.Batch() != n) {
		return nil, fmt.Errorf("nn: forward: %w: nstm features do not match %d samples", tensor.ErrShapeMismatch, n)
	}
	if net.cfg.Buckets > 1 && len(buckets) != n {
		return nil, fmt.Errorf("nn: forward: %w: %d buckets for %d samples", tensor.ErrShapeMismatch, len(buckets), n)
	}

	net.n, net.stm, net.nstm, net.buckets = n, stm, nstm, buckets
	net.output = nil

	x, err := net.ft.forward(net.backend, n, stm, nstm)
	if err != nil {
		return nil, fmt.Errorf("nn: feature transformer: %w", err)
	}
	for i, l := range net.layers {
		if x, err = l.forward(net.backend, x, buckets); err != nil {
			return nil, fmt.Errorf("nn: layer %d: %w", i, err)
		}
	}
	net.output = x
	return x, nil
}

// Loss evaluates the sigmoid power loss of the last forward pass against
// targets (at least B x 1), seeds the output gradient and returns the summed loss.
func (net *Network) Loss(targets *tensor.Dense, power float32) (float32, error) {
	if net.output == nil {
		return 0, fmt.Errorf("nn: loss: %w: no forward pass", tensor.ErrInvalidArgument)
	}
	if targets == nil || targets.Cols() != 1 || targets.Rows() < net.n {
		return 0, fmt.Errorf("nn: loss: %w: targets do not cover %d samples", tensor.ErrShapeMismatch, net.n)
	}
	grad := net.layers[len(net.layers)-1].grad.Head(net.n)
	loss := net.lossBuf.Head(net.n)
	if err := net.backend.SigmoidMPE(net.output, targets.Head(net.n), grad, loss, power); err != nil {
		return 0, fmt.Errorf("nn: loss: %w", err)
	}
	net.lossSum.Zero()
	if err := net.backend.ReduceSum(loss, net.lossSum); err != nil {
		return 0, fmt.Errorf("nn: loss: %w", err)
	}
	return net.lossSum.At(0, 0), nil
}

// Backward propagates the gradient seeded by Loss and accumulates parameter
// gradients. ftReg adds ftReg/2·Σ out² on the transformer output to the loss.
func (net *Network) Backward(ftReg float32) error {
	if net.output == nil {
		return fmt.Errorf("nn: backward: %w: no forward pass", tensor.ErrInvalidArgument)
	}
	for i := len(net.layers) - 1; i >= 0; i-- {
		if err := net.layers[i].backward(net.backend, net.n, net.buckets); err != nil {
			return fmt.Errorf("nn: layer %d backward: %w", i, err)
		}
	}
	if err := net.ft.backward(net.backend, net.n, net.stm, net.nstm, ftReg); err != nil {
		return fmt.Errorf("nn: feature transformer backward: %w", err)
	}
	return nil
}

// Eval runs a forward pass on a single sample and returns the raw output.
func (net *Network) Eval(stm, nstm []int32, bucket int) (float32, error) {
	if err := net.evalSTM.Set(0, stm); err != nil {
		return 0, fmt.Errorf("nn: eval: %w", err)
	}
	if net.cfg.Dual {
		if err := net.evalNSTM.Set(0, nstm); err != nil {
			return 0, fmt.Errorf("nn: eval: %w", err)
		}
	}
	net.evalBucket[0] = bucket
	buckets := net.evalBucket
	if net.cfg.Buckets == 1 {
		if bucket != 0 {
			return 0, fmt.Errorf("nn: eval: %w: bucket %d of 1", tensor.ErrBucketOutOfRange, bucket)
		}
		buckets = nil
	}
	out, err := net.Forward(net.evalSTM, net.evalNSTM, buckets)
	if err != nil {
		return 0, err
	}
	return out.At(0, 0), nil
}
