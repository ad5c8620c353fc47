package nn

import (
	"fmt"

	"github.com/born-ml/nnue/internal/tensor"
)

// featureTransformer is the sparse first layer. pre holds the affine output,
// act the activated values and out the layer output (act, or its pairwise
// product). Buffers are sized for MaxBatch; steps use Head views.
type featureTransformer struct {
	dual     bool
	act      tensor.Activation
	pairwise bool

	w, b         *tensor.Dense // Inputs x Hidden, 1 x Hidden
	wGrad, bGrad *tensor.Dense

	pre, post, out   *tensor.Dense
	preGrad, outGrad *tensor.Dense
}

func newFeatureTransformer(c Config, p *tensor.Params, offset int) (*featureTransformer, int, error) {
	ft := &featureTransformer{dual: c.Dual, act: c.FTActivation, pairwise: c.Pairwise}
	var err error
	if ft.w, ft.wGrad, err = views(p, offset, c.Inputs, c.Hidden); err != nil {
		return nil, 0, err
	}
	offset += c.Inputs * c.Hidden
	if ft.b, ft.bGrad, err = views(p, offset, 1, c.Hidden); err != nil {
		return nil, 0, err
	}
	offset += c.Hidden

	width := c.transformerWidth()
	ft.pre = tensor.NewDense(c.MaxBatch, width)
	ft.preGrad = tensor.NewDense(c.MaxBatch, width)
	ft.post = tensor.NewDense(c.MaxBatch, width)
	if c.Pairwise {
		ft.out = tensor.NewDense(c.MaxBatch, width/2)
	} else {
		ft.out = ft.post
	}
	ft.outGrad = tensor.NewDense(c.MaxBatch, c.inputWidth())
	return ft, offset, nil
}

func (ft *featureTransformer) forward(be tensor.Backend, n int, stm, nstm *tensor.Features) (*tensor.Dense, error) {
	pre, post := ft.pre.Head(n), ft.post.Head(n)
	if ft.dual {
		if err := be.SparseAffineDual(ft.w, ft.b, stm, nstm, pre); err != nil {
			return nil, err
		}
	} else if err := be.SparseAffine(ft.w, ft.b, stm, pre); err != nil {
		return nil, err
	}
	if err := be.Activate(ft.act, pre, post); err != nil {
		return nil, err
	}
	if !ft.pairwise {
		return post, nil
	}
	out := ft.out.Head(n)
	if err := be.PairwiseMul(post, out); err != nil {
		return nil, err
	}
	return out, nil
}

// backward consumes outGrad and accumulates into the transformer gradients.
func (ft *featureTransformer) backward(be tensor.Backend, n int, stm, nstm *tensor.Features, ftReg float32) error {
	pre, preGrad, outGrad := ft.pre.Head(n), ft.preGrad.Head(n), ft.outGrad.Head(n)
	if ft.pairwise {
		preGrad.Zero()
		if err := be.PairwiseMulBackward(ft.post.Head(n), outGrad, preGrad); err != nil {
			return err
		}
	} else {
		copy(preGrad.Data(), outGrad.Data())
	}
	if err := be.ActivateBackward(ft.act, pre, preGrad); err != nil {
		return err
	}
	if ft.dual {
		return be.SparseAffineDualBackward(ft.wGrad, ft.bGrad, stm, nstm, preGrad, pre, ftReg)
	}
	return be.SparseAffineBackward(ft.wGrad, ft.bGrad, stm, preGrad, pre, ftReg)
}

// denseLayer holds Buckets stacked weight matrices. The bucket of each sample
// picks its slice of the stacked output.
type denseLayer struct {
	size    int
	buckets int
	act     tensor.Activation
	output  bool

	w, b         *tensor.Dense // (size·buckets) x in, 1 x (size·buckets)
	wGrad, bGrad *tensor.Dense

	// in is the input of the last forward pass. stacked is B x (size·buckets),
	// pre, out and grad are B x size. inGrad receives the input gradient.
	in          *tensor.Dense
	stacked     *tensor.Dense
	pre, out    *tensor.Dense
	grad        *tensor.Dense
	stackedGrad *tensor.Dense
	inGrad      *tensor.Dense
}

func newDenseLayer(c Config, l LayerConfig, in int, output bool, p *tensor.Params, offset int, inGrad *tensor.Dense) (*denseLayer, int, error) {
	stackedWidth := l.Size * c.Buckets
	d := &denseLayer{size: l.Size, buckets: c.Buckets, act: l.Activation, output: output, inGrad: inGrad}
	var err error
	if d.w, d.wGrad, err = views(p, offset, stackedWidth, in); err != nil {
		return nil, 0, err
	}
	offset += stackedWidth * in
	if d.b, d.bGrad, err = views(p, offset, 1, stackedWidth); err != nil {
		return nil, 0, err
	}
	offset += stackedWidth

	d.stacked = tensor.NewDense(c.MaxBatch, stackedWidth)
	d.pre = d.stacked
	d.stackedGrad = tensor.NewDense(c.MaxBatch, stackedWidth)
	if c.Buckets > 1 {
		d.pre = tensor.NewDense(c.MaxBatch, l.Size)
	}
	d.out = d.pre
	if !output {
		d.out = tensor.NewDense(c.MaxBatch, l.Size)
	}
	d.grad = tensor.NewDense(c.MaxBatch, l.Size)
	return d, offset, nil
}

func (d *denseLayer) forward(be tensor.Backend, x *tensor.Dense, buckets []int) (*tensor.Dense, error) {
	n := x.Rows()
	d.in = x
	stacked := d.stacked.Head(n)
	if err := be.MatMul(d.w, x, stacked); err != nil {
		return nil, err
	}
	if err := be.AddBias(d.b, stacked); err != nil {
		return nil, err
	}
	pre := d.pre.Head(n)
	if d.buckets > 1 {
		if err := be.Select(stacked, buckets, pre); err != nil {
			return nil, err
		}
	}
	if d.output {
		return pre, nil
	}
	out := d.out.Head(n)
	if err := be.Activate(d.act, pre, out); err != nil {
		return nil, err
	}
	return out, nil
}

// backward consumes grad and writes the input gradient into inGrad when the
// layer has one.
func (d *denseLayer) backward(be tensor.Backend, n int, buckets []int) error {
	grad := d.grad.Head(n)
	if !d.output {
		if err := be.ActivateBackward(d.act, d.pre.Head(n), grad); err != nil {
			return err
		}
	}
	stackedGrad := grad
	if d.buckets > 1 {
		stackedGrad = d.stackedGrad.Head(n)
		stackedGrad.Zero()
		if err := be.SelectBackward(grad, buckets, stackedGrad); err != nil {
			return err
		}
	}
	if err := be.ReduceSum(stackedGrad, d.bGrad); err != nil {
		return err
	}
	if err := be.OuterAccumulate(stackedGrad, d.in, d.wGrad); err != nil {
		return err
	}
	if d.inGrad == nil {
		return nil
	}
	return be.MatMulT(d.w, stackedGrad, d.inGrad.Head(n))
}

func views(p *tensor.Params, offset, rows, cols int) (*tensor.Dense, *tensor.Dense, error) {
	v, err := p.View(offset, rows, cols)
	if err != nil {
		return nil, nil, fmt.Errorf("nn: parameter layout: %w", err)
	}
	g, err := p.GradView(offset, rows, cols)
	if err != nil {
		return nil, nil, fmt.Errorf("nn: parameter layout: %w", err)
	}
	return v, g, nil
}
