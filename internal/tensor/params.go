package tensor

import "fmt"

// Params is the flattened parameter vector of a network together with its
// gradient and the AdamW moment estimates. All four arrays share one length.
//
// Layers take Dense windows into Values and Grads; the update kernel is the only
// writer of Values, Momentum and Velocity.
type Params struct {
	Values   []float32
	Grads    []float32
	Momentum []float32
	Velocity []float32
}

// NewParams allocates a zeroed parameter vector of n elements.
func NewParams(n int) *Params {
	return &Params{
		Values:   make([]float32, n),
		Grads:    make([]float32, n),
		Momentum: make([]float32, n),
		Velocity: make([]float32, n),
	}
}

// Len returns the number of parameters.
func (p *Params) Len() int { return len(p.Values) }

// Validate checks that the four arrays have equal length.
func (p *Params) Validate() error {
	n := len(p.Values)
	if len(p.Grads) != n || len(p.Momentum) != n || len(p.Velocity) != n {
		return fmt.Errorf("%w: values=%d grads=%d momentum=%d velocity=%d",
			ErrShapeMismatch, n, len(p.Grads), len(p.Momentum), len(p.Velocity))
	}
	return nil
}

// View returns a rows x cols window into Values starting at offset.
func (p *Params) View(offset, rows, cols int) (*Dense, error) {
	return window(p.Values, offset, rows, cols)
}

// GradView returns a rows x cols window into Grads starting at offset.
func (p *Params) GradView(offset, rows, cols int) (*Dense, error) {
	return window(p.Grads, offset, rows, cols)
}

// ZeroGrad clears the gradient array.
func (p *Params) ZeroGrad() {
	clear(p.Grads)
}

func window(data []float32, offset, rows, cols int) (*Dense, error) {
	end := offset + rows*cols
	if offset < 0 || end > len(data) {
		return nil, fmt.Errorf("%w: window [%d,%d) of %d parameters", ErrIndexOutOfRange, offset, end, len(data))
	}
	return DenseFrom(data[offset:end:end], rows, cols)
}
