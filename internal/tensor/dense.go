package tensor

import "fmt"

// Dense is a row-major float32 matrix view over caller-owned storage.
//
// Rows usually index batch samples and columns index features. A Dense created
// with DenseFrom borrows its storage; Head returns a view sharing it.
type Dense struct {
	data []float32
	rows int
	cols int
}

// NewDense allocates a zeroed rows x cols buffer.
func NewDense(rows, cols int) *Dense {
	if rows < 0 || cols < 0 {
		panic(fmt.Sprintf("tensor: invalid dense shape %dx%d", rows, cols))
	}
	return &Dense{data: make([]float32, rows*cols), rows: rows, cols: cols}
}

// DenseFrom wraps data as a rows x cols view without copying.
func DenseFrom(data []float32, rows, cols int) (*Dense, error) {
	if rows < 0 || cols < 0 {
		return nil, fmt.Errorf("%w: dense shape %dx%d", ErrInvalidArgument, rows, cols)
	}
	if len(data) != rows*cols {
		return nil, fmt.Errorf("%w: %d values for a %dx%d view", ErrShapeMismatch, len(data), rows, cols)
	}
	return &Dense{data: data, rows: rows, cols: cols}, nil
}

// Rows returns the number of rows.
func (d *Dense) Rows() int { return d.rows }

// Cols returns the number of columns.
func (d *Dense) Cols() int { return d.cols }

// Len returns rows*cols.
func (d *Dense) Len() int { return len(d.data) }

// Data returns the underlying storage.
func (d *Dense) Data() []float32 { return d.data }

// Row returns row i as a slice into the underlying storage.
func (d *Dense) Row(i int) []float32 {
	return d.data[i*d.cols : (i+1)*d.cols]
}

// At returns element (i, j).
func (d *Dense) At(i, j int) float32 { return d.data[i*d.cols+j] }

// Set sets element (i, j).
func (d *Dense) Set(i, j int, v float32) { d.data[i*d.cols+j] = v }

// Head returns a view over the first n rows.
func (d *Dense) Head(n int) *Dense {
	if n < 0 || n > d.rows {
		panic(fmt.Sprintf("tensor: head %d of %d rows", n, d.rows))
	}
	return &Dense{data: d.data[:n*d.cols], rows: n, cols: d.cols}
}

// Zero clears every element of the view.
func (d *Dense) Zero() {
	clear(d.data)
}

// SameShape reports whether d and other have identical dimensions.
func (d *Dense) SameShape(other *Dense) bool {
	return d.rows == other.rows && d.cols == other.cols
}

// String returns the shape, e.g. "Dense[16384x512]".
func (d *Dense) String() string {
	return fmt.Sprintf("Dense[%dx%d]", d.rows, d.cols)
}
