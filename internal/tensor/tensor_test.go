package tensor

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDenseFrom(t *testing.T) {
	d, err := DenseFrom([]float32{1, 2, 3, 4, 5, 6}, 2, 3)
	require.NoError(t, err)
	assert.Equal(t, 2, d.Rows())
	assert.Equal(t, 3, d.Cols())
	assert.Equal(t, []float32{4, 5, 6}, d.Row(1))
	assert.Equal(t, float32(2), d.At(0, 1))

	_, err = DenseFrom([]float32{1, 2, 3}, 2, 2)
	assert.ErrorIs(t, err, ErrShapeMismatch)
}

func TestDenseHeadSharesStorage(t *testing.T) {
	d := NewDense(4, 2)
	h := d.Head(2)
	h.Set(1, 1, 7)
	assert.Equal(t, float32(7), d.At(1, 1))
	assert.Equal(t, 4, h.Len())

	assert.Panics(t, func() { d.Head(5) })
}

func TestFeaturesSet(t *testing.T) {
	f := NewFeatures(2, 3)
	for _, idx := range f.Indices() {
		assert.Equal(t, Sentinel, idx)
	}

	require.NoError(t, f.Set(1, []int32{4, 9}))
	assert.Equal(t, []int32{4, 9, Sentinel}, f.Sample(1))
	assert.Equal(t, []int32{Sentinel, Sentinel, Sentinel}, f.Sample(0))

	require.NoError(t, f.Set(1, []int32{2}))
	assert.Equal(t, []int32{2, Sentinel, Sentinel}, f.Sample(1))

	assert.ErrorIs(t, f.Set(0, []int32{1, 2, 3, 4}), ErrInvalidArgument)
	assert.ErrorIs(t, f.Set(2, nil), ErrIndexOutOfRange)
}

func TestParamsViews(t *testing.T) {
	p := NewParams(10)
	require.NoError(t, p.Validate())

	w, err := p.View(2, 2, 3)
	require.NoError(t, err)
	w.Set(0, 0, 5)
	assert.Equal(t, float32(5), p.Values[2])

	g, err := p.GradView(8, 1, 2)
	require.NoError(t, err)
	g.Set(0, 1, 3)
	assert.Equal(t, float32(3), p.Grads[9])

	_, err = p.View(8, 1, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	p.ZeroGrad()
	assert.Equal(t, float32(0), p.Grads[9])

	p.Momentum = p.Momentum[:3]
	assert.ErrorIs(t, p.Validate(), ErrShapeMismatch)
}

func TestCheckFeatures(t *testing.T) {
	f := NewFeatures(2, 2)
	require.NoError(t, f.Set(0, []int32{0, 3}))
	assert.NoError(t, CheckFeatures("k", "in", f, 2, 4))

	err := CheckFeatures("k", "in", f, 2, 3)
	assert.ErrorIs(t, err, ErrIndexOutOfRange)

	var ce *ContractError
	require.True(t, errors.As(err, &ce))
	assert.Equal(t, "k", ce.Kernel)
	assert.Contains(t, err.Error(), "sample 0 slot 1")

	f.Indices()[2] = -5
	assert.ErrorIs(t, CheckFeatures("k", "in", f, 2, 4), ErrSentinelMisuse)

	assert.ErrorIs(t, CheckFeatures("k", "in", f, 3, 4), ErrShapeMismatch)
}

func TestCheckBuckets(t *testing.T) {
	assert.NoError(t, CheckBuckets("select", []int{0, 1}, 2, 2))
	assert.ErrorIs(t, CheckBuckets("select", []int{0, 2}, 2, 2), ErrBucketOutOfRange)
	assert.ErrorIs(t, CheckBuckets("select", []int{-1, 0}, 2, 2), ErrBucketOutOfRange)
	assert.ErrorIs(t, CheckBuckets("select", []int{0}, 2, 2), ErrShapeMismatch)
}

func TestCheckShape(t *testing.T) {
	d := NewDense(2, 3)
	assert.NoError(t, CheckShape("k", "x", d, 2, 3))
	assert.ErrorIs(t, CheckShape("k", "x", d, 3, 2), ErrShapeMismatch)
	assert.ErrorIs(t, CheckShape("k", "x", nil, 3, 2), ErrInvalidArgument)
}

func TestActivationString(t *testing.T) {
	assert.Equal(t, "SCReLU", SCReLU.String())
	assert.True(t, LeakySReLU.Valid())
	assert.False(t, Activation(42).Valid())
	assert.Equal(t, "WebGPU", WebGPU.String())
}
