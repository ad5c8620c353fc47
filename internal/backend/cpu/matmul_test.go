package cpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/nnue/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestMatMul(t *testing.T) {
	for name, cpu := range backends() {
		t.Run(name, func(t *testing.T) {
			// A = [[1,2,3],[4,5,6]], two samples.
			a := dense(t, 2, 3, 1, 2, 3, 4, 5, 6)
			x := dense(t, 2, 3, 1, 0, 0, 1, 1, 1)
			y := tensor.NewDense(2, 2)

			require.NoError(t, cpu.MatMul(a, x, y))
			assert.Equal(t, []float32{1, 4, 6, 15}, y.Data())
		})
	}
}

func TestMatMulT(t *testing.T) {
	for name, cpu := range backends() {
		t.Run(name, func(t *testing.T) {
			a := dense(t, 2, 3, 1, 2, 3, 4, 5, 6)
			y := dense(t, 2, 2, 1, 0, 1, 1)
			x := dense(t, 2, 3, 9, 9, 9, 9, 9, 9) // overwritten

			require.NoError(t, cpu.MatMulT(a, y, x))
			assert.Equal(t, []float32{1, 2, 3, 5, 7, 9}, x.Data())
		})
	}
}

func TestMatMulT_MatchesExplicitTranspose(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	cpu := New()
	a := randomDense(rng, 5, 7)
	y := randomDense(rng, 3, 5)

	at := tensor.NewDense(7, 5)
	for o := 0; o < 5; o++ {
		for i := 0; i < 7; i++ {
			at.Set(i, o, a.At(o, i))
		}
	}

	want := tensor.NewDense(3, 7)
	got := tensor.NewDense(3, 7)
	require.NoError(t, cpu.MatMul(at, y, want))
	require.NoError(t, cpu.MatMulT(a, y, got))
	assert.InDeltaSlice(t, want.Data(), got.Data(), 1e-5)
}

func TestOuterAccumulate(t *testing.T) {
	for name, cpu := range backends() {
		t.Run(name, func(t *testing.T) {
			yGrad := dense(t, 2, 2, 1, 2, 3, 4)
			x := dense(t, 2, 3, 1, 1, 0, 0, 1, 2)
			aGrad := dense(t, 2, 3, 100, 0, 0, 0, 0, 0)

			require.NoError(t, cpu.OuterAccumulate(yGrad, x, aGrad))
			// Row o: Σ_b yGrad[b][o]·x[b]
			assert.Equal(t, []float32{101, 4, 6, 2, 6, 8}, aGrad.Data())
		})
	}
}

func TestReduceSum(t *testing.T) {
	for name, cpu := range backends() {
		t.Run(name, func(t *testing.T) {
			x := dense(t, 3, 2, 1, 2, 3, 4, 5, 6)
			dst := dense(t, 1, 2, 10, 20)

			require.NoError(t, cpu.ReduceSum(x, dst))
			assert.Equal(t, []float32{19, 32}, dst.Data())

			// Workspace shrinks correctly for a smaller batch.
			require.NoError(t, cpu.ReduceSum(x.Head(1), dst))
			assert.Equal(t, []float32{20, 34}, dst.Data())
		})
	}
}

func TestAddToAndBias(t *testing.T) {
	cpu := New()
	dst := dense(t, 2, 2, 1, 1, 1, 1)
	require.NoError(t, cpu.AddTo(dense(t, 2, 2, 1, 2, 3, 4), dst))
	assert.Equal(t, []float32{2, 3, 4, 5}, dst.Data())

	require.NoError(t, cpu.AddBias(dense(t, 1, 2, 10, 20), dst))
	assert.Equal(t, []float32{12, 23, 14, 25}, dst.Data())

	err := cpu.AddTo(tensor.NewDense(1, 2), dst)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
	err = cpu.AddBias(tensor.NewDense(1, 3), dst)
	assert.ErrorIs(t, err, tensor.ErrShapeMismatch)
}

func TestPairwiseMul(t *testing.T) {
	cpu := New()
	in := dense(t, 1, 4, 1, 2, 3, 4)
	out := tensor.NewDense(1, 2)
	require.NoError(t, cpu.PairwiseMul(in, out))
	assert.Equal(t, []float32{3, 8}, out.Data())

	inGrad := tensor.NewDense(1, 4)
	require.NoError(t, cpu.PairwiseMulBackward(in, dense(t, 1, 2, 1, 1), inGrad))
	assert.Equal(t, []float32{3, 4, 1, 2}, inGrad.Data())
}

func TestDenseOps_ShapeContract(t *testing.T) {
	cpu := New()
	a := tensor.NewDense(2, 3)

	err := cpu.MatMul(a, tensor.NewDense(4, 2), tensor.NewDense(4, 2))
	require.ErrorIs(t, err, tensor.ErrShapeMismatch)
	var ce *tensor.ContractError
	require.ErrorAs(t, err, &ce)
	assert.Equal(t, "matmul", ce.Kernel)

	assert.ErrorIs(t, cpu.MatMul(a, tensor.NewDense(4, 3), tensor.NewDense(3, 2)), tensor.ErrShapeMismatch)
	assert.ErrorIs(t, cpu.MatMulT(a, tensor.NewDense(4, 3), tensor.NewDense(4, 3)), tensor.ErrShapeMismatch)
	assert.ErrorIs(t, cpu.OuterAccumulate(tensor.NewDense(4, 2), tensor.NewDense(4, 3), tensor.NewDense(3, 2)), tensor.ErrShapeMismatch)
	assert.ErrorIs(t, cpu.ReduceSum(tensor.NewDense(4, 3), tensor.NewDense(1, 2)), tensor.ErrShapeMismatch)
	assert.ErrorIs(t, cpu.MatMul(nil, a, a), tensor.ErrInvalidArgument)
}

func TestReleasedBackend(t *testing.T) {
	cpu := New()
	cpu.Release()
	err := cpu.AddTo(tensor.NewDense(1, 1), tensor.NewDense(1, 1))
	assert.ErrorIs(t, err, tensor.ErrBackendReleased)
	err = cpu.ReduceSum(tensor.NewDense(1, 1), tensor.NewDense(1, 1))
	assert.ErrorIs(t, err, tensor.ErrBackendReleased)
}
