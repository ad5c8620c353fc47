package cpu

import (
	"testing"

	"github.com/born-ml/nnue/internal/tensor"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var allActivations = []tensor.Activation{
	tensor.ReLU, tensor.CReLU, tensor.SCReLU, tensor.SqrReLU, tensor.LeakySReLU,
}

func TestActivate_Forward(t *testing.T) {
	cpu := New()
	x := []float32{-2, -0.5, 0, 0.5, 1, 3}

	tests := []struct {
		act  tensor.Activation
		want []float32
	}{
		{tensor.ReLU, []float32{0, 0, 0, 0.5, 1, 3}},
		{tensor.CReLU, []float32{0, 0, 0, 0.5, 1, 1}},
		{tensor.SCReLU, []float32{0, 0, 0, 0.25, 1, 1}},
		{tensor.SqrReLU, []float32{0, 0, 0, 0.25, 1, 9}},
		{tensor.LeakySReLU, []float32{0.04, 0.0025, 0, 0.25, 1, 9}},
	}

	for _, tt := range tests {
		t.Run(tt.act.String(), func(t *testing.T) {
			in := dense(t, 2, 3, append([]float32(nil), x...)...)
			out := tensor.NewDense(2, 3)
			require.NoError(t, cpu.Activate(tt.act, in, out))
			assert.InDeltaSlice(t, tt.want, out.Data(), 1e-6)

			// In place.
			require.NoError(t, cpu.Activate(tt.act, in, in))
			assert.InDeltaSlice(t, tt.want, in.Data(), 1e-6)
		})
	}
}

func TestActivateBackward_MatchesNumericalDerivative(t *testing.T) {
	cpu := New()
	slope := cpu.Config().LeakySlope
	points := []float32{-1.7, -0.3, 0.2, 0.45, 0.8, 1.6, 2.5}
	const h = 1e-3

	for _, act := range allActivations {
		t.Run(act.String(), func(t *testing.T) {
			f := forwardFunc(act, slope)
			x := dense(t, 1, len(points), points...)
			grad := tensor.NewDense(1, len(points))
			for i := range grad.Data() {
				grad.Data()[i] = 1
			}
			require.NoError(t, cpu.ActivateBackward(act, x, grad))

			for i, p := range points {
				numeric := float64(f(p+h)-f(p-h)) / (2 * h)
				assert.InDelta(t, numeric, grad.At(0, i), 2e-2, "x=%v", p)
			}
		})
	}
}

// At the clip boundaries the gradient follows the saturated side: zero at x=0
// for every variant, and zero at x=1 for the clipped variants.
func TestActivateBackward_ClipBoundaries(t *testing.T) {
	cpu := New()
	const h = 1e-3

	for _, act := range allActivations {
		t.Run(act.String(), func(t *testing.T) {
			f := forwardFunc(act, cpu.Config().LeakySlope)
			x := dense(t, 1, 2, 0, 1)
			grad := dense(t, 1, 2, 1, 1)
			require.NoError(t, cpu.ActivateBackward(act, x, grad))

			left := float64(f(0)-f(-h)) / h
			assert.InDelta(t, left, grad.At(0, 0), 1e-2, "x=0")
			assert.Equal(t, float32(0), grad.At(0, 0), "x=0")

			switch act {
			case tensor.CReLU, tensor.SCReLU:
				right := float64(f(1+h)-f(1)) / h
				assert.InDelta(t, right, grad.At(0, 1), 1e-6, "x=1")
				assert.Equal(t, float32(0), grad.At(0, 1), "x=1")
			default:
				numeric := float64(f(1+h)-f(1-h)) / (2 * h)
				assert.InDelta(t, numeric, grad.At(0, 1), 1e-2, "x=1")
			}
		})
	}
}

func TestActivateBackward_ScalesIncomingGradient(t *testing.T) {
	cpu := New()
	x := dense(t, 1, 3, 0.5, 2, -1)
	grad := dense(t, 1, 3, 3, 3, 3)
	require.NoError(t, cpu.ActivateBackward(tensor.SqrReLU, x, grad))
	assert.Equal(t, []float32{3, 12, 0}, grad.Data())
}

func TestActivate_LeakySlopeConfig(t *testing.T) {
	cpu := NewWithConfig(Config{LeakySlope: 0.5})
	x := dense(t, 1, 1, -2)
	y := tensor.NewDense(1, 1)
	require.NoError(t, cpu.Activate(tensor.LeakySReLU, x, y))
	assert.Equal(t, float32(2), y.At(0, 0))

	grad := dense(t, 1, 1, 1)
	require.NoError(t, cpu.ActivateBackward(tensor.LeakySReLU, x, grad))
	assert.Equal(t, float32(-2), grad.At(0, 0))
}

func TestActivate_Contract(t *testing.T) {
	cpu := New()
	assert.ErrorIs(t, cpu.Activate(tensor.Activation(99), tensor.NewDense(1, 1), tensor.NewDense(1, 1)), tensor.ErrInvalidArgument)
	assert.ErrorIs(t, cpu.Activate(tensor.ReLU, tensor.NewDense(1, 2), tensor.NewDense(2, 1)), tensor.ErrShapeMismatch)
	assert.ErrorIs(t, cpu.ActivateBackward(tensor.ReLU, tensor.NewDense(1, 2), tensor.NewDense(1, 3)), tensor.ErrShapeMismatch)
}
