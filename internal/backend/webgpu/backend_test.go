//go:build windows

package webgpu

import (
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnue/internal/backend/cpu"
	"github.com/born-ml/nnue/internal/parallel"
	"github.com/born-ml/nnue/internal/tensor"
)

const tolerance = 1e-4

func newBackends(t *testing.T) (*Backend, *cpu.CPUBackend) {
	t.Helper()
	if !IsAvailable() {
		t.Skip("WebGPU not available")
	}
	gpu, err := New()
	require.NoError(t, err)
	t.Cleanup(gpu.Release)
	return gpu, cpu.NewWithConfig(cpu.Config{Parallel: parallel.Sequential()})
}

func random(rng *rand.Rand, rows, cols int) *tensor.Dense {
	d := tensor.NewDense(rows, cols)
	for i := range d.Data() {
		d.Data()[i] = rng.Float32()*2 - 1
	}
	return d
}

func clone(d *tensor.Dense) *tensor.Dense {
	c := tensor.NewDense(d.Rows(), d.Cols())
	copy(c.Data(), d.Data())
	return c
}

func randomFeatures(t *testing.T, rng *rand.Rand, batch, maxActive, inputs int) *tensor.Features {
	t.Helper()
	f := tensor.NewFeatures(batch, maxActive)
	for b := 0; b < batch; b++ {
		active := make([]int32, rng.Intn(maxActive+1))
		for i := range active {
			active[i] = int32(rng.Intn(inputs))
		}
		require.NoError(t, f.Set(b, active))
	}
	return f
}

func assertClose(t *testing.T, want, got *tensor.Dense) {
	t.Helper()
	require.Equal(t, want.Len(), got.Len())
	for i := range want.Data() {
		assert.InDelta(t, want.Data()[i], got.Data()[i], tolerance, "element %d", i)
	}
}

func TestBackendInfo(t *testing.T) {
	gpu, _ := newBackends(t)
	assert.Equal(t, tensor.WebGPU, gpu.Device())
	assert.Contains(t, gpu.Name(), "WebGPU")
	assert.InDelta(t, DefaultLeakySlope, gpu.Config().LeakySlope, 1e-9)
}

func TestDenseKernelsMatchCPU(t *testing.T) {
	gpu, ref := newBackends(t)
	rng := rand.New(rand.NewSource(1))
	const batch, in, out = 7, 13, 5

	a := random(rng, out, in)
	x := random(rng, batch, in)
	y := random(rng, batch, out)

	t.Run("matmul", func(t *testing.T) {
		want, got := tensor.NewDense(batch, out), tensor.NewDense(batch, out)
		require.NoError(t, ref.MatMul(a, x, want))
		require.NoError(t, gpu.MatMul(a, x, got))
		assertClose(t, want, got)
	})

	t.Run("matmul_transposed", func(t *testing.T) {
		want, got := tensor.NewDense(batch, in), tensor.NewDense(batch, in)
		require.NoError(t, ref.MatMulT(a, y, want))
		require.NoError(t, gpu.MatMulT(a, y, got))
		assertClose(t, want, got)
	})

	t.Run("outer_accumulate", func(t *testing.T) {
		start := random(rng, out, in)
		want, got := clone(start), clone(start)
		require.NoError(t, ref.OuterAccumulate(y, x, want))
		require.NoError(t, gpu.OuterAccumulate(y, x, got))
		assertClose(t, want, got)
	})

	t.Run("reduce_sum", func(t *testing.T) {
		start := random(rng, 1, in)
		want, got := clone(start), clone(start)
		require.NoError(t, ref.ReduceSum(x, want))
		require.NoError(t, gpu.ReduceSum(x, got))
		assertClose(t, want, got)
	})

	t.Run("add_to_and_bias", func(t *testing.T) {
		want, got := clone(y), clone(y)
		src := random(rng, batch, out)
		require.NoError(t, ref.AddTo(src, want))
		require.NoError(t, gpu.AddTo(src, got))
		bias := random(rng, 1, out)
		require.NoError(t, ref.AddBias(bias, want))
		require.NoError(t, gpu.AddBias(bias, got))
		assertClose(t, want, got)
	})

	t.Run("pairwise", func(t *testing.T) {
		pin := random(rng, batch, 2*out)
		want, got := tensor.NewDense(batch, out), tensor.NewDense(batch, out)
		require.NoError(t, ref.PairwiseMul(pin, want))
		require.NoError(t, gpu.PairwiseMul(pin, got))
		assertClose(t, want, got)

		start := random(rng, batch, 2*out)
		wantGrad, gotGrad := clone(start), clone(start)
		require.NoError(t, ref.PairwiseMulBackward(pin, y, wantGrad))
		require.NoError(t, gpu.PairwiseMulBackward(pin, y, gotGrad))
		assertClose(t, wantGrad, gotGrad)
	})
}

func TestSparseKernelsMatchCPU(t *testing.T) {
	gpu, ref := newBackends(t)
	rng := rand.New(rand.NewSource(2))
	const batch, inputs, n, maxActive = 9, 40, 6, 5

	w := random(rng, inputs, n)
	bias := random(rng, 1, n)
	stm := randomFeatures(t, rng, batch, maxActive, inputs)
	nstm := randomFeatures(t, rng, batch, maxActive, inputs)

	t.Run("single", func(t *testing.T) {
		want, got := tensor.NewDense(batch, n), tensor.NewDense(batch, n)
		require.NoError(t, ref.SparseAffine(w, bias, stm, want))
		require.NoError(t, gpu.SparseAffine(w, bias, stm, got))
		assertClose(t, want, got)

		errs := random(rng, batch, n)
		wantW, gotW := tensor.NewDense(inputs, n), tensor.NewDense(inputs, n)
		wantB, gotB := tensor.NewDense(1, n), tensor.NewDense(1, n)
		require.NoError(t, ref.SparseAffineBackward(wantW, wantB, stm, errs, want, 0.1))
		require.NoError(t, gpu.SparseAffineBackward(gotW, gotB, stm, errs, want, 0.1))
		assertClose(t, wantW, gotW)
		assertClose(t, wantB, gotB)
	})

	t.Run("dual", func(t *testing.T) {
		want, got := tensor.NewDense(batch, 2*n), tensor.NewDense(batch, 2*n)
		require.NoError(t, ref.SparseAffineDual(w, bias, stm, nstm, want))
		require.NoError(t, gpu.SparseAffineDual(w, bias, stm, nstm, got))
		assertClose(t, want, got)

		errs := random(rng, batch, 2*n)
		wantW, gotW := random(rng, inputs, n), tensor.NewDense(inputs, n)
		copy(gotW.Data(), wantW.Data())
		wantB, gotB := tensor.NewDense(1, n), tensor.NewDense(1, n)
		require.NoError(t, ref.SparseAffineDualBackward(wantW, wantB, stm, nstm, errs, want, 0))
		require.NoError(t, gpu.SparseAffineDualBackward(gotW, gotB, stm, nstm, errs, want, 0))
		assertClose(t, wantW, gotW)
		assertClose(t, wantB, gotB)
	})

	t.Run("rejects out of range index", func(t *testing.T) {
		bad := tensor.NewFeatures(1, 1)
		require.NoError(t, bad.Set(0, []int32{inputs}))
		err := gpu.SparseAffine(w, bias, bad, tensor.NewDense(1, n))
		assert.ErrorIs(t, err, tensor.ErrIndexOutOfRange)
	})
}

func TestActivationsMatchCPU(t *testing.T) {
	gpu, ref := newBackends(t)
	rng := rand.New(rand.NewSource(3))

	x := random(rng, 4, 16)
	// Boundaries of the clipped activations.
	x.Data()[0], x.Data()[1], x.Data()[2] = 0, 1, 2

	for _, act := range []tensor.Activation{tensor.ReLU, tensor.CReLU, tensor.SCReLU, tensor.SqrReLU, tensor.LeakySReLU} {
		t.Run(act.String(), func(t *testing.T) {
			want, got := tensor.NewDense(4, 16), tensor.NewDense(4, 16)
			require.NoError(t, ref.Activate(act, x, want))
			require.NoError(t, gpu.Activate(act, x, got))
			assertClose(t, want, got)

			grad := random(rng, 4, 16)
			wantGrad, gotGrad := clone(grad), clone(grad)
			require.NoError(t, ref.ActivateBackward(act, x, wantGrad))
			require.NoError(t, gpu.ActivateBackward(act, x, gotGrad))
			assertClose(t, wantGrad, gotGrad)
		})
	}
}

func TestSelectMatchesCPU(t *testing.T) {
	gpu, ref := newBackends(t)
	rng := rand.New(rand.NewSource(4))
	const batch, n, k = 6, 3, 4
	buckets := []int{0, 3, 1, 1, 2, 0}

	for name, rows := range map[string]int{"per_sample": batch, "shared": 1} {
		t.Run(name, func(t *testing.T) {
			in := random(rng, rows, k*n)
			want, got := tensor.NewDense(batch, n), tensor.NewDense(batch, n)
			require.NoError(t, ref.Select(in, buckets, want))
			require.NoError(t, gpu.Select(in, buckets, got))
			assertClose(t, want, got)

			grad := random(rng, batch, n)
			wantGrad, gotGrad := tensor.NewDense(rows, k*n), tensor.NewDense(rows, k*n)
			require.NoError(t, ref.SelectBackward(grad, buckets, wantGrad))
			require.NoError(t, gpu.SelectBackward(grad, buckets, gotGrad))
			assertClose(t, wantGrad, gotGrad)
		})
	}

	err := gpu.Select(random(rng, batch, k*n), []int{0, 0, 0, 0, 0, k}, tensor.NewDense(batch, n))
	assert.ErrorIs(t, err, tensor.ErrBucketOutOfRange)
}

func TestLossAndOptimizerMatchCPU(t *testing.T) {
	gpu, ref := newBackends(t)
	rng := rand.New(rand.NewSource(5))

	t.Run("sigmoid_mpe", func(t *testing.T) {
		pred := random(rng, 8, 1)
		target := random(rng, 8, 1)
		for i := range target.Data() {
			target.Data()[i] = (target.Data()[i] + 1) / 2
		}
		wantGrad, wantLoss := tensor.NewDense(8, 1), tensor.NewDense(8, 1)
		gotGrad, gotLoss := tensor.NewDense(8, 1), tensor.NewDense(8, 1)
		require.NoError(t, ref.SigmoidMPE(pred, target, wantGrad, wantLoss, 2.5))
		require.NoError(t, gpu.SigmoidMPE(pred, target, gotGrad, gotLoss, 2.5))
		assertClose(t, wantGrad, gotGrad)
		assertClose(t, wantLoss, gotLoss)
	})

	t.Run("adamw", func(t *testing.T) {
		want, got := tensor.NewParams(300), tensor.NewParams(300)
		for i := range want.Values {
			want.Values[i] = rng.Float32()*4 - 2
			want.Grads[i] = rng.Float32()*2 - 1
		}
		copy(got.Values, want.Values)
		copy(got.Grads, want.Grads)

		args := tensor.AdamWArgs{
			LR: 0.01, Beta1: 0.9, Beta2: 0.999, Eps: 1e-8,
			Decay: 0.01, MinWeight: -1.98, MaxWeight: 1.98, GradScale: 0.5,
		}
		for step := 0; step < 3; step++ {
			require.NoError(t, ref.AdamW(want, args))
			require.NoError(t, gpu.AdamW(got, args))
		}
		assert.InDeltaSlice(t, want.Values, got.Values, tolerance)
		assert.InDeltaSlice(t, want.Momentum, got.Momentum, tolerance)
		assert.InDeltaSlice(t, want.Velocity, got.Velocity, tolerance)
	})
}

func TestReleasedBackendFails(t *testing.T) {
	gpu, _ := newBackends(t)
	gpu.Release()
	x := tensor.NewDense(1, 1)
	assert.ErrorIs(t, gpu.AddTo(x, x), tensor.ErrBackendReleased)
	gpu.Release()
}

func TestWorkgroups(t *testing.T) {
	x, y := workgroups(1)
	assert.Equal(t, uint32(1), x)
	assert.Equal(t, uint32(1), y)

	x, y = workgroups(workgroupSize * (maxWorkgroupsPerDim + 1))
	assert.Equal(t, uint32(maxWorkgroupsPerDim), x)
	assert.Equal(t, uint32(2), y)
}
