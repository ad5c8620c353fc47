package cpu

import (
	"math/rand"
	"testing"

	"github.com/born-ml/nnue/internal/parallel"
	"github.com/born-ml/nnue/internal/tensor"
	"github.com/stretchr/testify/require"
)

// backends returns a sequential and a parallel backend so every kernel is
// checked under both partitionings.
func backends() map[string]*CPUBackend {
	return map[string]*CPUBackend{
		"sequential": NewWithConfig(Config{Parallel: parallel.Sequential()}),
		"parallel":   NewWithConfig(Config{Parallel: parallel.Config{Enabled: true, NumWorkers: 4, MinChunkSize: 1}}),
	}
}

func dense(t *testing.T, rows, cols int, values ...float32) *tensor.Dense {
	t.Helper()
	d, err := tensor.DenseFrom(values, rows, cols)
	require.NoError(t, err)
	return d
}

func randomDense(rng *rand.Rand, rows, cols int) *tensor.Dense {
	d := tensor.NewDense(rows, cols)
	for i := range d.Data() {
		d.Data()[i] = rng.Float32()*2 - 1
	}
	return d
}

func features(t *testing.T, maxActive int, samples ...[]int32) *tensor.Features {
	t.Helper()
	f := tensor.NewFeatures(len(samples), maxActive)
	for b, s := range samples {
		require.NoError(t, f.Set(b, s))
	}
	return f
}
