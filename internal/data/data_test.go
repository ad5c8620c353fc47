package data

import (
	"context"
	"errors"
	"io"
	"math"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/born-ml/nnue/internal/chess"
	"github.com/born-ml/nnue/internal/tensor"
)

const startFEN = "rnbqkbnr/pppppppp/8/8/8/8/PPPPPPPP/RNBQKBNR w KQkq - 0 1"

func TestParseLine(t *testing.T) {
	s, err := ParseLine(startFEN + " | 35 | 1.0")
	require.NoError(t, err)
	assert.Equal(t, float32(35), s.Score)
	assert.Equal(t, float32(1), s.Result)
	assert.Len(t, s.Position.Pieces, 32)

	// Black to move flips both labels.
	s, err = ParseLine("4k3/8/8/8/8/8/8/4K3 b - - 0 1 | 120 | 0.0")
	require.NoError(t, err)
	assert.Equal(t, float32(-120), s.Score)
	assert.Equal(t, float32(1), s.Result)
}

func TestParseLine_Errors(t *testing.T) {
	for _, line := range []string{
		startFEN,
		startFEN + " | 35",
		startFEN + " | abc | 1.0",
		startFEN + " | 35 | x",
		startFEN + " | 35 | 2.0",
		"bad fen | 35 | 0.5",
	} {
		_, err := ParseLine(line)
		assert.Error(t, err, line)
	}
}

func TestReadSamples(t *testing.T) {
	text := "# comment\n" + startFEN + " | 10 | 0.5\n\n4k3/8/8/8/8/8/8/4K3 w - - 0 1 | 0 | 0.5\n"
	samples, err := ReadSamples(strings.NewReader(text))
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	_, err = ReadSamples(strings.NewReader(startFEN + " | 10 | 0.5\nnonsense\n"))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "line 2")
}

func TestLoadFiles(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "a.txt")
	require.NoError(t, os.WriteFile(path, []byte(startFEN+" | 10 | 0.5\n"), 0o600))

	samples, err := LoadFiles(path, path)
	require.NoError(t, err)
	assert.Len(t, samples, 2)

	empty := filepath.Join(dir, "empty.txt")
	require.NoError(t, os.WriteFile(empty, nil, 0o600))
	_, err = LoadFiles(empty)
	assert.ErrorIs(t, err, ErrNoSamples)

	_, err = LoadFiles(filepath.Join(dir, "missing.txt"))
	assert.Error(t, err)
}

func TestTarget(t *testing.T) {
	assert.InDelta(t, 0.5, Target(0, 1, 0, 400), 1e-6)
	assert.InDelta(t, 1.0, Target(0, 1, 1, 400), 1e-6)
	want := 0.25*0.0 + 0.75/(1+math.Exp(-1))
	assert.InDelta(t, want, Target(400, 0, 0.25, 400), 1e-6)
}

func mustSamples(t *testing.T, n int) []Sample {
	t.Helper()
	samples := make([]Sample, n)
	for i := range samples {
		s, err := ParseLine(startFEN + " | 0 | 0.5")
		require.NoError(t, err)
		s.Score = float32(i)
		samples[i] = s
	}
	return samples
}

func TestBatch_AddAndTargets(t *testing.T) {
	b := NewBatch(2, 32)
	samples := mustSamples(t, 3)
	require.NoError(t, b.Add(samples[0], chess.Chess768{}, chess.MaterialCount{N: 8}))
	require.NoError(t, b.Add(samples[1], chess.Chess768{}, chess.MaterialCount{N: 8}))
	require.Error(t, b.Add(samples[2], chess.Chess768{}, chess.Single{}))

	stm, nstm := b.Features()
	assert.Equal(t, 2, stm.Batch())
	assert.Equal(t, 2, nstm.Batch())
	assert.Equal(t, []int{7, 7}, b.Buckets)
	for _, idx := range stm.Sample(0) {
		assert.NotEqual(t, tensor.Sentinel, idx)
	}

	dst := tensor.NewDense(4, 1)
	require.NoError(t, b.Targets(0, 400, dst))
	assert.InDelta(t, 0.5, dst.At(0, 0), 1e-6)
	assert.Greater(t, dst.At(1, 0), float32(0.5))

	assert.ErrorIs(t, b.Targets(0, 400, tensor.NewDense(1, 1)), tensor.ErrShapeMismatch)
	assert.ErrorIs(t, b.Targets(0, 0, dst), tensor.ErrInvalidArgument)

	b.Reset()
	assert.Equal(t, 0, b.Size)
}

func TestSliceSource_Cycles(t *testing.T) {
	src := NewSliceSource(mustSamples(t, 3), false, 1)
	var scores []float32
	for i := 0; i < 7; i++ {
		s, err := src.Next()
		require.NoError(t, err)
		scores = append(scores, s.Score)
	}
	assert.Equal(t, []float32{0, 1, 2, 0, 1, 2, 0}, scores)

	_, err := NewSliceSource(nil, true, 1).Next()
	assert.ErrorIs(t, err, io.EOF)
}

func TestSliceSource_ShuffleIsPermutation(t *testing.T) {
	src := NewSliceSource(mustSamples(t, 10), true, 42)
	seen := map[float32]bool{}
	for i := 0; i < 10; i++ {
		s, err := src.Next()
		require.NoError(t, err)
		seen[s.Score] = true
	}
	assert.Len(t, seen, 10)
}

func TestPrefetcher_FiniteSource(t *testing.T) {
	ctx := context.Background()
	p, err := NewPrefetcher(ctx, NewFiniteSource(mustSamples(t, 5)), PrefetchConfig{BatchSize: 2, QueueSize: 2})
	require.NoError(t, err)
	defer p.Close()

	var sizes []int
	for {
		b, err := p.Next(ctx)
		if errors.Is(err, io.EOF) {
			break
		}
		require.NoError(t, err)
		sizes = append(sizes, b.Size)
		p.Recycle(b)
	}
	assert.Equal(t, []int{2, 2, 1}, sizes)
}

type failingSource struct{ n int }

func (f *failingSource) Next() (Sample, error) {
	if f.n == 0 {
		return Sample{}, errors.New("disk on fire")
	}
	f.n--
	s, err := ParseLine(startFEN + " | 0 | 0.5")
	return s, err
}

func TestPrefetcher_SourceError(t *testing.T) {
	ctx := context.Background()
	p, err := NewPrefetcher(ctx, &failingSource{n: 3}, PrefetchConfig{BatchSize: 2})
	require.NoError(t, err)
	defer p.Close()

	b, err := p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 2, b.Size)
	p.Recycle(b)

	b, err = p.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, 1, b.Size)
	p.Recycle(b)

	_, err = p.Next(ctx)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "disk on fire")
}

func TestPrefetcher_CloseUnblocks(t *testing.T) {
	ctx := context.Background()
	p, err := NewPrefetcher(ctx, NewSliceSource(mustSamples(t, 4), true, 3), PrefetchConfig{BatchSize: 4, QueueSize: 1})
	require.NoError(t, err)

	// Hold every batch so the worker blocks on the free list.
	for i := 0; i < 2; i++ {
		_, err := p.Next(ctx)
		require.NoError(t, err)
	}

	done := make(chan struct{})
	go func() {
		p.Close()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("Close did not return")
	}
}

func TestPrefetcher_ContextCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	p, err := NewPrefetcher(context.Background(), NewSliceSource(mustSamples(t, 4), false, 0), PrefetchConfig{BatchSize: 4})
	require.NoError(t, err)
	defer p.Close()

	cancel()
	_, err = p.Next(ctx)
	// A batch may already be ready; either outcome is valid but must not block.
	if err != nil {
		assert.ErrorIs(t, err, context.Canceled)
	}

	_, err = NewPrefetcher(context.Background(), NewFiniteSource(nil), PrefetchConfig{})
	assert.Error(t, err)
}
