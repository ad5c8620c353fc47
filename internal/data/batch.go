package data

import (
	"fmt"
	"math"

	"github.com/born-ml/nnue/internal/chess"
	"github.com/born-ml/nnue/internal/tensor"
)

// Batch is a reusable buffer holding up to Capacity packed positions.
// Only the first Size samples are meaningful.
type Batch struct {
	Size int

	STM     *tensor.Features
	NSTM    *tensor.Features
	Scores  []float32
	Results []float32
	Buckets []int

	stmBuf  []int32
	nstmBuf []int32
}

// NewBatch allocates a batch for capacity samples of up to maxActive features.
func NewBatch(capacity, maxActive int) *Batch {
	return &Batch{
		STM:     tensor.NewFeatures(capacity, maxActive),
		NSTM:    tensor.NewFeatures(capacity, maxActive),
		Scores:  make([]float32, capacity),
		Results: make([]float32, capacity),
		Buckets: make([]int, capacity),
		stmBuf:  make([]int32, 0, maxActive),
		nstmBuf: make([]int32, 0, maxActive),
	}
}

// Capacity returns the maximum number of samples.
func (b *Batch) Capacity() int { return len(b.Scores) }

// Reset empties the batch without releasing memory.
func (b *Batch) Reset() { b.Size = 0 }

// Add packs one sample into the next free slot.
func (b *Batch) Add(s Sample, input chess.Chess768, policy chess.Policy) error {
	if b.Size == b.Capacity() {
		return fmt.Errorf("data: batch full at %d samples", b.Size)
	}
	i := b.Size
	b.stmBuf, b.nstmBuf = input.Perspectives(s.Position, b.stmBuf[:0], b.nstmBuf[:0])
	if err := b.STM.Set(i, b.stmBuf); err != nil {
		return fmt.Errorf("data: stm features: %w", err)
	}
	if err := b.NSTM.Set(i, b.nstmBuf); err != nil {
		return fmt.Errorf("data: nstm features: %w", err)
	}
	b.Scores[i] = s.Score
	b.Results[i] = s.Result
	b.Buckets[i] = policy.Bucket(s.Position)
	b.Size++
	return nil
}

// Features returns views of both perspectives over the filled samples.
func (b *Batch) Features() (stm, nstm *tensor.Features) {
	return b.STM.Head(b.Size), b.NSTM.Head(b.Size)
}

// Targets writes the blended training targets of the filled samples into the
// first Size rows of dst:
//
//	target = wdl*result + (1-wdl)*sigmoid(score/evalScale)
func (b *Batch) Targets(wdl, evalScale float32, dst *tensor.Dense) error {
	if dst.Cols() != 1 || dst.Rows() < b.Size {
		return fmt.Errorf("%w: targets %dx%d for %d samples", tensor.ErrShapeMismatch, dst.Rows(), dst.Cols(), b.Size)
	}
	if evalScale <= 0 {
		return fmt.Errorf("%w: eval scale %v", tensor.ErrInvalidArgument, evalScale)
	}
	out := dst.Data()
	for i := 0; i < b.Size; i++ {
		out[i] = Target(b.Scores[i], b.Results[i], wdl, evalScale)
	}
	return nil
}

// Target blends a score and a game result into a probability target.
func Target(score, result, wdl, evalScale float32) float32 {
	eval := 1 / (1 + math.Exp(-float64(score)/float64(evalScale)))
	return wdl*result + (1-wdl)*float32(eval)
}
