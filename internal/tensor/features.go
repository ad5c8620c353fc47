package tensor

import "fmt"

// Sentinel marks an unused feature slot. Kernels skip it.
const Sentinel int32 = -1

// Features is one sparse input stream for a batch: maxActive slots per sample,
// packed contiguously, unused slots set to Sentinel.
type Features struct {
	indices   []int32
	batch     int
	maxActive int
}

// NewFeatures allocates a stream for batch samples with every slot empty.
func NewFeatures(batch, maxActive int) *Features {
	if batch < 0 || maxActive < 0 {
		panic(fmt.Sprintf("tensor: invalid feature stream %dx%d", batch, maxActive))
	}
	f := &Features{
		indices:   make([]int32, batch*maxActive),
		batch:     batch,
		maxActive: maxActive,
	}
	f.Clear()
	return f
}

// Batch returns the number of samples.
func (f *Features) Batch() int { return f.batch }

// MaxActive returns the slot count per sample.
func (f *Features) MaxActive() int { return f.maxActive }

// Indices returns the packed slots.
func (f *Features) Indices() []int32 { return f.indices }

// Sample returns the slots of sample b, sentinels included.
func (f *Features) Sample(b int) []int32 {
	return f.indices[b*f.maxActive : (b+1)*f.maxActive]
}

// Set stores the active indices of sample b and marks the remaining slots empty.
func (f *Features) Set(b int, active []int32) error {
	if b < 0 || b >= f.batch {
		return fmt.Errorf("%w: sample %d of %d", ErrIndexOutOfRange, b, f.batch)
	}
	if len(active) > f.maxActive {
		return fmt.Errorf("%w: %d active features exceed %d slots", ErrInvalidArgument, len(active), f.maxActive)
	}
	slots := f.Sample(b)
	n := copy(slots, active)
	for i := n; i < len(slots); i++ {
		slots[i] = Sentinel
	}
	return nil
}

// Clear marks every slot of every sample empty.
func (f *Features) Clear() {
	for i := range f.indices {
		f.indices[i] = Sentinel
	}
}

// Head returns a view over the first n samples.
func (f *Features) Head(n int) *Features {
	if n < 0 || n > f.batch {
		panic(fmt.Sprintf("tensor: head %d of %d samples", n, f.batch))
	}
	return &Features{indices: f.indices[:n*f.maxActive], batch: n, maxActive: f.maxActive}
}
