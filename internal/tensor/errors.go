package tensor

import (
	"errors"
	"fmt"
)

// Common errors.
var (
	ErrShapeMismatch     = errors.New("buffer shape mismatch")
	ErrIndexOutOfRange   = errors.New("index out of range")
	ErrBucketOutOfRange  = errors.New("bucket index out of range")
	ErrSentinelMisuse    = errors.New("negative feature index that is not the sentinel")
	ErrInvalidArgument   = errors.New("invalid argument")
	ErrDevice            = errors.New("device failure")
	ErrBackendReleased   = errors.New("backend released")
	ErrUnsupportedDevice = errors.New("device not supported on this platform")
)

// ContractError reports a kernel input that violates the kernel's contract.
// The step that issued the kernel must be discarded.
type ContractError struct {
	Kernel    string // Kernel name, e.g. "sparse_affine_forward"
	Invariant string // Invariant that failed, e.g. "bucket < num_buckets"
	Details   string // Offending values
	Err       error  // Sentinel category, matched with errors.Is
}

// Error implements the error interface.
func (e *ContractError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s: %s (%v)", e.Kernel, e.Invariant, e.Details, e.Err)
	}
	return fmt.Sprintf("%s: %s (%v)", e.Kernel, e.Invariant, e.Err)
}

// Unwrap returns the sentinel category.
func (e *ContractError) Unwrap() error { return e.Err }

// Violation builds a ContractError.
func Violation(kernel, invariant string, err error, format string, args ...any) *ContractError {
	return &ContractError{
		Kernel:    kernel,
		Invariant: invariant,
		Details:   fmt.Sprintf(format, args...),
		Err:       err,
	}
}

// CheckShape returns a ContractError unless d is rows x cols.
func CheckShape(kernel, name string, d *Dense, rows, cols int) error {
	if d == nil {
		return Violation(kernel, name+" present", ErrInvalidArgument, "nil buffer")
	}
	if d.rows != rows || d.cols != cols {
		return Violation(kernel, fmt.Sprintf("%s is %dx%d", name, rows, cols), ErrShapeMismatch,
			"got %dx%d", d.rows, d.cols)
	}
	return nil
}

// CheckFeatures validates a feature stream against batch and the number of
// weight rows. Sentinel slots are allowed anywhere; other negative values and
// indices >= inputs are rejected.
func CheckFeatures(kernel, name string, f *Features, batch, inputs int) error {
	if f == nil {
		return Violation(kernel, name+" present", ErrInvalidArgument, "nil feature stream")
	}
	if f.batch != batch {
		return Violation(kernel, fmt.Sprintf("%s has %d samples", name, batch), ErrShapeMismatch,
			"got %d", f.batch)
	}
	for i, idx := range f.indices {
		switch {
		case idx == Sentinel:
		case idx < 0:
			return Violation(kernel, name+" index >= -1", ErrSentinelMisuse,
				"sample %d slot %d holds %d", i/f.maxActive, i%f.maxActive, idx)
		case int(idx) >= inputs:
			return Violation(kernel, fmt.Sprintf("%s index < %d", name, inputs), ErrIndexOutOfRange,
				"sample %d slot %d holds %d", i/f.maxActive, i%f.maxActive, idx)
		}
	}
	return nil
}

// CheckBuckets validates one bucket index per sample against numBuckets.
func CheckBuckets(kernel string, buckets []int, batch, numBuckets int) error {
	if len(buckets) != batch {
		return Violation(kernel, fmt.Sprintf("one bucket per sample (%d)", batch), ErrShapeMismatch,
			"got %d", len(buckets))
	}
	for b, k := range buckets {
		if k < 0 || k >= numBuckets {
			return Violation(kernel, fmt.Sprintf("0 <= bucket < %d", numBuckets), ErrBucketOutOfRange,
				"sample %d routes to %d", b, k)
		}
	}
	return nil
}
