// Package cpu implements the reference NNUE training backend in pure Go.
//
// Every kernel matches the numeric contract of tensor.Backend and splits its
// work across goroutines with the parallel package. Work is partitioned so that
// no two goroutines write the same element: batch rows for forward passes,
// output columns for gradient accumulation, parameter ranges for the update.
package cpu
