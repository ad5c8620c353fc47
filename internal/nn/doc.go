// Package nn sequences the NNUE layer stack over a tensor.Backend.
//
// A Network owns the flattened parameter vector and every activation buffer
// for up to MaxBatch samples. One training step is:
//
//	ZeroGrad -> Forward -> Loss -> Backward -> optimizer step
//
// The architecture is fixed at construction:
//
//	sparse inputs -> feature transformer (single or dual perspective)
//	              -> FT activation [-> pairwise product]
//	              -> dense layers, each bucketed by output bucket
//	              -> scalar output
package nn
