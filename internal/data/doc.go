// Package data produces fully formed training batches for the backend.
//
// Positions come from text files with one position per line:
//
//	<fen> | <score in centipawns, white relative> | <result 1.0/0.5/0.0, white relative>
//
// A Prefetcher packs them into reusable Batch buffers on a background
// goroutine so the training loop never waits on parsing.
package data
