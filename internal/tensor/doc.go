// Package tensor provides the buffer handles and the compute-context interface
// shared by every NNUE training backend.
//
// Buffers are owned by the caller. A backend reads and writes them only for the
// duration of a call and never keeps a reference:
//   - Dense: row-major float32 matrix view (batch rows x feature columns)
//   - Features: packed sparse feature indices, Sentinel marks unused slots
//   - Params: the flattened parameter vector with gradient and optimizer state
//
// Every kernel validates shapes and indices before touching memory and reports
// violations as *ContractError values.
package tensor
