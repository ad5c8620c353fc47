// Package checkpoint saves and restores training state.
//
// File layout:
//
//	[4 bytes: Magic "NNUE"]
//	[4 bytes: Version (uint32 LE)]
//	[8 bytes: Payload size (uint64 LE)]
//	[32 bytes: SHA-256 of the payload]
//	[Payload: protobuf wire format]
//
// Payload fields:
//
//	1 net_id     string
//	2 superbatch varint
//	3 step       varint
//	4 values     packed fixed32 (float32 bits)
//	5 momentum   packed fixed32
//	6 velocity   packed fixed32
//
// Unknown fields are skipped so later versions can add fields.
package checkpoint
