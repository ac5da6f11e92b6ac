// Package wire decodes the protobuf envelopes that frame replay data: the
// outer DEM records and the inner NET/SVC records.
//
// The envelopes are small and their schemas frozen, so they are decoded
// field by field with protowire instead of generated code. Unknown fields
// are skipped by wire type, which keeps newer replays readable.
//
// Decoded messages borrow their bytes fields from the input buffer. The
// demo streams may reuse that buffer for the next record, so a message must
// be fully consumed before the next record is read.
package wire
