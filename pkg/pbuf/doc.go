// Package pbuf implements the parameter buffer carried by every Dispatch
// call and every driver event.
//
// A PBuf is a growable byte buffer with independent write and read
// cursors. Values are type-tagged: each write emits a one-byte tag followed
// by the little-endian payload, and a read only succeeds when the next tag
// matches the requested type. Variable-length values (buffers, strings,
// CBOR documents) are length-prefixed with a uint32.
//
// # Failure Semantics
//
// Write methods return false when the value does not fit within the
// buffer's capacity limit; the failed call leaves the buffer unchanged but
// sets a sticky flag reported by Failed. Later writes may still succeed, so
// a caller that ignores a failed write can produce a payload with a hole in
// it. Check every write, or check Failed before handing the buffer to
// Dispatch.
//
// Read methods return false and leave the read cursor in place when the
// data is exhausted or the next value has a different type.
//
// # Borrowed Views
//
// ReadBuffer does not copy. It returns a View that refers to the buffer's
// own storage and is only valid until the buffer is flushed or recycled.
// After that View.Bytes returns nil. Use View.Clone to keep the data.
//
// A PBuf is not safe for concurrent use.
package pbuf
