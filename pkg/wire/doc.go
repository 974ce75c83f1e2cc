// Package wire defines the result codes and the CBOR codec shared by the
// dispatch protocol.
//
// # Result Codes
//
// Every Dispatch call and every registry operation reports a Status. On the
// wire a Status is a signed 32-bit integer: 0 is success, negative values
// are failures. Status implements error so it can be returned, wrapped
// with fmt.Errorf and compared with errors.Is:
//
//	err := svc.Dispatch(ctx, cmd, req, reply)
//	if errors.Is(err, wire.StatusInvalidObject) {
//	    // handle was released
//	}
//	code := wire.StatusOf(err) // int32-compatible result
//
// # CBOR
//
// Structured payloads (diagnostic echo requests, trace events) use CBOR
// (RFC 8949) with integer keys and canonical ordering. Raw sensor records
// and event headers do not; they are fixed little-endian layouts carried
// inside parameter buffers.
package wire
