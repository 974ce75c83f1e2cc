package log

import (
	"fmt"
	"io"

	"github.com/fxamacker/cbor/v2"
)

// A trace file is a plain concatenation of CBOR-encoded Events. Timestamps
// are tagged RFC 3339 strings so nanoseconds survive the round trip and
// generic CBOR tools can still read them.
var (
	traceEnc = mustEncMode(cbor.EncOptions{
		Sort:          cbor.SortCoreDeterministic,
		IndefLength:   cbor.IndefLengthForbidden,
		NilContainers: cbor.NilContainerAsNull,
		Time:          cbor.TimeRFC3339Nano,
		TimeTag:       cbor.EncTagRequired,
	})

	// Unknown keys are skipped so older readers accept newer traces.
	traceDec = mustDecMode(cbor.DecOptions{
		DupMapKey:   cbor.DupMapKeyEnforcedAPF,
		IndefLength: cbor.IndefLengthForbidden,
	})
)

func mustEncMode(opts cbor.EncOptions) cbor.EncMode {
	em, err := opts.EncMode()
	if err != nil {
		panic(fmt.Sprintf("log: trace encoder options: %v", err))
	}
	return em
}

func mustDecMode(opts cbor.DecOptions) cbor.DecMode {
	dm, err := opts.DecMode()
	if err != nil {
		panic(fmt.Sprintf("log: trace decoder options: %v", err))
	}
	return dm
}

// EncodeEvent returns the trace encoding of one event.
func EncodeEvent(event Event) ([]byte, error) {
	return traceEnc.Marshal(event)
}

// DecodeEvent parses one trace-encoded event.
func DecodeEvent(data []byte) (Event, error) {
	var event Event
	if err := traceDec.Unmarshal(data, &event); err != nil {
		return Event{}, fmt.Errorf("decode trace event: %w", err)
	}
	return event, nil
}

// NewEncoder returns a stream encoder writing trace events to w.
func NewEncoder(w io.Writer) *cbor.Encoder {
	return traceEnc.NewEncoder(w)
}

// NewDecoder returns a stream decoder reading trace events from r.
func NewDecoder(r io.Reader) *cbor.Decoder {
	return traceDec.NewDecoder(r)
}
