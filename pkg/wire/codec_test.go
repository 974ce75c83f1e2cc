package wire

import (
	"bytes"
	"testing"
)

type sample struct {
	ID    uint32            `cbor:"1,keyasint"`
	Name  string            `cbor:"2,keyasint,omitempty"`
	Attrs map[uint16]uint32 `cbor:"3,keyasint,omitempty"`
}

func TestMarshalRoundTrip(t *testing.T) {
	in := sample{ID: 7, Name: "accel", Attrs: map[uint16]uint32{2: 20, 1: 10}}

	data, err := Marshal(in)
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out sample
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.ID != 7 || out.Name != "accel" || out.Attrs[2] != 20 {
		t.Errorf("round trip = %+v", out)
	}
}

func TestUnmarshalIgnoresUnknownKeys(t *testing.T) {
	data, err := Marshal(map[uint64]any{1: uint32(3), 2: "gyro", 9: "future"})
	if err != nil {
		t.Fatalf("Marshal failed: %v", err)
	}

	var out sample
	if err := Unmarshal(data, &out); err != nil {
		t.Fatalf("Unmarshal failed: %v", err)
	}
	if out.ID != 3 || out.Name != "gyro" {
		t.Errorf("decoded = %+v", out)
	}
}

func TestMarshalDeterministic(t *testing.T) {
	a := map[uint16]uint32{3: 1, 1: 2, 2: 3}
	b := map[uint16]uint32{1: 2, 2: 3, 3: 1}

	dataA, _ := Marshal(a)
	dataB, _ := Marshal(b)
	if !bytes.Equal(dataA, dataB) {
		t.Error("canonical encoding should not depend on map insertion order")
	}
}
