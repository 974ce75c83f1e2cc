package sensor

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/sensorlink/sensorlink-go/pkg/pbuf"
	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Record layout.
const (
	// NameSize is the fixed width of each string field of an info record.
	NameSize = 16

	// InfoRecordSize is the encoded size of an InfoRecord.
	InfoRecordSize = 4*NameSize + 5*4

	// EventHeaderSize is the encoded size of an EventHeader.
	EventHeaderSize = 32

	// SampleSize is the encoded size of one raw sample.
	SampleSize = 4
)

// InfoRecord is the wire form of a sensor description as drivers report
// it. Range, accuracy and power are raw integers.
type InfoRecord struct {
	Name            string
	Vendor          string
	FirmwareVersion string
	HardwareVersion string
	TypeID          TypeID
	SensorID        int32
	MaxRange        int32
	Accuracy        int32
	Power           int32
}

// MarshalBinary encodes the record. Strings longer than NameSize bytes are
// truncated.
func (r InfoRecord) MarshalBinary() ([]byte, error) {
	b := make([]byte, InfoRecordSize)
	putName(b[0:], r.Name)
	putName(b[NameSize:], r.Vendor)
	putName(b[2*NameSize:], r.FirmwareVersion)
	putName(b[3*NameSize:], r.HardwareVersion)
	off := 4 * NameSize
	for _, v := range []int32{int32(r.TypeID), r.SensorID, r.MaxRange, r.Accuracy, r.Power} {
		binary.LittleEndian.PutUint32(b[off:], uint32(v))
		off += 4
	}
	return b, nil
}

// UnmarshalBinary decodes a record of exactly InfoRecordSize bytes.
func (r *InfoRecord) UnmarshalBinary(b []byte) error {
	if len(b) != InfoRecordSize {
		return fmt.Errorf("%w: %w: info record of %d bytes", wire.StatusIO, ErrShortRecord, len(b))
	}
	r.Name = getName(b[0:NameSize])
	r.Vendor = getName(b[NameSize : 2*NameSize])
	r.FirmwareVersion = getName(b[2*NameSize : 3*NameSize])
	r.HardwareVersion = getName(b[3*NameSize : 4*NameSize])
	off := 4 * NameSize
	next := func() int32 {
		v := int32(binary.LittleEndian.Uint32(b[off:]))
		off += 4
		return v
	}
	r.TypeID = TypeID(next())
	r.SensorID = next()
	r.MaxRange = next()
	r.Accuracy = next()
	r.Power = next()
	return nil
}

func putName(dst []byte, s string) {
	copy(dst[:NameSize], s)
}

func getName(b []byte) string {
	if i := bytes.IndexByte(b, 0); i >= 0 {
		b = b[:i]
	}
	return string(b)
}

// WriteInfoList writes a GET_INFO_LIST reply.
func WriteInfoList(reply *pbuf.PBuf, records []InfoRecord) bool {
	if !reply.WriteU32(uint32(len(records))) {
		return false
	}
	for _, r := range records {
		b, _ := r.MarshalBinary()
		if !reply.WriteBuffer(b) {
			return false
		}
	}
	return true
}

// ReadInfoList decodes a GET_INFO_LIST reply.
func ReadInfoList(reply *pbuf.PBuf) ([]InfoRecord, error) {
	count, ok := reply.ReadU32()
	if !ok {
		return nil, fmt.Errorf("%w: %w: missing record count", wire.StatusIO, ErrShortRecord)
	}
	// Each record is a tagged buffer: tag, u32 length, payload.
	if room := reply.Remaining() / (1 + 4 + InfoRecordSize); count > uint32(room) {
		return nil, fmt.Errorf("%w: %w: %d records announced, room for %d", wire.StatusIO, ErrShortRecord, count, room)
	}
	records := make([]InfoRecord, 0, count)
	for i := uint32(0); i < count; i++ {
		v, ok := reply.ReadBuffer()
		if !ok {
			return nil, fmt.Errorf("%w: %w: %d of %d records", wire.StatusIO, ErrShortRecord, i, count)
		}
		var r InfoRecord
		if err := r.UnmarshalBinary(v.Bytes()); err != nil {
			return nil, err
		}
		records = append(records, r)
	}
	return records, nil
}

// EventHeader is the fixed part of an event payload.
type EventHeader struct {
	SensorID  int32
	Version   int32
	Timestamp int64
	Option    uint32
	Mode      int32
	DataLen   uint32
}

// MarshalBinary encodes the header.
func (h EventHeader) MarshalBinary() ([]byte, error) {
	b := make([]byte, EventHeaderSize)
	binary.LittleEndian.PutUint32(b[0:], uint32(h.SensorID))
	binary.LittleEndian.PutUint32(b[4:], uint32(h.Version))
	binary.LittleEndian.PutUint64(b[8:], uint64(h.Timestamp))
	binary.LittleEndian.PutUint32(b[16:], h.Option)
	binary.LittleEndian.PutUint32(b[20:], uint32(h.Mode))
	binary.LittleEndian.PutUint32(b[24:], h.DataLen)
	return b, nil
}

// UnmarshalBinary decodes a header of exactly EventHeaderSize bytes.
func (h *EventHeader) UnmarshalBinary(b []byte) error {
	if len(b) != EventHeaderSize {
		return fmt.Errorf("%w: %w: event header of %d bytes", wire.StatusIO, ErrShortRecord, len(b))
	}
	h.SensorID = int32(binary.LittleEndian.Uint32(b[0:]))
	h.Version = int32(binary.LittleEndian.Uint32(b[4:]))
	h.Timestamp = int64(binary.LittleEndian.Uint64(b[8:]))
	h.Option = binary.LittleEndian.Uint32(b[16:])
	h.Mode = int32(binary.LittleEndian.Uint32(b[20:]))
	h.DataLen = binary.LittleEndian.Uint32(b[24:])
	return nil
}

// WriteEvent writes an event payload. DataLen is taken from raw.
func WriteEvent(b *pbuf.PBuf, h EventHeader, raw []int32) bool {
	h.DataLen = uint32(len(raw) * SampleSize)
	hdr, _ := h.MarshalBinary()
	data := make([]byte, 0, h.DataLen)
	for _, v := range raw {
		data = binary.LittleEndian.AppendUint32(data, uint32(v))
	}
	return b.WriteBuffer(hdr) && b.WriteBuffer(data)
}

// ReadEvent decodes an event payload. The samples view borrows from b.
func ReadEvent(b *pbuf.PBuf) (EventHeader, pbuf.View, error) {
	var h EventHeader
	hv, ok := b.ReadBuffer()
	if !ok {
		return h, pbuf.View{}, fmt.Errorf("%w: %w: missing event header", wire.StatusIO, ErrShortRecord)
	}
	if err := h.UnmarshalBinary(hv.Bytes()); err != nil {
		return h, pbuf.View{}, err
	}
	dv, ok := b.ReadBuffer()
	if !ok {
		return h, pbuf.View{}, fmt.Errorf("%w: %w: missing samples", wire.StatusIO, ErrShortRecord)
	}
	if uint32(dv.Len()) != h.DataLen || h.DataLen%SampleSize != 0 {
		return h, pbuf.View{}, fmt.Errorf("%w: sample data of %d bytes, header says %d", wire.StatusIO, dv.Len(), h.DataLen)
	}
	return h, dv, nil
}

// DecodeSamples interprets little-endian i32 samples.
func DecodeSamples(data []byte) []int32 {
	out := make([]int32, len(data)/SampleSize)
	for i := range out {
		out[i] = int32(binary.LittleEndian.Uint32(data[i*SampleSize:]))
	}
	return out
}
