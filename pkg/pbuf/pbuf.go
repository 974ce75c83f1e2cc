package pbuf

import (
	"encoding/binary"
	"fmt"
	"math"
	"strings"

	"github.com/sensorlink/sensorlink-go/pkg/wire"
)

// Buffer sizes.
const (
	// DefaultSize is the initial capacity used by ObtainDefault.
	DefaultSize = 256

	// MaxCapacity bounds how far any buffer may grow.
	MaxCapacity = 512 * 1024
)

// Type identifies the tag written in front of every value.
type Type uint8

const (
	TypeU8 Type = iota + 1
	TypeU16
	TypeU32
	TypeU64
	TypeI32
	TypeI64
	TypeBuffer
	TypeString
	TypeCBOR
)

// String returns the type name.
func (t Type) String() string {
	switch t {
	case TypeU8:
		return "u8"
	case TypeU16:
		return "u16"
	case TypeU32:
		return "u32"
	case TypeU64:
		return "u64"
	case TypeI32:
		return "i32"
	case TypeI64:
		return "i64"
	case TypeBuffer:
		return "buffer"
	case TypeString:
		return "string"
	case TypeCBOR:
		return "cbor"
	default:
		return "unknown"
	}
}

const (
	tagSize    = 1
	lengthSize = 4
)

// PBuf is a type-tagged parameter buffer.
type PBuf struct {
	data     []byte
	limit    int
	rpos     int
	gen      uint64
	failed   bool
	readOnly bool
	recycled bool
}

// Obtain allocates a buffer with the given initial capacity. The buffer
// grows on demand up to MaxCapacity.
func Obtain(size int) (*PBuf, error) {
	return ObtainLimited(size, MaxCapacity)
}

// ObtainDefault allocates a buffer of DefaultSize.
func ObtainDefault() *PBuf {
	b, _ := Obtain(DefaultSize)
	return b
}

// ObtainLimited allocates a buffer with the given initial capacity that
// never grows beyond limit.
func ObtainLimited(size, limit int) (*PBuf, error) {
	if size <= 0 || limit < size || limit > MaxCapacity {
		return nil, wire.Errorf(wire.StatusMallocFail, "pbuf size %d limit %d", size, limit)
	}
	return &PBuf{
		data:  make([]byte, 0, size),
		limit: limit,
	}, nil
}

// FromBytes wraps an encoded payload for reading. The bytes are not copied
// and must not be modified while the buffer is in use. Writes to the
// returned buffer fail.
func FromBytes(b []byte) *PBuf {
	return &PBuf{
		data:     b,
		limit:    len(b),
		readOnly: true,
	}
}

// Len returns the number of bytes written.
func (b *PBuf) Len() int {
	if b == nil {
		return 0
	}
	return len(b.data)
}

// Cap returns the capacity limit.
func (b *PBuf) Cap() int {
	if b == nil {
		return 0
	}
	return b.limit
}

// Remaining returns the number of unread bytes.
func (b *PBuf) Remaining() int {
	if b == nil {
		return 0
	}
	return len(b.data) - b.rpos
}

// Failed reports whether any write on this buffer has failed since it was
// obtained or last flushed.
func (b *PBuf) Failed() bool {
	return b != nil && b.failed
}

// Recycled reports whether the buffer has been released.
func (b *PBuf) Recycled() bool {
	return b == nil || b.recycled
}

// Bytes returns a copy of the written region.
func (b *PBuf) Bytes() []byte {
	if b == nil || len(b.data) == 0 {
		return nil
	}
	out := make([]byte, len(b.data))
	copy(out, b.data)
	return out
}

// Flush resets both cursors and the failure flag while keeping the
// allocated storage. Outstanding views become invalid.
func (b *PBuf) Flush() {
	if b == nil || b.recycled {
		return
	}
	b.data = b.data[:0]
	b.rpos = 0
	b.failed = false
	b.gen++
}

// Recycle releases the storage. It is safe to call on a nil or already
// recycled buffer. Outstanding views become invalid.
func (b *PBuf) Recycle() {
	if b == nil || b.recycled {
		return
	}
	b.data = nil
	b.rpos = 0
	b.recycled = true
	b.gen++
}

// reserve makes room for n more bytes, growing the storage if needed.
func (b *PBuf) reserve(n int) bool {
	if b == nil || b.recycled || b.readOnly {
		return false
	}
	need := len(b.data) + n
	if need > b.limit {
		b.failed = true
		return false
	}
	if need <= cap(b.data) {
		return true
	}
	newCap := cap(b.data) * 2
	if newCap < need {
		newCap = need
	}
	if newCap > b.limit {
		newCap = b.limit
	}
	grown := make([]byte, len(b.data), newCap)
	copy(grown, b.data)
	b.data = grown
	return true
}

func (b *PBuf) writeFixed(t Type, payload []byte) bool {
	if !b.reserve(tagSize + len(payload)) {
		return false
	}
	b.data = append(b.data, byte(t))
	b.data = append(b.data, payload...)
	return true
}

func (b *PBuf) writeVariable(t Type, parts ...[]byte) bool {
	total := 0
	for _, p := range parts {
		total += len(p)
	}
	if uint64(total) > math.MaxUint32 || !b.reserve(tagSize+lengthSize+total) {
		if b != nil {
			b.failed = true
		}
		return false
	}
	b.data = append(b.data, byte(t))
	b.data = binary.LittleEndian.AppendUint32(b.data, uint32(total))
	for _, p := range parts {
		b.data = append(b.data, p...)
	}
	return true
}

// WriteU8 appends a uint8.
func (b *PBuf) WriteU8(v uint8) bool {
	return b.writeFixed(TypeU8, []byte{v})
}

// WriteU16 appends a uint16.
func (b *PBuf) WriteU16(v uint16) bool {
	return b.writeFixed(TypeU16, binary.LittleEndian.AppendUint16(nil, v))
}

// WriteU32 appends a uint32.
func (b *PBuf) WriteU32(v uint32) bool {
	return b.writeFixed(TypeU32, binary.LittleEndian.AppendUint32(nil, v))
}

// WriteU64 appends a uint64.
func (b *PBuf) WriteU64(v uint64) bool {
	return b.writeFixed(TypeU64, binary.LittleEndian.AppendUint64(nil, v))
}

// WriteI32 appends an int32.
func (b *PBuf) WriteI32(v int32) bool {
	return b.writeFixed(TypeI32, binary.LittleEndian.AppendUint32(nil, uint32(v)))
}

// WriteI64 appends an int64.
func (b *PBuf) WriteI64(v int64) bool {
	return b.writeFixed(TypeI64, binary.LittleEndian.AppendUint64(nil, uint64(v)))
}

// WriteBuffer appends an opaque byte sequence. A nil or empty slice is
// written as a zero-length buffer.
func (b *PBuf) WriteBuffer(p []byte) bool {
	return b.writeVariable(TypeBuffer, p)
}

// WriteString appends a NUL-terminated string. Strings that already
// contain a NUL byte are rejected.
func (b *PBuf) WriteString(s string) bool {
	if strings.IndexByte(s, 0) >= 0 {
		if b != nil {
			b.failed = true
		}
		return false
	}
	return b.writeVariable(TypeString, []byte(s), []byte{0})
}

// WriteCBOR appends v encoded as CBOR.
func (b *PBuf) WriteCBOR(v any) error {
	data, err := wire.Marshal(v)
	if err != nil {
		if b != nil {
			b.failed = true
		}
		return fmt.Errorf("%w: encode cbor: %v", wire.StatusIO, err)
	}
	if !b.writeVariable(TypeCBOR, data) {
		return wire.Errorf(wire.StatusIO, "cbor payload of %d bytes does not fit", len(data))
	}
	return nil
}

// peekFixed returns the n payload bytes of the next value when its tag is t.
func (b *PBuf) peekFixed(t Type, n int) ([]byte, bool) {
	if b == nil || b.recycled {
		return nil, false
	}
	if len(b.data)-b.rpos < tagSize+n || Type(b.data[b.rpos]) != t {
		return nil, false
	}
	start := b.rpos + tagSize
	return b.data[start : start+n], true
}

// peekVariable returns the offset and length of the next variable-length
// value when its tag is t, and the total encoded size.
func (b *PBuf) peekVariable(t Type) (off, n, size int, ok bool) {
	hdr, ok := b.peekFixed(t, lengthSize)
	if !ok {
		return 0, 0, 0, false
	}
	length := binary.LittleEndian.Uint32(hdr)
	off = b.rpos + tagSize + lengthSize
	if uint64(length) > uint64(len(b.data)-off) {
		return 0, 0, 0, false
	}
	n = int(length)
	return off, n, tagSize + lengthSize + n, true
}

// ReadU8 reads a uint8.
func (b *PBuf) ReadU8() (uint8, bool) {
	p, ok := b.peekFixed(TypeU8, 1)
	if !ok {
		return 0, false
	}
	b.rpos += tagSize + 1
	return p[0], true
}

// ReadU16 reads a uint16.
func (b *PBuf) ReadU16() (uint16, bool) {
	p, ok := b.peekFixed(TypeU16, 2)
	if !ok {
		return 0, false
	}
	b.rpos += tagSize + 2
	return binary.LittleEndian.Uint16(p), true
}

// ReadU32 reads a uint32.
func (b *PBuf) ReadU32() (uint32, bool) {
	p, ok := b.peekFixed(TypeU32, 4)
	if !ok {
		return 0, false
	}
	b.rpos += tagSize + 4
	return binary.LittleEndian.Uint32(p), true
}

// ReadU64 reads a uint64.
func (b *PBuf) ReadU64() (uint64, bool) {
	p, ok := b.peekFixed(TypeU64, 8)
	if !ok {
		return 0, false
	}
	b.rpos += tagSize + 8
	return binary.LittleEndian.Uint64(p), true
}

// ReadI32 reads an int32.
func (b *PBuf) ReadI32() (int32, bool) {
	p, ok := b.peekFixed(TypeI32, 4)
	if !ok {
		return 0, false
	}
	b.rpos += tagSize + 4
	return int32(binary.LittleEndian.Uint32(p)), true
}

// ReadI64 reads an int64.
func (b *PBuf) ReadI64() (int64, bool) {
	p, ok := b.peekFixed(TypeI64, 8)
	if !ok {
		return 0, false
	}
	b.rpos += tagSize + 8
	return int64(binary.LittleEndian.Uint64(p)), true
}

// ReadBuffer returns a borrowed view of the next buffer value without
// copying it.
func (b *PBuf) ReadBuffer() (View, bool) {
	off, n, size, ok := b.peekVariable(TypeBuffer)
	if !ok {
		return View{}, false
	}
	b.rpos += size
	return View{owner: b, gen: b.gen, off: off, n: n}, true
}

// ReadString reads the next string value without its terminating NUL.
func (b *PBuf) ReadString() (string, bool) {
	off, n, size, ok := b.peekVariable(TypeString)
	if !ok || n == 0 || b.data[off+n-1] != 0 {
		return "", false
	}
	b.rpos += size
	return string(b.data[off : off+n-1]), true
}

// ReadCBOR decodes the next CBOR value into v. On failure the read cursor
// does not move.
func (b *PBuf) ReadCBOR(v any) error {
	off, n, size, ok := b.peekVariable(TypeCBOR)
	if !ok {
		return wire.Errorf(wire.StatusIO, "no cbor value at offset %d", b.readOffset())
	}
	if err := wire.Unmarshal(b.data[off:off+n], v); err != nil {
		return fmt.Errorf("%w: decode cbor: %v", wire.StatusIO, err)
	}
	b.rpos += size
	return nil
}

// PeekType returns the type of the next value.
func (b *PBuf) PeekType() (Type, bool) {
	if b == nil || b.recycled || b.rpos >= len(b.data) {
		return 0, false
	}
	return Type(b.data[b.rpos]), true
}

func (b *PBuf) readOffset() int {
	if b == nil {
		return 0
	}
	return b.rpos
}
