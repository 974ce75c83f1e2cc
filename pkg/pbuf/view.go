package pbuf

// View is a borrowed window into a PBuf's storage, returned by ReadBuffer.
// It stays valid until the owning buffer is flushed or recycled.
type View struct {
	owner *PBuf
	gen   uint64
	off   int
	n     int
}

// Valid reports whether the view still refers to live storage.
func (v View) Valid() bool {
	return v.owner != nil && !v.owner.recycled && v.owner.gen == v.gen
}

// Len returns the length of the borrowed data, or zero for a stale view.
func (v View) Len() int {
	if !v.Valid() {
		return 0
	}
	return v.n
}

// Bytes returns the borrowed data, or nil once the view is stale. The
// slice aliases the buffer's storage and must not be modified or retained
// past the buffer's lifetime.
func (v View) Bytes() []byte {
	if !v.Valid() {
		return nil
	}
	return v.owner.data[v.off : v.off+v.n : v.off+v.n]
}

// Clone returns an owned copy of the borrowed data.
func (v View) Clone() []byte {
	src := v.Bytes()
	if src == nil {
		return nil
	}
	out := make([]byte, len(src))
	copy(out, src)
	return out
}
