package ie

import "encoding/binary"

// tlvHeaderLen is the size of the big-endian Type and Length fields.
const tlvHeaderLen = 4

// TLV is one Type-Length-Value record. Value aliases the walked buffer.
type TLV struct {
	Type  uint16
	Value []byte
}

// TLVWalker iterates a buffer of records laid out as
// Type(u16be) | Length(u16be) | Value[Length].
//
// The walk is lazy and cannot be restarted. Lengths are untrusted: a record
// whose value would end past the buffer stops the walk and marks it
// malformed instead of being returned.
type TLVWalker struct {
	buf       []byte
	offset    int
	done      bool
	malformed bool
}

// NewTLVWalker starts a walk at offset. An offset outside the buffer yields
// an empty walk.
func NewTLVWalker(buf []byte, offset int) *TLVWalker {
	w := &TLVWalker{buf: buf, offset: offset}
	if offset < 0 || offset > len(buf) {
		w.done = true
		w.malformed = offset < 0
	}
	return w
}

// Next returns the next record, or false when the walk is over.
func (w *TLVWalker) Next() (TLV, bool) {
	if w.done {
		return TLV{}, false
	}
	if len(w.buf)-w.offset < tlvHeaderLen {
		w.done = true
		return TLV{}, false
	}

	typ := binary.BigEndian.Uint16(w.buf[w.offset:])
	length := int(binary.BigEndian.Uint16(w.buf[w.offset+2:]))
	start := w.offset + tlvHeaderLen
	end := start + length

	if end > len(w.buf) {
		w.done = true
		w.malformed = true
		return TLV{}, false
	}

	w.offset = end
	return TLV{Type: typ, Value: w.buf[start:end:end]}, true
}

// Malformed reports whether the walk stopped on a length overrun.
func (w *TLVWalker) Malformed() bool {
	return w.malformed
}

// IterateTLVs calls fn for each record from offset until fn returns false
// or the walk ends. It returns false if the walk hit a malformed record.
func IterateTLVs(buf []byte, offset int, fn func(rec TLV) bool) bool {
	w := NewTLVWalker(buf, offset)
	for {
		rec, ok := w.Next()
		if !ok {
			break
		}
		if !fn(rec) {
			return true
		}
	}
	return !w.Malformed()
}

// FindTLV returns the value of the first record of type typ.
func FindTLV(buf []byte, offset int, typ uint16) ([]byte, bool) {
	var (
		val   []byte
		found bool
	)
	IterateTLVs(buf, offset, func(rec TLV) bool {
		if rec.Type == typ {
			val, found = rec.Value, true
			return false
		}
		return true
	})
	return val, found
}
