package nettrace

import (
	"encoding/binary"
	"math"
	"unicode/utf16"
)

// Reader is a restartable cursor over a byte buffer that grows as more
// input becomes available. Every Try* method either fully consumes the
// bytes it needs and advances off, or leaves off untouched and returns
// false. Composite decoders that need to read several primitives as one
// atomic unit should take a Mark before the first read and Rewind to it
// if any later read fails.
//
// err is sticky and distinct from "not enough bytes yet": it is only set
// when the buffered bytes are provably invalid (for example an unsigned
// varint that never terminates within its maximum width).
type Reader struct {
	buf  []byte
	off  int
	base int64
	err  error
}

func newReader() *Reader {
	return &Reader{}
}

// feed appends newly received bytes to the buffer.
func (r *Reader) feed(b []byte) {
	r.buf = append(r.buf, b...)
}

// discardConsumed drops bytes before off that can never be rewound to,
// keeping the buffer from growing without bound across a long stream.
// markFloor is the earliest offset a live Mark still refers to; bytes
// before it are safe to discard.
func (r *Reader) discardConsumed(markFloor int64) {
	limit := int(markFloor - r.base)
	if limit <= 0 {
		return
	}
	if limit > r.off {
		limit = r.off
	}
	r.buf = r.buf[limit:]
	r.off -= limit
	r.base += int64(limit)
}

// Pos returns the absolute stream offset of the next unread byte.
func (r *Reader) Pos() int64 {
	return r.base + int64(r.off)
}

// Buffered returns the number of bytes available to read without
// pulling in more input.
func (r *Reader) Buffered() int {
	return len(r.buf) - r.off
}

// Mark snapshots the current position for a later Rewind.
func (r *Reader) Mark() int64 {
	return r.Pos()
}

// Rewind restores the cursor to a position previously returned by Mark.
// The position must still be within the buffered region.
func (r *Reader) Rewind(mark int64) {
	r.off = int(mark - r.base)
}

func (r *Reader) Err() error {
	return r.err
}

func (r *Reader) fail(err error) {
	if r.err == nil {
		r.err = err
	}
}

func (r *Reader) TryBytes(n int) ([]byte, bool) {
	if r.Buffered() < n {
		return nil, false
	}
	b := r.buf[r.off : r.off+n]
	r.off += n
	return b, true
}

func (r *Reader) TryUint8() (uint8, bool) {
	b, ok := r.TryBytes(1)
	if !ok {
		return 0, false
	}
	return b[0], true
}

func (r *Reader) TryInt16() (int16, bool) {
	v, ok := r.TryUint16()
	return int16(v), ok
}

func (r *Reader) TryUint16() (uint16, bool) {
	b, ok := r.TryBytes(2)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint16(b), true
}

func (r *Reader) TryInt32() (int32, bool) {
	v, ok := r.TryUint32()
	return int32(v), ok
}

func (r *Reader) TryUint32() (uint32, bool) {
	b, ok := r.TryBytes(4)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint32(b), true
}

func (r *Reader) TryInt64() (int64, bool) {
	v, ok := r.TryUint64()
	return int64(v), ok
}

func (r *Reader) TryUint64() (uint64, bool) {
	b, ok := r.TryBytes(8)
	if !ok {
		return 0, false
	}
	return binary.LittleEndian.Uint64(b), true
}

func (r *Reader) TryFloat32() (float32, bool) {
	v, ok := r.TryUint32()
	if !ok {
		return 0, false
	}
	return math.Float32frombits(v), true
}

func (r *Reader) TryFloat64() (float64, bool) {
	v, ok := r.TryUint64()
	if !ok {
		return 0, false
	}
	return math.Float64frombits(v), true
}

func (r *Reader) TryGUID() (Guid, bool) {
	b, ok := r.TryBytes(16)
	if !ok {
		return Guid{}, false
	}
	var g Guid
	copy(g[:], b)
	return g, true
}

// TryVarUint32 decodes a LEB128-style unsigned varint capped at 5 bytes
// (enough to hold any 32-bit value). An overlong encoding is a malformed
// stream, not merely an incomplete one.
func (r *Reader) TryVarUint32() (uint32, bool) {
	v, ok := r.tryVarUint(5)
	return uint32(v), ok
}

// TryVarUint64 decodes a LEB128-style unsigned varint capped at 10 bytes.
func (r *Reader) TryVarUint64() (uint64, bool) {
	return r.tryVarUint(10)
}

func (r *Reader) tryVarUint(maxBytes int) (uint64, bool) {
	start := r.off
	var result uint64
	var shift uint
	for i := 0; i < maxBytes; i++ {
		if r.Buffered() == 0 {
			r.off = start
			return 0, false
		}
		b := r.buf[r.off]
		r.off++
		result |= uint64(b&0x7f) << shift
		if b&0x80 == 0 {
			return result, true
		}
		shift += 7
	}
	r.off = start
	r.fail(newMalformedFormatError(r.base+int64(start), "varint exceeds %d bytes", maxBytes))
	return 0, false
}

// TryUTF16LengthPrefixed reads an i32 character count followed by that
// many UTF-16LE code units, decoded to a Go string.
func (r *Reader) TryUTF16LengthPrefixed() (string, bool) {
	start := r.off
	n, ok := r.TryInt32()
	if !ok {
		return "", false
	}
	if n < 0 {
		r.off = start
		r.fail(newMalformedFormatError(r.base+int64(start), "negative string length %d", n))
		return "", false
	}
	units := make([]uint16, n)
	for i := range units {
		u, ok := r.TryUint16()
		if !ok {
			r.off = start
			return "", false
		}
		units[i] = u
	}
	return string(utf16.Decode(units)), true
}

// TryUTF16NullTerminated reads UTF-16LE code units up to and including a
// terminating NUL, returning the string without the terminator.
func (r *Reader) TryUTF16NullTerminated() (string, bool) {
	start := r.off
	var units []uint16
	for {
		u, ok := r.TryUint16()
		if !ok {
			r.off = start
			return "", false
		}
		if u == 0 {
			return string(utf16.Decode(units)), true
		}
		units = append(units, u)
	}
}
