package nettrace

import "testing"

func TestReaderTryUint32Insufficient(t *testing.T) {
	r := newReader()
	r.feed([]byte{1, 2, 3})
	if _, ok := r.TryUint32(); ok {
		t.Fatal("expected insufficient bytes, got a value")
	}
	if r.Pos() != 0 {
		t.Fatalf("position moved on failed read: %d", r.Pos())
	}
	r.feed([]byte{4})
	v, ok := r.TryUint32()
	if !ok {
		t.Fatal("expected success after feeding the missing byte")
	}
	if v != 0x04030201 {
		t.Fatalf("got %#x, want %#x", v, 0x04030201)
	}
	if r.Pos() != 4 {
		t.Fatalf("position = %d, want 4", r.Pos())
	}
}

func TestReaderMarkRewind(t *testing.T) {
	r := newReader()
	r.feed([]byte{1, 2, 3, 4, 5, 6})
	mark := r.Mark()
	if _, ok := r.TryUint32(); !ok {
		t.Fatal("expected success")
	}
	r.Rewind(mark)
	if r.Pos() != mark {
		t.Fatalf("rewind left position at %d, want %d", r.Pos(), mark)
	}
	v, ok := r.TryUint32()
	if !ok || v != 0x04030201 {
		t.Fatalf("re-read after rewind failed: v=%#x ok=%v", v, ok)
	}
}

func TestReaderDiscardConsumed(t *testing.T) {
	r := newReader()
	r.feed([]byte{1, 2, 3, 4, 5, 6, 7, 8})
	if _, ok := r.TryBytes(4); !ok {
		t.Fatal("expected success")
	}
	// Nothing before offset 4 can be rewound to; it should be dropped.
	r.discardConsumed(r.Pos())
	if got := len(r.buf); got != 4 {
		t.Fatalf("buf len = %d, want 4 after discarding consumed bytes", got)
	}
	if r.Pos() != 4 {
		t.Fatalf("Pos() = %d, want 4 (discarding must not move the logical cursor)", r.Pos())
	}
	v, ok := r.TryUint32()
	if !ok || v != 0x08070605 {
		t.Fatalf("read after discard: v=%#x ok=%v, want 0x8070605 true", v, ok)
	}
}

func TestReaderDiscardConsumedRespectsMarkFloor(t *testing.T) {
	r := newReader()
	r.feed([]byte{1, 2, 3, 4, 5, 6})
	mark := r.Mark()
	if _, ok := r.TryUint32(); !ok {
		t.Fatal("expected success")
	}
	// A live Mark at offset 0 means nothing may be discarded yet.
	r.discardConsumed(mark)
	if len(r.buf) != 6 {
		t.Fatalf("buf len = %d, want 6 (mark floor must block discard)", len(r.buf))
	}
	r.Rewind(mark)
	v, ok := r.TryUint32()
	if !ok || v != 0x04030201 {
		t.Fatalf("rewind after no-op discard failed: v=%#x ok=%v", v, ok)
	}
}

func TestReaderVarUint32(t *testing.T) {
	tests := []struct {
		bytes []byte
		want  uint32
	}{
		{[]byte{0x00}, 0},
		{[]byte{0x01}, 1},
		{[]byte{0x7f}, 0x7f},
		{[]byte{0x80, 0x01}, 0x80},
		{[]byte{0xff, 0xff, 0xff, 0xff, 0x0f}, 0xffffffff},
	}
	for _, tc := range tests {
		r := newReader()
		r.feed(tc.bytes)
		got, ok := r.TryVarUint32()
		if !ok {
			t.Fatalf("TryVarUint32(%x) failed", tc.bytes)
		}
		if got != tc.want {
			t.Fatalf("TryVarUint32(%x) = %d, want %d", tc.bytes, got, tc.want)
		}
		if r.Buffered() != 0 {
			t.Fatalf("TryVarUint32(%x) left %d unconsumed bytes", tc.bytes, r.Buffered())
		}
	}
}

func TestReaderVarUintOverlong(t *testing.T) {
	r := newReader()
	r.feed([]byte{0x80, 0x80, 0x80, 0x80, 0x80, 0x80})
	if _, ok := r.TryVarUint32(); ok {
		t.Fatal("expected failure on overlong varint")
	}
	if r.Err() == nil {
		t.Fatal("expected a sticky error on overlong varint")
	}
}

func TestReaderVarUintSplitAcrossFeeds(t *testing.T) {
	r := newReader()
	r.feed([]byte{0x80})
	if _, ok := r.TryVarUint32(); ok {
		t.Fatal("expected insufficient bytes mid-varint")
	}
	if r.Err() != nil {
		t.Fatalf("insufficient bytes should not set a sticky error, got %v", r.Err())
	}
	r.feed([]byte{0x01})
	got, ok := r.TryVarUint32()
	if !ok || got != 0x80 {
		t.Fatalf("got %d, %v, want 0x80, true", got, ok)
	}
}

func TestReaderUTF16NullTerminated(t *testing.T) {
	r := newReader()
	// "Hi" followed by a null terminator, little-endian UTF-16.
	r.feed([]byte{'H', 0, 'i', 0, 0, 0})
	s, ok := r.TryUTF16NullTerminated()
	if !ok {
		t.Fatal("expected success")
	}
	if s != "Hi" {
		t.Fatalf("got %q, want %q", s, "Hi")
	}
	if r.Buffered() != 0 {
		t.Fatalf("left %d unconsumed bytes", r.Buffered())
	}
}

func TestReaderGUID(t *testing.T) {
	r := newReader()
	raw := []byte{
		0x01, 0x02, 0x03, 0x04,
		0x05, 0x06,
		0x07, 0x08,
		0x09, 0x0a, 0x0b, 0x0c, 0x0d, 0x0e, 0x0f, 0x10,
	}
	r.feed(raw)
	g, ok := r.TryGUID()
	if !ok {
		t.Fatal("expected success")
	}
	want := "04030201-0605-0807-090a-0b0c0d0e0f10"
	if g.String() != want {
		t.Fatalf("got %q, want %q", g.String(), want)
	}
}
