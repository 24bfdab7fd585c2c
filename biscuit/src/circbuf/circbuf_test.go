package circbuf

import "testing"

func TestPutGetRoundTrip(t *testing.T) {
	cb := NewCircbuf(4)
	if !cb.Empty() {
		t.Fatalf("expected new circbuf to be empty")
	}
	for _, b := range []uint8{1, 2, 3} {
		if !cb.PutByte(b) {
			t.Fatalf("PutByte(%d) unexpectedly failed", b)
		}
	}
	for _, want := range []uint8{1, 2, 3} {
		got, ok := cb.GetByte()
		if !ok || got != want {
			t.Fatalf("GetByte = (%d, %v), want (%d, true)", got, ok, want)
		}
	}
	if !cb.Empty() {
		t.Fatalf("expected circbuf to be empty after draining")
	}
}

func TestFullRejectsExtraBytes(t *testing.T) {
	cb := NewCircbuf(2)
	if !cb.PutByte(1) || !cb.PutByte(2) {
		t.Fatalf("expected both puts to succeed")
	}
	if !cb.Full() {
		t.Fatalf("expected circbuf to report full at capacity")
	}
	if cb.PutByte(3) {
		t.Fatalf("expected PutByte to fail once full")
	}
}

func TestWrapsAroundAfterDraining(t *testing.T) {
	cb := NewCircbuf(3)
	cb.Write([]uint8{1, 2, 3})
	cb.GetByte()
	cb.GetByte()
	n := cb.Write([]uint8{4, 5})
	if n != 2 {
		t.Fatalf("expected to write 2 bytes into the drained slots, got %d", n)
	}
	dst := make([]uint8, 3)
	n = cb.Read(dst)
	if n != 3 {
		t.Fatalf("expected to read 3 bytes, got %d", n)
	}
	want := []uint8{3, 4, 5}
	for i := range want {
		if dst[i] != want[i] {
			t.Fatalf("dst[%d] = %d, want %d", i, dst[i], want[i])
		}
	}
}
