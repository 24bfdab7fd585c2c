package console

import (
	"testing"
	"time"

	"defs"
	"tinfo"
)

func TestGetchBlocksUntilFed(t *testing.T) {
	c := New()
	feeder := tinfo.New(1)
	reader := tinfo.New(2)

	got := make(chan uint8, 1)
	go func() {
		got <- c.Getch(reader)
	}()

	time.Sleep(20 * time.Millisecond)
	select {
	case <-got:
		t.Fatalf("Getch returned before any input was fed")
	default:
	}

	c.Feed(feeder, []uint8{'x'})

	select {
	case b := <-got:
		if b != 'x' {
			t.Fatalf("Getch = %q, want 'x'", b)
		}
	case <-time.After(time.Second):
		t.Fatalf("Getch never unblocked after Feed")
	}
}

func TestWriteThenDrain(t *testing.T) {
	c := New()
	tn := tinfo.New(1)

	n, err := c.Write(tn, []byte("hello"))
	if err != 0 {
		t.Fatalf("Write failed: %d", err)
	}
	if n != 5 {
		t.Fatalf("Write returned %d, want 5", n)
	}

	out := c.Drain(tn, 16)
	if string(out) != "hello" {
		t.Fatalf("Drain = %q, want %q", out, "hello")
	}
}

func TestWriteRejectsInvalidUTF8(t *testing.T) {
	c := New()
	tn := tinfo.New(1)

	_, err := c.Write(tn, []byte{0xff, 0xfe})
	if err != -defs.EINVAL {
		t.Fatalf("expected EINVAL for invalid UTF-8, got %d", err)
	}
}
