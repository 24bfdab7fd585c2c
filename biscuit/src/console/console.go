// Package console implements the putch/getch character device the
// syscall surface bypasses VFS for on fd 0/1/2, per spec §4.9 and §6. It
// stands in for the external collaborator named in §1 ("console character
// I/O ... treated as an external collaborator"): a minimal, in-memory
// implementation good enough to drive read/write on stdin/stdout/stderr
// in tests, backed by circbuf.Circbuf_t the way the console tty queues in
// the original source are.
package console

import (
	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"circbuf"
	"defs"
	"spinlock"
	"synch"
	"tinfo"
)

/// Console_t is the shared console device: an input queue filled by Feed
/// (standing in for a keyboard interrupt handler) and consumed by Getch,
/// and an output queue filled by Putch and emptied by Drain. Reads block via a condition variable
/// until at least one byte is available, matching "read=0 reads from
/// console one char at a time" in spec §6.
type Console_t struct {
	sl   spinlock.Spinlock_t
	lk   synch.Lock_i
	cv   *synch.CV_t
	in   *circbuf.Circbuf_t
	out  *circbuf.Circbuf_t
	utf8 transform.Transformer
}

const inBufSz = 512
const outBufSz = 4096

/// New constructs a console device with empty input/output queues.
func New() *Console_t {
	return &Console_t{
		lk:   synch.NewWchanLock("console"),
		cv:   synch.NewCV("console"),
		in:   circbuf.NewCircbuf(inBufSz),
		out:  circbuf.NewCircbuf(outBufSz),
		utf8: unicode.UTF8Validator,
	}
}

/// Feed delivers bytes into the input queue as if typed at the keyboard,
/// and wakes any getch waiter. Exercised by tests in place of a real
/// interrupt handler.
func (c *Console_t) Feed(t *tinfo.Tnote_t, bs []uint8) {
	c.lk.Acquire(t)
	for _, b := range bs {
		c.in.PutByte(b)
	}
	c.cv.Broadcast(t, c.lk)
	c.lk.Release(t)
}

/// Getch blocks until at least one input byte is available and returns
/// it, matching read(fd=0)'s one-char-at-a-time contract.
func (c *Console_t) Getch(t *tinfo.Tnote_t) uint8 {
	c.lk.Acquire(t)
	for c.in.Empty() {
		c.cv.Wait(t, c.lk)
	}
	b, _ := c.in.GetByte()
	c.lk.Release(t)
	return b
}

/// Putch appends one byte to the output queue (e.g. for a display driver
/// to drain, not modeled here).
func (c *Console_t) Putch(t *tinfo.Tnote_t, b uint8) {
	c.lk.Acquire(t)
	c.out.PutByte(b)
	c.lk.Release(t)
}

/// Drain removes and returns up to max buffered output bytes, for tests
/// asserting on what write(fd=1/2, ...) produced.
func (c *Console_t) Drain(t *tinfo.Tnote_t, max int) []uint8 {
	c.lk.Acquire(t)
	defer c.lk.Release(t)
	buf := make([]uint8, max)
	n := c.out.Read(buf)
	return buf[:n]
}

/// Write validates buf as UTF-8 before handing it to Putch one byte at a
/// time, mirroring the original source's assumption that console output
/// is text. Returns len(buf) when all of buf is valid UTF-8; otherwise
/// nothing is written and it returns 0 and EINVAL, matching the "propagate
/// vfs error" spirit of §4.9 for the console's own validation error.
func (c *Console_t) Write(t *tinfo.Tnote_t, buf []uint8) (int, defs.Err_t) {
	if _, _, err := transform.Bytes(c.utf8, buf); err != nil {
		return 0, -defs.EINVAL
	}
	for _, b := range buf {
		c.Putch(t, b)
	}
	return len(buf), 0
}
