// Package hostport adapts a real OS byte stream (a serial tty file, a UDP
// socket) to the serde.Stream/Writable contract every media driver expects,
// for use by cmd/meshnode outside of any test. The drivers themselves stay
// fully synchronous and non-blocking; this package is the one place (besides
// socket/tunnel) where a background goroutine is allowed, because an
// *os.File or net.Conn read is a blocking syscall and App.Tick must never
// block on one.
package hostport

import (
	"io"
	"sync"
)

// defaultBufferCap bounds how many unread bytes Port holds: once it is
// reached, a slow driver loses the newly read bytes (the unread ones already
// buffered are kept) — this is link-layer framing data,
// not a file a caller expects byte-for-byte delivery of.
const defaultBufferCap = 4096

// Port pumps a real io.ReadWriteCloser into the in-process buffers the
// cooperative loop polls synchronously. One goroutine drains rw.Read into
// in; WriteUnchecked writes to rw directly (the driver only ever calls it
// with a small, complete frame, so a brief block is acceptable there, unlike
// a Read which would block the whole Tick waiting on the next byte).
type Port struct {
	rw io.ReadWriteCloser

	mu    sync.Mutex
	in    []byte
	err   error
	marks map[int][]byte
	next  int
}

// Open starts the background read pump over rw.
func Open(rw io.ReadWriteCloser) *Port {
	p := &Port{rw: rw}
	go p.pump()
	return p
}

func (p *Port) pump() {
	buf := make([]byte, 512)
	for {
		n, err := p.rw.Read(buf)
		if n > 0 {
			p.mu.Lock()
			if len(p.in) < defaultBufferCap {
				p.in = append(p.in, buf[:n]...)
			}
			p.mu.Unlock()
		}
		if err != nil {
			p.mu.Lock()
			p.err = err
			p.mu.Unlock()
			return
		}
	}
}

func (p *Port) ReadableCount() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	return len(p.in)
}

func (p *Port) ReadUnchecked(n int) []byte {
	p.mu.Lock()
	defer p.mu.Unlock()
	b := append([]byte(nil), p.in[:n]...)
	p.in = p.in[n:]
	return b
}

// Mark/Reset rewind a parser to a previously observed read position, the
// same non-destructive-peek contract serde.MemStream gives tests.
func (p *Port) Mark() int {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.marks == nil {
		p.marks = make(map[int][]byte)
	}
	id := p.next
	p.next++
	p.marks[id] = append([]byte(nil), p.in...)
	return id
}

func (p *Port) Reset(mark int) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if snap, ok := p.marks[mark]; ok {
		p.in = snap
		delete(p.marks, mark)
	}
}

// WritableCount reports an effectively unbounded write budget; backpressure
// on the real fd surfaces as a slow/blocking WriteUnchecked instead.
func (p *Port) WritableCount() int { return 1 << 20 }

func (p *Port) WriteUnchecked(b []byte) int {
	n, _ := p.rw.Write(b)
	return n
}

// Err returns the error that ended the read pump, if it has stopped.
func (p *Port) Err() error {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.err
}

// Close closes the underlying stream, ending the read pump.
func (p *Port) Close() error { return p.rw.Close() }
