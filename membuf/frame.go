package membuf

import "meshnet/nb"

// Writer is the write half of a frame buffer. It advances write_index as
// bytes are appended and never exceeds max_size.
type Writer struct {
	pool *BufferPool
	idx  int
}

// MaxSize returns the buffer's declared max_size.
func (w Writer) MaxSize() int { return w.pool.slots[w.idx].maxSize }

// WriteIndex returns how many bytes have been written so far.
func (w Writer) WriteIndex() int { return w.pool.slots[w.idx].writeIndex }

// Remaining returns max_size - write_index.
func (w Writer) Remaining() int { return w.MaxSize() - w.WriteIndex() }

// Write appends up to len(b) bytes, truncating to Remaining(); it returns
// the number of bytes actually written.
func (w Writer) Write(b []byte) int {
	s := &w.pool.slots[w.idx]
	n := len(b)
	if n > s.maxSize-s.writeIndex {
		n = s.maxSize - s.writeIndex
	}
	if n <= 0 {
		return 0
	}
	copy(s.data[s.writeIndex:s.writeIndex+n], b[:n])
	s.writeIndex += n
	return n
}

// WriteByte appends a single byte if room remains.
func (w Writer) WriteByte(b byte) bool {
	return w.Write([]byte{b}) == 1
}

// Full reports whether write_index has reached max_size.
func (w Writer) Full() bool { return w.WriteIndex() >= w.MaxSize() }

// InitialReader produces an additional Reader aliasing offset 0 that remains
// valid while the writer keeps filling the tail — the contract that lets a
// sender's frame be handed to a driver while the app is still writing it.
func (w Writer) InitialReader() Reader {
	w.pool.retain(w.idx)
	return Reader{pool: w.pool, idx: w.idx, readIndex: 0}
}

// Release drops the writer's ownership share.
func (w Writer) Release() {
	w.pool.release(w.idx)
}

// WritableCount and WriteUnchecked satisfy serde.Writable, letting
// serializers write payload directly into a frame buffer.
func (w Writer) WritableCount() int { return w.Remaining() }

func (w Writer) WriteUnchecked(b []byte) int { return w.Write(b) }

// Reader is the read half of a frame buffer. It only ever observes bytes
// with index < writer.write_index.
type Reader struct {
	pool      *BufferPool
	idx       int
	readIndex int
}

func (r Reader) writeIndex() int { return r.pool.slots[r.idx].writeIndex }

// ReadableCount returns how many unread bytes are currently visible.
func (r Reader) ReadableCount() int {
	n := r.writeIndex() - r.readIndex
	if n < 0 {
		return 0
	}
	return n
}

// PollReadable reports Ready(Void) once at least n bytes are visible, else
// Pending — a reader that has outrun the writer blocks here rather than
// reading uninitialized bytes.
func (r *Reader) PollReadable(n int) nb.Poll[nb.Void] {
	if r.ReadableCount() >= n {
		return nb.ReadyVoid()
	}
	return nb.Pending[nb.Void]()
}

// ReadUnchecked returns the next n bytes and advances the read cursor. The
// caller must have confirmed PollReadable(n) was Ready.
func (r *Reader) ReadUnchecked(n int) []byte {
	s := &r.pool.slots[r.idx]
	b := make([]byte, n)
	copy(b, s.data[r.readIndex:r.readIndex+n])
	r.readIndex += n
	return b
}

// Peek returns the next n bytes without advancing the cursor.
func (r Reader) Peek(n int) []byte {
	s := &r.pool.slots[r.idx]
	b := make([]byte, n)
	copy(b, s.data[r.readIndex:r.readIndex+n])
	return b
}

// ReadIndex exposes the current cursor, used to snapshot/rewind in serde
// combinators.
func (r Reader) ReadIndex() int { return r.readIndex }

// Seek rewinds/advances the cursor directly — used by restartable
// deserializers to rewind on Invalid.
func (r *Reader) Seek(idx int) { r.readIndex = idx }

// Mark and Reset satisfy serde.Stream: a frame buffer's bytes stay
// addressable non-destructively, so rewinding is just restoring the cursor.
func (r *Reader) Mark() int { return r.readIndex }

func (r *Reader) Reset(mark int) { r.readIndex = mark }

// Clone produces an independent cursor over the same underlying buffer,
// retaining the slot so the clone can outlive reads on the original.
func (r Reader) Clone() Reader {
	r.pool.retain(r.idx)
	return Reader{pool: r.pool, idx: r.idx, readIndex: r.readIndex}
}

// Release drops the reader's ownership share.
func (r Reader) Release() {
	r.pool.release(r.idx)
}

// Len returns the number of bytes the writer has committed so far — used
// when a Reader is handed off as a complete, already-written frame payload.
func (r Reader) Len() int { return r.writeIndex() }
