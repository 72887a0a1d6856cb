// Package serde implements the async byte (de)serialization combinators used
// over both wire byte streams and frame-buffer readers: fixed-length
// little-endian integers, fixed-byte literals, and CRLF-terminated lines.
// It has no tagged-union combinator; tagged addresses and destinations are
// decoded from byte slices by link.UnmarshalAddress and
// netcore.UnmarshalDestination.
//
// Deserialization is restartable: every combinator snapshots the stream
// cursor on entry and restores it before reporting Invalid, so callers can
// try an alternate deserializer against the same bytes (§8 "restartable
// deserialization").
package serde

import (
	"bytes"
	"errors"

	"meshnet/nb"
)

// ErrInvalid means the bytes read so far do not match this deserializer's
// grammar; the stream cursor is rewound to the deserializer's starting
// position before this is returned.
var ErrInvalid = errors.New("serde: invalid")

// ErrNotEnoughLength means a length-bounded deserializer (e.g. a
// length-capped line) would need more bytes than its configured bound.
var ErrNotEnoughLength = errors.New("serde: not enough length")

// Stream is the platform contract: a byte-addressable cursor with
// non-destructive peeking via Mark/Reset. Both membuf.Reader (payload
// parsing) and a wire byte stream (command/response parsing) satisfy it.
type Stream interface {
	ReadableCount() int
	ReadUnchecked(n int) []byte
	Mark() int
	Reset(mark int)
}

// Writable is the write half of the same platform contract.
type Writable interface {
	WritableCount() int
	WriteUnchecked(b []byte) int
}

// Result carries either a decoded value or one of the typed failures.
type Result[T any] struct {
	Value T
	Err   error
}

func ok[T any](v T) Result[T]    { return Result[T]{Value: v} }
func invalid[T any]() Result[T]  { return Result[T]{Err: ErrInvalid} }
func tooLong[T any]() Result[T]  { return Result[T]{Err: ErrNotEnoughLength} }

// --- fixed-length little-endian integers ---

// PollUint8 reads one byte once available.
func PollUint8(s Stream) nb.Poll[Result[uint8]] {
	if s.ReadableCount() < 1 {
		return nb.Pending[Result[uint8]]()
	}
	b := s.ReadUnchecked(1)
	return nb.Ready(ok(b[0]))
}

// PollUint16LE reads a little-endian u16 once 2 bytes are available.
func PollUint16LE(s Stream) nb.Poll[Result[uint16]] {
	if s.ReadableCount() < 2 {
		return nb.Pending[Result[uint16]]()
	}
	b := s.ReadUnchecked(2)
	return nb.Ready(ok(uint16(b[0]) | uint16(b[1])<<8))
}

// PollUint32LE reads a little-endian u32 once 4 bytes are available.
func PollUint32LE(s Stream) nb.Poll[Result[uint32]] {
	if s.ReadableCount() < 4 {
		return nb.Pending[Result[uint32]]()
	}
	b := s.ReadUnchecked(4)
	return nb.Ready(ok(uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24))
}

// WriteUint8 / WriteUint16LE / WriteUint32LE write fixed-width integers,
// returning false if the sink has no room.
func WriteUint8(w Writable, v uint8) bool {
	return w.WriteUnchecked([]byte{v}) == 1
}

func WriteUint16LE(w Writable, v uint16) bool {
	b := []byte{byte(v), byte(v >> 8)}
	return w.WriteUnchecked(b) == len(b)
}

func WriteUint32LE(w Writable, v uint32) bool {
	b := []byte{byte(v), byte(v >> 8), byte(v >> 16), byte(v >> 24)}
	return w.WriteUnchecked(b) == len(b)
}

// --- fixed-byte literal ---

// PollLiteral matches an exact byte sequence, rewinding on mismatch.
func PollLiteral(s Stream, lit []byte) nb.Poll[Result[nb.Void]] {
	if s.ReadableCount() < len(lit) {
		return nb.Pending[Result[nb.Void]]()
	}
	mark := s.Mark()
	got := s.ReadUnchecked(len(lit))
	if !bytes.Equal(got, lit) {
		s.Reset(mark)
		return nb.Ready(invalid[nb.Void]())
	}
	return nb.Ready(ok(nb.Void{}))
}

// --- CRLF-terminated lines ---

// LineDecoder accumulates bytes until a bare "\r\n" terminator, across
// however many polls it takes for the bytes to arrive. With maxLen > 0 it
// is the length-bounded variant (ErrNotEnoughLength once exceeded);
// maxLen == 0 with discard == true is the discarding variant used to skip
// a line without retaining its bytes.
type LineDecoder struct {
	buf     []byte
	maxLen  int
	discard bool
	sawCR   bool
	mark    int
	started bool
}

// NewLineDecoder returns a line decoder retaining up to maxLen bytes
// (0 = unbounded).
func NewLineDecoder(maxLen int) *LineDecoder {
	return &LineDecoder{maxLen: maxLen}
}

// NewDiscardingLineDecoder returns a decoder that scans to the next "\r\n"
// without retaining any bytes.
func NewDiscardingLineDecoder() *LineDecoder {
	return &LineDecoder{discard: true}
}

// Poll consumes available bytes one at a time, looking for "\r\n". It
// returns Ready(line) with the CRLF stripped, Ready(ErrNotEnoughLength) once
// a bounded decoder exceeds maxLen, or Pending.
func (d *LineDecoder) Poll(s Stream) nb.Poll[Result[[]byte]] {
	if !d.started {
		d.mark = s.Mark()
		d.started = true
	}
	for s.ReadableCount() > 0 {
		b := s.ReadUnchecked(1)[0]
		if d.sawCR && b == '\n' {
			line := d.buf
			d.reset()
			return nb.Ready(ok(line))
		}
		d.sawCR = b == '\r'
		if !d.discard && !d.sawCR {
			if d.maxLen > 0 && len(d.buf) >= d.maxLen {
				mark := d.mark
				d.reset()
				s.Reset(mark)
				return nb.Ready(tooLong[[]byte]())
			}
			d.buf = append(d.buf, b)
		}
	}
	return nb.Pending[Result[[]byte]]()
}

func (d *LineDecoder) reset() {
	d.buf = nil
	d.sawCR = false
	d.started = false
}

// WriteLine writes b followed by "\r\n".
func WriteLine(w Writable, b []byte) bool {
	n := w.WriteUnchecked(b)
	if n != len(b) {
		return false
	}
	return w.WriteUnchecked([]byte("\r\n")) == 2
}
