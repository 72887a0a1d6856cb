package serde

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestUint16RoundTrip(t *testing.T) {
	s := NewMemStream(0)
	assert.True(t, WriteUint16LE(s, 0xBEEF))
	s.Feed(s.Written())
	p := PollUint16LE(s)
	assert.True(t, p.IsReady())
	assert.Equal(t, uint16(0xBEEF), p.Value().Value)
}

func TestLiteralRestartsOnInvalid(t *testing.T) {
	s := NewMemStream(0)
	s.Feed([]byte("XY"))
	p := PollLiteral(s, []byte("AB"))
	assert.True(t, p.IsReady())
	assert.ErrorIs(t, p.Value().Err, ErrInvalid)
	// cursor must be restored: the same two bytes are still readable.
	assert.Equal(t, 2, s.ReadableCount())
	got := s.ReadUnchecked(2)
	assert.Equal(t, []byte("XY"), got)
}

func TestLineDecoderAcrossPolls(t *testing.T) {
	s := NewMemStream(0)
	d := NewLineDecoder(0)
	assert.True(t, d.Poll(s).IsPending())
	s.Feed([]byte("hel"))
	assert.True(t, d.Poll(s).IsPending())
	s.Feed([]byte("lo\r\n"))
	p := d.Poll(s)
	assert.True(t, p.IsReady())
	assert.Equal(t, []byte("hello"), p.Value().Value)
}

func TestLineDecoderLengthBound(t *testing.T) {
	s := NewMemStream(0)
	d := NewLineDecoder(3)
	s.Feed([]byte("abcd\r\n"))
	p := d.Poll(s)
	assert.True(t, p.IsReady())
	assert.ErrorIs(t, p.Value().Err, ErrNotEnoughLength)
}

func TestDiscardingLineDecoder(t *testing.T) {
	s := NewMemStream(0)
	d := NewDiscardingLineDecoder()
	s.Feed([]byte("whatever\r\nrest"))
	p := d.Poll(s)
	assert.True(t, p.IsReady())
	assert.Empty(t, p.Value().Value)
	assert.Equal(t, 4, s.ReadableCount()) // "rest" remains
}
