// Package serial implements the point-to-point serial driver: a fixed
// preamble, then `protocol, source_addr, dest_addr, length, payload…`, with
// no acknowledgment — loss is visible only as a missed message.
//
// Grounded on spec.md §4.6 and original_source's nb/serial.h framing idea;
// the teacher has no analogous binary framing, so this package's shape
// follows the rest of this repo's drivers (uhf, wifi) instead.
package serial

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/membuf"
	"meshnet/serde"
)

// Port is the byte stream the driver reads/writes preamble-framed packets over.
type Port interface {
	serde.Stream
	serde.Writable
}

// DefaultPreamble is the 2-byte preamble used unless Config.Serial.Preamble
// overrides it (SPEC_FULL.md's configurable-preamble-length supplement).
var DefaultPreamble = []byte{0x2e, 0x34}

type scanState int

const (
	scanningPreamble scanState = iota
	readingHeader
	readingPayload
)

// Driver is the per-port serial framing state machine. It has no outbound
// task queue: a send is a single synchronous preamble+header+payload write,
// since the medium offers no carrier sense or acknowledgment to wait on.
type Driver struct {
	port     Port
	pool     *membuf.BufferPool
	preamble []byte
	self     uint8

	state        scanState
	preambleMatched int
	header       []byte // protocol, source, dest, length — 4 bytes once complete
	payloadLen   int
	payloadLeft  int
	destValid    bool

	measurement link.Measurement
}

func NewDriver(port Port, pool *membuf.BufferPool, preamble []byte, self uint8) *Driver {
	if len(preamble) == 0 {
		preamble = DefaultPreamble
	}
	return &Driver{port: port, pool: pool, preamble: preamble, self: self}
}

func (d *Driver) Measurement() *link.Measurement { return &d.measurement }

// Send writes preamble|protocol|source|dest|length|payload directly; there
// is no reply to wait for, so it either succeeds immediately (room in the
// write buffer) or not at all.
func (d *Driver) Send(proto link.Protocol, dest uint8, payload []byte) bool {
	if len(payload) > 255 {
		return false
	}
	out := make([]byte, 0, len(d.preamble)+4+len(payload))
	out = append(out, d.preamble...)
	out = append(out, byte(proto), d.self, dest, byte(len(payload)))
	out = append(out, payload...)
	return d.port.WriteUnchecked(out) == len(out)
}

// BroadcastDest is the reserved destination address meaning "deliver
// regardless of dest_addr".
const BroadcastDest uint8 = 0xFF

// Execute advances the preamble scanner / header reader / payload reader by
// whatever bytes are currently available.
func (d *Driver) Execute(now clock.Instant, fq *link.FrameQueue) {
	for {
		prev := d.state
		switch d.state {
		case scanningPreamble:
			d.scanPreamble()
		case readingHeader:
			d.readHeader()
		case readingPayload:
			d.readPayload(now, fq)
		}
		if d.state == prev {
			return
		}
	}
}

func (d *Driver) scanPreamble() {
	for d.port.ReadableCount() > 0 {
		b := d.port.ReadUnchecked(1)[0]
		if b == d.preamble[d.preambleMatched] {
			d.preambleMatched++
			if d.preambleMatched == len(d.preamble) {
				d.preambleMatched = 0
				d.state = readingHeader
				d.header = d.header[:0]
				return
			}
		} else {
			// Restart the match; a mismatched byte might itself begin a new
			// preamble (e.g. the preamble's first byte repeated).
			if b == d.preamble[0] {
				d.preambleMatched = 1
			} else {
				d.preambleMatched = 0
			}
		}
	}
}

func (d *Driver) readHeader() {
	for len(d.header) < 4 && d.port.ReadableCount() > 0 {
		d.header = append(d.header, d.port.ReadUnchecked(1)[0])
	}
	if len(d.header) < 4 {
		return
	}
	length := d.header[3]
	d.payloadLen = int(length)
	d.payloadLeft = int(length)
	dest := d.header[2]
	d.destValid = dest == d.self || dest == BroadcastDest
	d.state = readingPayload
}

func (d *Driver) readPayload(now clock.Instant, fq *link.FrameQueue) {
	if !d.destValid {
		// Wrong destination: discard the remainder without enqueueing, per
		// spec.md §4.6.
		avail := d.port.ReadableCount()
		if avail > d.payloadLeft {
			avail = d.payloadLeft
		}
		if avail > 0 {
			d.port.ReadUnchecked(avail)
			d.payloadLeft -= avail
		}
		if d.payloadLeft == 0 {
			d.resetToScan()
		}
		return
	}
	if d.port.ReadableCount() < d.payloadLen {
		return
	}
	d.measurement.RecordReceived()
	payload := d.port.ReadUnchecked(d.payloadLen)
	proto := link.Protocol(d.header[0])
	source := d.header[1]

	h, err := d.pool.Allocate()
	if err == nil {
		r, w, perr := h.Publish(len(payload))
		if perr == nil {
			w.Write(payload)
			w.Release()
			if fq.Push(link.Inbound, link.Frame{
				Protocol: proto,
				Peer:     link.Serial(source),
				Length:   uint8(len(payload)),
				Reader:   r,
			}, now) {
				d.measurement.RecordAccepted(0)
			}
		}
	}
	d.resetToScan()
}

func (d *Driver) resetToScan() {
	d.state = scanningPreamble
	d.preambleMatched = 0
	d.header = nil
}
