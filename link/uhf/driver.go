// Package uhf implements the UHF carrier-sense modem driver: a line-oriented
// AT-style protocol (`@XX…\r\n` commands, `*XX=…\r\n` responses) carrying
// binary frame payloads inside DT (transmit) and DR (receive) exchanges.
//
// Grounded on arduino/lib/net/src/net/link/uhf (original_source) for the
// wire grammar, and on the teacher's controller/boost.go for the
// "race several attempts, take the first success, report failure on
// timeout" task shape — here specialized to UHF's carrier-sense retry loop
// instead of racing TCP dials.
package uhf

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/membuf"
	"meshnet/nb"
	"meshnet/rng"
	"meshnet/serde"
)

// Port is the byte stream the driver speaks AT commands over.
type Port interface {
	serde.Stream
	serde.Writable
}

const (
	csBackoffLoMs  = 50
	csBackoffHiMs  = 1000
	maxCarrierTries = 3
)

type opKind int

const (
	opNone opKind = iota
	opCarrierSense
	opDataTransmission
	opBoot
)

// txRequest is a pending send, queued by the link/socket layer and drained
// one at a time (the stream mutex allows only one owner).
type txRequest struct {
	dest    link.Address
	proto   link.Protocol
	payload []byte
	promise nb.Promise[bool]
}

// Driver is the per-port UHF state machine.
type Driver struct {
	port Port
	pool *membuf.BufferPool

	equipmentID   uint8
	equipmentSet  bool
	serialNumber  uint16

	lineDecoder *serde.LineDecoder

	pending []txRequest
	op      opKind
	tries   int
	backoff nb.Delay
	backoffArmed bool

	measurement link.Measurement
}

func NewDriver(port Port, pool *membuf.BufferPool) *Driver {
	return &Driver{port: port, pool: pool, lineDecoder: serde.NewLineDecoder(64)}
}

// EquipmentID returns the bring-up-derived equipment id, and whether it has
// been established yet.
func (d *Driver) EquipmentID() (uint8, bool) { return d.equipmentID, d.equipmentSet }

// Measurement exposes the driver's per-medium counters.
func (d *Driver) Measurement() *link.Measurement { return &d.measurement }

// RequestSend queues a frame for transmission to dest, returning a future
// that resolves true on SEND success (here: DT accepted) or false on
// carrier-sense exhaustion / an unexpected line aborting the exchange.
func (d *Driver) RequestSend(dest link.Address, proto link.Protocol, payload []byte) nb.Future[bool] {
	promise, future := nb.NewOneShot[bool]()
	d.pending = append(d.pending, txRequest{dest: dest, proto: proto, payload: payload, promise: promise})
	return future
}

// Execute drives the driver forward by one tick: parse at most one
// completed line from the wire, dispatch it, and advance any in-flight
// carrier-sense/DT task.
func (d *Driver) Execute(now clock.Instant, rnd rng.Source, queue *link.FrameQueue) {
	if p := d.lineDecoder.Poll(d.port); p.IsReady() {
		res := p.Value()
		if res.Err == nil {
			d.handleLine(res.Value, now, rnd, queue)
		}
	}

	if d.op == opNone && len(d.pending) > 0 {
		d.op = opCarrierSense
		d.tries = 0
		d.sendCarrierSense()
		return
	}

	if d.op == opCarrierSense && d.backoffArmed {
		if d.backoff.Poll(now).IsReady() {
			d.backoffArmed = false
			d.sendCarrierSense()
		}
	}
}

func (d *Driver) sendCarrierSense() {
	serde.WriteLine(d.port, []byte("@CS"))
}

func (d *Driver) handleLine(line []byte, now clock.Instant, rnd rng.Source, queue *link.FrameQueue) {
	switch {
	case matchesPrefix(line, "*CS=EN"):
		d.onCarrierFree()
	case matchesPrefix(line, "*CS=DI"):
		d.onCarrierBusy(now, rnd)
	case matchesPrefix(line, "*DR="):
		d.onDataReceived(line, now, queue)
	case matchesPrefix(line, "*SN="):
		d.onSerialNumber(line)
	case matchesPrefix(line, "*EI="):
		d.onEquipmentID(line)
	case matchesPrefix(line, "*IR="):
		// information response: ignored per spec.
	default:
		if d.op != opNone {
			d.abortCurrent(false)
		}
	}
}

func matchesPrefix(line []byte, prefix string) bool {
	if len(line) < len(prefix) {
		return false
	}
	return string(line[:len(prefix)]) == prefix
}

func (d *Driver) onCarrierFree() {
	if d.op != opCarrierSense || len(d.pending) == 0 {
		return
	}
	req := d.pending[0]
	d.op = opDataTransmission
	d.transmit(req)
	d.pending = d.pending[1:]
	req.promise.SetValue(true)
	d.op = opNone
}

func (d *Driver) transmit(req txRequest) {
	body := make([]byte, 0, 1+len(req.payload))
	body = append(body, byte(req.proto))
	body = append(body, req.payload...)
	line := append([]byte("@DT"), []byte(hex2(len(body)))...)
	line = append(line, body...)
	line = append(line, []byte("/R")...)
	line = append(line, []byte(hex2(int(req.dest.UHFID())))...)
	d.port.WriteUnchecked(line)
	d.port.WriteUnchecked([]byte("\r\n"))
}

func (d *Driver) onCarrierBusy(now clock.Instant, rnd rng.Source) {
	if d.op != opCarrierSense {
		return
	}
	d.tries++
	if d.tries >= maxCarrierTries {
		req := d.pending[0]
		d.pending = d.pending[1:]
		req.promise.SetValue(false)
		d.op = opNone
		return
	}
	// Reseeded uniform [50,1000]ms backoff on every retry, per §9 open question (b).
	d.backoff = nb.NewDelay(now, clock.Duration(rng.UniformDuration(rnd, csBackoffLoMs, csBackoffHiMs)))
	d.backoffArmed = true
}

func (d *Driver) onDataReceived(line []byte, now clock.Instant, queue *link.FrameQueue) {
	d.measurement.RecordReceived()
	rest := line[len("*DR="):]
	if len(rest) < 2 {
		return
	}
	ll, ok := parseHex2(rest[:2])
	if !ok {
		return
	}
	rest = rest[2:]
	if len(rest) < int(ll)+4 { // body + "\R" + 2 hex
		return
	}
	body := rest[:ll]
	suffix := rest[ll:]
	if len(suffix) < 4 || suffix[0] != '\\' || suffix[1] != 'R' {
		return
	}
	srcID, ok := parseHex2(suffix[2:4])
	if !ok || len(body) < 1 {
		return
	}
	proto := link.Protocol(body[0])
	payload := body[1:]

	h, err := d.pool.Allocate()
	if err != nil {
		return // pool exhausted: frame dropped, back-pressure surfaces upstream
	}
	r, w, err := h.Publish(len(payload))
	if err != nil {
		return
	}
	w.Write(payload)
	w.Release()

	ok = queue.Push(link.Inbound, link.Frame{
		Protocol: proto,
		Peer:     link.UHF(uint16(srcID)),
		Length:   uint8(len(payload)),
		Reader:   r,
	}, now)
	if ok {
		d.measurement.RecordAccepted(0)
	}
}

func (d *Driver) onSerialNumber(line []byte) {
	rest := line[len("*SN="):]
	if len(rest) < 4 {
		return
	}
	hi, ok1 := parseHex2(rest[0:2])
	lo, ok2 := parseHex2(rest[2:4])
	if !ok1 || !ok2 {
		return
	}
	d.serialNumber = uint16(hi)<<8 | uint16(lo)
	if !d.equipmentSet {
		d.equipmentID = lo
		d.equipmentSet = true
	}
}

func (d *Driver) onEquipmentID(line []byte) {
	rest := line[len("*EI="):]
	if len(rest) < 2 {
		return
	}
	v, ok := parseHex2(rest[0:2])
	if !ok {
		return
	}
	d.equipmentID = v
	d.equipmentSet = true
}

func (d *Driver) abortCurrent(success bool) {
	if len(d.pending) == 0 {
		return
	}
	req := d.pending[0]
	d.pending = d.pending[1:]
	req.promise.SetValue(success)
	d.op = opNone
}

const hexDigits = "0123456789ABCDEF"

func hex2(v int) string {
	return string([]byte{hexDigits[(v>>4)&0xF], hexDigits[v&0xF]})
}

func parseHex2(b []byte) (uint8, bool) {
	hi, ok1 := parseHexDigit(b[0])
	lo, ok2 := parseHexDigit(b[1])
	if !ok1 || !ok2 {
		return 0, false
	}
	return hi<<4 | lo, true
}

func parseHexDigit(c byte) (uint8, bool) {
	switch {
	case c >= '0' && c <= '9':
		return c - '0', true
	case c >= 'A' && c <= 'F':
		return c - 'A' + 10, true
	case c >= 'a' && c <= 'f':
		return c - 'a' + 10, true
	default:
		return 0, false
	}
}
