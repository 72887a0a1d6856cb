// Package wifi implements the Wi-Fi (ESP-AT) driver: a byte-level message
// classifier (receiver.go), control command tasks (join/listen/connect/send),
// and the +IPD demultiplexer that turns incoming UDP/TCP data into inbound
// link frames.
//
// Grounded on arduino/lib/media/src/media/wifi/message/receiver.h for the
// classifier shape, and on the teacher's controller/boost.go task-timeout
// pattern (context.WithTimeout racing a result channel) — adapted here to a
// poll-based Delay instead of a goroutine + channel, since this driver must
// never block.
package wifi

import (
	"fmt"
	"strconv"
	"strings"

	"meshnet/clock"
	"meshnet/link"
	"meshnet/membuf"
	"meshnet/nb"
	"meshnet/serde"
)

// Port is the byte stream the driver speaks AT commands over.
type Port interface {
	serde.Stream
	serde.Writable
}

const (
	defaultTaskTimeout clock.Duration = 3000
	joinTimeout        clock.Duration = 20000
)

type taskKind int

const (
	taskJoinAP taskKind = iota
	taskStartUDPServer
	taskStartTCPConnection
	taskStartUDPConnection
	taskSendData
)

type task struct {
	kind     taskKind
	cmd      string
	promise  nb.Promise[bool]
	deadline nb.Delay

	// taskSendData only.
	sendBody       []byte
	awaitingPrompt bool
}

// ipdParseState tracks the in-progress "<n>,<ip>,<port>:" ASCII header that
// precedes every IPD payload; it accumulates bytes until it sees ':'.
type ipdParseState struct {
	header []byte
}

// Driver is the per-port Wi-Fi state machine.
type Driver struct {
	port     Port
	pool     *membuf.BufferPool
	receiver *Receiver

	discardLine *serde.LineDecoder // consumes a WIFI event's remainder
	ipd         *ipdParseState     // non-nil while parsing an IPD header
	ipdBody     int                // >0 while reading IPD's raw payload bytes
	ipdPeerIP   string
	ipdPeerPort uint16

	queue   []task
	current *task

	measurement link.Measurement
}

func NewDriver(port Port, pool *membuf.BufferPool) *Driver {
	return &Driver{port: port, pool: pool, receiver: NewReceiver()}
}

func (d *Driver) Measurement() *link.Measurement { return &d.measurement }

func (d *Driver) enqueue(now clock.Instant, timeout clock.Duration, kind taskKind, cmd string) nb.Future[bool] {
	promise, future := nb.NewOneShot[bool]()
	d.queue = append(d.queue, task{kind: kind, cmd: cmd, promise: promise, deadline: nb.NewDelay(now, timeout)})
	return future
}

// JoinAP requests AT+CWJAP with a 20s timeout.
func (d *Driver) JoinAP(ssid, pw string, now clock.Instant) nb.Future[bool] {
	return d.enqueue(now, joinTimeout, taskJoinAP, fmt.Sprintf("AT+CWJAP=\"%s\",\"%s\"", ssid, pw))
}

// StartUDPServer requests AT+CIPSTART="UDP" in server mode on port.
func (d *Driver) StartUDPServer(port uint16, now clock.Instant) nb.Future[bool] {
	return d.enqueue(now, defaultTaskTimeout, taskStartUDPServer,
		fmt.Sprintf("AT+CIPSTART=\"UDP\",\"0.0.0.0\",%d,%d,2", port, port))
}

// StartTCPConnection requests AT+CIPSTART="TCP".
func (d *Driver) StartTCPConnection(linkID int, ip string, port uint16, now clock.Instant) nb.Future[bool] {
	return d.enqueue(now, defaultTaskTimeout, taskStartTCPConnection,
		fmt.Sprintf("AT+CIPSTART=%d,\"TCP\",\"%s\",%d", linkID, ip, port))
}

// StartUDPConnection requests AT+CIPSTART="UDP" as a client.
func (d *Driver) StartUDPConnection(linkID int, ip string, port, local uint16, now clock.Instant) nb.Future[bool] {
	return d.enqueue(now, defaultTaskTimeout, taskStartUDPConnection,
		fmt.Sprintf("AT+CIPSTART=%d,\"UDP\",\"%s\",%d,%d,2", linkID, ip, port, local))
}

// SendData issues AT+CIPSEND=<n>,"<ip>",<port>, waits for the '>' prompt,
// writes protocol|payload, then consumes SEND OK/SEND FAIL. peer carries the
// destination IPv4 address and port (spec.md §6's UDP transmit form).
func (d *Driver) SendData(proto link.Protocol, payload []byte, peer link.Address, now clock.Instant) nb.Future[bool] {
	body := make([]byte, 0, 1+len(payload))
	body = append(body, byte(proto))
	body = append(body, payload...)
	promise, future := nb.NewOneShot[bool]()
	d.queue = append(d.queue, task{
		kind:     taskSendData,
		cmd:      fmt.Sprintf("AT+CIPSEND=%d,\"%s\",%d", len(body), formatIPv4(peer.IPv4Addr()), peer.Port()),
		promise:  promise,
		deadline: nb.NewDelay(now, defaultTaskTimeout),
		sendBody: body,
	})
	return future
}

// formatIPv4 renders addr as a dotted-quad string, matching the octet order
// ipv4StringToUint32 parses into and link.Address.String() prints.
func formatIPv4(addr uint32) string {
	return fmt.Sprintf("%d.%d.%d.%d", byte(addr), byte(addr>>8), byte(addr>>16), byte(addr>>24))
}

// Execute drives the classifier and the current task forward by one tick.
func (d *Driver) Execute(now clock.Instant, fq *link.FrameQueue) {
	switch {
	case d.ipdBody > 0:
		d.continueIPDBody(now, fq)
		return
	case d.ipd != nil:
		d.continueIPDHeader(now)
		return
	case d.discardLine != nil:
		if p := d.discardLine.Poll(d.port); p.IsReady() {
			d.discardLine = nil
		}
		return
	}

	if p := d.receiver.Poll(d.port); p.IsReady() {
		d.handleMsg(p.Value())
		return
	}

	if d.current == nil && len(d.queue) > 0 {
		d.current = &d.queue[0]
		d.queue = d.queue[1:]
		serde.WriteLine(d.port, []byte(d.current.cmd))
		if d.current.kind == taskSendData {
			d.current.awaitingPrompt = true
		}
		return
	}

	if d.current != nil && d.current.deadline.Poll(now).IsReady() {
		d.current.promise.SetValue(false)
		d.current = nil
	}
}

func (d *Driver) handleMsg(kind MsgKind) {
	switch kind {
	case MsgWifiEvent:
		d.discardLine = serde.NewDiscardingLineDecoder()
	case MsgIPDHeader:
		d.ipd = &ipdParseState{}
	case MsgSendPrompt:
		if d.current != nil && d.current.kind == taskSendData && d.current.awaitingPrompt {
			d.port.WriteUnchecked(d.current.sendBody)
			d.current.awaitingPrompt = false
		}
	case MsgOk, MsgSendOk:
		if d.current != nil {
			d.current.promise.SetValue(true)
			d.current = nil
		}
	case MsgError, MsgFail, MsgSendFail:
		if d.current != nil {
			d.current.promise.SetValue(false)
			d.current = nil
		}
	case MsgUnknown:
		// drop silently; resync happens on the next classification attempt.
	}
}

// continueIPDHeader accumulates "<n>,<ip>,<port>:" one byte at a time (the
// header has no fixed length) until it sees the terminating ':'.
func (d *Driver) continueIPDHeader(now clock.Instant) {
	for d.port.ReadableCount() > 0 {
		b := d.port.ReadUnchecked(1)[0]
		if b == ':' {
			n, ip, port, ok := parseIPDHeader(string(d.ipd.header))
			d.ipd = nil
			if ok {
				d.ipdBody = n
				d.ipdPeerIP, d.ipdPeerPort = ip, port
			}
			return
		}
		d.ipd.header = append(d.ipd.header, b)
		if len(d.ipd.header) > 32 {
			d.ipd = nil // malformed header: resync by dropping it
			return
		}
	}
}

func parseIPDHeader(h string) (n int, ip string, port uint16, ok bool) {
	parts := strings.Split(h, ",")
	if len(parts) != 3 {
		return 0, "", 0, false
	}
	nn, err := strconv.Atoi(parts[0])
	if err != nil {
		return 0, "", 0, false
	}
	p, err := strconv.Atoi(parts[2])
	if err != nil {
		return 0, "", 0, false
	}
	return nn, strings.Trim(parts[1], "\""), uint16(p), true
}

// continueIPDBody reads the n raw payload bytes declared by the IPD header:
// the first byte is the protocol number, the rest is application payload.
func (d *Driver) continueIPDBody(now clock.Instant, fq *link.FrameQueue) {
	if d.port.ReadableCount() < d.ipdBody {
		return
	}
	d.measurement.RecordReceived()
	body := d.port.ReadUnchecked(d.ipdBody)
	n := d.ipdBody
	d.ipdBody = 0
	if n < 1 {
		return
	}
	proto := link.Protocol(body[0])
	payload := body[1:]

	h, err := d.pool.Allocate()
	if err != nil {
		return
	}
	r, w, err := h.Publish(len(payload))
	if err != nil {
		return
	}
	w.Write(payload)
	w.Release()

	ip := ipv4StringToUint32(d.ipdPeerIP)
	if fq.Push(link.Inbound, link.Frame{
		Protocol: proto,
		Peer:     link.IPv4(ip, d.ipdPeerPort),
		Length:   uint8(len(payload)),
		Reader:   r,
	}, now) {
		d.measurement.RecordAccepted(0)
	}
}

func ipv4StringToUint32(s string) uint32 {
	var a, b, c, dd uint32
	fmt.Sscanf(s, "%d.%d.%d.%d", &a, &b, &c, &dd)
	return a | b<<8 | c<<16 | dd<<24
}
