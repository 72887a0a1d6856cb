package wifi

import (
	"meshnet/nb"
	"meshnet/serde"
)

// MsgKind enumerates the classifier's output variants (§4.5): the handful of
// ESP-AT responses plus the two asynchronous event prefixes.
type MsgKind int

const (
	MsgNone MsgKind = iota
	MsgWifiEvent
	MsgIPDHeader
	MsgSendPrompt
	MsgOk
	MsgError
	MsgFail
	MsgSendOk
	MsgSendFail
	MsgUnknown
)

// terminal literals the classifier can match outright (longest is 11 bytes,
// "SEND FAIL\r\n" — the longest known message per §4.5).
var terminals = []struct {
	lit  string
	kind MsgKind
}{
	{"OK\r\n", MsgOk},
	{"ERROR\r\n", MsgError},
	{"FAIL\r\n", MsgFail},
	{"SEND OK\r\n", MsgSendOk},
	{"SEND FAIL\r\n", MsgSendFail},
	{"> ", MsgSendPrompt},
}

const maxClassifyBytes = 11

// Receiver is the byte-level classifier: it reads up to maxClassifyBytes and
// emits one of MsgKind, locking onto a per-header body handler once a
// header is recognized.
type Receiver struct {
	buf []byte
}

func NewReceiver() *Receiver { return &Receiver{} }

// Poll consumes available bytes one at a time until it can commit to a
// MsgKind (exact terminal match, a locked header prefix, or a byte sequence
// that is not a prefix of anything known). Event/IPD bodies are not read
// here: once MsgWifiEvent / MsgIPDHeader fires, the Driver reads the rest
// itself (its discarding line decoder for the event line,
// continueIPDHeader / continueIPDBody for +IPD).
func (r *Receiver) Poll(s serde.Stream) nb.Poll[MsgKind] {
	for s.ReadableCount() > 0 && len(r.buf) < maxClassifyBytes {
		r.buf = append(r.buf, s.ReadUnchecked(1)[0])

		if string(r.buf) == "WIFI " {
			r.reset()
			return nb.Ready(MsgWifiEvent)
		}
		if string(r.buf) == "+IPD," {
			r.reset()
			return nb.Ready(MsgIPDHeader)
		}
		for _, t := range terminals {
			if string(r.buf) == t.lit {
				r.reset()
				return nb.Ready(t.kind)
			}
		}
		if !r.isPrefixOfAnyCandidate() {
			r.reset()
			return nb.Ready(MsgUnknown)
		}
	}
	if len(r.buf) >= maxClassifyBytes {
		r.reset()
		return nb.Ready(MsgUnknown)
	}
	return nb.Pending[MsgKind]()
}

func (r *Receiver) isPrefixOfAnyCandidate() bool {
	cur := string(r.buf)
	for _, candidate := range []string{"WIFI ", "+IPD,"} {
		if hasPrefixEitherWay(candidate, cur) {
			return true
		}
	}
	for _, t := range terminals {
		if hasPrefixEitherWay(t.lit, cur) {
			return true
		}
	}
	return false
}

func hasPrefixEitherWay(full, cur string) bool {
	if len(cur) > len(full) {
		return false
	}
	return full[:len(cur)] == cur
}

func (r *Receiver) reset() { r.buf = nil }
