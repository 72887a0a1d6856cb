package link

import (
	"meshnet/clock"
	"meshnet/nb"
	"meshnet/serde"
)

// MediaType is the outcome of cold-start medium detection on a port whose
// attached hardware is not known at compile time.
type MediaType int

const (
	MediaUnknown MediaType = iota
	MediaUHFType
	MediaWifiType
	MediaSerialType
)

// detectionTimeout is how long to wait, after the first byte is seen on the
// port, before declaring it serial by elimination (§4.7).
const detectionTimeout clock.Duration = 100

// Detector probes an undetermined port: it feeds bytes through a line
// classifier looking for UHF's "*ER=0" boot response or Wi-Fi's "WIFI "/"OK"
// banners, and falls back to serial once detectionTimeout has elapsed since
// the first byte arrived.
type Detector struct {
	line        *serde.LineDecoder
	firstByteAt clock.Instant
	sawByte     bool
	probed      bool
}

func NewDetector() *Detector {
	return &Detector{line: serde.NewLineDecoder(32)}
}

// Poll drives detection forward using whatever bytes are available on s at
// time now. It sends the "AT\r\n" probe exactly once.
func (d *Detector) Poll(s serde.Stream, sink serde.Writable, now clock.Instant) nb.Poll[MediaType] {
	if !d.probed {
		serde.WriteLine(sink, []byte("AT"))
		d.probed = true
	}
	if !d.sawByte && s.ReadableCount() > 0 {
		d.sawByte = true
		d.firstByteAt = now
	}

	if p := d.line.Poll(s); p.IsReady() {
		res := p.Value()
		if res.Err == nil {
			switch {
			case string(res.Value) == "*ER=0":
				return nb.Ready(MediaUHFType)
			case len(res.Value) >= 4 && string(res.Value[:4]) == "WIFI":
				return nb.Ready(MediaWifiType)
			case string(res.Value) == "OK":
				return nb.Ready(MediaWifiType)
			}
		}
	}

	if d.sawByte && now.Sub(d.firstByteAt) >= detectionTimeout {
		return nb.Ready(MediaSerialType)
	}
	return nb.Pending[MediaType]()
}
