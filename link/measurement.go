package link

import "meshnet/clock"

// Measurement accumulates per-medium counters consumed by the dynamic cost
// updater (§4.9): received frames, accepted frames, and total wait time.
type Measurement struct {
	Received    uint32
	Accepted    uint32
	WaitTimeSum clock.Duration
	LastReset   clock.Instant
}

// RecordReceived counts a frame as having arrived on the wire, regardless of
// whether it is later accepted.
func (m *Measurement) RecordReceived() {
	m.Received++
}

// RecordAccepted counts a frame that was queued for delivery, and folds in
// how long it waited between arrival and acceptance.
func (m *Measurement) RecordAccepted(wait clock.Duration) {
	m.Accepted++
	m.WaitTimeSum = m.WaitTimeSum.Add(wait)
}

// AverageWait returns WaitTimeSum/Accepted, or 0 if nothing was accepted.
func (m *Measurement) AverageWait() clock.Duration {
	if m.Accepted == 0 {
		return 0
	}
	return clock.Duration(uint32(m.WaitTimeSum) / m.Accepted)
}

// Reset zeros all counters and stamps LastReset.
func (m *Measurement) Reset(now clock.Instant) {
	*m = Measurement{LastReset: now}
}
