package nb

import "meshnet/clock"

// Delay fires once, Duration after construction.
type Delay struct {
	start clock.Instant
	dur   clock.Duration
}

func NewDelay(now clock.Instant, d clock.Duration) Delay {
	return Delay{start: now, dur: d}
}

// Poll returns Ready(Void{}) once now-start >= duration.
func (d Delay) Poll(now clock.Instant) Poll[Void] {
	if now.Sub(d.start) >= d.dur {
		return ReadyVoid()
	}
	return Pending[Void]()
}

// Remaining reports how much time is left, 0 if already elapsed.
func (d Delay) Remaining(now clock.Instant) clock.Duration {
	elapsed := now.Sub(d.start)
	if elapsed >= d.dur {
		return 0
	}
	return d.dur - elapsed
}

// Debounce re-arms itself on every Ready tick: it emits at most one Ready
// per duration, acting as a rate limiter rather than a one-shot timer.
type Debounce struct {
	delay Delay
	dur   clock.Duration
}

func NewDebounce(now clock.Instant, d clock.Duration) *Debounce {
	return &Debounce{delay: NewDelay(now, d), dur: d}
}

// Poll returns Ready at most once per duration, re-arming from now whenever
// it fires.
func (d *Debounce) Poll(now clock.Instant) Poll[Void] {
	p := d.delay.Poll(now)
	if p.IsReady() {
		d.delay = NewDelay(now, d.dur)
	}
	return p
}
