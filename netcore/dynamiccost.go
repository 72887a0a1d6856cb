package netcore

import (
	"meshnet/clock"
	"meshnet/link"
	"meshnet/nb"
)

// DynamicCostUpdateInterval is how often the local node recomputes its own
// cost from link measurement (§4.9).
const DynamicCostUpdateInterval clock.Duration = 30000

// maxRho clamps ρ=λ·ts below 1 (§9 Open Question (a)): the source divides by
// (1-ρ) without guarding ρ>=1, which would invert or blow up the wait-time
// estimate. Implementers must clamp; 0.99 matches the worked value named in
// the open question.
const maxRho = 0.99

// DynamicCostUpdater recomputes a node's own cost from its link
// measurement using an M/M/1 queue-wait estimate, every
// DynamicCostUpdateInterval, when enabled.
type DynamicCostUpdater struct {
	debounce *nb.Debounce
}

func NewDynamicCostUpdater(now clock.Instant) *DynamicCostUpdater {
	return &DynamicCostUpdater{debounce: nb.NewDebounce(now, DynamicCostUpdateInterval)}
}

// Execute recomputes cost from m and applies it to node if the update
// interval has elapsed and dynamic cost updates are enabled, then resets m.
// m is reset only after a recompute: not while the node is not ready, the
// update is disabled, or the interval has not elapsed.
func (u *DynamicCostUpdater) Execute(now clock.Instant, node *LocalNode, m *link.Measurement) {
	info, ready := node.PollInfo().Get()
	if !ready || !info.Config().EnableDynamicCostUpdate {
		return
	}
	if u.debounce.Poll(now).IsPending() {
		return
	}
	cost := computeCost(m, DynamicCostUpdateInterval)
	node.SetCost(cost)
	m.Reset(now)
}

// computeCost implements λ = received/interval, ts = average_wait,
// ρ = λ·ts, tw = ρ/(1-ρ)·ts (clamped), cost = tw ms.
func computeCost(m *link.Measurement, interval clock.Duration) Cost {
	if m.Received == 0 || interval == 0 {
		return 0
	}
	lambda := float64(m.Received) / float64(interval.Millis())
	ts := float64(m.AverageWait().Millis())
	if ts == 0 {
		return 0
	}
	rho := lambda * ts
	if rho >= maxRho {
		rho = maxRho
	}
	tw := rho / (1 - rho) * ts
	if tw < 0 {
		tw = 0
	}
	if tw > float64(MaxCost) {
		return MaxCost
	}
	return Cost(tw)
}
