package link

import (
	"time"

	"github.com/patrickmn/go-cache"
)

// maxFramesPerWindow and limiterWindow mirror the teacher's WAF constants
// (200 requests / 30s) scaled down for a frame-rate budget between mesh
// peers rather than TCP clients from controller/server.go's ipCache check.
const (
	maxFramesPerWindow = 64
	limiterWindow      = 30 * time.Second
	limiterSweep       = 1 * time.Minute
)

// PeerLimiter rejects a peer that floods the link layer with more than
// maxFramesPerWindow frames per window, the direct analog of the teacher's
// ipCache-based WAF check in controller/server.go, keyed by LinkAddress
// instead of client IP.
type PeerLimiter struct {
	counts *cache.Cache
}

func NewPeerLimiter() *PeerLimiter {
	return &PeerLimiter{counts: cache.New(limiterWindow, limiterSweep)}
}

// Allow records one frame from peer and reports whether it is still within
// budget for the current window.
func (l *PeerLimiter) Allow(peer Address) bool {
	key := peer.String()
	if n, found := l.counts.Get(key); found {
		count := n.(int)
		if count >= maxFramesPerWindow {
			return false
		}
		l.counts.IncrementInt(key, 1)
		return true
	}
	l.counts.Set(key, 1, cache.DefaultExpiration)
	return true
}
