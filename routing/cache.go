package routing

import "meshnet/rng"

// FrameIDCacheCap is the fixed ring capacity (§3 FrameId).
const FrameIDCacheCap = 16

// FrameID is a random u16 identifying a flooded link-state frame.
type FrameID uint16

// FrameIDCache is a fixed-capacity ring supporting Contains/Insert/Generate;
// Generate never returns a value already in the cache.
type FrameIDCache struct {
	entries [FrameIDCacheCap]FrameID
	len     int
	next    int // ring write cursor
}

// Contains reports whether id has been seen.
func (c *FrameIDCache) Contains(id FrameID) bool {
	for i := 0; i < c.len; i++ {
		if c.entries[i] == id {
			return true
		}
	}
	return false
}

// Insert records id, evicting the oldest entry once the ring is full.
func (c *FrameIDCache) Insert(id FrameID) {
	c.entries[c.next] = id
	c.next = (c.next + 1) % FrameIDCacheCap
	if c.len < FrameIDCacheCap {
		c.len++
	}
}

// Generate draws a random FrameID guaranteed not to already be cached.
func (c *FrameIDCache) Generate(src rng.Source) FrameID {
	for {
		id := FrameID(src.Uint16(0xFFFF))
		if !c.Contains(id) {
			return id
		}
	}
}
