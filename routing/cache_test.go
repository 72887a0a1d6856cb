package routing

import (
	"testing"

	"meshnet/rng"
)

func TestFrameIDCacheContainsAndInsert(t *testing.T) {
	var c FrameIDCache
	if c.Contains(42) {
		t.Fatal("empty cache should not contain anything")
	}
	c.Insert(42)
	if !c.Contains(42) {
		t.Fatal("cache should contain inserted id")
	}
}

func TestFrameIDCacheEvictsOldestOnOverflow(t *testing.T) {
	var c FrameIDCache
	for i := 0; i < FrameIDCacheCap; i++ {
		c.Insert(FrameID(i))
	}
	if !c.Contains(0) {
		t.Fatal("id 0 should still be cached before overflow")
	}
	c.Insert(FrameID(FrameIDCacheCap)) // forces eviction of id 0
	if c.Contains(0) {
		t.Fatal("id 0 should have been evicted as the oldest entry")
	}
	if !c.Contains(FrameID(FrameIDCacheCap)) {
		t.Fatal("newly inserted id should be present")
	}
}

func TestFrameIDCacheGenerateAvoidsCollisions(t *testing.T) {
	var c FrameIDCache
	// Sequence forces repeated collisions with 7 before finally producing 9.
	src := rng.NewSequence(7, 7, 7, 9)
	c.Insert(7)
	id := c.Generate(src)
	if id != 9 {
		t.Fatalf("Generate = %d, want 9 (first non-cached draw)", id)
	}
}
