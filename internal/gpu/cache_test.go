//go:build !nogpu

package gpu

import "testing"

func TestCacheEnsureReusesSlotOnSameShape(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	c := NewCache(b.Device())
	defer c.Close()

	id := c.AllocID()
	data := make([]float32, 4*4*4)
	idx1, err := c.Ensure(id, data, 4, 4, 1)
	if err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	slots1 := c.SlotCount()

	idx2, err := c.Ensure(id, data, 4, 4, 1)
	if err != nil {
		t.Fatalf("Ensure (second call): %v", err)
	}
	if idx1 != idx2 {
		t.Fatalf("re-ensuring the same id with the same shape should return the same slot: %d != %d", idx1, idx2)
	}
	if c.SlotCount() != slots1 {
		t.Fatalf("re-ensuring the same id should not grow the slot table: %d != %d", c.SlotCount(), slots1)
	}
}

func TestCacheGrowOnlyNeverShrinksSlotCount(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	c := NewCache(b.Device())
	defer c.Close()

	id := c.AllocID()
	data := make([]float32, 2*2*4)
	if _, err := c.Ensure(id, data, 2, 2, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	before := c.SlotCount()

	if err := c.Invalidate(id); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if c.SlotCount() != before {
		t.Fatalf("Invalidate must not shrink SlotCount: before=%d after=%d", before, c.SlotCount())
	}

	id2 := c.AllocID()
	if _, err := c.Ensure(id2, data, 2, 2, 1); err != nil {
		t.Fatalf("Ensure after invalidate: %v", err)
	}
	if c.SlotCount() != before {
		t.Fatalf("a fresh Ensure after Invalidate should reuse the freed slot, not grow: before=%d after=%d", before, c.SlotCount())
	}
}

func TestCacheInvalidateUnknownIDFails(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	c := NewCache(b.Device())
	defer c.Close()

	if err := c.Invalidate(999); err == nil {
		t.Fatal("expected ErrUnknownID for an id never passed to Ensure")
	}
}

func TestCacheReshapeKeepsSameSlotIndex(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	c := NewCache(b.Device())
	defer c.Close()

	id := c.AllocID()
	small := make([]float32, 2*2*4)
	idxSmall, err := c.Ensure(id, small, 2, 2, 1)
	if err != nil {
		t.Fatalf("Ensure (small): %v", err)
	}

	big := make([]float32, 8*8*4)
	idxBig, err := c.Ensure(id, big, 8, 8, 1)
	if err != nil {
		t.Fatalf("Ensure (reshaped): %v", err)
	}
	if idxSmall != idxBig {
		t.Fatalf("reshaping a live id must keep the same slot index: %d != %d", idxSmall, idxBig)
	}
}

func TestCacheUsedBytesTracksLiveSlots(t *testing.T) {
	b := newTestBackend(t)
	defer b.Close()
	requireHAL(t, b)

	c := NewCache(b.Device())
	defer c.Close()

	if c.UsedBytes() != 0 {
		t.Fatalf("fresh cache UsedBytes = %d, want 0", c.UsedBytes())
	}

	id := c.AllocID()
	data := make([]float32, 4*4*4)
	if _, err := c.Ensure(id, data, 4, 4, 1); err != nil {
		t.Fatalf("Ensure: %v", err)
	}
	if c.UsedBytes() == 0 {
		t.Fatal("UsedBytes should be non-zero after a live Ensure")
	}

	if err := c.Invalidate(id); err != nil {
		t.Fatalf("Invalidate: %v", err)
	}
	if c.UsedBytes() != 0 {
		t.Fatalf("UsedBytes after invalidating the only slot = %d, want 0", c.UsedBytes())
	}
}
