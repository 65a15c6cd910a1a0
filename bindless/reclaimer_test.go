// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"sync"
	"testing"
)

type releaseCounter struct {
	mu sync.Mutex
	n  int
}

func (r *releaseCounter) Release() {
	r.mu.Lock()
	r.n++
	r.mu.Unlock()
}

func (r *releaseCounter) count() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.n
}

func TestReclaimerActionOrdering(t *testing.T) {
	d, err := NewDeferredReclaimer(2)
	if err != nil {
		t.Fatalf("NewDeferredReclaimer failed: %v", err)
	}

	var got []int
	for _, v := range []int{1, 2, 3} {
		v := v
		d.RegisterDeferredAction(func() { got = append(got, v) })
	}

	d.OnBeginFrame(0)

	if len(got) != 3 || got[0] != 1 || got[1] != 2 || got[2] != 3 {
		t.Errorf("expected [1 2 3], got %v", got)
	}
}

func TestReclaimerExactlyOncePerSlot(t *testing.T) {
	d, _ := NewDeferredReclaimer(3)
	rc := &releaseCounter{}

	// Registered during slot 0 (the initial slot).
	d.RegisterDeferredRelease(rc)

	// Other slots beginning must not run it.
	d.OnBeginFrame(1)
	d.OnBeginFrame(2)
	if rc.count() != 0 {
		t.Fatalf("release ran on wrong slot: count=%d", rc.count())
	}

	// Slot 0 beginning runs it exactly once.
	d.OnBeginFrame(0)
	if rc.count() != 1 {
		t.Fatalf("expected exactly one release, got %d", rc.count())
	}

	// A full further cycle must not run it again.
	d.OnBeginFrame(1)
	d.OnBeginFrame(2)
	d.OnBeginFrame(0)
	if rc.count() != 1 {
		t.Errorf("release ran more than once: count=%d", rc.count())
	}
}

func TestReclaimerRegistrationsFollowCurrentSlot(t *testing.T) {
	d, _ := NewDeferredReclaimer(2)
	rc := &releaseCounter{}

	d.OnBeginFrame(1)
	d.RegisterDeferredRelease(rc) // queued to slot 1

	d.OnBeginFrame(0)
	if rc.count() != 0 {
		t.Error("slot 0 drain ran a slot 1 action")
	}
	d.OnBeginFrame(1)
	if rc.count() != 1 {
		t.Errorf("expected release on slot 1 begin, got %d", rc.count())
	}
}

func TestReclaimerNilIsNoOp(t *testing.T) {
	d, _ := NewDeferredReclaimer(2)
	d.RegisterDeferredRelease(nil)
	d.RegisterDeferredAction(nil)
	if d.PendingCount() != 0 {
		t.Errorf("expected no pending actions, got %d", d.PendingCount())
	}
}

func TestReclaimerHoldsNonReleaser(t *testing.T) {
	d, _ := NewDeferredReclaimer(2)

	// Objects without a Release method are held until the drain.
	d.RegisterDeferredRelease(&struct{ payload [16]byte }{})
	if d.PendingCount() != 1 {
		t.Fatalf("expected 1 pending hold, got %d", d.PendingCount())
	}
	d.OnBeginFrame(0)
	if d.PendingCount() != 0 {
		t.Errorf("hold not dropped on drain: %d pending", d.PendingCount())
	}
}

func TestReclaimerProcessAll(t *testing.T) {
	d, _ := NewDeferredReclaimer(3)
	counters := make([]*releaseCounter, 3)
	for slot := uint32(0); slot < 3; slot++ {
		d.OnBeginFrame(slot)
		counters[slot] = &releaseCounter{}
		d.RegisterDeferredRelease(counters[slot])
	}

	d.ProcessAllDeferredReleases()

	for slot, rc := range counters {
		if rc.count() != 1 {
			t.Errorf("slot %d: expected 1 release, got %d", slot, rc.count())
		}
	}
	if d.PendingCount() != 0 {
		t.Errorf("expected empty queues, got %d pending", d.PendingCount())
	}
}

func TestReclaimerRegistrationDuringDrainWaitsFullCycle(t *testing.T) {
	d, _ := NewDeferredReclaimer(2)
	rc := &releaseCounter{}

	d.RegisterDeferredAction(func() {
		// Runs during slot 0 drain; must land in slot 0's fresh queue.
		d.RegisterDeferredRelease(rc)
	})

	d.OnBeginFrame(0)
	if rc.count() != 0 {
		t.Fatal("action registered during drain ran in the same drain")
	}
	d.OnBeginFrame(0)
	if rc.count() != 1 {
		t.Errorf("expected release on next slot 0 begin, got %d", rc.count())
	}
}

func TestReclaimerSlotCountBounds(t *testing.T) {
	if _, err := NewDeferredReclaimer(0); err == nil {
		t.Error("expected error for 0 slots")
	}
	if _, err := NewDeferredReclaimer(9); err == nil {
		t.Error("expected error for 9 slots")
	}
}

func TestReclaimerConcurrentRegistration(t *testing.T) {
	d, _ := NewDeferredReclaimer(2)
	rc := &releaseCounter{}

	var wg sync.WaitGroup
	for i := 0; i < 8; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for j := 0; j < 50; j++ {
				d.RegisterDeferredRelease(rc)
			}
		}()
	}
	wg.Wait()

	d.ProcessAllDeferredReleases()
	if rc.count() != 400 {
		t.Errorf("expected 400 releases, got %d", rc.count())
	}
}
