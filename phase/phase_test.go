// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package phase

import "testing"

func TestValidate(t *testing.T) {
	if err := Validate(); err != nil {
		t.Fatalf("canonical registry failed validation: %v", err)
	}
}

func TestRegistryIndexEqualsID(t *testing.T) {
	for i, d := range Registry() {
		if int(d.ID) != i {
			t.Errorf("index %d: expected id %d, got %d", i, i, d.ID)
		}
	}
}

func TestRegistryOrdering(t *testing.T) {
	// The per-frame contracts depend on these relative positions.
	checks := []struct {
		before, after ID
	}{
		{FrameStart, Input},
		{SnapshotScenePrep, ParallelTasks},
		{ParallelTasks, FrameGraph},
		{CommandRecord, Present},
		{Present, FrameEnd},
	}
	for _, c := range checks {
		if c.before >= c.after {
			t.Errorf("expected %s before %s", c.before, c.after)
		}
	}
}

func TestBarriersNonDecreasing(t *testing.T) {
	var prev ID
	for _, b := range Barriers() {
		if b.Phase < prev {
			t.Errorf("barrier %s: phase %s precedes %s", b.Name, b.Phase, prev)
		}
		prev = b.Phase
	}
}

func TestFrameStartExclusive(t *testing.T) {
	d, ok := Get(FrameStart)
	if !ok {
		t.Fatal("FrameStart not registered")
	}
	if d.ThreadSafe {
		t.Error("FrameStart must run on the main thread with exclusive access")
	}
	if d.Category != Ordered {
		t.Error("FrameStart must be an ordered phase")
	}
}

func TestGetUnknown(t *testing.T) {
	if _, ok := Get(ID(200)); ok {
		t.Error("expected Get to fail for unknown id")
	}
}

func TestString(t *testing.T) {
	if got := SnapshotScenePrep.String(); got != "SnapshotScenePrep" {
		t.Errorf("expected SnapshotScenePrep, got %q", got)
	}
	if got := ID(99).String(); got != "Phase(99)" {
		t.Errorf("expected Phase(99), got %q", got)
	}
}
