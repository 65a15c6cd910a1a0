// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"bytes"
	"testing"

	"github.com/abdes/oxygen/bindless"
)

func TestAtlasWriteAndPublish(t *testing.T) {
	f := newRendererFixture(t)
	a := f.newAtlas(t, "test", 16, 8)
	a.OnFrameStart(0)

	e0 := a.Allocate()
	e1 := a.Allocate()
	if e0 != 0 || e1 != 1 {
		t.Fatalf("expected elements 0,1, got %d,%d", e0, e1)
	}
	if err := a.Write(e1, []byte("hello atlas!")); err != nil {
		t.Fatalf("Write failed: %v", err)
	}

	sv, err := a.EnsureFrameResources(f.coord)
	if err != nil {
		t.Fatalf("EnsureFrameResources failed: %v", err)
	}
	if sv == bindless.InvalidShaderVisibleIndex {
		t.Fatal("expected valid SRV index")
	}

	// The element's bytes live at element*stride in the backing buffer.
	got, err := f.dev.ReadBuffer(a.buffer, 16, 12)
	if err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	if !bytes.Equal(got, []byte("hello atlas!")) {
		t.Errorf("expected element bytes at offset 16, got %q", got)
	}
}

func TestAtlasWriteExceedingStride(t *testing.T) {
	f := newRendererFixture(t)
	a := f.newAtlas(t, "test", 4, 4)
	a.OnFrameStart(0)
	if err := a.Write(a.Allocate(), []byte("too big")); err == nil {
		t.Error("expected error for write exceeding stride")
	}
}

func TestAtlasSrvStableAcrossGrowth(t *testing.T) {
	f := newRendererFixture(t)
	a := f.newAtlas(t, "grow", 8, 2)
	a.OnFrameStart(0)

	a.Write(a.Allocate(), []byte("keepme!"))
	sv1, err := a.EnsureFrameResources(f.coord)
	if err != nil {
		t.Fatalf("EnsureFrameResources failed: %v", err)
	}

	// Next frame allocates past capacity, forcing growth.
	a.OnFrameStart(1)
	for i := 0; i < 5; i++ {
		a.Write(a.Allocate(), []byte{byte(i)})
	}
	sv2, err := a.EnsureFrameResources(f.coord)
	if err != nil {
		t.Fatalf("EnsureFrameResources after growth failed: %v", err)
	}
	if sv1 != sv2 {
		t.Errorf("growth moved SRV index: %d -> %d", sv1, sv2)
	}
	if got := a.Capacity(); got < 5 {
		t.Errorf("expected capacity >= 5 after growth, got %d", got)
	}
	// Allocator still holds exactly one descriptor for this atlas.
	if _, _, ok := f.registry.Resolve(sv2); !ok {
		t.Error("grown atlas SRV does not resolve in the registry")
	}
}

func TestAtlasGrowthPreservesContents(t *testing.T) {
	f := newRendererFixture(t)
	a := f.newAtlas(t, "grow2", 8, 1)
	a.OnFrameStart(0)

	a.Write(a.Allocate(), []byte("oldbyte"))
	if _, err := a.EnsureFrameResources(f.coord); err != nil {
		t.Fatalf("EnsureFrameResources failed: %v", err)
	}
	// Write element 3 without an intervening frame reset so element 0's
	// content must survive the copy into the larger buffer.
	a.Write(3, []byte("newbyte"))
	if _, err := a.EnsureFrameResources(f.coord); err != nil {
		t.Fatalf("EnsureFrameResources failed: %v", err)
	}

	got, err := f.dev.ReadBuffer(a.buffer, 0, 7)
	if err != nil {
		t.Fatalf("ReadBuffer failed: %v", err)
	}
	if !bytes.Equal(got, []byte("oldbyte")) {
		t.Errorf("growth lost element 0: got %q", got)
	}
}

func TestAtlasLazySrvWithZeroElements(t *testing.T) {
	f := newRendererFixture(t)
	a := f.newAtlas(t, "lazy", 8, 4)
	a.OnFrameStart(0)

	sv, err := a.SrvIndex()
	if err != nil {
		t.Fatalf("SrvIndex failed: %v", err)
	}
	if sv == bindless.InvalidShaderVisibleIndex {
		t.Error("expected valid SRV with zero allocations")
	}
	// Repeated queries return the same index without reallocation.
	sv2, _ := a.SrvIndex()
	if sv != sv2 {
		t.Errorf("SRV index changed across queries: %d -> %d", sv, sv2)
	}
}
