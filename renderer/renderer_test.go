// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"strings"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/abdes/oxygen/bindless"
	"github.com/abdes/oxygen/gpucore"
	"github.com/abdes/oxygen/upload"
)

const rendererHeaps = `{"heaps": {
	"CBV_SRV_UAV:gpu": {"shader_visible": true, "capacity": 256, "base_index": 1000}
}}`

type rendererFixture struct {
	dev       *gpucore.SoftwareAdapter
	alloc     *bindless.DescriptorAllocator
	registry  *bindless.ResourceRegistry
	reclaimer *bindless.DeferredReclaimer
	coord     *upload.Coordinator
}

func newRendererFixture(t testing.TB) *rendererFixture {
	t.Helper()
	dev := gpucore.NewSoftwareAdapter()
	strategy, err := bindless.LoadStrategy(strings.NewReader(rendererHeaps))
	if err != nil {
		t.Fatalf("LoadStrategy failed: %v", err)
	}
	alloc, err := bindless.NewDescriptorAllocator(strategy)
	if err != nil {
		t.Fatalf("NewDescriptorAllocator failed: %v", err)
	}
	reclaimer, err := bindless.NewDeferredReclaimer(2)
	if err != nil {
		t.Fatalf("NewDeferredReclaimer failed: %v", err)
	}
	staging, err := upload.NewStagingProvider(dev, 2, 64<<10)
	if err != nil {
		t.Fatalf("NewStagingProvider failed: %v", err)
	}
	t.Cleanup(staging.Close)
	coord, err := upload.NewCoordinator(dev, staging)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return &rendererFixture{
		dev:       dev,
		alloc:     alloc,
		registry:  bindless.NewResourceRegistry(dev, alloc),
		reclaimer: reclaimer,
		coord:     coord,
	}
}

func (f *rendererFixture) newAtlas(t testing.TB, label string, stride, capacity uint32) *AtlasBuffer {
	t.Helper()
	a, err := NewAtlasBuffer(f.dev, f.registry, f.alloc, f.reclaimer, label, stride, capacity, 2)
	if err != nil {
		t.Fatalf("NewAtlasBuffer failed: %v", err)
	}
	t.Cleanup(a.Close)
	return a
}

func (f *rendererFixture) newPlaceholderTexture(t testing.TB) gpucore.TextureID {
	t.Helper()
	id, err := f.dev.CreateTexture(gpucore.TextureDesc{
		Label:     "placeholder",
		Size:      gputypes.Extent3D{Width: 1, Height: 1, DepthOrArrayLayers: 1},
		Format:    gputypes.TextureFormatRGBA8Unorm,
		MipLevels: 1,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}
	return id
}
