// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"testing"

	"github.com/abdes/oxygen/gpucore"
	"github.com/gogpu/gputypes"
)

const registryHeaps = `{"heaps": {
	"CBV_SRV_UAV:gpu": {"shader_visible": true, "capacity": 64, "base_index": 2000},
	"CBV_SRV_UAV:cpu": {"shader_visible": false, "capacity": 16, "base_index": 4000}}}`

type registryFixture struct {
	dev   *gpucore.SoftwareAdapter
	alloc *DescriptorAllocator
	reg   *ResourceRegistry
}

func newRegistryFixture(t testing.TB) *registryFixture {
	t.Helper()
	dev := gpucore.NewSoftwareAdapter()
	alloc := mustAllocator(t, registryHeaps)
	return &registryFixture{dev: dev, alloc: alloc, reg: NewResourceRegistry(dev, alloc)}
}

func (f *registryFixture) newBuffer(t testing.TB, size uint64) BufferResource {
	t.Helper()
	id, err := f.dev.CreateBuffer(gpucore.BufferDesc{Label: "test", SizeBytes: size})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	return BufferResource{ID: id}
}

func srvDesc(stride, count uint32) gpucore.ViewDesc {
	return gpucore.ViewDesc{
		Type:          gpucore.ViewStructuredBufferSRV,
		Format:        gputypes.TextureFormatUndefined,
		ElementStride: stride,
		ElementCount:  count,
	}
}

func TestRegisterViewAndFind(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 256)
	desc := srvDesc(16, 16)

	f.reg.Register(res)
	f.reg.Register(res) // duplicate registration is a no-op

	native, handle, err := f.reg.CreateAndRegisterView(res, desc, gpucore.ShaderVisible)
	if err != nil {
		t.Fatalf("CreateAndRegisterView failed: %v", err)
	}
	if !native.IsValid() {
		t.Fatal("expected a valid native view")
	}

	// Find returns the same view until the view is unregistered.
	for i := 0; i < 3; i++ {
		if got := f.reg.Find(res, desc); got != native {
			t.Fatalf("Find returned %d, expected %d", got, native)
		}
	}
	if !f.reg.Contains(res, desc) {
		t.Error("Contains should report the registered view")
	}

	sv, _ := f.alloc.ShaderVisibleIndex(handle)
	key, gotDesc, ok := f.reg.Resolve(sv)
	if !ok || key != res.ResourceKey() || gotDesc != desc {
		t.Errorf("reverse lookup mismatch: key=%d desc=%+v ok=%v", key, gotDesc, ok)
	}

	f.reg.UnRegisterView(res, native)
	if f.reg.Contains(res, desc) {
		t.Error("view still present after UnRegisterView")
	}
	if _, _, ok := f.reg.Resolve(sv); ok {
		t.Error("reverse entry still present after UnRegisterView")
	}
	f.reg.UnRegisterView(res, native) // idempotent
}

func TestRegisterViewRequiresRegistration(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 64)

	h, _ := f.alloc.Allocate(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible)
	if _, err := f.reg.RegisterView(res, h, srvDesc(4, 16)); err == nil {
		t.Error("expected RegisterView to fail for unregistered resource")
	}
}

func TestUpdateViewSameResource(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 256)
	oldDesc := srvDesc(16, 16)
	newDesc := srvDesc(32, 8)

	f.reg.Register(res)
	_, handle, err := f.reg.CreateAndRegisterView(res, oldDesc, gpucore.ShaderVisible)
	if err != nil {
		t.Fatalf("CreateAndRegisterView failed: %v", err)
	}
	sv, _ := f.alloc.ShaderVisibleIndex(handle)
	before := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible)

	ok, err := f.reg.UpdateView(res, sv, newDesc)
	if err != nil || !ok {
		t.Fatalf("UpdateView failed: ok=%v err=%v", ok, err)
	}

	if f.reg.Find(res, oldDesc).IsValid() {
		t.Error("old description still resolves after update")
	}
	if !f.reg.Find(res, newDesc).IsValid() {
		t.Error("new description does not resolve after update")
	}
	// Shader-visible index and descriptor count are unchanged.
	if key, desc, ok := f.reg.Resolve(sv); !ok || key != res.ResourceKey() || desc != newDesc {
		t.Error("reverse entry not updated in place")
	}
	if after := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); after != before {
		t.Errorf("descriptor count changed: %d -> %d", before, after)
	}
}

func TestUpdateViewTransfer(t *testing.T) {
	f := newRegistryFixture(t)
	resA := f.newBuffer(t, 256)
	resB := f.newBuffer(t, 256)
	desc1 := srvDesc(16, 16)
	desc2 := srvDesc(32, 8)

	f.reg.Register(resA)
	f.reg.Register(resB)
	_, handle, err := f.reg.CreateAndRegisterView(resA, desc1, gpucore.ShaderVisible)
	if err != nil {
		t.Fatalf("CreateAndRegisterView failed: %v", err)
	}
	sv, _ := f.alloc.ShaderVisibleIndex(handle)
	before := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible)

	ok, err := f.reg.UpdateView(resB, sv, desc2)
	if err != nil || !ok {
		t.Fatalf("UpdateView transfer failed: ok=%v err=%v", ok, err)
	}

	if f.reg.Find(resA, desc1).IsValid() {
		t.Error("source resource still caches the view")
	}
	if !f.reg.Find(resB, desc2).IsValid() {
		t.Error("destination resource does not cache the view")
	}
	if key, _, ok := f.reg.Resolve(sv); !ok || key != resB.ResourceKey() {
		t.Error("shader-visible index not preserved across transfer")
	}
	if after := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); after != before {
		t.Errorf("descriptor count changed: %d -> %d", before, after)
	}
}

func TestUpdateViewDestNotRegistered(t *testing.T) {
	f := newRegistryFixture(t)
	resA := f.newBuffer(t, 64)
	resB := f.newBuffer(t, 64)
	desc := srvDesc(4, 16)

	f.reg.Register(resA)
	_, handle, _ := f.reg.CreateAndRegisterView(resA, desc, gpucore.ShaderVisible)
	sv, _ := f.alloc.ShaderVisibleIndex(handle)
	before := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible)

	ok, err := f.reg.UpdateView(resB, sv, srvDesc(8, 8))
	if ok || err != nil {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
	// No side effects.
	if !f.reg.Contains(resA, desc) {
		t.Error("failed update must not disturb the existing view")
	}
	if after := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); after != before {
		t.Errorf("descriptor count changed on failed update: %d -> %d", before, after)
	}
}

func TestUpdateViewUnknownIndex(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 64)
	f.reg.Register(res)
	before := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible)

	ok, err := f.reg.UpdateView(res, ShaderVisibleIndex(2063), srvDesc(4, 4))
	if ok || err != nil {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
	if after := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); after != before {
		t.Errorf("descriptor count changed: %d -> %d", before, after)
	}
}

func TestUpdateViewInvalidNewView(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 256)
	oldDesc := srvDesc(16, 16)
	badDesc := srvDesc(0, 0)

	f.reg.Register(res)
	_, handle, _ := f.reg.CreateAndRegisterView(res, oldDesc, gpucore.ShaderVisible)
	sv, _ := f.alloc.ShaderVisibleIndex(handle)

	// Make the device refuse the new view without erroring.
	f.dev.FailViews = func(d gpucore.ViewDesc) bool { return d == badDesc }

	ok, err := f.reg.UpdateView(res, sv, badDesc)
	if ok || err != nil {
		t.Fatalf("expected (false, nil), got (%v, %v)", ok, err)
	}
	// Descriptor released and old entry purged.
	if f.reg.Contains(res, oldDesc) {
		t.Error("old cache entry survived failed update")
	}
	if _, _, ok := f.reg.Resolve(sv); ok {
		t.Error("reverse entry survived failed update")
	}
	if got := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); got != 0 {
		t.Errorf("descriptor leaked: %d still allocated", got)
	}
}

func TestUpdateViewPanicCleansUp(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 256)
	oldDesc := srvDesc(16, 16)
	boomDesc := srvDesc(1, 1)

	f.reg.Register(res)
	_, handle, _ := f.reg.CreateAndRegisterView(res, oldDesc, gpucore.ShaderVisible)
	sv, _ := f.alloc.ShaderVisibleIndex(handle)

	f.dev.PanicViews = func(d gpucore.ViewDesc) bool { return d == boomDesc }

	func() {
		defer func() {
			if recover() == nil {
				t.Error("expected view construction panic to propagate")
			}
		}()
		_, _ = f.reg.UpdateView(res, sv, boomDesc)
	}()

	if f.reg.Contains(res, oldDesc) {
		t.Error("old cache entry survived panicking update")
	}
	if got := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); got != 0 {
		t.Errorf("descriptor leaked after panic: %d still allocated", got)
	}
}

func TestUpdateViewIdempotent(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 256)
	desc := srvDesc(16, 16)
	newDesc := srvDesc(32, 8)

	f.reg.Register(res)
	_, handle, _ := f.reg.CreateAndRegisterView(res, desc, gpucore.ShaderVisible)
	sv, _ := f.alloc.ShaderVisibleIndex(handle)

	if ok, err := f.reg.UpdateView(res, sv, newDesc); !ok || err != nil {
		t.Fatalf("first update failed: ok=%v err=%v", ok, err)
	}
	before := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible)
	viewsBefore := f.dev.ViewCount()

	if ok, err := f.reg.UpdateView(res, sv, newDesc); !ok || err != nil {
		t.Fatalf("repeated update failed: ok=%v err=%v", ok, err)
	}
	if after := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); after != before {
		t.Errorf("repeated update changed descriptor count: %d -> %d", before, after)
	}
	if f.dev.ViewCount() != viewsBefore {
		t.Error("repeated update churned native views")
	}
}

func TestUnRegisterResourcePurgesViews(t *testing.T) {
	f := newRegistryFixture(t)
	res := f.newBuffer(t, 512)
	f.reg.Register(res)

	descs := []gpucore.ViewDesc{srvDesc(16, 16), srvDesc(32, 8), srvDesc(64, 4)}
	svs := make([]ShaderVisibleIndex, len(descs))
	for i, d := range descs {
		_, h, err := f.reg.CreateAndRegisterView(res, d, gpucore.ShaderVisible)
		if err != nil {
			t.Fatalf("view %d: %v", i, err)
		}
		svs[i], _ = f.alloc.ShaderVisibleIndex(h)
	}
	if got := f.reg.ViewCount(res); got != 3 {
		t.Fatalf("expected 3 views, got %d", got)
	}

	f.reg.UnRegisterResource(res)

	if f.reg.IsRegistered(res) {
		t.Error("resource still registered")
	}
	for _, sv := range svs {
		if _, _, ok := f.reg.Resolve(sv); ok {
			t.Errorf("reverse entry for %d survived unregister", sv)
		}
	}
	if got := f.alloc.AllocatedCount(gpucore.ViewStructuredBufferSRV, gpucore.ShaderVisible); got != 0 {
		t.Errorf("descriptors leaked: %d still allocated", got)
	}
	f.reg.UnRegisterResource(res) // idempotent
}
