// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"bytes"
	"context"
	"testing"

	"github.com/gogpu/gputypes"

	"github.com/abdes/oxygen/gpucore"
)

type uploadFixture struct {
	dev     *gpucore.SoftwareAdapter
	staging *StagingProvider
	coord   *Coordinator
}

func newUploadFixture(t testing.TB) *uploadFixture {
	t.Helper()
	dev := gpucore.NewSoftwareAdapter()
	staging, err := NewStagingProvider(dev, 2, 256<<10)
	if err != nil {
		t.Fatalf("NewStagingProvider failed: %v", err)
	}
	t.Cleanup(staging.Close)
	coord, err := NewCoordinator(dev, staging)
	if err != nil {
		t.Fatalf("NewCoordinator failed: %v", err)
	}
	return &uploadFixture{dev: dev, staging: staging, coord: coord}
}

func (f *uploadFixture) newBuffer(t testing.TB, size uint64) gpucore.BufferID {
	t.Helper()
	id, err := f.dev.CreateBuffer(gpucore.BufferDesc{
		Label:     "dst",
		SizeBytes: size,
		Usage:     gputypes.BufferUsageCopyDst | gputypes.BufferUsageStorage,
	})
	if err != nil {
		t.Fatalf("CreateBuffer failed: %v", err)
	}
	return id
}

func TestSubmitInlineBufferWrite(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 1024)

	payload := []byte("inline bytes")
	ticket, err := f.coord.Submit(Request{
		Kind: KindBuffer, DebugName: "inline",
		Data: payload, DstBuffer: dst, DstOffset: 16,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if !ticket.IsComplete() {
		t.Error("inline write ticket must be complete at return")
	}
	got, _ := f.dev.ReadBuffer(dst, 16, uint64(len(payload)))
	if !bytes.Equal(got, payload) {
		t.Errorf("expected %q, got %q", payload, got)
	}
}

func TestSubmitManyStagedAggregateTicket(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 1<<20)

	// Three block-multiple payloads at contiguous destinations, large
	// enough in total to force the staged path.
	mk := func(fill byte) []byte {
		b := make([]byte, 32<<10)
		for i := range b {
			b[i] = fill
		}
		return b
	}
	reqs := []Request{
		{Kind: KindBuffer, Data: mk(0xAA), DstBuffer: dst, DstOffset: 0},
		{Kind: KindBuffer, Data: mk(0xBB), DstBuffer: dst, DstOffset: 32 << 10},
		{Kind: KindBuffer, Data: mk(0xCC), DstBuffer: dst, DstOffset: 64 << 10},
	}
	ticket, err := f.coord.SubmitMany(reqs)
	if err != nil {
		t.Fatalf("SubmitMany failed: %v", err)
	}
	if err := ticket.Await(); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if !ticket.IsComplete() {
		t.Error("ticket incomplete after Await")
	}

	for i, fill := range []byte{0xAA, 0xBB, 0xCC} {
		got, _ := f.dev.ReadBuffer(dst, uint64(i)*(32<<10), 32<<10)
		for j, b := range got {
			if b != fill {
				t.Fatalf("request %d: byte %d is %#x, want %#x", i, j, b, fill)
			}
		}
	}

	// Contiguous staging plus contiguous destinations fuse to one region.
	if s := f.coord.Stats(); s.RegionsFused != 2 {
		t.Errorf("expected 2 fused regions, got %d", s.RegionsFused)
	}
}

func TestSubmitRawCopy(t *testing.T) {
	f := newUploadFixture(t)
	src := f.newBuffer(t, 256)
	dst := f.newBuffer(t, 256)
	if err := f.dev.WriteBuffer(src, 0, []byte("raw source")); err != nil {
		t.Fatalf("WriteBuffer failed: %v", err)
	}

	ticket, err := f.coord.Submit(Request{
		Kind: KindRaw, SrcBuffer: src, SrcOffset: 0,
		DstBuffer: dst, DstOffset: 64, SizeBytes: 10,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := ticket.Await(); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	got, _ := f.dev.ReadBuffer(dst, 64, 10)
	if string(got) != "raw source" {
		t.Errorf("expected %q, got %q", "raw source", got)
	}
}

func TestSubmitTextureWrite(t *testing.T) {
	f := newUploadFixture(t)
	tex, err := f.dev.CreateTexture(gpucore.TextureDesc{
		Label:     "tex",
		Size:      gputypes.Extent3D{Width: 4, Height: 4, DepthOrArrayLayers: 1},
		Format:    gputypes.TextureFormatRGBA8Unorm,
		MipLevels: 2,
	})
	if err != nil {
		t.Fatalf("CreateTexture failed: %v", err)
	}

	texels := make([]byte, 2*2*4)
	ticket, err := f.coord.Submit(Request{
		Kind: KindTexture2D, DstTexture: tex,
		Mip: 1, Slice: 0, RowPitch: 8, Data: texels,
	})
	if err != nil {
		t.Fatalf("Submit failed: %v", err)
	}
	if err := ticket.Await(); err != nil {
		t.Fatalf("Await failed: %v", err)
	}
	if got := f.dev.TextureSubresource(tex, 1, 0); len(got) != len(texels) {
		t.Errorf("expected %d texel bytes at mip 1, got %d", len(texels), len(got))
	}
}

func TestSubmitDropsCanceledRequests(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 1024)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ticket, err := f.coord.SubmitMany([]Request{
		{Kind: KindBuffer, Ctx: ctx, Data: []byte("dropped"), DstBuffer: dst},
		{Kind: KindBuffer, Data: []byte("kept"), DstBuffer: dst, DstOffset: 512},
	})
	if err != nil {
		t.Fatalf("SubmitMany failed: %v", err)
	}
	if err := ticket.Await(); err != nil {
		t.Fatalf("Await failed: %v", err)
	}

	got, _ := f.dev.ReadBuffer(dst, 0, 7)
	if string(got) == "dropped" {
		t.Error("canceled request still wrote its bytes")
	}
	got, _ = f.dev.ReadBuffer(dst, 512, 4)
	if string(got) != "kept" {
		t.Errorf("surviving request lost: got %q", got)
	}
	if s := f.coord.Stats(); s.RequestsSkipped != 1 || s.RequestsPlanned != 1 {
		t.Errorf("expected 1 skipped / 1 planned, got %+v", s)
	}
}

func TestSubmitAllCanceledIssuesNoTicket(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	ticket, err := f.coord.SubmitMany([]Request{
		{Kind: KindBuffer, Ctx: ctx, Data: []byte{1}, DstBuffer: dst},
	})
	if err != nil {
		t.Fatalf("SubmitMany failed: %v", err)
	}
	if ticket.ID() != 0 {
		t.Errorf("expected zero ticket, got id %d", ticket.ID())
	}
	if !ticket.IsComplete() {
		t.Error("zero ticket must report complete")
	}
	if s := f.coord.Stats(); s.TicketsIssued != 0 {
		t.Errorf("expected no tickets issued, got %d", s.TicketsIssued)
	}
}

func TestSubmitUnknownDependency(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 64)

	_, err := f.coord.Submit(Request{
		Kind: KindBuffer, Data: []byte{1}, DstBuffer: dst, DependsOn: 99,
	})
	if err == nil {
		t.Error("expected error for unknown dependency ticket")
	}
}

func TestSubmitDependencyOrdersBatches(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 64<<10)

	first, err := f.coord.Submit(Request{
		Kind: KindBuffer, Data: make([]byte, 40<<10), DstBuffer: dst,
	})
	if err != nil {
		t.Fatalf("first Submit failed: %v", err)
	}
	second, err := f.coord.Submit(Request{
		Kind: KindBuffer, Data: []byte{7}, DstBuffer: dst, DstOffset: 60 << 10,
		DependsOn: first.ID(),
	})
	if err != nil {
		t.Fatalf("dependent Submit failed: %v", err)
	}
	if !second.IsComplete() {
		t.Error("dependent inline write should be complete at return")
	}
}

func TestFlushWaitsForLastBatch(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 1<<20)

	if _, err := f.coord.SubmitMany([]Request{
		{Kind: KindBuffer, Data: make([]byte, 80<<10), DstBuffer: dst},
	}); err != nil {
		t.Fatalf("SubmitMany failed: %v", err)
	}
	if err := f.coord.Flush(); err != nil {
		t.Fatalf("Flush failed: %v", err)
	}
	if !f.coord.IsComplete(1) {
		t.Error("ticket 1 incomplete after Flush")
	}
}

func TestRetireCompletedDropsBookkeeping(t *testing.T) {
	f := newUploadFixture(t)
	dst := f.newBuffer(t, 1024)

	ticket, _ := f.coord.Submit(Request{Kind: KindBuffer, Data: []byte{1}, DstBuffer: dst})
	f.coord.RetireCompleted()

	// Retired tickets still report complete.
	if !f.coord.IsComplete(ticket.ID()) {
		t.Error("retired ticket must report complete")
	}
	// But can no longer anchor dependencies.
	if _, err := f.coord.Submit(Request{
		Kind: KindBuffer, Data: []byte{2}, DstBuffer: dst, DependsOn: ticket.ID(),
	}); err == nil {
		t.Error("expected dependency on retired ticket to fail")
	}
}
