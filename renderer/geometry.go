// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"fmt"
	"sync"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/gputypes"

	"github.com/abdes/oxygen/bindless"
	"github.com/abdes/oxygen/gpucore"
	"github.com/abdes/oxygen/upload"
)

// GeometryKey identifies one mesh LOD.
type GeometryKey struct {
	Mesh uint64
	LOD  uint8
}

// GeometryContentKey derives a mesh identity from the raw vertex and
// index bytes.
func GeometryContentKey(vertexData, indexData []byte) uint64 {
	h := xxhash.New()
	h.Write(vertexData)
	h.Write(indexData)
	return h.Sum64()
}

// GeometryHandle is the resolved GPU identity of one mesh LOD.
type GeometryHandle struct {
	VertexSRV   bindless.ShaderVisibleIndex
	IndexSRV    bindless.ShaderVisibleIndex
	VertexCount uint32
	IndexCount  uint32
}

type geometryEntry struct {
	handle GeometryHandle
	vb, ib gpucore.BufferID
}

// GeometryUploader owns mesh LOD buffers and their SRV pair. Uploads
// deduplicate by key: the second Upload of a key returns the existing
// handle without touching the GPU.
type GeometryUploader struct {
	device   gpucore.DeviceAdapter
	registry *bindless.ResourceRegistry
	alloc    *bindless.DescriptorAllocator
	coord    *upload.Coordinator

	mu      sync.Mutex
	entries map[GeometryKey]*geometryEntry
}

// NewGeometryUploader creates an empty uploader.
func NewGeometryUploader(device gpucore.DeviceAdapter, registry *bindless.ResourceRegistry,
	alloc *bindless.DescriptorAllocator, coord *upload.Coordinator) *GeometryUploader {
	return &GeometryUploader{
		device:   device,
		registry: registry,
		alloc:    alloc,
		coord:    coord,
		entries:  make(map[GeometryKey]*geometryEntry),
	}
}

// Lookup returns the handle for key if it was uploaded.
func (g *GeometryUploader) Lookup(key GeometryKey) (GeometryHandle, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	e, ok := g.entries[key]
	if !ok {
		return GeometryHandle{}, false
	}
	return e.handle, true
}

// Upload creates device buffers for the mesh LOD, uploads the data and
// publishes structured SRVs for both streams. vertexStride is the
// interleaved vertex size; indices are 32-bit.
func (g *GeometryUploader) Upload(key GeometryKey, vertexData []byte, vertexStride uint32, indexData []byte) (GeometryHandle, error) {
	g.mu.Lock()
	if e, ok := g.entries[key]; ok {
		g.mu.Unlock()
		return e.handle, nil
	}
	g.mu.Unlock()

	if vertexStride == 0 || len(vertexData)%int(vertexStride) != 0 {
		return GeometryHandle{}, fmt.Errorf("renderer: geometry %v: %d vertex bytes not a multiple of stride %d",
			key, len(vertexData), vertexStride)
	}
	if len(indexData)%4 != 0 {
		return GeometryHandle{}, fmt.Errorf("renderer: geometry %v: %d index bytes not a multiple of 4", key, len(indexData))
	}

	vb, err := g.device.CreateBuffer(gpucore.BufferDesc{
		Label:     fmt.Sprintf("vb:%x/%d", key.Mesh, key.LOD),
		SizeBytes: uint64(len(vertexData)),
		Usage:     gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		return GeometryHandle{}, fmt.Errorf("renderer: geometry %v vertex buffer: %w", key, err)
	}
	ib, err := g.device.CreateBuffer(gpucore.BufferDesc{
		Label:     fmt.Sprintf("ib:%x/%d", key.Mesh, key.LOD),
		SizeBytes: uint64(len(indexData)),
		Usage:     gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst,
	})
	if err != nil {
		g.device.DestroyBuffer(vb)
		return GeometryHandle{}, fmt.Errorf("renderer: geometry %v index buffer: %w", key, err)
	}

	fail := func(err error) (GeometryHandle, error) {
		g.device.DestroyBuffer(vb)
		g.device.DestroyBuffer(ib)
		return GeometryHandle{}, err
	}

	ticket, err := g.coord.SubmitMany([]upload.Request{
		{Kind: upload.KindBuffer, DebugName: "geometry:vb", Data: vertexData, DstBuffer: vb},
		{Kind: upload.KindBuffer, DebugName: "geometry:ib", Data: indexData, DstBuffer: ib},
	})
	if err != nil {
		return fail(fmt.Errorf("renderer: geometry %v upload: %w", key, err))
	}
	if err := ticket.Await(); err != nil {
		return fail(fmt.Errorf("renderer: geometry %v upload: %w", key, err))
	}

	vbSV, err := g.publishSRV(vb, vertexStride, uint32(len(vertexData))/vertexStride)
	if err != nil {
		return fail(fmt.Errorf("renderer: geometry %v vertex srv: %w", key, err))
	}
	ibSV, err := g.publishSRV(ib, 4, uint32(len(indexData))/4)
	if err != nil {
		return fail(fmt.Errorf("renderer: geometry %v index srv: %w", key, err))
	}

	handle := GeometryHandle{
		VertexSRV:   vbSV,
		IndexSRV:    ibSV,
		VertexCount: uint32(len(vertexData)) / vertexStride,
		IndexCount:  uint32(len(indexData)) / 4,
	}

	g.mu.Lock()
	if e, ok := g.entries[key]; ok {
		g.mu.Unlock()
		// Lost a race; keep the winner and drop our buffers. Views die
		// with the resource unregistration.
		g.registry.UnRegisterResource(bindless.BufferResource{ID: vb})
		g.registry.UnRegisterResource(bindless.BufferResource{ID: ib})
		g.device.DestroyBuffer(vb)
		g.device.DestroyBuffer(ib)
		return e.handle, nil
	}
	g.entries[key] = &geometryEntry{handle: handle, vb: vb, ib: ib}
	g.mu.Unlock()
	return handle, nil
}

func (g *GeometryUploader) publishSRV(id gpucore.BufferID, stride, count uint32) (bindless.ShaderVisibleIndex, error) {
	src := bindless.BufferResource{ID: id}
	g.registry.Register(src)
	_, handle, err := g.registry.CreateAndRegisterView(src, gpucore.ViewDesc{
		Type:          gpucore.ViewStructuredBufferSRV,
		ElementStride: stride,
		ElementCount:  count,
	}, gpucore.ShaderVisible)
	if err != nil {
		return bindless.InvalidShaderVisibleIndex, err
	}
	return g.alloc.ShaderVisibleIndex(handle)
}

// Release drops a mesh LOD, unregistering its views and destroying its
// buffers. Unknown keys are a no-op.
func (g *GeometryUploader) Release(key GeometryKey) {
	g.mu.Lock()
	e, ok := g.entries[key]
	if ok {
		delete(g.entries, key)
	}
	g.mu.Unlock()
	if !ok {
		return
	}
	g.registry.UnRegisterResource(bindless.BufferResource{ID: e.vb})
	g.registry.UnRegisterResource(bindless.BufferResource{ID: e.ib})
	g.device.DestroyBuffer(e.vb)
	g.device.DestroyBuffer(e.ib)
}

// Len returns the number of resident mesh LODs.
func (g *GeometryUploader) Len() int {
	g.mu.Lock()
	defer g.mu.Unlock()
	return len(g.entries)
}
