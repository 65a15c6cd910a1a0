// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"math"

	"github.com/cespare/xxhash/v2"
)

const cookedGeometryMagic = "OXGM"

// GeometryLOD describes one level of detail as an index range into the
// cooked index buffer.
type GeometryLOD struct {
	FirstIndex uint32
	IndexCount uint32
}

// Bounds3 is an axis-aligned box over the cooked vertex positions.
type Bounds3 struct {
	Min [3]float32
	Max [3]float32
}

// GeometryImportSettings steers one geometry cook. PositionOffset is
// the byte offset of the float3 position inside each interleaved
// vertex.
type GeometryImportSettings struct {
	VertexStride   uint32
	PositionOffset uint32
	LODs           []GeometryLOD
}

// GeometryJob carries interleaved vertex bytes and uint32 index bytes.
type GeometryJob struct {
	Vertices []byte
	Indices  []byte
	Settings GeometryImportSettings
}

// CookedGeometryPayload is an immutable cooked geometry blob. ContentKey
// hashes the vertex and index streams so identical geometry dedups to
// one asset.
type CookedGeometryPayload struct {
	VertexStride uint32
	VertexCount  uint32
	IndexCount   uint32
	Bounds       Bounds3
	LODs         []GeometryLOD
	ContentKey   uint64
	Vertices     []byte
	Indices      []byte
}

// GeometryPipeline cooks geometry jobs concurrently.
type GeometryPipeline = Pipeline[GeometryJob, *CookedGeometryPayload]

// NewGeometryPipeline builds the bounded geometry cooking stage.
func NewGeometryPipeline(workers, capacity int) *GeometryPipeline {
	return NewPipeline[GeometryJob, *CookedGeometryPayload](workers, capacity, cookGeometryItem)
}

func cookGeometryItem(ctx context.Context, item WorkItem[GeometryJob]) WorkResult[*CookedGeometryPayload] {
	payload, err := CookGeometry(item.Payload.Vertices, item.Payload.Indices, item.Payload.Settings)
	if err == nil {
		return WorkResult[*CookedGeometryPayload]{
			Name:    item.Name,
			Success: true,
			Payload: payload,
		}
	}
	return WorkResult[*CookedGeometryPayload]{
		Name: item.Name,
		Diagnostics: []ImportDiagnostic{
			diagf(SeverityError, CodeStrideMismatch, item.Name, "geometry cook failed: %v", err),
		},
	}
}

// CookGeometry validates the interleaved streams, computes bounds over
// the position attribute and hashes the content for deduplication.
// An empty LOD list cooks a single LOD covering every index.
func CookGeometry(vertices, indices []byte, settings GeometryImportSettings) (*CookedGeometryPayload, error) {
	stride := settings.VertexStride
	if stride == 0 {
		return nil, fmt.Errorf("content: zero vertex stride")
	}
	if uint64(len(vertices))%uint64(stride) != 0 {
		return nil, fmt.Errorf("content: vertex bytes %d not a multiple of stride %d", len(vertices), stride)
	}
	if len(indices)%4 != 0 {
		return nil, fmt.Errorf("content: index bytes %d not a multiple of 4", len(indices))
	}
	if settings.PositionOffset+12 > stride {
		return nil, fmt.Errorf("content: position offset %d exceeds stride %d", settings.PositionOffset, stride)
	}
	vertexCount := uint32(uint64(len(vertices)) / uint64(stride))
	indexCount := uint32(len(indices) / 4)
	if vertexCount == 0 || indexCount == 0 {
		return nil, fmt.Errorf("content: empty geometry (%d vertices, %d indices)", vertexCount, indexCount)
	}

	le := binary.LittleEndian
	for i := uint32(0); i < indexCount; i++ {
		if idx := le.Uint32(indices[i*4:]); idx >= vertexCount {
			return nil, fmt.Errorf("content: index %d out of range (%d vertices)", idx, vertexCount)
		}
	}

	lods := settings.LODs
	if len(lods) == 0 {
		lods = []GeometryLOD{{FirstIndex: 0, IndexCount: indexCount}}
	}
	for i, lod := range lods {
		end := uint64(lod.FirstIndex) + uint64(lod.IndexCount)
		if lod.IndexCount == 0 || end > uint64(indexCount) {
			return nil, fmt.Errorf("content: lod %d range [%d, %d) exceeds %d indices",
				i, lod.FirstIndex, end, indexCount)
		}
	}

	bounds := Bounds3{
		Min: [3]float32{math.MaxFloat32, math.MaxFloat32, math.MaxFloat32},
		Max: [3]float32{-math.MaxFloat32, -math.MaxFloat32, -math.MaxFloat32},
	}
	for v := uint32(0); v < vertexCount; v++ {
		base := v*stride + settings.PositionOffset
		for axis := 0; axis < 3; axis++ {
			f := math.Float32frombits(le.Uint32(vertices[base+uint32(axis)*4:]))
			if f < bounds.Min[axis] {
				bounds.Min[axis] = f
			}
			if f > bounds.Max[axis] {
				bounds.Max[axis] = f
			}
		}
	}

	h := xxhash.New()
	_, _ = h.Write(vertices)
	_, _ = h.Write(indices)

	return &CookedGeometryPayload{
		VertexStride: stride,
		VertexCount:  vertexCount,
		IndexCount:   indexCount,
		Bounds:       bounds,
		LODs:         lods,
		ContentKey:   h.Sum64(),
		Vertices:     vertices,
		Indices:      indices,
	}, nil
}

// Encode serializes the payload for the loose-cooked store.
func (p *CookedGeometryPayload) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(cookedGeometryMagic)
	le := binary.LittleEndian
	var scratch [8]byte
	put32 := func(v uint32) {
		le.PutUint32(scratch[:4], v)
		buf.Write(scratch[:4])
	}
	putF := func(v float32) { put32(math.Float32bits(v)) }

	put32(cookedVersion)
	put32(p.VertexStride)
	put32(p.VertexCount)
	put32(p.IndexCount)
	for axis := 0; axis < 3; axis++ {
		putF(p.Bounds.Min[axis])
	}
	for axis := 0; axis < 3; axis++ {
		putF(p.Bounds.Max[axis])
	}
	le.PutUint64(scratch[:8], p.ContentKey)
	buf.Write(scratch[:8])
	put32(uint32(len(p.LODs)))
	for _, lod := range p.LODs {
		put32(lod.FirstIndex)
		put32(lod.IndexCount)
	}
	put32(uint32(len(p.Vertices)))
	put32(uint32(len(p.Indices)))
	buf.Write(p.Vertices)
	buf.Write(p.Indices)
	return buf.Bytes()
}
