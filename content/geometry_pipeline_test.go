// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"encoding/binary"
	"math"
	"testing"
)

// triangleGeometry builds three vertices with float3 positions at
// stride 16 and one triangle.
func triangleGeometry() (vertices, indices []byte) {
	le := binary.LittleEndian
	positions := [][3]float32{
		{-1, 0, 2},
		{1, 0.5, -3},
		{0, 2, 0},
	}
	vertices = make([]byte, len(positions)*16)
	for i, p := range positions {
		base := i * 16
		for axis, v := range p {
			le.PutUint32(vertices[base+axis*4:], math.Float32bits(v))
		}
	}
	indices = make([]byte, 12)
	for i := uint32(0); i < 3; i++ {
		le.PutUint32(indices[i*4:], i)
	}
	return vertices, indices
}

func TestCookGeometry(t *testing.T) {
	vertices, indices := triangleGeometry()
	payload, err := CookGeometry(vertices, indices, GeometryImportSettings{VertexStride: 16})
	if err != nil {
		t.Fatalf("CookGeometry: %v", err)
	}
	if payload.VertexCount != 3 || payload.IndexCount != 3 {
		t.Errorf("expected 3 vertices and 3 indices, got %d and %d", payload.VertexCount, payload.IndexCount)
	}
	if len(payload.LODs) != 1 || payload.LODs[0].IndexCount != 3 {
		t.Errorf("expected implicit full-range lod, got %+v", payload.LODs)
	}
	want := Bounds3{Min: [3]float32{-1, 0, -3}, Max: [3]float32{1, 2, 2}}
	if payload.Bounds != want {
		t.Errorf("expected bounds %+v, got %+v", want, payload.Bounds)
	}
}

func TestCookGeometryContentKeyDedup(t *testing.T) {
	vertices, indices := triangleGeometry()
	first, err := CookGeometry(vertices, indices, GeometryImportSettings{VertexStride: 16})
	if err != nil {
		t.Fatalf("CookGeometry: %v", err)
	}
	second, err := CookGeometry(vertices, indices, GeometryImportSettings{VertexStride: 16})
	if err != nil {
		t.Fatalf("CookGeometry: %v", err)
	}
	if first.ContentKey != second.ContentKey {
		t.Error("expected identical content keys for identical streams")
	}

	mutated := make([]byte, len(vertices))
	copy(mutated, vertices)
	mutated[0]++
	third, err := CookGeometry(mutated, indices, GeometryImportSettings{VertexStride: 16})
	if err != nil {
		t.Fatalf("CookGeometry: %v", err)
	}
	if third.ContentKey == first.ContentKey {
		t.Error("expected different content keys for different streams")
	}
}

func TestCookGeometryValidation(t *testing.T) {
	vertices, indices := triangleGeometry()
	tests := []struct {
		name     string
		vertices []byte
		indices  []byte
		settings GeometryImportSettings
	}{
		{"zero stride", vertices, indices, GeometryImportSettings{}},
		{"ragged vertices", vertices[:40], indices, GeometryImportSettings{VertexStride: 16}},
		{"ragged indices", vertices, indices[:10], GeometryImportSettings{VertexStride: 16}},
		{"position outside stride", vertices, indices, GeometryImportSettings{VertexStride: 16, PositionOffset: 8}},
		{"lod out of range", vertices, indices, GeometryImportSettings{
			VertexStride: 16,
			LODs:         []GeometryLOD{{FirstIndex: 2, IndexCount: 4}},
		}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := CookGeometry(tt.vertices, tt.indices, tt.settings); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestCookGeometryRejectsOutOfRangeIndex(t *testing.T) {
	vertices, indices := triangleGeometry()
	binary.LittleEndian.PutUint32(indices[8:], 9)
	if _, err := CookGeometry(vertices, indices, GeometryImportSettings{VertexStride: 16}); err == nil {
		t.Error("expected error for out-of-range index, got nil")
	}
}
