// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import "github.com/gogpu/gputypes"

// Resource IDs
//
// These opaque IDs represent device resources. Each adapter
// implementation maintains a mapping between IDs and actual backend
// resources. IDs are uint64 to accommodate various backend handle sizes.

// BufferID is an opaque handle to a device buffer.
type BufferID uint64

// TextureID is an opaque handle to a device texture.
type TextureID uint64

// FenceID is an opaque handle to a timeline fence.
type FenceID uint64

// InvalidID is the zero value, representing an invalid/null resource.
const InvalidID = 0

// NativeView is the backend view object written into a descriptor slot.
// The zero value is the invalid sentinel.
type NativeView uint64

// IsValid reports whether v refers to a live backend view.
func (v NativeView) IsValid() bool { return v != 0 }

// HeapType selects a descriptor heap family.
type HeapType uint8

// Descriptor heap families, matching the D3D12 heap model.
const (
	HeapCbvSrvUav HeapType = iota
	HeapSampler
	HeapRtv
	HeapDsv
)

// String returns the canonical heap-type spelling used in strategy keys.
func (t HeapType) String() string {
	switch t {
	case HeapCbvSrvUav:
		return "CBV_SRV_UAV"
	case HeapSampler:
		return "SAMPLER"
	case HeapRtv:
		return "RTV"
	case HeapDsv:
		return "DSV"
	}
	return "UNKNOWN"
}

// Visibility selects whether a descriptor lives in a shader-visible
// heap or a CPU-only staging heap.
type Visibility uint8

const (
	// CPUOnly descriptors are staging copies, never indexed by shaders.
	CPUOnly Visibility = iota
	// ShaderVisible descriptors occupy the heap family's shader-visible
	// index space.
	ShaderVisible
)

// String returns the canonical visibility spelling used in strategy keys.
func (v Visibility) String() string {
	if v == ShaderVisible {
		return "gpu"
	}
	return "cpu"
}

// ViewType identifies the kind of view a descriptor holds.
type ViewType uint8

// View kinds.
const (
	ViewConstantBuffer ViewType = iota
	ViewStructuredBufferSRV
	ViewRawBufferSRV
	ViewTexSRV
	ViewTexUAV
	ViewSampler
	ViewRTV
	ViewDSV
)

// HeapFor returns the heap family a view of this type is placed in.
func (t ViewType) HeapFor() HeapType {
	switch t {
	case ViewSampler:
		return HeapSampler
	case ViewRTV:
		return HeapRtv
	case ViewDSV:
		return HeapDsv
	default:
		return HeapCbvSrvUav
	}
}

// ViewDesc describes a view over a buffer or texture resource.
// ViewDesc values are compared for equality when the registry caches
// views, so the struct must stay comparable.
type ViewDesc struct {
	Type   ViewType
	Format gputypes.TextureFormat

	// Texture views.
	Dimension     gputypes.TextureDimension
	MostDetailMip uint32
	MipCount      uint32
	FirstSlice    uint32
	SliceCount    uint32

	// Buffer views.
	OffsetBytes   uint64
	ElementStride uint32
	ElementCount  uint32
}

// BufferDesc describes a device buffer allocation.
type BufferDesc struct {
	Label     string
	SizeBytes uint64
	Usage     gputypes.BufferUsage
}

// TextureDesc describes a device texture allocation.
type TextureDesc struct {
	Label     string
	Size      gputypes.Extent3D
	Format    gputypes.TextureFormat
	MipLevels uint32
	Usage     gputypes.TextureUsage
}

// BufferCopy is one contiguous buffer-to-buffer copy region.
type BufferCopy struct {
	Src       BufferID
	SrcOffset uint64
	Dst       BufferID
	DstOffset uint64
	SizeBytes uint64
}
