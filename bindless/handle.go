// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import "fmt"

// Handle is the engine's 64-bit packed resource handle.
//
// Bit layout, most significant first:
//
//	[63:61] reserved (3 bits)
//	[60]    free bit (1 bit) - chains the free list inside the lookup
//	        array; opaque to consumers
//	[59:52] custom (8 bits)
//	[51:44] resource type (8 bits)
//	[43:32] generation (12 bits)
//	[31:0]  index (32 bits)
//
// An invalid handle has the index field all-ones. The generation
// increments on every slot reuse and wraps at 2^12; wrap is explicitly
// accepted (stale handles one full cycle old can alias, which the
// design trades for a compact handle).
type Handle uint64

// Field widths. The compile-time checks below pin the packing to
// exactly 64 bits; changing a width without rebalancing the layout
// breaks the build.
const (
	handleIndexBits      = 32
	handleGenerationBits = 12
	handleTypeBits       = 8
	handleCustomBits     = 8
	handleFreeBits       = 1
	handleReservedBits   = 3

	handleIndexShift      = 0
	handleGenerationShift = handleIndexShift + handleIndexBits
	handleTypeShift       = handleGenerationShift + handleGenerationBits
	handleCustomShift     = handleTypeShift + handleTypeBits
	handleFreeShift       = handleCustomShift + handleCustomBits

	handleIndexMask      = 1<<handleIndexBits - 1
	handleGenerationMask = 1<<handleGenerationBits - 1
	handleTypeMask       = 1<<handleTypeBits - 1
	handleCustomMask     = 1<<handleCustomBits - 1

	// GenerationCount is the number of distinct generations before wrap.
	GenerationCount = 1 << handleGenerationBits

	// invalidIndex marks an invalid handle.
	invalidIndex = handleIndexMask
)

const handleTotalBits = handleIndexBits + handleGenerationBits + handleTypeBits +
	handleCustomBits + handleFreeBits + handleReservedBits

// Compile-time layout checks: both arrays have length zero only when
// the field widths sum to exactly 64.
var (
	_ [64 - handleTotalBits]struct{}
	_ [handleTotalBits - 64]struct{}
)

// InvalidHandle is the canonical invalid handle value.
const InvalidHandle = Handle(invalidIndex)

// ResourceType tags the kind of resource a handle refers to.
type ResourceType uint8

// Resource type tags used by the engine.
const (
	ResourceUnknown ResourceType = iota
	ResourceBuffer
	ResourceTexture
	ResourceMaterial
	ResourceGeometry
	ResourceInstanceMetadata
)

// PackHandle assembles a handle from its fields. The free bit is always
// packed as zero: it belongs to the lookup table's free-list encoding
// and never appears in handles given out to consumers.
func PackHandle(index uint32, generation uint16, rtype ResourceType, custom uint8) Handle {
	return Handle(index)&handleIndexMask |
		Handle(generation&handleGenerationMask)<<handleGenerationShift |
		Handle(rtype)<<handleTypeShift |
		Handle(custom)<<handleCustomShift
}

// Index returns the 32-bit slot index.
func (h Handle) Index() uint32 { return uint32(h & handleIndexMask) }

// Generation returns the 12-bit generation counter.
func (h Handle) Generation() uint16 {
	return uint16(h>>handleGenerationShift) & handleGenerationMask
}

// Type returns the resource type tag.
func (h Handle) Type() ResourceType {
	return ResourceType(h >> handleTypeShift & handleTypeMask)
}

// Custom returns the 8 custom bits.
func (h Handle) Custom() uint8 {
	return uint8(h >> handleCustomShift & handleCustomMask)
}

// free reports whether the free bit is set. The bit is only meaningful
// inside HandleTable slots, where it marks free-list links.
func (h Handle) free() bool { return h>>handleFreeShift&1 == 1 }

// IsValid reports whether the handle refers to a slot.
func (h Handle) IsValid() bool { return h.Index() != invalidIndex }

// String formats the handle for diagnostics.
func (h Handle) String() string {
	if !h.IsValid() {
		return "Handle(invalid)"
	}
	return fmt.Sprintf("Handle(idx=%d gen=%d type=%d)", h.Index(), h.Generation(), h.Type())
}
