// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"fmt"
	"sync"

	"github.com/abdes/oxygen/gpucore"
)

// DescriptorAllocator partitions the descriptor index space across heap
// families according to a [HeapStrategy].
//
// Each configured (heap-type, visibility) key owns one
// [FixedDescriptorSegment]; Allocate hands out slots from the matching
// segment and ShaderVisibleIndex maps a handle to its absolute position
// in the heap family (segment base index + local index).
//
// Thread safety: DescriptorAllocator is safe for concurrent use; each
// segment carries its own lock.
type DescriptorAllocator struct {
	strategy *HeapStrategy

	mu       sync.RWMutex
	segments map[string]*FixedDescriptorSegment
}

// NewDescriptorAllocator builds an allocator with one segment per
// configured heap key.
func NewDescriptorAllocator(strategy *HeapStrategy) (*DescriptorAllocator, error) {
	if strategy == nil {
		return nil, fmt.Errorf("%w: nil strategy", ErrConfig)
	}
	segments := make(map[string]*FixedDescriptorSegment, len(strategy.Keys()))
	for _, key := range strategy.Keys() {
		d, err := strategy.HeapDescription(key)
		if err != nil {
			return nil, err
		}
		segments[key] = newSegment(key, d)
	}
	return &DescriptorAllocator{strategy: strategy, segments: segments}, nil
}

// Strategy returns the immutable configuration the allocator was built
// from.
func (a *DescriptorAllocator) Strategy() *HeapStrategy { return a.strategy }

func (a *DescriptorAllocator) segmentFor(viewType gpucore.ViewType, vis gpucore.Visibility) (*FixedDescriptorSegment, error) {
	key, err := a.strategy.HeapKey(viewType, vis)
	if err != nil {
		return nil, err
	}
	a.mu.RLock()
	seg, ok := a.segments[key]
	a.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: heap %q not configured", ErrConfig, key)
	}
	return seg, nil
}

// Allocate returns a unique descriptor handle in the segment for the
// given view request, or the zero handle with an error when the segment
// is exhausted and growth is disallowed.
func (a *DescriptorAllocator) Allocate(viewType gpucore.ViewType, vis gpucore.Visibility) (DescriptorHandle, error) {
	seg, err := a.segmentFor(viewType, vis)
	if err != nil {
		return DescriptorHandle{}, err
	}
	local, err := seg.allocate()
	if err != nil {
		return DescriptorHandle{}, err
	}
	sv := InvalidShaderVisibleIndex
	if vis == gpucore.ShaderVisible {
		sv = ShaderVisibleIndex(seg.baseIndex + local)
	}
	return DescriptorHandle{
		local:    local,
		svIndex:  sv,
		viewType: viewType,
		vis:      vis,
		valid:    true,
	}, nil
}

// Release returns a handle's slot to its segment. Releasing an invalid
// or already-released handle is a no-op.
func (a *DescriptorAllocator) Release(h DescriptorHandle) {
	if !h.valid {
		return
	}
	seg, err := a.segmentFor(h.viewType, h.vis)
	if err != nil {
		return
	}
	seg.release(h.local)
}

// ShaderVisibleIndex maps a handle to its absolute heap-family
// position. Only valid for shader-visible handles.
func (a *DescriptorAllocator) ShaderVisibleIndex(h DescriptorHandle) (ShaderVisibleIndex, error) {
	if !h.valid {
		return InvalidShaderVisibleIndex, fmt.Errorf("bindless: invalid descriptor handle")
	}
	if h.vis != gpucore.ShaderVisible {
		return InvalidShaderVisibleIndex, fmt.Errorf("bindless: handle is not shader-visible")
	}
	return h.svIndex, nil
}

// AllocatedCount returns the number of live slots in the segment for
// the given view request. Diagnostic; tests use it to pin the
// "failed operations do not leak descriptors" property.
func (a *DescriptorAllocator) AllocatedCount(viewType gpucore.ViewType, vis gpucore.Visibility) uint32 {
	seg, err := a.segmentFor(viewType, vis)
	if err != nil {
		return 0
	}
	return seg.Allocated()
}
