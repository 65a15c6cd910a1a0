// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/abdes/oxygen"
	"github.com/abdes/oxygen/gpucore"
)

// ErrCapacity is returned when a segment is exhausted and growth is
// disallowed or spent.
var ErrCapacity = errors.New("bindless: descriptor segment exhausted")

// ShaderVisibleIndex is an absolute position in a shader-visible heap
// family: segment base index + local index.
type ShaderVisibleIndex uint32

// InvalidShaderVisibleIndex is the sentinel for "no shader-visible slot".
const InvalidShaderVisibleIndex = ShaderVisibleIndex(^uint32(0))

// DescriptorHandle names one slot within exactly one (heap-type,
// visibility) segment.
//
// Handles are ownership-unique: the segment that minted a handle is the
// only place it can be returned to, and releasing it invalidates every
// copy (release is generation-free and idempotent through the segment's
// use bitset). The zero value is invalid.
type DescriptorHandle struct {
	local    uint32
	svIndex  ShaderVisibleIndex
	viewType gpucore.ViewType
	vis      gpucore.Visibility
	valid    bool
}

// IsValid reports whether the handle names a slot.
func (h DescriptorHandle) IsValid() bool { return h.valid }

// ViewType returns the view kind the slot was allocated for.
func (h DescriptorHandle) ViewType() gpucore.ViewType { return h.viewType }

// Visibility returns the heap visibility the slot lives in.
func (h DescriptorHandle) Visibility() gpucore.Visibility { return h.vis }

// LocalIndex returns the slot's index within its segment.
func (h DescriptorHandle) LocalIndex() uint32 { return h.local }

// FixedDescriptorSegment owns the contiguous index range
// [baseIndex, baseIndex+capacity) for one (heap-type, visibility) pair.
//
// Allocation prefers the LIFO free list head, then the next linear
// index. The use bitset mirrors the free list for debug checks and
// makes Release idempotent. All operations are O(1).
type FixedDescriptorSegment struct {
	mu sync.Mutex

	key       string
	baseIndex uint32
	capacity  uint32

	// reserved is the maximum capacity this segment may grow to. The
	// index space [baseIndex, baseIndex+reserved) was set aside at
	// construction, so growth never moves a shader-visible index.
	reserved     uint32
	growthFactor float64
	growthLeft   uint32

	cursor   uint32   // next never-used linear index
	freeList []uint32 // LIFO of released local indices
	used     []uint64 // bitset over [0, reserved)

	allocated uint32
}

// newSegment builds a segment from its heap description.
func newSegment(key string, d HeapDescription) *FixedDescriptorSegment {
	reserved := d.MaxProjectedCapacity()
	growthLeft := uint32(0)
	if d.AllowGrowth {
		growthLeft = d.MaxGrowthIterations
	}
	return &FixedDescriptorSegment{
		key:          key,
		baseIndex:    d.BaseIndex,
		capacity:     d.Capacity,
		reserved:     reserved,
		growthFactor: d.GrowthFactor,
		growthLeft:   growthLeft,
		used:         make([]uint64, (reserved+63)/64),
	}
}

// BaseIndex returns the segment's absolute base index.
func (s *FixedDescriptorSegment) BaseIndex() uint32 { return s.baseIndex }

// Capacity returns the segment's current capacity.
func (s *FixedDescriptorSegment) Capacity() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.capacity
}

// Allocated returns the number of live slots.
func (s *FixedDescriptorSegment) Allocated() uint32 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.allocated
}

func (s *FixedDescriptorSegment) setUsed(local uint32, on bool) {
	word, bit := local/64, uint64(1)<<(local%64)
	if on {
		s.used[word] |= bit
	} else {
		s.used[word] &^= bit
	}
}

func (s *FixedDescriptorSegment) isUsed(local uint32) bool {
	return s.used[local/64]&(uint64(1)<<(local%64)) != 0
}

// allocate returns the next free local index, growing the segment when
// permitted. Returns ErrCapacity when full.
func (s *FixedDescriptorSegment) allocate() (uint32, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	var local uint32
	switch {
	case len(s.freeList) > 0:
		local = s.freeList[len(s.freeList)-1]
		s.freeList = s.freeList[:len(s.freeList)-1]
	case s.cursor < s.capacity:
		local = s.cursor
		s.cursor++
	default:
		if s.growthLeft == 0 {
			return 0, fmt.Errorf("%w: %s at %d", ErrCapacity, s.key, s.capacity)
		}
		grown := uint32(float64(s.capacity)*s.growthFactor + 0.9999999)
		if grown <= s.capacity {
			grown = s.capacity + 1
		}
		if grown > s.reserved {
			grown = s.reserved
		}
		if grown == s.capacity {
			return 0, fmt.Errorf("%w: %s growth budget spent at %d", ErrCapacity, s.key, s.capacity)
		}
		s.growthLeft--
		oxygen.Logger().Debug("descriptor segment grown",
			"heap", s.key, "from", s.capacity, "to", grown, "iterations_left", s.growthLeft)
		s.capacity = grown
		local = s.cursor
		s.cursor++
	}
	if s.isUsed(local) {
		// Bitset and free list disagree; the free list is authoritative
		// but this must never happen.
		panic(fmt.Sprintf("bindless: segment %s double-allocated slot %d", s.key, local))
	}
	s.setUsed(local, true)
	s.allocated++
	return local, nil
}

// release returns a local index to the segment. Releasing a slot that
// is not allocated is a no-op.
func (s *FixedDescriptorSegment) release(local uint32) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if local >= s.cursor || !s.isUsed(local) {
		return
	}
	s.setUsed(local, false)
	s.freeList = append(s.freeList, local)
	s.allocated--
}
