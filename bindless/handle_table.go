// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"github.com/abdes/oxygen"
)

// HandleTable is a generation-checked lookup array addressed by Handle.
//
// Free slots are chained into a singly linked free list stored inside
// the slot's own handle word: a free slot's free bit is set and its
// index field holds the index of the next free slot (or invalidIndex at
// the tail). The front of the list is kept separately, giving O(1)
// allocation and release with no side allocations.
//
// HandleTable is not safe for concurrent use; callers serialize access
// the same way they serialize the structures the payloads describe.
type HandleTable[T any] struct {
	// slots[i] holds the current handle word for slot i. For live slots
	// the word is the handle given to the caller; for free slots the
	// free bit is set and the index field chains the free list.
	slots []Handle

	payloads []T

	// freeFront is the index of the first free slot, or invalidIndex
	// when the free list is empty.
	freeFront uint32

	rtype ResourceType
	live  int
}

// NewHandleTable creates an empty table minting handles tagged with the
// given resource type.
func NewHandleTable[T any](rtype ResourceType) *HandleTable[T] {
	return &HandleTable[T]{freeFront: invalidIndex, rtype: rtype}
}

// Len returns the number of live entries.
func (t *HandleTable[T]) Len() int { return t.live }

// Insert stores payload and returns a handle for it.
//
// Released slots are reused front-of-list first; each reuse increments
// the slot's generation, wrapping at 2^12.
func (t *HandleTable[T]) Insert(payload T) Handle {
	var idx uint32
	var gen uint16
	if t.freeFront != invalidIndex {
		idx = t.freeFront
		word := t.slots[idx]
		t.freeFront = word.Index()
		// Reuse bumps the generation; wrap is allowed.
		gen = (word.Generation() + 1) & handleGenerationMask
		if gen == 0 {
			oxygen.Logger().Debug("handle generation wrapped", "slot", idx, "type", uint8(t.rtype))
		}
	} else {
		idx = uint32(len(t.slots))
		t.slots = append(t.slots, 0)
		t.payloads = append(t.payloads, payload)
	}
	h := PackHandle(idx, gen, t.rtype, 0)
	t.slots[idx] = h
	t.payloads[idx] = payload
	t.live++
	return h
}

// Get returns the payload for a live handle.
func (t *HandleTable[T]) Get(h Handle) (T, bool) {
	var zero T
	idx := h.Index()
	if !h.IsValid() || idx >= uint32(len(t.slots)) {
		return zero, false
	}
	word := t.slots[idx]
	if word.free() || word != h {
		return zero, false
	}
	return t.payloads[idx], true
}

// Set replaces the payload for a live handle.
func (t *HandleTable[T]) Set(h Handle, payload T) bool {
	idx := h.Index()
	if !h.IsValid() || idx >= uint32(len(t.slots)) {
		return false
	}
	word := t.slots[idx]
	if word.free() || word != h {
		return false
	}
	t.payloads[idx] = payload
	return true
}

// Remove releases the slot named by a live handle and pushes it onto
// the free list. Removing an invalid or stale handle is a no-op.
func (t *HandleTable[T]) Remove(h Handle) bool {
	idx := h.Index()
	if !h.IsValid() || idx >= uint32(len(t.slots)) {
		return false
	}
	word := t.slots[idx]
	if word.free() || word != h {
		return false
	}
	var zero T
	t.payloads[idx] = zero
	// Free word: free bit set, index field links to the previous front,
	// generation preserved for the next reuse bump.
	t.slots[idx] = Handle(t.freeFront)&handleIndexMask |
		Handle(word.Generation())<<handleGenerationShift |
		1<<handleFreeShift
	t.freeFront = idx
	t.live--
	return true
}
