// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/abdes/oxygen"
	"github.com/abdes/oxygen/gpucore"
)

// stagingBlockSize is the allocation granularity inside a staging
// buffer. Offsets handed out by Stage are always block aligned, which
// keeps copy source offsets valid for placement-aligned backends.
const stagingBlockSize = 256

// StagingProvider owns one staging buffer per frame slot. Within a
// frame, Stage carves block-aligned spans from the current slot's
// buffer; OnBeginFrame(slot) recycles that slot's buffer wholesale once
// the frames that used it have retired. Buffers grow on demand, and a
// grown-away buffer is kept alive until its slot comes around again so
// in-flight copies sourced from it stay valid.
type StagingProvider struct {
	device gpucore.DeviceAdapter

	mu      sync.Mutex
	slots   []stagingSlot
	current uint32
	closed  bool
}

type stagingSlot struct {
	buffer   gpucore.BufferID
	capacity uint64
	cursor   uint64
	retired  []gpucore.BufferID
}

// NewStagingProvider creates one staging buffer of initialCapacity
// bytes per frame slot. frameSlots must match the renderer's
// frames-in-flight count.
func NewStagingProvider(device gpucore.DeviceAdapter, frameSlots int, initialCapacity uint64) (*StagingProvider, error) {
	if device == nil {
		return nil, fmt.Errorf("upload: nil device adapter")
	}
	if frameSlots < 1 || frameSlots > 8 {
		return nil, fmt.Errorf("upload: frame slot count %d outside [1, 8]", frameSlots)
	}
	capacity := alignUp(max(initialCapacity, stagingBlockSize), stagingBlockSize)

	p := &StagingProvider{
		device: device,
		slots:  make([]stagingSlot, frameSlots),
	}
	for i := range p.slots {
		id, err := device.CreateBuffer(gpucore.BufferDesc{
			Label:     fmt.Sprintf("staging[%d]", i),
			SizeBytes: capacity,
			Usage:     gputypes.BufferUsageCopySrc | gputypes.BufferUsageMapWrite,
		})
		if err != nil {
			p.Close()
			return nil, fmt.Errorf("upload: create staging buffer: %w", err)
		}
		p.slots[i] = stagingSlot{buffer: id, capacity: capacity}
	}
	return p, nil
}

// SlotCount returns the number of frame slots.
func (p *StagingProvider) SlotCount() int { return len(p.slots) }

// OnBeginFrame rotates to the given slot, resets its write cursor and
// destroys buffers the slot grew away from during its previous frame.
// Callers must guarantee the GPU has retired the slot's prior frame.
func (p *StagingProvider) OnBeginFrame(slot uint32) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if int(slot) >= len(p.slots) {
		panic(fmt.Sprintf("upload: frame slot %d out of range [0, %d)", slot, len(p.slots)))
	}
	p.current = slot
	s := &p.slots[slot]
	s.cursor = 0
	for _, id := range s.retired {
		p.device.DestroyBuffer(id)
	}
	s.retired = s.retired[:0]
}

// Stage copies data into the current slot's staging buffer and returns
// the buffer and block-aligned offset holding it. The returned span is
// valid until the slot's next OnBeginFrame.
func (p *StagingProvider) Stage(data []byte) (gpucore.BufferID, uint64, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return gpucore.InvalidID, 0, fmt.Errorf("upload: staging provider closed")
	}
	s := &p.slots[p.current]
	size := alignUp(uint64(len(data)), stagingBlockSize)
	if s.cursor+size > s.capacity {
		if err := p.growLocked(s, size); err != nil {
			return gpucore.InvalidID, 0, err
		}
	}
	offset := s.cursor
	if err := p.device.WriteBuffer(s.buffer, offset, data); err != nil {
		return gpucore.InvalidID, 0, fmt.Errorf("upload: stage %d bytes: %w", len(data), err)
	}
	s.cursor += size
	return s.buffer, offset, nil
}

// growLocked replaces the slot's buffer with one large enough for need
// more bytes. The old buffer is retired, not destroyed, since earlier
// spans of this frame may still be copy sources.
func (p *StagingProvider) growLocked(s *stagingSlot, need uint64) error {
	capacity := s.capacity * 2
	for capacity < need {
		capacity *= 2
	}
	id, err := p.device.CreateBuffer(gpucore.BufferDesc{
		Label:     "staging(grown)",
		SizeBytes: capacity,
		Usage:     gputypes.BufferUsageCopySrc | gputypes.BufferUsageMapWrite,
	})
	if err != nil {
		return fmt.Errorf("upload: grow staging buffer to %d: %w", capacity, err)
	}
	oxygen.Logger().Debug("staging buffer grown",
		"old_capacity", s.capacity, "new_capacity", capacity)
	s.retired = append(s.retired, s.buffer)
	s.buffer = id
	s.capacity = capacity
	s.cursor = 0
	return nil
}

// Close destroys every staging buffer, including retired ones. The
// caller must ensure no copies are in flight.
func (p *StagingProvider) Close() {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.closed {
		return
	}
	p.closed = true
	for i := range p.slots {
		s := &p.slots[i]
		if s.buffer != gpucore.InvalidID {
			p.device.DestroyBuffer(s.buffer)
			s.buffer = gpucore.InvalidID
		}
		for _, id := range s.retired {
			p.device.DestroyBuffer(id)
		}
		s.retired = nil
	}
}

func alignUp(v, align uint64) uint64 {
	return (v + align - 1) &^ (align - 1)
}
