// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"fmt"
	"sync"

	"github.com/gogpu/gputypes"

	"github.com/abdes/oxygen"
	"github.com/abdes/oxygen/bindless"
	"github.com/abdes/oxygen/gpucore"
	"github.com/abdes/oxygen/upload"
)

// AtlasBuffer is a growable structured buffer with one shader-visible
// SRV. Elements are carved by a per-frame write cursor; freed elements
// go onto the current frame slot's free list and return to service when
// that slot comes around again, so in-flight frames never observe a
// reused element.
//
// The SRV is created lazily on first publish and its shader-visible
// index never changes afterwards: growth allocates a larger buffer,
// copies live contents and retargets the existing index in place.
type AtlasBuffer struct {
	device    gpucore.DeviceAdapter
	registry  *bindless.ResourceRegistry
	alloc     *bindless.DescriptorAllocator
	reclaimer *bindless.DeferredReclaimer

	mu        sync.Mutex
	label     string
	stride    uint32
	capacity  uint32
	buffer    gpucore.BufferID
	srv       bindless.ShaderVisibleIndex
	srvValid  bool
	cursor    uint32
	freeLists [][]uint32
	slot      uint32
	pending   []pendingWrite
}

type pendingWrite struct {
	element uint32
	data    []byte
}

// NewAtlasBuffer creates an atlas of initialCapacity elements of stride
// bytes each. The backing buffer is created eagerly; the SRV is not.
func NewAtlasBuffer(device gpucore.DeviceAdapter, registry *bindless.ResourceRegistry,
	alloc *bindless.DescriptorAllocator, reclaimer *bindless.DeferredReclaimer,
	label string, stride, initialCapacity uint32, frameSlots int) (*AtlasBuffer, error) {

	if stride == 0 {
		return nil, fmt.Errorf("renderer: atlas %q: zero stride", label)
	}
	if initialCapacity == 0 {
		initialCapacity = 1
	}
	if frameSlots < 1 || frameSlots > 8 {
		return nil, fmt.Errorf("renderer: atlas %q: frame slot count %d outside [1, 8]", label, frameSlots)
	}
	id, err := device.CreateBuffer(gpucore.BufferDesc{
		Label:     label,
		SizeBytes: uint64(stride) * uint64(initialCapacity),
		Usage:     gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: atlas %q: %w", label, err)
	}
	a := &AtlasBuffer{
		device:    device,
		registry:  registry,
		alloc:     alloc,
		reclaimer: reclaimer,
		label:     label,
		stride:    stride,
		capacity:  initialCapacity,
		buffer:    id,
		freeLists: make([][]uint32, frameSlots),
	}
	return a, nil
}

// Stride returns the element stride in bytes.
func (a *AtlasBuffer) Stride() uint32 { return a.stride }

// Capacity returns the current element capacity.
func (a *AtlasBuffer) Capacity() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.capacity
}

// OnFrameStart rotates to the given frame slot, resets the write cursor
// and recycles the slot's free list (those elements were freed a full
// cycle ago).
func (a *AtlasBuffer) OnFrameStart(slot uint32) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if int(slot) >= len(a.freeLists) {
		panic(fmt.Sprintf("renderer: atlas %q: frame slot %d out of range [0, %d)",
			a.label, slot, len(a.freeLists)))
	}
	a.slot = slot
	a.cursor = 0
	a.freeLists[slot] = a.freeLists[slot][:0]
	a.pending = a.pending[:0]
}

// Allocate reserves the next element for this frame. Element positions
// are monotonic within a frame, so position P always maps to the same
// element across frames with matching allocation order.
func (a *AtlasBuffer) Allocate() uint32 {
	a.mu.Lock()
	defer a.mu.Unlock()
	e := a.cursor
	a.cursor++
	return e
}

// Free parks an element on the current slot's free list. It returns to
// service on that slot's next OnFrameStart.
func (a *AtlasBuffer) Free(element uint32) {
	a.mu.Lock()
	a.freeLists[a.slot] = append(a.freeLists[a.slot], element)
	a.mu.Unlock()
}

// Write queues element data for the next EnsureFrameResources. data is
// copied; it must not exceed the stride.
func (a *AtlasBuffer) Write(element uint32, data []byte) error {
	if uint32(len(data)) > a.stride {
		return fmt.Errorf("renderer: atlas %q: %d bytes exceeds stride %d", a.label, len(data), a.stride)
	}
	buf := make([]byte, len(data))
	copy(buf, data)
	a.mu.Lock()
	a.pending = append(a.pending, pendingWrite{element: element, data: buf})
	a.mu.Unlock()
	return nil
}

// EnsureFrameResources grows the buffer to cover every allocated or
// written element, flushes pending writes as one aggregate batch and
// returns the atlas SRV index. The index is valid even when nothing was
// allocated this frame.
func (a *AtlasBuffer) EnsureFrameResources(coord *upload.Coordinator) (bindless.ShaderVisibleIndex, error) {
	a.mu.Lock()
	defer a.mu.Unlock()

	need := a.cursor
	for _, w := range a.pending {
		if w.element+1 > need {
			need = w.element + 1
		}
	}
	if need > a.capacity {
		if err := a.growLocked(need); err != nil {
			return bindless.InvalidShaderVisibleIndex, err
		}
	}
	if err := a.publishLocked(); err != nil {
		return bindless.InvalidShaderVisibleIndex, err
	}

	if len(a.pending) > 0 {
		reqs := make([]upload.Request, len(a.pending))
		for i, w := range a.pending {
			reqs[i] = upload.Request{
				Kind:      upload.KindBuffer,
				DebugName: a.label,
				Data:      w.data,
				DstBuffer: a.buffer,
				DstOffset: uint64(w.element) * uint64(a.stride),
			}
		}
		a.pending = a.pending[:0]
		ticket, err := coord.SubmitMany(reqs)
		if err != nil {
			return bindless.InvalidShaderVisibleIndex, fmt.Errorf("renderer: atlas %q flush: %w", a.label, err)
		}
		if err := ticket.Await(); err != nil {
			return bindless.InvalidShaderVisibleIndex, fmt.Errorf("renderer: atlas %q flush: %w", a.label, err)
		}
	}
	return a.srv, nil
}

// SrvIndex publishes the SRV if needed and returns its index.
func (a *AtlasBuffer) SrvIndex() (bindless.ShaderVisibleIndex, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if err := a.publishLocked(); err != nil {
		return bindless.InvalidShaderVisibleIndex, err
	}
	return a.srv, nil
}

func (a *AtlasBuffer) viewDescLocked() gpucore.ViewDesc {
	return gpucore.ViewDesc{
		Type:          gpucore.ViewStructuredBufferSRV,
		ElementStride: a.stride,
		ElementCount:  a.capacity,
	}
}

func (a *AtlasBuffer) publishLocked() error {
	if a.srvValid {
		return nil
	}
	src := bindless.BufferResource{ID: a.buffer}
	a.registry.Register(src)
	_, handle, err := a.registry.CreateAndRegisterView(src, a.viewDescLocked(), gpucore.ShaderVisible)
	if err != nil {
		return fmt.Errorf("renderer: atlas %q srv: %w", a.label, err)
	}
	sv, err := a.alloc.ShaderVisibleIndex(handle)
	if err != nil {
		return fmt.Errorf("renderer: atlas %q srv: %w", a.label, err)
	}
	a.srv = sv
	a.srvValid = true
	return nil
}

// growLocked doubles capacity until it covers need, copies the live
// contents into a new buffer and, when the SRV is already published,
// retargets it in place so readers keep the same shader-visible index.
// The old buffer is released one full frame cycle later.
func (a *AtlasBuffer) growLocked(need uint32) error {
	capacity := a.capacity
	for capacity < need {
		capacity *= 2
	}
	id, err := a.device.CreateBuffer(gpucore.BufferDesc{
		Label:     a.label + "(grown)",
		SizeBytes: uint64(a.stride) * uint64(capacity),
		Usage:     gputypes.BufferUsageStorage | gputypes.BufferUsageCopyDst | gputypes.BufferUsageCopySrc,
	})
	if err != nil {
		return fmt.Errorf("renderer: atlas %q grow to %d: %w", a.label, capacity, err)
	}
	if _, err := a.device.CopyBufferRegions([]gpucore.BufferCopy{{
		Src: a.buffer, Dst: id,
		SizeBytes: uint64(a.stride) * uint64(a.capacity),
	}}); err != nil {
		a.device.DestroyBuffer(id)
		return fmt.Errorf("renderer: atlas %q grow copy: %w", a.label, err)
	}

	oldBuffer := a.buffer
	oldCapacity := a.capacity
	a.buffer = id
	a.capacity = capacity

	if a.srvValid {
		newSrc := bindless.BufferResource{ID: id}
		a.registry.Register(newSrc)
		ok, err := a.registry.UpdateView(newSrc, a.srv, a.viewDescLocked())
		if err != nil || !ok {
			// The descriptor may have been purged; force a republish on
			// the next frame rather than serving a dangling index.
			a.srvValid = false
			a.buffer = oldBuffer
			a.capacity = oldCapacity
			a.device.DestroyBuffer(id)
			if err != nil {
				return fmt.Errorf("renderer: atlas %q retarget srv: %w", a.label, err)
			}
			return fmt.Errorf("renderer: atlas %q retarget srv: index %d not transferable", a.label, a.srv)
		}
		a.registry.UnRegisterResource(bindless.BufferResource{ID: oldBuffer})
	}

	oxygen.Logger().Debug("atlas grown",
		"label", a.label, "old_capacity", oldCapacity, "new_capacity", capacity)

	dev, old := a.device, oldBuffer
	if a.reclaimer != nil {
		a.reclaimer.RegisterDeferredAction(func() { dev.DestroyBuffer(old) })
	} else {
		dev.DestroyBuffer(old)
	}
	return nil
}

func errAtlasStride(name string, got, need uint32) error {
	return fmt.Errorf("renderer: %s atlas stride %d below %d", name, got, need)
}

// Close unpublishes the SRV and destroys the backing buffer.
func (a *AtlasBuffer) Close() {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.srvValid {
		a.registry.UnRegisterResource(bindless.BufferResource{ID: a.buffer})
		a.srvValid = false
	}
	if a.buffer != gpucore.InvalidID {
		a.device.DestroyBuffer(a.buffer)
		a.buffer = gpucore.InvalidID
	}
}
