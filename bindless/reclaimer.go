// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"fmt"
	"sync"

	"github.com/abdes/oxygen"
)

// Releaser is the capability the reclaimer detects on tracked objects.
// Objects that implement it get Release() called at drain time; objects
// that do not are simply held until the drain, deferring their
// collection past the frames that may still reference them.
type Releaser interface {
	Release()
}

// DeferredReclaimer defers resource releases until the frame slot that
// scheduled them comes around again, guaranteeing the GPU has finished
// every frame that could still reference the resource.
//
// One release queue exists per frame slot. An action scheduled during
// frame slot S runs exactly once, when slot S is next begun. Within a
// slot, actions run in registration order.
//
// Registrations are serialized with a mutex and may come from any
// goroutine; OnBeginFrame runs on the main thread between frames
// (the FrameStart phase).
type DeferredReclaimer struct {
	mu      sync.Mutex
	queues  [][]func()
	current uint32
}

// NewDeferredReclaimer creates a reclaimer with one queue per frame
// slot. frameSlots is the frames-in-flight count, a small bounded
// integer.
func NewDeferredReclaimer(frameSlots int) (*DeferredReclaimer, error) {
	if frameSlots < 1 || frameSlots > 8 {
		return nil, fmt.Errorf("bindless: frame slot count %d out of range [1,8]", frameSlots)
	}
	return &DeferredReclaimer{queues: make([][]func(), frameSlots)}, nil
}

// SlotCount returns the number of frame slots.
func (d *DeferredReclaimer) SlotCount() int { return len(d.queues) }

// CurrentSlot returns the frame slot new registrations are queued to.
func (d *DeferredReclaimer) CurrentSlot() uint32 {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.current
}

// RegisterDeferredRelease schedules obj for release when the current
// frame slot next begins. If obj implements [Releaser], Release() is
// invoked at drain time; otherwise the reclaimer merely holds the last
// reference until the drain. A nil obj is a safe no-op.
func (d *DeferredReclaimer) RegisterDeferredRelease(obj any) {
	if obj == nil {
		return
	}
	if rel, ok := obj.(Releaser); ok {
		d.RegisterDeferredAction(rel.Release)
		return
	}
	// Hold the reference; dropping it at drain time is the release.
	d.RegisterDeferredAction(func() { _ = obj })
}

// RegisterDeferredAction schedules an arbitrary thunk for the current
// frame slot's next begin. A nil thunk is a safe no-op.
func (d *DeferredReclaimer) RegisterDeferredAction(fn func()) {
	if fn == nil {
		return
	}
	d.mu.Lock()
	d.queues[d.current] = append(d.queues[d.current], fn)
	d.mu.Unlock()
}

// OnBeginFrame makes slot current and drains its queue, running every
// deferred action in registration order. Actions registered while the
// drain runs land in the slot's fresh queue and wait a full cycle.
func (d *DeferredReclaimer) OnBeginFrame(slot uint32) {
	d.mu.Lock()
	if int(slot) >= len(d.queues) {
		d.mu.Unlock()
		return
	}
	d.current = slot
	pending := d.queues[slot]
	d.queues[slot] = nil
	d.mu.Unlock()

	if len(pending) > 0 {
		oxygen.Logger().Debug("deferred release drain", "slot", slot, "actions", len(pending))
	}
	for _, fn := range pending {
		fn()
	}
}

// ProcessAllDeferredReleases drains every slot's queue. Shutdown path:
// the caller must have flushed the GPU first.
func (d *DeferredReclaimer) ProcessAllDeferredReleases() {
	d.mu.Lock()
	var pending []func()
	for i := range d.queues {
		pending = append(pending, d.queues[i]...)
		d.queues[i] = nil
	}
	d.mu.Unlock()

	for _, fn := range pending {
		fn()
	}
}

// PendingCount returns the total number of queued actions. Diagnostic.
func (d *DeferredReclaimer) PendingCount() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	n := 0
	for _, q := range d.queues {
		n += len(q)
	}
	return n
}
