// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"fmt"
	"sync"

	"github.com/abdes/oxygen"
	"github.com/abdes/oxygen/gpucore"
)

// defaultInlineThreshold is the total payload size, in bytes, under
// which a batch of plain buffer writes skips the staging ring and is
// written directly.
const defaultInlineThreshold = 64 << 10

// Stats counts coordinator activity since construction.
type Stats struct {
	TicketsIssued   uint64
	RequestsPlanned uint64
	RequestsSkipped uint64
	BytesStaged     uint64
	BytesInline     uint64
	RegionsFused    uint64
}

// Coordinator plans and submits upload batches.
//
// Submission is serialized: the front-end is intended to be driven from
// a single owner (the frame loop or the content pipeline's completion
// handler), but the methods are safe for concurrent use.
type Coordinator struct {
	device  gpucore.DeviceAdapter
	staging *StagingProvider

	mu         sync.Mutex
	nextTicket TicketID
	lastFence  uint64
	tickets    map[TicketID]uint64
	stats      Stats

	inlineThreshold uint64
}

// NewCoordinator creates a Coordinator over the given device and
// staging provider. The staging provider's frame-slot rotation is the
// caller's responsibility.
func NewCoordinator(device gpucore.DeviceAdapter, staging *StagingProvider) (*Coordinator, error) {
	if device == nil {
		return nil, fmt.Errorf("upload: nil device adapter")
	}
	if staging == nil {
		return nil, fmt.Errorf("upload: nil staging provider")
	}
	return &Coordinator{
		device:          device,
		staging:         staging,
		nextTicket:      1,
		tickets:         make(map[TicketID]uint64),
		inlineThreshold: defaultInlineThreshold,
	}, nil
}

// Submit plans and submits a single request.
func (c *Coordinator) Submit(req Request) (Ticket, error) {
	return c.SubmitMany([]Request{req})
}

// SubmitMany plans and submits a batch under one aggregate ticket. The
// ticket completes when every surviving request's bytes are visible to
// the GPU. Requests whose stop token is already canceled are dropped at
// the planning boundary; if every request is dropped, the zero
// (already-complete) ticket is returned and nothing is submitted.
func (c *Coordinator) SubmitMany(reqs []Request) (Ticket, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	live := make([]*Request, 0, len(reqs))
	for i := range reqs {
		if reqs[i].canceled() {
			c.stats.RequestsSkipped++
			oxygen.Logger().Debug("upload request dropped by stop token",
				"name", reqs[i].DebugName)
			continue
		}
		live = append(live, &reqs[i])
	}
	if len(live) == 0 {
		return Ticket{}, nil
	}

	// Order after dependencies before any bytes move.
	for _, r := range live {
		if r.DependsOn == 0 {
			continue
		}
		fence, ok := c.tickets[r.DependsOn]
		if !ok {
			return Ticket{}, fmt.Errorf("upload: request %q depends on unknown ticket %d",
				r.DebugName, r.DependsOn)
		}
		if err := c.device.WaitFence(c.device.TransferFence(), fence); err != nil {
			return Ticket{}, fmt.Errorf("upload: await dependency: %w", err)
		}
	}

	if c.inlineEligible(live) {
		return c.submitInlineLocked(live)
	}
	return c.submitStagedLocked(live)
}

// inlineEligible reports whether the batch is small enough, and simple
// enough, to bypass the staging ring. Raw buffer-to-buffer copies must
// go through the copy queue regardless of size.
func (c *Coordinator) inlineEligible(live []*Request) bool {
	var total uint64
	for _, r := range live {
		if r.Kind == KindRaw {
			return false
		}
		total += uint64(len(r.Data))
	}
	return total < c.inlineThreshold
}

func (c *Coordinator) submitInlineLocked(live []*Request) (Ticket, error) {
	for _, r := range live {
		var err error
		switch r.Kind {
		case KindBuffer:
			err = c.device.WriteBuffer(r.DstBuffer, r.DstOffset, r.Data)
		case KindTexture2D:
			err = c.device.WriteTexture(r.DstTexture, r.Mip, r.Slice, r.RowPitch, r.Data)
		default:
			err = fmt.Errorf("upload: unhandled request kind %d", r.Kind)
		}
		if err != nil {
			return Ticket{}, fmt.Errorf("upload: inline write %q: %w", r.DebugName, err)
		}
		c.stats.RequestsPlanned++
		c.stats.BytesInline += uint64(len(r.Data))
	}
	// Inline writes complete synchronously; the ticket's fence is the
	// transfer fence's current value, which is already reached.
	return c.issueTicketLocked(c.device.FenceValue(c.device.TransferFence())), nil
}

func (c *Coordinator) submitStagedLocked(live []*Request) (Ticket, error) {
	regions := make([]gpucore.BufferCopy, 0, len(live))
	for _, r := range live {
		switch r.Kind {
		case KindBuffer:
			src, off, err := c.staging.Stage(r.Data)
			if err != nil {
				return Ticket{}, fmt.Errorf("upload: stage %q: %w", r.DebugName, err)
			}
			regions = append(regions, gpucore.BufferCopy{
				Src: src, SrcOffset: off,
				Dst: r.DstBuffer, DstOffset: r.DstOffset,
				SizeBytes: uint64(len(r.Data)),
			})
			c.stats.BytesStaged += uint64(len(r.Data))
		case KindRaw:
			regions = append(regions, gpucore.BufferCopy{
				Src: r.SrcBuffer, SrcOffset: r.SrcOffset,
				Dst: r.DstBuffer, DstOffset: r.DstOffset,
				SizeBytes: r.SizeBytes,
			})
		case KindTexture2D:
			if err := c.device.WriteTexture(r.DstTexture, r.Mip, r.Slice, r.RowPitch, r.Data); err != nil {
				return Ticket{}, fmt.Errorf("upload: texture write %q: %w", r.DebugName, err)
			}
		default:
			return Ticket{}, fmt.Errorf("upload: unhandled request kind %d", r.Kind)
		}
		c.stats.RequestsPlanned++
	}

	fence := c.device.FenceValue(c.device.TransferFence())
	if len(regions) > 0 {
		before := len(regions)
		regions = coalesceRegions(regions)
		c.stats.RegionsFused += uint64(before - len(regions))

		var err error
		fence, err = c.device.CopyBufferRegions(regions)
		if err != nil {
			return Ticket{}, fmt.Errorf("upload: submit %d regions: %w", len(regions), err)
		}
	}
	return c.issueTicketLocked(fence), nil
}

func (c *Coordinator) issueTicketLocked(fence uint64) Ticket {
	id := c.nextTicket
	c.nextTicket++
	c.tickets[id] = fence
	if fence > c.lastFence {
		c.lastFence = fence
	}
	c.stats.TicketsIssued++
	return Ticket{id: id, fence: fence, coord: c}
}

// Flush blocks until every submitted batch has completed.
func (c *Coordinator) Flush() error {
	c.mu.Lock()
	fence := c.lastFence
	c.mu.Unlock()
	return c.awaitFence(fence)
}

// IsComplete reports whether the ticket's batch has completed. Unknown
// (including retired or zero) tickets report complete.
func (c *Coordinator) IsComplete(id TicketID) bool {
	c.mu.Lock()
	fence, ok := c.tickets[id]
	c.mu.Unlock()
	if !ok {
		return true
	}
	return c.fenceReached(fence)
}

// RetireCompleted drops bookkeeping for tickets whose fence has been
// reached, so dependency lookups stay small across long runs.
func (c *Coordinator) RetireCompleted() {
	reached := c.device.FenceValue(c.device.TransferFence())
	c.mu.Lock()
	defer c.mu.Unlock()
	for id, fence := range c.tickets {
		if fence <= reached {
			delete(c.tickets, id)
		}
	}
}

// Stats returns a snapshot of the coordinator's counters.
func (c *Coordinator) Stats() Stats {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.stats
}

func (c *Coordinator) fenceReached(fence uint64) bool {
	return c.device.FenceValue(c.device.TransferFence()) >= fence
}

func (c *Coordinator) awaitFence(fence uint64) error {
	return c.device.WaitFence(c.device.TransferFence(), fence)
}
