// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package upload

import (
	"context"

	"github.com/abdes/oxygen/gpucore"
)

// Kind discriminates the request union.
type Kind uint8

const (
	// KindBuffer copies bytes into a device buffer at a byte offset.
	KindBuffer Kind = iota
	// KindTexture2D writes packed bytes into one subresource of a
	// texture.
	KindTexture2D
	// KindRaw copies bytes between device buffers without staging;
	// Data is ignored and SrcBuffer/SrcOffset name the source.
	KindRaw
)

// Request describes one transfer. Exactly the fields for its Kind are
// consulted; the rest are ignored.
type Request struct {
	Kind      Kind
	DebugName string

	// Ctx is the request's stop token. A nil Ctx never cancels.
	// Cancellation is honored at planning boundaries: a canceled
	// request is dropped before any bytes move, while an in-flight
	// copy completes to preserve invariants.
	Ctx context.Context

	// Data is the source payload for KindBuffer and KindTexture2D.
	Data []byte

	// Buffer destination.
	DstBuffer gpucore.BufferID
	DstOffset uint64

	// Raw copy source.
	SrcBuffer gpucore.BufferID
	SrcOffset uint64
	SizeBytes uint64

	// Texture destination.
	DstTexture gpucore.TextureID
	Mip        uint32
	Slice      uint32
	RowPitch   uint32

	// DependsOn, when nonzero, orders this request after the named
	// ticket. The coordinator awaits the dependency before submitting.
	DependsOn TicketID
}

func (r *Request) canceled() bool {
	if r.Ctx == nil {
		return false
	}
	select {
	case <-r.Ctx.Done():
		return true
	default:
		return false
	}
}

// TicketID identifies a submitted batch.
type TicketID uint64

// Ticket is an opaque future for a submitted batch. The zero Ticket is
// complete.
type Ticket struct {
	id    TicketID
	fence uint64
	coord *Coordinator
}

// ID returns the ticket's identity, zero for the zero ticket.
func (t Ticket) ID() TicketID { return t.id }

// IsComplete polls whether the batch's fence has been reached.
func (t Ticket) IsComplete() bool {
	if t.coord == nil {
		return true
	}
	return t.coord.fenceReached(t.fence)
}

// Await blocks until the batch's fence is reached.
func (t Ticket) Await() error {
	if t.coord == nil {
		return nil
	}
	return t.coord.awaitFence(t.fence)
}
