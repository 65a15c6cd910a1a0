// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

// DeviceAdapter abstracts over graphics backend implementations.
//
// This interface is the core abstraction that allows the bindless
// resource model, the upload coordinator, and the per-frame binders to
// work without a live graphics device. Implementations must be
// thread-safe for concurrent use.
//
// Resource lifecycle:
//   - Resources are created via Create* methods
//   - Resources must be explicitly destroyed via Destroy* methods
//   - Destroying a resource while in use is undefined behavior
//   - IDs become invalid after destruction and must not be reused
type DeviceAdapter interface {
	// === Buffer management ===

	// CreateBuffer creates a device buffer.
	// Returns the buffer ID or an error if allocation fails.
	CreateBuffer(desc BufferDesc) (BufferID, error)

	// DestroyBuffer releases a device buffer.
	DestroyBuffer(id BufferID)

	// WriteBuffer writes data to a buffer at the given byte offset.
	// The data is copied immediately; the caller may reuse the slice.
	WriteBuffer(id BufferID, offset uint64, data []byte) error

	// ReadBuffer reads size bytes from a buffer at the given offset.
	// On a real device this stalls until the GPU is idle; it exists for
	// tests and readback paths.
	ReadBuffer(id BufferID, offset, size uint64) ([]byte, error)

	// === Texture management ===

	// CreateTexture creates a device texture.
	CreateTexture(desc TextureDesc) (TextureID, error)

	// DestroyTexture releases a device texture.
	DestroyTexture(id TextureID)

	// WriteTexture writes packed subresource data for one mip of one
	// array slice. rowPitch is the source row stride in bytes.
	WriteTexture(id TextureID, mip, slice uint32, rowPitch uint32, data []byte) error

	// === Views ===

	// CreateBufferView constructs a backend view of a buffer.
	// Returns the invalid NativeView and an error on failure.
	CreateBufferView(id BufferID, desc ViewDesc) (NativeView, error)

	// CreateTextureView constructs a backend view of a texture.
	CreateTextureView(id TextureID, desc ViewDesc) (NativeView, error)

	// DestroyView releases a backend view object.
	DestroyView(v NativeView)

	// === Copies and synchronization ===

	// CopyBufferRegions records and submits the given copy regions.
	// Completion is observable through the returned fence value on the
	// transfer fence: WaitFence(TransferFence(), value) returns once
	// every byte named by the regions is visible to subsequent reads.
	CopyBufferRegions(regions []BufferCopy) (uint64, error)

	// TransferFence returns the timeline fence signaled by copy
	// submissions.
	TransferFence() FenceID

	// SignalFence signals the fence to the given value from the CPU.
	SignalFence(f FenceID, value uint64) error

	// FenceValue returns the last signaled value of the fence.
	FenceValue(f FenceID) uint64

	// WaitFence blocks until the fence reaches at least value.
	WaitFence(f FenceID, value uint64) error
}
