// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package gpucore

import (
	"errors"
	"fmt"
	"sync"
	"sync/atomic"
)

// Software adapter errors.
var (
	// ErrUnknownResource is returned when an ID does not name a live
	// resource.
	ErrUnknownResource = errors.New("gpucore: unknown resource id")

	// ErrOutOfRange is returned when a write or read exceeds the
	// resource's extent.
	ErrOutOfRange = errors.New("gpucore: access out of range")
)

// SoftwareAdapter implements DeviceAdapter entirely in CPU memory.
//
// Buffers are byte slices, textures are per-subresource byte slices,
// views are monotonically numbered records, and copies complete
// synchronously before CopyBufferRegions returns. Fence waits therefore
// never block. The adapter is the test double for every GPU-facing
// layer in the module and doubles as the headless fallback.
//
// Thread safety: SoftwareAdapter is safe for concurrent use.
type SoftwareAdapter struct {
	mu       sync.RWMutex
	buffers  map[BufferID][]byte
	textures map[TextureID]*softwareTexture
	views    map[NativeView]viewRecord

	nextID    atomic.Uint64
	xferFence FenceID
	fences    map[FenceID]*fenceState

	// FailViews, when non-nil, makes view creation return the invalid
	// view for any ViewDesc the function reports true for. Tests use it
	// to exercise registry failure paths.
	FailViews func(ViewDesc) bool

	// PanicViews, when non-nil, makes view creation panic for matching
	// descriptions. Tests use it to exercise cleanup-then-rethrow paths.
	PanicViews func(ViewDesc) bool
}

type softwareTexture struct {
	desc TextureDesc
	// subresources maps mip-major, slice-major keys to packed bytes.
	subresources map[uint64][]byte
}

type viewRecord struct {
	buffer  BufferID
	texture TextureID
	desc    ViewDesc
}

type fenceState struct {
	mu    sync.Mutex
	cond  *sync.Cond
	value uint64
}

// NewSoftwareAdapter creates an empty software device.
func NewSoftwareAdapter() *SoftwareAdapter {
	a := &SoftwareAdapter{
		buffers:  make(map[BufferID][]byte),
		textures: make(map[TextureID]*softwareTexture),
		views:    make(map[NativeView]viewRecord),
		fences:   make(map[FenceID]*fenceState),
	}
	// ID 0 is InvalidID.
	a.nextID.Store(1)
	a.xferFence = FenceID(a.newID())
	a.fences[a.xferFence] = newFenceState()
	return a
}

func newFenceState() *fenceState {
	f := &fenceState{}
	f.cond = sync.NewCond(&f.mu)
	return f
}

func (a *SoftwareAdapter) newID() uint64 {
	return a.nextID.Add(1) - 1
}

// === Buffer management ===

// CreateBuffer creates a zero-filled in-memory buffer.
func (a *SoftwareAdapter) CreateBuffer(desc BufferDesc) (BufferID, error) {
	if desc.SizeBytes == 0 {
		return InvalidID, fmt.Errorf("gpucore: zero-size buffer %q", desc.Label)
	}
	id := BufferID(a.newID())
	a.mu.Lock()
	a.buffers[id] = make([]byte, desc.SizeBytes)
	a.mu.Unlock()
	return id, nil
}

// DestroyBuffer releases a buffer. Unknown IDs are ignored.
func (a *SoftwareAdapter) DestroyBuffer(id BufferID) {
	a.mu.Lock()
	delete(a.buffers, id)
	a.mu.Unlock()
}

// WriteBuffer copies data into the buffer at offset.
func (a *SoftwareAdapter) WriteBuffer(id BufferID, offset uint64, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	buf, ok := a.buffers[id]
	if !ok {
		return ErrUnknownResource
	}
	if offset+uint64(len(data)) > uint64(len(buf)) {
		return ErrOutOfRange
	}
	copy(buf[offset:], data)
	return nil
}

// ReadBuffer returns a copy of size bytes at offset.
func (a *SoftwareAdapter) ReadBuffer(id BufferID, offset, size uint64) ([]byte, error) {
	a.mu.RLock()
	defer a.mu.RUnlock()
	buf, ok := a.buffers[id]
	if !ok {
		return nil, ErrUnknownResource
	}
	if offset+size > uint64(len(buf)) {
		return nil, ErrOutOfRange
	}
	out := make([]byte, size)
	copy(out, buf[offset:])
	return out, nil
}

// === Texture management ===

// CreateTexture creates an in-memory texture shell. Subresource storage
// is allocated lazily on first write.
func (a *SoftwareAdapter) CreateTexture(desc TextureDesc) (TextureID, error) {
	if desc.Size.Width == 0 || desc.Size.Height == 0 {
		return InvalidID, fmt.Errorf("gpucore: zero-extent texture %q", desc.Label)
	}
	id := TextureID(a.newID())
	a.mu.Lock()
	a.textures[id] = &softwareTexture{
		desc:         desc,
		subresources: make(map[uint64][]byte),
	}
	a.mu.Unlock()
	return id, nil
}

// DestroyTexture releases a texture. Unknown IDs are ignored.
func (a *SoftwareAdapter) DestroyTexture(id TextureID) {
	a.mu.Lock()
	delete(a.textures, id)
	a.mu.Unlock()
}

func subresourceKey(mip, slice uint32) uint64 {
	return uint64(slice)<<32 | uint64(mip)
}

// WriteTexture stores packed bytes for one subresource.
func (a *SoftwareAdapter) WriteTexture(id TextureID, mip, slice uint32, rowPitch uint32, data []byte) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	tex, ok := a.textures[id]
	if !ok {
		return ErrUnknownResource
	}
	if mip >= tex.desc.MipLevels && tex.desc.MipLevels != 0 {
		return ErrOutOfRange
	}
	stored := make([]byte, len(data))
	copy(stored, data)
	tex.subresources[subresourceKey(mip, slice)] = stored
	return nil
}

// TextureSubresource returns the stored bytes for a subresource, or nil
// if it was never written. Test helper.
func (a *SoftwareAdapter) TextureSubresource(id TextureID, mip, slice uint32) []byte {
	a.mu.RLock()
	defer a.mu.RUnlock()
	tex, ok := a.textures[id]
	if !ok {
		return nil
	}
	return tex.subresources[subresourceKey(mip, slice)]
}

// === Views ===

func (a *SoftwareAdapter) checkViewHooks(desc ViewDesc) (NativeView, error, bool) {
	if a.PanicViews != nil && a.PanicViews(desc) {
		panic(fmt.Sprintf("gpucore: view creation panic injected for view type %d", desc.Type))
	}
	if a.FailViews != nil && a.FailViews(desc) {
		return 0, nil, true
	}
	return 0, nil, false
}

// CreateBufferView constructs a view record over a live buffer.
func (a *SoftwareAdapter) CreateBufferView(id BufferID, desc ViewDesc) (NativeView, error) {
	if v, err, hooked := a.checkViewHooks(desc); hooked {
		return v, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.buffers[id]; !ok {
		return 0, ErrUnknownResource
	}
	v := NativeView(a.newID())
	a.views[v] = viewRecord{buffer: id, desc: desc}
	return v, nil
}

// CreateTextureView constructs a view record over a live texture.
func (a *SoftwareAdapter) CreateTextureView(id TextureID, desc ViewDesc) (NativeView, error) {
	if v, err, hooked := a.checkViewHooks(desc); hooked {
		return v, err
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if _, ok := a.textures[id]; !ok {
		return 0, ErrUnknownResource
	}
	v := NativeView(a.newID())
	a.views[v] = viewRecord{texture: id, desc: desc}
	return v, nil
}

// DestroyView releases a view record. Invalid views are ignored.
func (a *SoftwareAdapter) DestroyView(v NativeView) {
	if !v.IsValid() {
		return
	}
	a.mu.Lock()
	delete(a.views, v)
	a.mu.Unlock()
}

// ViewCount returns the number of live views. Test helper.
func (a *SoftwareAdapter) ViewCount() int {
	a.mu.RLock()
	defer a.mu.RUnlock()
	return len(a.views)
}

// === Copies and synchronization ===

// CopyBufferRegions performs the copies synchronously and advances the
// transfer fence past them.
func (a *SoftwareAdapter) CopyBufferRegions(regions []BufferCopy) (uint64, error) {
	a.mu.Lock()
	for _, r := range regions {
		src, ok := a.buffers[r.Src]
		if !ok {
			a.mu.Unlock()
			return 0, fmt.Errorf("copy src %d: %w", r.Src, ErrUnknownResource)
		}
		dst, ok := a.buffers[r.Dst]
		if !ok {
			a.mu.Unlock()
			return 0, fmt.Errorf("copy dst %d: %w", r.Dst, ErrUnknownResource)
		}
		if r.SrcOffset+r.SizeBytes > uint64(len(src)) || r.DstOffset+r.SizeBytes > uint64(len(dst)) {
			a.mu.Unlock()
			return 0, ErrOutOfRange
		}
		copy(dst[r.DstOffset:r.DstOffset+r.SizeBytes], src[r.SrcOffset:])
	}
	a.mu.Unlock()

	f := a.fences[a.xferFence]
	f.mu.Lock()
	f.value++
	v := f.value
	f.cond.Broadcast()
	f.mu.Unlock()
	return v, nil
}

// TransferFence returns the fence advanced by CopyBufferRegions.
func (a *SoftwareAdapter) TransferFence() FenceID { return a.xferFence }

// SignalFence signals the fence to value if it is an advance.
func (a *SoftwareAdapter) SignalFence(id FenceID, value uint64) error {
	a.mu.RLock()
	f, ok := a.fences[id]
	a.mu.RUnlock()
	if !ok {
		return ErrUnknownResource
	}
	f.mu.Lock()
	if value > f.value {
		f.value = value
		f.cond.Broadcast()
	}
	f.mu.Unlock()
	return nil
}

// FenceValue returns the last signaled value of the fence.
func (a *SoftwareAdapter) FenceValue(id FenceID) uint64 {
	a.mu.RLock()
	f, ok := a.fences[id]
	a.mu.RUnlock()
	if !ok {
		return 0
	}
	f.mu.Lock()
	v := f.value
	f.mu.Unlock()
	return v
}

// WaitFence blocks until the fence reaches at least value.
func (a *SoftwareAdapter) WaitFence(id FenceID, value uint64) error {
	a.mu.RLock()
	f, ok := a.fences[id]
	a.mu.RUnlock()
	if !ok {
		return ErrUnknownResource
	}
	f.mu.Lock()
	for f.value < value {
		f.cond.Wait()
	}
	f.mu.Unlock()
	return nil
}

var _ DeviceAdapter = (*SoftwareAdapter)(nil)
