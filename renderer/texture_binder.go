// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"errors"
	"fmt"
	"sync"

	"github.com/abdes/oxygen"
	"github.com/abdes/oxygen/bindless"
	"github.com/abdes/oxygen/gpucore"
)

// TextureKey identifies texture content, independent of which GPU
// resource currently backs it. Asset keys hash to TextureKey values.
type TextureKey uint64

// ErrUnknownTexture is returned when a promotion or query names a key
// the binder has never allocated.
var ErrUnknownTexture = errors.New("renderer: unknown texture key")

type textureEntry struct {
	handle   bindless.DescriptorHandle
	sv       bindless.ShaderVisibleIndex
	native   gpucore.NativeView
	promoted bool
}

// TextureBinder maps content keys to stable shader-visible texture
// indices. A key's first GetOrAllocate binds the placeholder view and
// mints the index; Promote later swaps in the real view without moving
// the index, so materials written against the placeholder stay valid.
type TextureBinder struct {
	device gpucore.DeviceAdapter
	alloc  *bindless.DescriptorAllocator

	mu          sync.Mutex
	entries     map[TextureKey]*textureEntry
	placeholder gpucore.NativeView
}

// NewTextureBinder creates a binder whose unpromoted keys resolve to a
// view over placeholderTex (a small neutral texture).
func NewTextureBinder(device gpucore.DeviceAdapter, alloc *bindless.DescriptorAllocator,
	placeholderTex gpucore.TextureID) (*TextureBinder, error) {

	view, err := device.CreateTextureView(placeholderTex, gpucore.ViewDesc{
		Type:     gpucore.ViewTexSRV,
		MipCount: 1, SliceCount: 1,
	})
	if err != nil {
		return nil, fmt.Errorf("renderer: placeholder view: %w", err)
	}
	if !view.IsValid() {
		return nil, fmt.Errorf("renderer: placeholder view creation returned invalid view")
	}
	return &TextureBinder{
		device:      device,
		alloc:       alloc,
		entries:     make(map[TextureKey]*textureEntry),
		placeholder: view,
	}, nil
}

// GetOrAllocate returns the shader-visible index for key, minting one
// bound to the placeholder on first sight. Idempotent: repeated calls
// with the same key return the same index, before and after promotion.
func (b *TextureBinder) GetOrAllocate(key TextureKey) (bindless.ShaderVisibleIndex, error) {
	b.mu.Lock()
	defer b.mu.Unlock()
	if e, ok := b.entries[key]; ok {
		return e.sv, nil
	}
	handle, err := b.alloc.Allocate(gpucore.ViewTexSRV, gpucore.ShaderVisible)
	if err != nil {
		return bindless.InvalidShaderVisibleIndex, fmt.Errorf("renderer: texture %#x: %w", uint64(key), err)
	}
	sv, err := b.alloc.ShaderVisibleIndex(handle)
	if err != nil {
		b.alloc.Release(handle)
		return bindless.InvalidShaderVisibleIndex, fmt.Errorf("renderer: texture %#x: %w", uint64(key), err)
	}
	b.entries[key] = &textureEntry{handle: handle, sv: sv, native: b.placeholder}
	return sv, nil
}

// Promote binds the real texture behind an already allocated key. The
// key's shader-visible index is unchanged; only the view it resolves to
// moves. Promoting an unknown key is an error; promoting twice replaces
// the previous real view.
func (b *TextureBinder) Promote(key TextureKey, tex gpucore.TextureID, desc gpucore.ViewDesc) error {
	view, err := b.device.CreateTextureView(tex, desc)
	if err != nil {
		return fmt.Errorf("renderer: promote texture %#x: %w", uint64(key), err)
	}
	if !view.IsValid() {
		return fmt.Errorf("renderer: promote texture %#x: invalid view", uint64(key))
	}

	b.mu.Lock()
	e, ok := b.entries[key]
	if !ok {
		b.mu.Unlock()
		b.device.DestroyView(view)
		return fmt.Errorf("renderer: promote texture %#x: %w", uint64(key), ErrUnknownTexture)
	}
	old := gpucore.NativeView(0)
	if e.promoted {
		old = e.native
	}
	e.native = view
	e.promoted = true
	sv := e.sv
	b.mu.Unlock()

	if old.IsValid() {
		b.device.DestroyView(old)
	}
	oxygen.Logger().Debug("texture promoted", "key", uint64(key), "index", uint32(sv))
	return nil
}

// IsPromoted reports whether key is backed by its real texture yet.
func (b *TextureBinder) IsPromoted(key TextureKey) bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	e, ok := b.entries[key]
	return ok && e.promoted
}

// Release drops a key, destroying its promoted view and returning its
// descriptor. Unknown keys are a no-op.
func (b *TextureBinder) Release(key TextureKey) {
	b.mu.Lock()
	e, ok := b.entries[key]
	if ok {
		delete(b.entries, key)
	}
	b.mu.Unlock()
	if !ok {
		return
	}
	if e.promoted && e.native.IsValid() {
		b.device.DestroyView(e.native)
	}
	b.alloc.Release(e.handle)
}

// Len returns the number of bound keys.
func (b *TextureBinder) Len() int {
	b.mu.Lock()
	defer b.mu.Unlock()
	return len(b.entries)
}

// Close releases every key and the placeholder view.
func (b *TextureBinder) Close() {
	b.mu.Lock()
	entries := b.entries
	b.entries = make(map[TextureKey]*textureEntry)
	placeholder := b.placeholder
	b.placeholder = 0
	b.mu.Unlock()

	for _, e := range entries {
		if e.promoted && e.native.IsValid() {
			b.device.DestroyView(e.native)
		}
		b.alloc.Release(e.handle)
	}
	if placeholder.IsValid() {
		b.device.DestroyView(placeholder)
	}
}
