// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package bindless

import (
	"errors"
	"fmt"
	"sync"

	"github.com/abdes/oxygen/gpucore"
)

// Registry state errors.
var (
	// ErrNotRegistered is returned when an operation names a resource
	// the registry does not track.
	ErrNotRegistered = errors.New("bindless: resource not registered")

	// ErrViewCreation is returned when the device yields an error while
	// constructing a native view.
	ErrViewCreation = errors.New("bindless: native view creation failed")
)

// ViewSource is a resource the registry can construct views over.
// Implementations are small value types wrapping a device resource ID.
type ViewSource interface {
	// ResourceKey returns a stable identity for the resource; two
	// sources with equal keys refer to the same resource.
	ResourceKey() uint64

	// CreateView constructs the backend view object for desc.
	// An invalid NativeView with a nil error means the backend refused
	// the view without failing.
	CreateView(dev gpucore.DeviceAdapter, desc gpucore.ViewDesc) (gpucore.NativeView, error)
}

// BufferResource adapts a device buffer to ViewSource.
type BufferResource struct {
	ID gpucore.BufferID
}

// ResourceKey returns the buffer identity, tagged so buffer and texture
// key spaces never collide.
func (b BufferResource) ResourceKey() uint64 { return uint64(b.ID)<<1 | 0 }

// CreateView constructs a buffer view on the device.
func (b BufferResource) CreateView(dev gpucore.DeviceAdapter, desc gpucore.ViewDesc) (gpucore.NativeView, error) {
	return dev.CreateBufferView(b.ID, desc)
}

// TextureResource adapts a device texture to ViewSource.
type TextureResource struct {
	ID gpucore.TextureID
}

// ResourceKey returns the texture identity.
func (t TextureResource) ResourceKey() uint64 { return uint64(t.ID)<<1 | 1 }

// CreateView constructs a texture view on the device.
func (t TextureResource) CreateView(dev gpucore.DeviceAdapter, desc gpucore.ViewDesc) (gpucore.NativeView, error) {
	return dev.CreateTextureView(t.ID, desc)
}

type viewEntry struct {
	native gpucore.NativeView
	handle DescriptorHandle
}

type resourceEntry struct {
	source ViewSource
	views  map[gpucore.ViewDesc]viewEntry
}

type reverseEntry struct {
	key  uint64
	desc gpucore.ViewDesc
}

// ResourceRegistry tracks, per resource, the views materialized over it
// and the descriptor each view owns, plus a reverse index from
// shader-visible index to (resource, view description).
//
// The registry is the single owner of the view/handle pairing: every
// registered view owns exactly one descriptor, and unregistering a
// resource purges all of its views and releases their handles. The
// reverse map is 1:1 within a single shader-visible index space.
//
// Mutations are serialized under the registry mutex; Find and Contains
// may run concurrently with each other but never with writers.
type ResourceRegistry struct {
	mu     sync.RWMutex
	device gpucore.DeviceAdapter
	alloc  *DescriptorAllocator

	resources map[uint64]*resourceEntry
	reverse   map[ShaderVisibleIndex]reverseEntry
}

// NewResourceRegistry creates an empty registry bound to a device and
// a descriptor allocator.
func NewResourceRegistry(device gpucore.DeviceAdapter, alloc *DescriptorAllocator) *ResourceRegistry {
	return &ResourceRegistry{
		device:    device,
		alloc:     alloc,
		resources: make(map[uint64]*resourceEntry),
		reverse:   make(map[ShaderVisibleIndex]reverseEntry),
	}
}

// Register enrolls a resource for view tracking. Duplicate registration
// is a no-op.
func (r *ResourceRegistry) Register(src ViewSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := src.ResourceKey()
	if _, ok := r.resources[key]; ok {
		return
	}
	r.resources[key] = &resourceEntry{
		source: src,
		views:  make(map[gpucore.ViewDesc]viewEntry),
	}
}

// IsRegistered reports whether the resource is enrolled.
func (r *ResourceRegistry) IsRegistered(src ViewSource) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	_, ok := r.resources[src.ResourceKey()]
	return ok
}

// RegisterView constructs the native view described by desc, records
// it against the resource, and records the reverse mapping when the
// handle is shader-visible.
//
// The caller transfers ownership of the descriptor handle to the
// registry on success. On failure the handle is returned to the caller
// untouched. Registering a second view with an identical description
// replaces nothing and fails.
func (r *ResourceRegistry) RegisterView(src ViewSource, handle DescriptorHandle, desc gpucore.ViewDesc) (gpucore.NativeView, error) {
	if !handle.IsValid() {
		return 0, fmt.Errorf("bindless: register view: invalid descriptor handle")
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	key := src.ResourceKey()
	entry, ok := r.resources[key]
	if !ok {
		return 0, fmt.Errorf("register view: %w", ErrNotRegistered)
	}
	if _, dup := entry.views[desc]; dup {
		return 0, fmt.Errorf("bindless: register view: description already registered")
	}

	native, err := src.CreateView(r.device, desc)
	if err != nil {
		return 0, fmt.Errorf("%w: %v", ErrViewCreation, err)
	}
	if !native.IsValid() {
		return 0, ErrViewCreation
	}

	entry.views[desc] = viewEntry{native: native, handle: handle}
	if handle.Visibility() == gpucore.ShaderVisible {
		r.reverse[handle.svIndex] = reverseEntry{key: key, desc: desc}
	}
	return native, nil
}

// CreateAndRegisterView allocates a descriptor for the view request and
// registers the view in one step. On any failure the descriptor is
// released before returning.
func (r *ResourceRegistry) CreateAndRegisterView(src ViewSource, desc gpucore.ViewDesc, vis gpucore.Visibility) (gpucore.NativeView, DescriptorHandle, error) {
	handle, err := r.alloc.Allocate(desc.Type, vis)
	if err != nil {
		return 0, DescriptorHandle{}, err
	}
	native, err := r.RegisterView(src, handle, desc)
	if err != nil {
		r.alloc.Release(handle)
		return 0, DescriptorHandle{}, err
	}
	return native, handle, nil
}

// Find returns the cached native view for (resource, description), or
// the invalid sentinel.
func (r *ResourceRegistry) Find(src ViewSource, desc gpucore.ViewDesc) gpucore.NativeView {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.resources[src.ResourceKey()]
	if !ok {
		return 0
	}
	return entry.views[desc].native
}

// Contains reports whether (resource, description) has a cached view,
// without materializing anything.
func (r *ResourceRegistry) Contains(src ViewSource, desc gpucore.ViewDesc) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.resources[src.ResourceKey()]
	if !ok {
		return false
	}
	_, ok = entry.views[desc]
	return ok
}

// Resolve returns the (resource key, view description) currently bound
// at a shader-visible index.
func (r *ResourceRegistry) Resolve(sv ShaderVisibleIndex) (uint64, gpucore.ViewDesc, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	rev, ok := r.reverse[sv]
	return rev.key, rev.desc, ok
}

// UpdateView rebinds the descriptor slot at svIndex to a new view of
// dst, preserving the shader-visible index.
//
// Observable semantics:
//   - dst not registered, or svIndex unknown: returns (false, nil) with
//     no side effects.
//   - repeated call with identical arguments: idempotent, returns
//     (true, nil) without allocating descriptors or views.
//   - new view creation reports an invalid view: the descriptor is
//     released, the old cache entry purged, returns (false, nil).
//   - new view creation returns an error or panics: same cleanup, then
//     the error is returned (or the panic resumes).
//   - success: the old cache entry moves from the source resource to
//     dst under the new description; the descriptor slot and its
//     shader-visible index are unchanged.
func (r *ResourceRegistry) UpdateView(dst ViewSource, svIndex ShaderVisibleIndex, desc gpucore.ViewDesc) (ok bool, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	dstKey := dst.ResourceKey()
	dstEntry, registered := r.resources[dstKey]
	if !registered {
		return false, nil
	}
	rev, known := r.reverse[svIndex]
	if !known {
		return false, nil
	}
	srcEntry, ok := r.resources[rev.key]
	if !ok {
		return false, nil
	}
	oldView, ok := srcEntry.views[rev.desc]
	if !ok {
		return false, nil
	}
	if rev.key == dstKey && rev.desc == desc {
		// Identical rebind; nothing to do.
		return true, nil
	}

	purge := func() {
		delete(srcEntry.views, rev.desc)
		delete(r.reverse, svIndex)
		r.device.DestroyView(oldView.native)
		r.alloc.Release(oldView.handle)
	}

	// View construction may panic; the slot must not leak either way.
	panicked := true
	var native gpucore.NativeView
	defer func() {
		if panicked {
			purge()
		}
	}()
	native, err = dst.CreateView(r.device, desc)
	panicked = false

	if err != nil {
		purge()
		return false, fmt.Errorf("update view: %w: %v", ErrViewCreation, err)
	}
	if !native.IsValid() {
		purge()
		return false, nil
	}

	// Success: move the cache entry, keep descriptor and index.
	delete(srcEntry.views, rev.desc)
	r.device.DestroyView(oldView.native)
	dstEntry.views[desc] = viewEntry{native: native, handle: oldView.handle}
	r.reverse[svIndex] = reverseEntry{key: dstKey, desc: desc}
	return true, nil
}

// UnRegisterView removes the view identified by its native object from
// the resource, destroying the view and releasing its descriptor.
// Unknown views are ignored (idempotent).
func (r *ResourceRegistry) UnRegisterView(src ViewSource, native gpucore.NativeView) {
	r.mu.Lock()
	defer r.mu.Unlock()
	entry, ok := r.resources[src.ResourceKey()]
	if !ok {
		return
	}
	for desc, ve := range entry.views {
		if ve.native != native {
			continue
		}
		delete(entry.views, desc)
		if ve.handle.Visibility() == gpucore.ShaderVisible {
			delete(r.reverse, ve.handle.svIndex)
		}
		r.device.DestroyView(ve.native)
		r.alloc.Release(ve.handle)
		return
	}
}

// UnRegisterResource purges all of a resource's views, releasing their
// descriptors, and drops the resource from the registry.
func (r *ResourceRegistry) UnRegisterResource(src ViewSource) {
	r.mu.Lock()
	defer r.mu.Unlock()
	key := src.ResourceKey()
	entry, ok := r.resources[key]
	if !ok {
		return
	}
	for _, ve := range entry.views {
		if ve.handle.Visibility() == gpucore.ShaderVisible {
			delete(r.reverse, ve.handle.svIndex)
		}
		r.device.DestroyView(ve.native)
		r.alloc.Release(ve.handle)
	}
	delete(r.resources, key)
}

// ViewCount returns the number of cached views for a resource.
func (r *ResourceRegistry) ViewCount(src ViewSource) int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	entry, ok := r.resources[src.ResourceKey()]
	if !ok {
		return 0
	}
	return len(entry.views)
}
