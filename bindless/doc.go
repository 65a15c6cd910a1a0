// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package bindless implements the engine's descriptor-heap resource
// model: a deterministic allocator partitioning the shader-visible
// descriptor index space across heap families, generation-safe resource
// handles, the resource/view registry, and frame-deferred reclamation.
//
// Shaders address resources through [ShaderVisibleIndex] values, which
// are absolute positions inside a heap family's base range. The
// [DescriptorAllocator] mints those positions, the [ResourceRegistry]
// pairs them with backend view objects, and the [DeferredReclaimer]
// makes releases safe against frames still in flight.
package bindless
