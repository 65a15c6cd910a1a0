// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package oxygen is a real-time rendering engine core built around a
// bindless, descriptor-heap-based GPU resource model and an asynchronous
// content pipeline.
//
// # Overview
//
// The engine's shaders index global descriptor arrays by integer rather
// than binding slots. Everything in this module exists to mint, track,
// and feed those integers:
//
//   - bindless: descriptor index space partitioning, generation-safe
//     resource handles, the resource/view registry, and frame-deferred
//     reclamation.
//   - upload: staged and inline CPU-to-GPU transfers with ticket-based
//     completion tracking.
//   - renderer: per-frame binders that deduplicate textures, materials,
//     transforms, and geometry into stable shader-visible indices, and
//     the DrawMetadata emitter the GPU consumes for indirect draws.
//   - content: the import pipeline that decodes source art, generates
//     mips, BC7-encodes, packs subresource layouts, and emits cooked
//     payloads plus a loose-cooked index.
//   - shaderlib: the OXSL shader archive format and its reflection
//     contract validation.
//   - phase: the deterministic frame-phase ordering the per-frame
//     contracts rely on.
//
// # Quick Start
//
//	import "github.com/abdes/oxygen/bindless"
//
//	strategy, _ := bindless.LoadDefaultStrategy()
//	alloc, _ := bindless.NewDescriptorAllocator(strategy, device)
//	h, _ := alloc.Allocate(bindless.ViewTexSRV, bindless.ShaderVisible)
//	idx, _ := alloc.ShaderVisibleIndex(h)
//
// # Logging
//
// By default oxygen produces no log output. Call [SetLogger] to enable
// logging; all sub-packages share the configured logger.
package oxygen
