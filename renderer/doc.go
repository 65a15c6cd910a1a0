// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package renderer hosts the per-frame binding layer between scene prep
// and the GPU: growable atlas buffers with stable shader-visible SRVs,
// binders that turn content keys into bindless indices, uploaders for
// transforms and geometry, and the draw-metadata emitter that sorts and
// partitions the frame's draws for pass consumption.
package renderer
