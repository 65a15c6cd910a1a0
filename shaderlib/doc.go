// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package shaderlib reads and writes the engine's shader library
// archive. An archive bundles compiled shader blobs with their
// reflection data so the renderer can create pipelines without
// touching shader source at runtime.
package shaderlib
