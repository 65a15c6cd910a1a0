// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package content implements the asynchronous import pipelines that
// turn authored source assets into cooked, GPU-ready payloads.
//
// The pipeline core is a bounded multiple-producer single-consumer
// stage with back-pressure and per-item stop tokens. Domain pipelines
// build on it: texture cooking (decode, tonemap, mip chain, cubemap
// assembly, BC7), buffer, geometry, material and scene cooking. Cooked
// output flows through emitters into a loose-cooked file layout indexed
// by a persisted manifest.
package content
