// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package gpucore defines the device abstraction the bindless core is
// built on.
//
// The engine does not talk to a graphics API directly. Instead it goes
// through [DeviceAdapter], an interface over the handful of device
// operations the resource model needs: buffer and texture lifetime,
// view creation into descriptor heaps, copy submission, and fences.
// Each adapter implementation maintains a mapping between opaque IDs
// and actual backend resources.
//
// The [SoftwareAdapter] is a complete in-memory implementation used by
// every test in the module and as a fallback when no GPU is present.
package gpucore
