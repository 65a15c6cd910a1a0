// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package upload moves CPU bytes into GPU resources.
//
// The [Coordinator] accepts batches of [Request] values and returns
// [Ticket]s. Small batches go through the inline path (direct buffer
// writes); larger batches are staged into a per-frame-slot staging ring
// and submitted as coalesced copy regions. A ticket's completion
// implies every byte named by its requests is visible to subsequent GPU
// reads that observe the signaled fence; no ordering is promised
// between independent tickets.
package upload
