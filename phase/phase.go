// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

// Package phase defines the engine's deterministic frame-phase ordering.
//
// The registry is compile-time data: a fixed, ordered list of phases with
// mutation permissions, thread-safety flags, and execution categories.
// Per-frame contracts elsewhere in the engine (binders, the deferred
// reclaimer, scene-prep emission) assume this ordering never changes at
// runtime and that FrameStart runs on the main thread with exclusive
// access to engine state.
package phase

import "fmt"

// ID identifies a frame phase. IDs are dense: the numeric value of an
// ID equals its index in the registry.
type ID uint8

// Frame phases in execution order.
const (
	FrameStart ID = iota
	Input
	FixedSimulation
	Gameplay
	TransformPropagation
	SnapshotScenePrep
	ParallelTasks
	PostParallel
	FrameGraph
	CommandRecord
	Present
	AsyncPoll
	DetachedServices
	FrameEnd

	phaseCount
)

// Count returns the number of registered phases.
func Count() int { return int(phaseCount) }

// MutationMask describes which state domains a phase may mutate.
type MutationMask uint8

// Mutation permission bits.
const (
	MutateGameState MutationMask = 1 << iota
	MutateFrameState
	MutateEngineState
)

// ExecutionCategory describes how a phase's work is scheduled.
type ExecutionCategory uint8

const (
	// Ordered phases run their tasks sequentially on the main loop.
	Ordered ExecutionCategory = iota
	// BarrieredConcurrency phases fan tasks out onto the shared thread
	// pool and rejoin at the phase boundary.
	BarrieredConcurrency
	// Detached phases host long-running services that outlive the frame.
	// No other phase may depend on their completion.
	Detached
)

// Desc describes one frame phase.
type Desc struct {
	ID               ID
	Name             string
	Description      string
	AllowedMutations MutationMask
	ThreadSafe       bool
	Category         ExecutionCategory
}

// BarrierID identifies a synchronization barrier between phases.
type BarrierID uint8

// Barriers in frame order.
const (
	BarrierInputComplete BarrierID = iota
	BarrierSnapshotReady
	BarrierParallelJoin
	BarrierRenderComplete

	barrierCount
)

// BarrierDesc describes a barrier and the phase whose completion it
// publishes.
type BarrierDesc struct {
	ID    BarrierID
	Name  string
	Phase ID
}

// registry is the canonical phase table. Index i holds the phase with
// ID i; Validate enforces this.
var registry = [phaseCount]Desc{
	{FrameStart, "FrameStart", "frame slot begin, deferred release drain", MutateEngineState | MutateFrameState, false, Ordered},
	{Input, "Input", "platform event pump and input action mapping", MutateGameState, true, BarrieredConcurrency},
	{FixedSimulation, "FixedSimulation", "fixed-step simulation ticks", MutateGameState, false, Ordered},
	{Gameplay, "Gameplay", "variable-step gameplay logic", MutateGameState, false, Ordered},
	{TransformPropagation, "TransformPropagation", "world transform hierarchy update", MutateGameState, false, Ordered},
	{SnapshotScenePrep, "SnapshotScenePrep", "scene traversal, render item emission", MutateFrameState, false, Ordered},
	{ParallelTasks, "ParallelTasks", "fan-out work: culling, skinning, cooking polls", MutateFrameState, true, BarrieredConcurrency},
	{PostParallel, "PostParallel", "merge parallel task outputs", MutateFrameState, false, Ordered},
	{FrameGraph, "FrameGraph", "pass setup and resource transition planning", MutateFrameState, false, Ordered},
	{CommandRecord, "CommandRecord", "pass execution and command recording", 0, true, BarrieredConcurrency},
	{Present, "Present", "swapchain present", MutateEngineState, false, Ordered},
	{AsyncPoll, "AsyncPoll", "upload ticket and import pipeline polling", MutateEngineState, true, BarrieredConcurrency},
	{DetachedServices, "DetachedServices", "long-running background services", 0, true, Detached},
	{FrameEnd, "FrameEnd", "frame slot close, fence signal", MutateEngineState | MutateFrameState, false, Ordered},
}

// barriers is the canonical barrier table, in non-decreasing phase order.
var barriers = [barrierCount]BarrierDesc{
	{BarrierInputComplete, "InputComplete", Input},
	{BarrierSnapshotReady, "SnapshotReady", SnapshotScenePrep},
	{BarrierParallelJoin, "ParallelJoin", ParallelTasks},
	{BarrierRenderComplete, "RenderComplete", CommandRecord},
}

// Registry returns the canonical phase table in execution order.
// The returned slice aliases compile-time data and must not be modified.
func Registry() []Desc { return registry[:] }

// Barriers returns the canonical barrier table in frame order.
// The returned slice aliases compile-time data and must not be modified.
func Barriers() []BarrierDesc { return barriers[:] }

// Get returns the descriptor for a phase ID.
func Get(id ID) (Desc, bool) {
	if int(id) >= len(registry) {
		return Desc{}, false
	}
	return registry[id], true
}

// Validate checks the registry invariants:
//   - every descriptor's ID equals its index,
//   - phase names are unique,
//   - barriers reference valid phases in non-decreasing phase order,
//   - Detached phases allow no mutations that later phases could observe
//     mid-write (they must be marked thread-safe).
//
// Validate is cheap and deterministic; engine startup calls it once.
func Validate() error {
	names := make(map[string]ID, len(registry))
	for i, d := range registry {
		if d.ID != ID(i) {
			return fmt.Errorf("phase: descriptor at index %d has id %d", i, d.ID)
		}
		if d.Name == "" {
			return fmt.Errorf("phase: descriptor %d has empty name", i)
		}
		if prev, dup := names[d.Name]; dup {
			return fmt.Errorf("phase: duplicate name %q (ids %d and %d)", d.Name, prev, d.ID)
		}
		names[d.Name] = d.ID
		if d.Category == Detached && !d.ThreadSafe {
			return fmt.Errorf("phase: detached phase %q must be thread-safe", d.Name)
		}
	}
	var prevPhase ID
	for i, b := range barriers {
		if b.ID != BarrierID(i) {
			return fmt.Errorf("phase: barrier at index %d has id %d", i, b.ID)
		}
		if int(b.Phase) >= len(registry) {
			return fmt.Errorf("phase: barrier %q references unknown phase %d", b.Name, b.Phase)
		}
		if b.Phase < prevPhase {
			return fmt.Errorf("phase: barrier %q out of order (phase %d after %d)", b.Name, b.Phase, prevPhase)
		}
		prevPhase = b.Phase
	}
	return nil
}

// String returns the phase name, or "Phase(n)" for unknown IDs.
func (id ID) String() string {
	if int(id) < len(registry) {
		return registry[id].Name
	}
	return fmt.Sprintf("Phase(%d)", uint8(id))
}
