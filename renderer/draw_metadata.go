// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"encoding/binary"
	"hash/fnv"
	"sort"
	"sync"

	"github.com/abdes/oxygen/bindless"
	"github.com/abdes/oxygen/upload"
)

// PassMask is a bitset over pass kinds used to partition sorted draws.
type PassMask uint32

const (
	PassOpaqueOrMasked PassMask = 1 << iota
	PassTransparent
	PassShadowCaster
)

// alphaOpaqueThreshold is the alpha at or above which an opaque-domain
// material still renders in the opaque-or-masked partition.
const alphaOpaqueThreshold = 0.999

// DrawMetadata is the GPU-facing record for one draw.
type DrawMetadata struct {
	VertexSRV          uint32
	IndexSRV           uint32
	FirstIndex         uint32
	BaseVertex         uint32
	IndexCount         uint32
	InstanceCount      uint32
	MaterialIndex      uint32
	TransformIndex     uint32
	InstanceMetaIndex  uint32
	InstanceMetaOffset uint32
	Flags              PassMask
}

// DrawMetadataStride is the GPU-side size of one record.
const DrawMetadataStride = 48

func (d *DrawMetadata) encode() []byte {
	buf := make([]byte, DrawMetadataStride)
	binary.LittleEndian.PutUint32(buf[0:], d.VertexSRV)
	binary.LittleEndian.PutUint32(buf[4:], d.IndexSRV)
	binary.LittleEndian.PutUint32(buf[8:], d.FirstIndex)
	binary.LittleEndian.PutUint32(buf[12:], d.BaseVertex)
	binary.LittleEndian.PutUint32(buf[16:], d.IndexCount)
	binary.LittleEndian.PutUint32(buf[20:], d.InstanceCount)
	binary.LittleEndian.PutUint32(buf[24:], d.MaterialIndex)
	binary.LittleEndian.PutUint32(buf[28:], d.TransformIndex)
	binary.LittleEndian.PutUint32(buf[32:], d.InstanceMetaIndex)
	binary.LittleEndian.PutUint32(buf[36:], d.InstanceMetaOffset)
	binary.LittleEndian.PutUint32(buf[40:], uint32(d.Flags))
	return buf
}

// RenderItemData is one scene-prep emission: a mesh view with its
// resolved material element and transform handle.
type RenderItemData struct {
	Geometry      GeometryHandle
	FirstIndex    uint32
	BaseVertex    uint32
	IndexCount    uint32
	InstanceCount uint32
	MaterialKey   MaterialKey
	MaterialIndex uint32
	Transform     TransformHandle
}

// PartitionRange is a contiguous run of sorted draws sharing a mask.
type PartitionRange struct {
	Mask  PassMask
	Begin uint32
	End   uint32
}

type drawSortKey struct {
	mask     PassMask
	material uint32
	vbSRV    uint32
	ibSRV    uint32
}

func (k drawSortKey) less(o drawSortKey) bool {
	if k.mask != o.mask {
		return k.mask < o.mask
	}
	if k.material != o.material {
		return k.material < o.material
	}
	if k.vbSRV != o.vbSRV {
		return k.vbSRV < o.vbSRV
	}
	return k.ibSRV < o.ibSRV
}

// DrawMetadataEmitter collects the frame's draws, sorts and partitions
// them by pass, and uploads the sorted records to a structured-buffer
// atlas consumed by bindless draw submission.
type DrawMetadataEmitter struct {
	atlas     *AtlasBuffer
	materials *MaterialBinder

	mu         sync.Mutex
	draws      []DrawMetadata
	keys       []drawSortKey
	partitions []PartitionRange
	preHash    uint64
	postHash   uint64
	sorted     bool
}

// NewDrawMetadataEmitter wraps an atlas sized for DrawMetadata records.
func NewDrawMetadataEmitter(atlas *AtlasBuffer, materials *MaterialBinder) (*DrawMetadataEmitter, error) {
	if atlas.Stride() < DrawMetadataStride {
		return nil, errAtlasStride("draw metadata", atlas.Stride(), DrawMetadataStride)
	}
	return &DrawMetadataEmitter{atlas: atlas, materials: materials}, nil
}

// OnFrameStart clears the frame's draws and rotates the atlas.
func (e *DrawMetadataEmitter) OnFrameStart(slot uint32) {
	e.mu.Lock()
	e.draws = e.draws[:0]
	e.keys = e.keys[:0]
	e.partitions = e.partitions[:0]
	e.preHash, e.postHash = 0, 0
	e.sorted = false
	e.mu.Unlock()
	e.atlas.OnFrameStart(slot)
}

// Emit appends one draw for the item, classifying its pass mask from
// the material's domain and alpha.
func (e *DrawMetadataEmitter) Emit(item RenderItemData) {
	mask := e.classify(item.MaterialIndex)
	d := DrawMetadata{
		VertexSRV:      uint32(item.Geometry.VertexSRV),
		IndexSRV:       uint32(item.Geometry.IndexSRV),
		FirstIndex:     item.FirstIndex,
		BaseVertex:     item.BaseVertex,
		IndexCount:     item.IndexCount,
		InstanceCount:  item.InstanceCount,
		MaterialIndex:  item.MaterialIndex,
		TransformIndex: uint32(item.Transform),
		Flags:          mask,
	}
	if d.InstanceCount == 0 {
		d.InstanceCount = 1
	}
	e.mu.Lock()
	e.draws = append(e.draws, d)
	e.keys = append(e.keys, drawSortKey{
		mask:     mask,
		material: d.MaterialIndex,
		vbSRV:    d.VertexSRV,
		ibSRV:    d.IndexSRV,
	})
	e.sorted = false
	e.mu.Unlock()
}

func (e *DrawMetadataEmitter) classify(materialIndex uint32) PassMask {
	domain, alpha, ok := e.materials.Classify(materialIndex)
	if !ok {
		return PassOpaqueOrMasked
	}
	switch domain {
	case DomainMasked:
		return PassOpaqueOrMasked
	case DomainOpaque:
		if alpha >= alphaOpaqueThreshold {
			return PassOpaqueOrMasked
		}
		return PassTransparent
	default:
		return PassTransparent
	}
}

// SortAndPartition stable-sorts the frame's draws by (mask, material,
// vertex SRV, index SRV), computes the diagnostic key hashes and builds
// the fused partition ranges. Equal-key draws retain emission order.
func (e *DrawMetadataEmitter) SortAndPartition() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.sorted {
		return
	}
	e.preHash = hashKeys(e.keys)

	order := make([]int, len(e.draws))
	for i := range order {
		order[i] = i
	}
	sort.SliceStable(order, func(a, b int) bool {
		return e.keys[order[a]].less(e.keys[order[b]])
	})

	draws := make([]DrawMetadata, len(e.draws))
	keys := make([]drawSortKey, len(e.keys))
	for i, src := range order {
		draws[i] = e.draws[src]
		keys[i] = e.keys[src]
	}
	e.draws, e.keys = draws, keys
	e.postHash = hashKeys(e.keys)

	e.partitions = e.partitions[:0]
	for i := 0; i < len(e.draws); {
		mask := e.draws[i].Flags
		j := i + 1
		for j < len(e.draws) && e.draws[j].Flags == mask {
			j++
		}
		e.partitions = append(e.partitions, PartitionRange{
			Mask: mask, Begin: uint32(i), End: uint32(j),
		})
		i = j
	}
	e.sorted = true
}

func hashKeys(keys []drawSortKey) uint64 {
	h := fnv.New64a()
	var buf [16]byte
	for _, k := range keys {
		binary.LittleEndian.PutUint32(buf[0:], uint32(k.mask))
		binary.LittleEndian.PutUint32(buf[4:], k.material)
		binary.LittleEndian.PutUint32(buf[8:], k.vbSRV)
		binary.LittleEndian.PutUint32(buf[12:], k.ibSRV)
		h.Write(buf[:])
	}
	return h.Sum64()
}

// EnsureFrameResources writes the sorted draws into the atlas, one
// request per element under a single aggregate submission, and returns
// the draw-metadata SRV index. With zero draws the SRV is still
// published so shaders always have a valid index to read.
func (e *DrawMetadataEmitter) EnsureFrameResources(coord *upload.Coordinator) (bindless.ShaderVisibleIndex, error) {
	e.SortAndPartition()
	e.mu.Lock()
	for i := range e.draws {
		element := e.atlas.Allocate()
		if err := e.atlas.Write(element, e.draws[i].encode()); err != nil {
			e.mu.Unlock()
			return bindless.InvalidShaderVisibleIndex, err
		}
	}
	e.mu.Unlock()
	return e.atlas.EnsureFrameResources(coord)
}

// GetDrawMetadataSrvIndex returns the atlas SRV index, publishing it if
// the frame emitted nothing.
func (e *DrawMetadataEmitter) GetDrawMetadataSrvIndex() (bindless.ShaderVisibleIndex, error) {
	return e.atlas.SrvIndex()
}

// DrawCount returns the number of draws emitted this frame.
func (e *DrawMetadataEmitter) DrawCount() uint32 {
	e.mu.Lock()
	defer e.mu.Unlock()
	return uint32(len(e.draws))
}

// Draws returns the frame's draws in their current order.
func (e *DrawMetadataEmitter) Draws() []DrawMetadata {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]DrawMetadata, len(e.draws))
	copy(out, e.draws)
	return out
}

// Partitions returns the fused pass ranges computed by the last
// SortAndPartition.
func (e *DrawMetadataEmitter) Partitions() []PartitionRange {
	e.mu.Lock()
	defer e.mu.Unlock()
	out := make([]PartitionRange, len(e.partitions))
	copy(out, e.partitions)
	return out
}

// DiagnosticHashes returns the FNV-1a hashes of the key array before
// and after the sort.
func (e *DrawMetadataEmitter) DiagnosticHashes() (pre, post uint64) {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.preHash, e.postHash
}
