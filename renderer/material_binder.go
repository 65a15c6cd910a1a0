// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"encoding/binary"
	"fmt"
	"math"
	"sync"

	"github.com/abdes/oxygen"
	"github.com/abdes/oxygen/bindless"
	"github.com/abdes/oxygen/upload"
)

// MaterialKey identifies material content.
type MaterialKey uint64

// MaterialDomain classifies how a material participates in passes.
type MaterialDomain uint8

const (
	DomainOpaque MaterialDomain = iota
	DomainMasked
	DomainBlended
)

// MaterialDesc is the authored material a binder resolves. Texture
// references are content keys; zero means no texture.
type MaterialDesc struct {
	Key    MaterialKey
	Domain MaterialDomain
	Alpha  float32

	BaseColor         TextureKey
	Normal            TextureKey
	MetallicRoughness TextureKey
	Occlusion         TextureKey
	Emissive          TextureKey
}

// MaterialConstants is the GPU-facing material record. Texture fields
// hold resolved shader-visible indices, never authoring references.
type MaterialConstants struct {
	BaseColorTextureIndex         uint32
	NormalTextureIndex            uint32
	MetallicRoughnessTextureIndex uint32
	OcclusionTextureIndex         uint32
	EmissiveTextureIndex          uint32
	Flags                         uint32
	Alpha                         float32
	pad                           uint32
}

// MaterialConstantsStride is the GPU-side size of one record.
const MaterialConstantsStride = 32

func (c *MaterialConstants) encode() []byte {
	buf := make([]byte, MaterialConstantsStride)
	binary.LittleEndian.PutUint32(buf[0:], c.BaseColorTextureIndex)
	binary.LittleEndian.PutUint32(buf[4:], c.NormalTextureIndex)
	binary.LittleEndian.PutUint32(buf[8:], c.MetallicRoughnessTextureIndex)
	binary.LittleEndian.PutUint32(buf[12:], c.OcclusionTextureIndex)
	binary.LittleEndian.PutUint32(buf[16:], c.EmissiveTextureIndex)
	binary.LittleEndian.PutUint32(buf[20:], c.Flags)
	binary.LittleEndian.PutUint32(buf[24:], math.Float32bits(c.Alpha))
	return buf
}

type materialEntry struct {
	element   uint32
	constants MaterialConstants
	domain    MaterialDomain
	alpha     float32
}

// MaterialBinder resolves authored materials into atlas elements of
// MaterialConstants with bindless texture indices. The cache is per
// frame: a material is resolved at most once per frame, and cache hits
// do not re-invoke the texture binder.
type MaterialBinder struct {
	textures   *TextureBinder
	atlas      *AtlasBuffer
	errorIndex uint32

	mu      sync.Mutex
	entries map[MaterialKey]*materialEntry
}

// NewMaterialBinder creates a binder storing constants in atlas.
// errorIndex is the shader-visible index substituted for unresolvable
// texture references.
func NewMaterialBinder(textures *TextureBinder, atlas *AtlasBuffer, errorIndex uint32) (*MaterialBinder, error) {
	if atlas.Stride() < MaterialConstantsStride {
		return nil, fmt.Errorf("renderer: material atlas stride %d below %d",
			atlas.Stride(), MaterialConstantsStride)
	}
	return &MaterialBinder{
		textures:   textures,
		atlas:      atlas,
		errorIndex: errorIndex,
		entries:    make(map[MaterialKey]*materialEntry),
	}, nil
}

// OnFrameStart resets the per-frame cache and the backing atlas.
func (m *MaterialBinder) OnFrameStart(slot uint32) {
	m.mu.Lock()
	m.entries = make(map[MaterialKey]*materialEntry)
	m.mu.Unlock()
	m.atlas.OnFrameStart(slot)
}

// GetOrAllocate resolves the material and returns its atlas element
// index for this frame. Repeated calls with the same key hit the cache.
func (m *MaterialBinder) GetOrAllocate(desc MaterialDesc) (uint32, error) {
	m.mu.Lock()
	if e, ok := m.entries[desc.Key]; ok {
		m.mu.Unlock()
		return e.element, nil
	}
	m.mu.Unlock()

	constants := MaterialConstants{
		BaseColorTextureIndex:         m.resolve(desc.BaseColor),
		NormalTextureIndex:            m.resolve(desc.Normal),
		MetallicRoughnessTextureIndex: m.resolve(desc.MetallicRoughness),
		OcclusionTextureIndex:         m.resolve(desc.Occlusion),
		EmissiveTextureIndex:          m.resolve(desc.Emissive),
		Flags:                         uint32(desc.Domain),
		Alpha:                         desc.Alpha,
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	// A concurrent resolver may have won the race.
	if e, ok := m.entries[desc.Key]; ok {
		return e.element, nil
	}
	element := m.atlas.Allocate()
	if err := m.atlas.Write(element, constants.encode()); err != nil {
		return 0, err
	}
	m.entries[desc.Key] = &materialEntry{
		element:   element,
		constants: constants,
		domain:    desc.Domain,
		alpha:     desc.Alpha,
	}
	return element, nil
}

// resolve maps a texture reference to its shader-visible index, falling
// back to the error index when the reference is absent or the binder
// cannot serve it.
func (m *MaterialBinder) resolve(key TextureKey) uint32 {
	if key == 0 {
		return m.errorIndex
	}
	sv, err := m.textures.GetOrAllocate(key)
	if err != nil {
		oxygen.Logger().Warn("texture reference unresolvable",
			"key", uint64(key), "error", err)
		return m.errorIndex
	}
	return uint32(sv)
}

// Constants returns the resolved constants for an element allocated
// this frame.
func (m *MaterialBinder) Constants(key MaterialKey) (MaterialConstants, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	e, ok := m.entries[key]
	if !ok {
		return MaterialConstants{}, false
	}
	return e.constants, true
}

// Classify returns the material's pass classification inputs for an
// element index minted this frame.
func (m *MaterialBinder) Classify(element uint32) (MaterialDomain, float32, bool) {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, e := range m.entries {
		if e.element == element {
			return e.domain, e.alpha, true
		}
	}
	return DomainOpaque, 0, false
}

// ErrorIndex returns the configured fallback index.
func (m *MaterialBinder) ErrorIndex() uint32 { return m.errorIndex }

// EnsureFrameResources flushes the constants atlas and returns its SRV.
func (m *MaterialBinder) EnsureFrameResources(coord *upload.Coordinator) (bindless.ShaderVisibleIndex, error) {
	return m.atlas.EnsureFrameResources(coord)
}
