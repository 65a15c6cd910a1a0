// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package renderer

import (
	"encoding/binary"
	"math"
	"sync"

	"github.com/chewxy/math32"

	"github.com/abdes/oxygen/bindless"
	"github.com/abdes/oxygen/upload"
)

// Float4x4 is a row-major 4x4 float32 matrix.
type Float4x4 [16]float32

// Identity4x4 returns the identity matrix.
func Identity4x4() Float4x4 {
	return Float4x4{
		1, 0, 0, 0,
		0, 1, 0, 0,
		0, 0, 1, 0,
		0, 0, 0, 1,
	}
}

// Translation returns a translation matrix.
func Translation(x, y, z float32) Float4x4 {
	m := Identity4x4()
	m[3], m[7], m[11] = x, y, z
	return m
}

// Scale returns a scale matrix.
func Scale(x, y, z float32) Float4x4 {
	m := Identity4x4()
	m[0], m[5], m[10] = x, y, z
	return m
}

// Mul returns m * o.
func (m Float4x4) Mul(o Float4x4) Float4x4 {
	var out Float4x4
	for r := 0; r < 4; r++ {
		for c := 0; c < 4; c++ {
			var sum float32
			for k := 0; k < 4; k++ {
				sum += m[r*4+k] * o[k*4+c]
			}
			out[r*4+c] = sum
		}
	}
	return out
}

// NormalMatrix returns the inverse-transpose of the upper 3x3, embedded
// in a 4x4 for constant-buffer alignment. Singular or near-singular
// matrices fall back to the plain upper 3x3, which is exact for rigid
// transforms anyway.
func (m Float4x4) NormalMatrix() Float4x4 {
	a, b, c := m[0], m[1], m[2]
	d, e, f := m[4], m[5], m[6]
	g, h, i := m[8], m[9], m[10]

	ca := e*i - f*h
	cb := f*g - d*i
	cc := d*h - e*g
	det := a*ca + b*cb + c*cc

	out := Identity4x4()
	if math32.Abs(det) < 1e-12 {
		out[0], out[1], out[2] = a, b, c
		out[4], out[5], out[6] = d, e, f
		out[8], out[9], out[10] = g, h, i
		return out
	}
	inv := 1 / det
	// Inverse of the 3x3 is adjugate/det; transposing swaps rows and
	// columns, so write cofactors row-major directly.
	out[0] = ca * inv
	out[1] = cb * inv
	out[2] = cc * inv
	out[4] = (c*h - b*i) * inv
	out[5] = (a*i - c*g) * inv
	out[6] = (b*g - a*h) * inv
	out[8] = (b*f - c*e) * inv
	out[9] = (c*d - a*f) * inv
	out[10] = (a*e - b*d) * inv
	return out
}

func (m Float4x4) encodeInto(buf []byte) {
	for i, v := range m {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(v))
	}
}

// TransformHandle indexes a transform pair in the frame's atlas.
type TransformHandle uint32

// TransformStride is the GPU-side size of one transform record: the
// world matrix followed by its normal matrix.
const TransformStride = 128

// TransformUploader stores per-draw world matrices and their derived
// normal matrices in an atlas. Allocation is a monotonic cursor, so
// within a frame the Nth allocation always yields handle N; frames with
// matching allocation order produce matching handles.
type TransformUploader struct {
	atlas *AtlasBuffer

	mu    sync.Mutex
	count uint32
}

// NewTransformUploader wraps an atlas whose stride fits a transform
// record.
func NewTransformUploader(atlas *AtlasBuffer) (*TransformUploader, error) {
	if atlas.Stride() < TransformStride {
		return nil, errAtlasStride("transform", atlas.Stride(), TransformStride)
	}
	return &TransformUploader{atlas: atlas}, nil
}

// OnFrameStart resets the allocation cursor.
func (u *TransformUploader) OnFrameStart(slot uint32) {
	u.mu.Lock()
	u.count = 0
	u.mu.Unlock()
	u.atlas.OnFrameStart(slot)
}

// Upload stores world and its normal matrix, returning the handle.
func (u *TransformUploader) Upload(world Float4x4) (TransformHandle, error) {
	buf := make([]byte, TransformStride)
	world.encodeInto(buf[:64])
	world.NormalMatrix().encodeInto(buf[64:])

	u.mu.Lock()
	defer u.mu.Unlock()
	element := u.atlas.Allocate()
	if err := u.atlas.Write(element, buf); err != nil {
		return 0, err
	}
	u.count++
	return TransformHandle(element), nil
}

// Count returns the number of transforms uploaded this frame.
func (u *TransformUploader) Count() uint32 {
	u.mu.Lock()
	defer u.mu.Unlock()
	return u.count
}

// EnsureFrameResources flushes the atlas and returns its SRV index.
func (u *TransformUploader) EnsureFrameResources(coord *upload.Coordinator) (bindless.ShaderVisibleIndex, error) {
	return u.atlas.EnsureFrameResources(coord)
}
