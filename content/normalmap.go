// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import "github.com/chewxy/math32"

// InvertGreen flips the G channel of every texel in place, converting
// between OpenGL and DirectX normal-map conventions.
func InvertGreen(img *ScratchImage) error {
	return mapTexels(img, func(t Texel) Texel {
		t.G = 1 - t.G
		return t
	})
}

// RenormalizeNormals rescales every texel of every mip so the decoded
// vector is unit length again. Filtering shortens averaged normals;
// this restores them. Texels decode as n = 2*rgb - 1.
func RenormalizeNormals(img *ScratchImage) error {
	return mapTexels(img, func(t Texel) Texel {
		nx := t.R*2 - 1
		ny := t.G*2 - 1
		nz := t.B*2 - 1
		length := math32.Sqrt(nx*nx + ny*ny + nz*nz)
		if length < 1e-6 {
			return Texel{R: 0.5, G: 0.5, B: 1, A: t.A}
		}
		inv := 1 / length
		return Texel{
			R: (nx*inv + 1) / 2,
			G: (ny*inv + 1) / 2,
			B: (nz*inv + 1) / 2,
			A: t.A,
		}
	})
}
