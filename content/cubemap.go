// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"fmt"

	"github.com/chewxy/math32"
)

// Cube faces in canonical order: +X, -X, +Y, -Y, +Z, -Z.
const (
	FacePositiveX = iota
	FaceNegativeX
	FacePositiveY
	FaceNegativeY
	FacePositiveZ
	FaceNegativeZ
	FaceCount
)

// AssembleCubemap builds a six-slice cubemap from individual faces in
// canonical order. Every face must be square, share extent and format,
// and carry a single mip.
func AssembleCubemap(faces *[FaceCount]*ScratchImage) (*ScratchImage, error) {
	first := faces[0]
	if first == nil {
		return nil, fmt.Errorf("content: cubemap face 0 missing")
	}
	if first.Width != first.Height {
		return nil, fmt.Errorf("content: cubemap faces must be square, got %dx%d", first.Width, first.Height)
	}
	out, err := NewScratchImage(first.Width, first.Height, first.Format, 1, FaceCount)
	if err != nil {
		return nil, err
	}
	out.IsCubemap = true
	for i, face := range faces {
		if face == nil {
			return nil, fmt.Errorf("content: cubemap face %d missing", i)
		}
		if face.Width != first.Width || face.Height != first.Height || face.Format != first.Format {
			return nil, fmt.Errorf("content: cubemap face %d mismatches face 0 (%dx%d %s vs %dx%d %s)",
				i, face.Width, face.Height, face.Format, first.Width, first.Height, first.Format)
		}
		if err := out.SetSubresource(0, uint32(i), face.Subresource(0, 0)); err != nil {
			return nil, err
		}
	}
	return out, nil
}

// EquirectToCubemap projects an equirectangular panorama onto six cube
// faces of the given edge length. ctx is checked per face.
func EquirectToCubemap(ctx context.Context, src *ScratchImage, edge uint32) (*ScratchImage, error) {
	if src.Format.IsCompressed() {
		return nil, fmt.Errorf("content: cannot project compressed format %s", src.Format)
	}
	if edge == 0 {
		return nil, fmt.Errorf("content: zero cubemap edge")
	}
	out, err := NewScratchImage(edge, edge, src.Format, 1, FaceCount)
	if err != nil {
		return nil, err
	}
	out.IsCubemap = true

	for face := uint32(0); face < FaceCount; face++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		for y := uint32(0); y < edge; y++ {
			for x := uint32(0); x < edge; x++ {
				// Face texel to direction, then direction to spherical
				// panorama coordinates.
				u := (float32(x)+0.5)/float32(edge)*2 - 1
				v := (float32(y)+0.5)/float32(edge)*2 - 1
				dx, dy, dz := faceDirection(face, u, v)
				inv := 1 / math32.Sqrt(dx*dx+dy*dy+dz*dz)

				theta := math32.Atan2(dx, -dz)
				phi := math32.Asin(dy * inv)
				sx := (theta/math32.Pi + 1) / 2 * float32(src.Width)
				sy := (0.5 - phi/math32.Pi) * float32(src.Height)

				px := clampInt(int(sx), 0, int(src.Width)-1)
				py := clampInt(int(sy), 0, int(src.Height)-1)
				t, err := src.Texel(0, 0, uint32(px), uint32(py))
				if err != nil {
					return nil, err
				}
				if err := out.SetTexel(0, face, x, y, t); err != nil {
					return nil, err
				}
			}
		}
	}
	return out, nil
}

// faceDirection maps face-local (u, v) in [-1, 1] to a world direction
// using the D3D cubemap face basis.
func faceDirection(face uint32, u, v float32) (x, y, z float32) {
	switch face {
	case FacePositiveX:
		return 1, -v, -u
	case FaceNegativeX:
		return -1, -v, u
	case FacePositiveY:
		return u, 1, v
	case FaceNegativeY:
		return u, -1, -v
	case FacePositiveZ:
		return u, -v, 1
	default:
		return -u, -v, -1
	}
}
