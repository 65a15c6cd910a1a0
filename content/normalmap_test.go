// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestInvertGreen(t *testing.T) {
	img, err := NewScratchImage(1, 1, FormatRGBA8Unorm, 1, 1)
	if err != nil {
		t.Fatalf("NewScratchImage: %v", err)
	}
	if err := img.SetTexel(0, 0, 0, 0, Texel{R: 0.5, G: 0.25, B: 1, A: 1}); err != nil {
		t.Fatalf("SetTexel: %v", err)
	}
	if err := InvertGreen(img); err != nil {
		t.Fatalf("InvertGreen: %v", err)
	}
	got, err := img.Texel(0, 0, 0, 0)
	if err != nil {
		t.Fatalf("Texel: %v", err)
	}
	if math32.Abs(got.G-0.75) > 0.01 {
		t.Errorf("expected green 0.75, got %v", got.G)
	}
	if math32.Abs(got.R-0.5) > 0.01 || math32.Abs(got.B-1) > 0.01 {
		t.Errorf("expected red and blue untouched, got %+v", got)
	}
}

func TestRenormalizeNormals(t *testing.T) {
	img, err := NewScratchImage(2, 1, FormatRGBA8Unorm, 1, 1)
	if err != nil {
		t.Fatalf("NewScratchImage: %v", err)
	}
	// An unnormalized diagonal and the degenerate zero vector.
	if err := img.SetTexel(0, 0, 0, 0, Texel{R: 1, G: 1, B: 1, A: 1}); err != nil {
		t.Fatalf("SetTexel: %v", err)
	}
	if err := img.SetTexel(0, 0, 1, 0, Texel{R: 0.5, G: 0.5, B: 0.5, A: 1}); err != nil {
		t.Fatalf("SetTexel: %v", err)
	}
	if err := RenormalizeNormals(img); err != nil {
		t.Fatalf("RenormalizeNormals: %v", err)
	}

	got, err := img.Texel(0, 0, 0, 0)
	if err != nil {
		t.Fatalf("Texel: %v", err)
	}
	nx, ny, nz := got.R*2-1, got.G*2-1, got.B*2-1
	length := math32.Sqrt(nx*nx + ny*ny + nz*nz)
	if math32.Abs(length-1) > 0.02 {
		t.Errorf("expected unit normal, got length %v", length)
	}

	flat, err := img.Texel(0, 0, 1, 0)
	if err != nil {
		t.Fatalf("Texel: %v", err)
	}
	// The zero vector renormalizes to the flat +Z normal (0.5, 0.5, 1).
	if math32.Abs(flat.R-0.5) > 0.01 || math32.Abs(flat.G-0.5) > 0.01 || math32.Abs(flat.B-1) > 0.01 {
		t.Errorf("expected flat normal fallback, got %+v", flat)
	}
}
