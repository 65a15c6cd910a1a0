// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"testing"

	"github.com/chewxy/math32"
)

func TestApplyExposure(t *testing.T) {
	img, err := NewScratchImage(1, 1, FormatRGBA32Float, 1, 1)
	if err != nil {
		t.Fatalf("NewScratchImage: %v", err)
	}
	if err := img.SetTexel(0, 0, 0, 0, Texel{R: 0.5, G: 1, B: 2, A: 0.75}); err != nil {
		t.Fatalf("SetTexel: %v", err)
	}

	if err := ApplyExposure(img, 1); err != nil {
		t.Fatalf("ApplyExposure: %v", err)
	}
	got, err := img.Texel(0, 0, 0, 0)
	if err != nil {
		t.Fatalf("Texel: %v", err)
	}
	if got.R != 1 || got.G != 2 || got.B != 4 {
		t.Errorf("expected (1, 2, 4), got (%v, %v, %v)", got.R, got.G, got.B)
	}
	if got.A != 0.75 {
		t.Errorf("expected alpha untouched, got %v", got.A)
	}
}

func TestTonemapACES(t *testing.T) {
	img, err := NewScratchImage(3, 1, FormatRGBA32Float, 1, 1)
	if err != nil {
		t.Fatalf("NewScratchImage: %v", err)
	}
	inputs := []float32{0, 1, 100}
	for i, v := range inputs {
		if err := img.SetTexel(0, 0, uint32(i), 0, Texel{R: v, G: v, B: v, A: 1}); err != nil {
			t.Fatalf("SetTexel: %v", err)
		}
	}
	if err := TonemapACES(img); err != nil {
		t.Fatalf("TonemapACES: %v", err)
	}

	var got [3]float32
	for i := range got {
		texel, err := img.Texel(0, 0, uint32(i), 0)
		if err != nil {
			t.Fatalf("Texel: %v", err)
		}
		got[i] = texel.R
	}
	if got[0] != 0 {
		t.Errorf("expected black to stay black, got %v", got[0])
	}
	if got[1] <= 0 || got[1] >= 1 {
		t.Errorf("expected mid radiance inside (0, 1), got %v", got[1])
	}
	if got[2] < got[1] || got[2] > 1 {
		t.Errorf("expected bright radiance to approach 1 monotonically, got %v then %v", got[1], got[2])
	}
}

func TestSrgbRoundTrip(t *testing.T) {
	for _, v := range []float32{0, 0.001, 0.2, 0.5, 0.9, 1} {
		back := srgbToLinear(linearToSrgb(v))
		if math32.Abs(back-v) > 1e-4 {
			t.Errorf("sRGB round trip of %v drifted to %v", v, back)
		}
	}
}

func TestScratchImageSrgbTexelIO(t *testing.T) {
	img, err := NewScratchImage(1, 1, FormatRGBA8UnormSrgb, 1, 1)
	if err != nil {
		t.Fatalf("NewScratchImage: %v", err)
	}
	want := Texel{R: 0.25, G: 0.5, B: 0.75, A: 0.5}
	if err := img.SetTexel(0, 0, 0, 0, want); err != nil {
		t.Fatalf("SetTexel: %v", err)
	}
	got, err := img.Texel(0, 0, 0, 0)
	if err != nil {
		t.Fatalf("Texel: %v", err)
	}
	// Linear values survive the encode/decode through 8-bit sRGB.
	if math32.Abs(got.R-want.R) > 0.01 || math32.Abs(got.G-want.G) > 0.01 || math32.Abs(got.B-want.B) > 0.01 {
		t.Errorf("expected %+v, got %+v", want, got)
	}
	// Alpha stays linear.
	if math32.Abs(got.A-want.A) > 0.01 {
		t.Errorf("expected linear alpha %v, got %v", want.A, got.A)
	}
}
