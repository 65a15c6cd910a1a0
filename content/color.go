// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import "github.com/chewxy/math32"

// srgbToLinear decodes one sRGB channel to linear.
func srgbToLinear(v float32) float32 {
	if v <= 0.04045 {
		return v / 12.92
	}
	return math32.Pow((v+0.055)/1.055, 2.4)
}

// linearToSrgb encodes one linear channel to sRGB.
func linearToSrgb(v float32) float32 {
	if v <= 0 {
		return 0
	}
	if v <= 0.0031308 {
		return v * 12.92
	}
	return 1.055*math32.Pow(v, 1/2.4) - 0.055
}

// ApplyExposure scales every RGB texel by 2^ev in place. Alpha is left
// untouched. Compressed images are rejected.
func ApplyExposure(img *ScratchImage, ev float32) error {
	scale := math32.Pow(2, ev)
	return mapTexels(img, func(t Texel) Texel {
		t.R *= scale
		t.G *= scale
		t.B *= scale
		return t
	})
}

// TonemapACES applies the fitted ACES curve to every RGB texel in
// place, mapping HDR radiance into [0, 1] for LDR targets.
func TonemapACES(img *ScratchImage) error {
	return mapTexels(img, func(t Texel) Texel {
		t.R = acesFitted(t.R)
		t.G = acesFitted(t.G)
		t.B = acesFitted(t.B)
		return t
	})
}

// acesFitted is the Narkowicz approximation of the ACES filmic curve.
func acesFitted(x float32) float32 {
	const a, b, c, d, e = 2.51, 0.03, 2.43, 0.59, 0.14
	v := (x * (a*x + b)) / (x*(c*x+d) + e)
	if v < 0 {
		return 0
	}
	if v > 1 {
		return 1
	}
	return v
}

func mapTexels(img *ScratchImage, fn func(Texel) Texel) error {
	for slice := uint32(0); slice < img.ArraySize; slice++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			w, h := img.MipDimensions(mip)
			for y := uint32(0); y < h; y++ {
				for x := uint32(0); x < w; x++ {
					t, err := img.Texel(mip, slice, x, y)
					if err != nil {
						return err
					}
					if err := img.SetTexel(mip, slice, x, y, fn(t)); err != nil {
						return err
					}
				}
			}
		}
	}
	return nil
}
