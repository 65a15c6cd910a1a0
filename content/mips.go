// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"fmt"

	"github.com/chewxy/math32"
	"golang.org/x/sync/errgroup"
)

// MipFilter selects the downsampling kernel.
type MipFilter uint8

const (
	FilterBox MipFilter = iota
	FilterKaiser
	FilterLanczos
)

// String returns the lowercase filter name.
func (f MipFilter) String() string {
	switch f {
	case FilterBox:
		return "box"
	case FilterKaiser:
		return "kaiser"
	case FilterLanczos:
		return "lanczos"
	}
	return "unknown"
}

// ComputeMipCount returns the full chain length for an extent:
// floor(log2(max(w,h))) + 1, clamped to maxLevels when nonzero.
func ComputeMipCount(width, height, maxLevels uint32) uint32 {
	d := width
	if height > d {
		d = height
	}
	if d == 0 {
		return 0
	}
	count := uint32(1)
	for d > 1 {
		d >>= 1
		count++
	}
	if maxLevels != 0 && count > maxLevels {
		return maxLevels
	}
	return count
}

// ComputeMipDimension returns max(1, base >> mip).
func ComputeMipDimension(base, mip uint32) uint32 {
	d := base >> mip
	if d == 0 {
		return 1
	}
	return d
}

// GenerateMips builds the full mip chain for img in place, filtering in
// linear space: sRGB content is linearized by the texel accessors
// before filtering and re-encoded on write. The returned image shares
// mip 0 with the input. ctx is checked per mip and per row batch.
func GenerateMips(ctx context.Context, img *ScratchImage, filter MipFilter, maxLevels uint32) (*ScratchImage, error) {
	if img.Format.IsCompressed() {
		return nil, fmt.Errorf("content: cannot generate mips for compressed format %s", img.Format)
	}
	mips := ComputeMipCount(img.Width, img.Height, maxLevels)
	out, err := NewScratchImage(img.Width, img.Height, img.Format, mips, img.ArraySize)
	if err != nil {
		return nil, err
	}
	out.IsCubemap = img.IsCubemap

	for slice := uint32(0); slice < img.ArraySize; slice++ {
		if err := out.SetSubresource(0, slice, img.Subresource(0, slice)); err != nil {
			return nil, err
		}
		for mip := uint32(1); mip < mips; mip++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := downsample(ctx, out, mip, slice, filter); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// downsample fills (mip, slice) from (mip-1, slice). Rows run in
// parallel; the kernel reads the source in linear space.
func downsample(ctx context.Context, img *ScratchImage, mip, slice uint32, filter MipFilter) error {
	srcW, srcH := img.MipDimensions(mip - 1)
	dstW, dstH := img.MipDimensions(mip)

	var g errgroup.Group
	g.SetLimit(workerLimit())
	for y := uint32(0); y < dstH; y++ {
		y := y
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for x := uint32(0); x < dstW; x++ {
				t := samplePixel(img, mip-1, slice, srcW, srcH, x, y, dstW, dstH, filter)
				if err := img.SetTexel(mip, slice, x, y, t); err != nil {
					return err
				}
			}
			return nil
		})
	}
	return g.Wait()
}

// samplePixel evaluates the chosen kernel over the source footprint of
// destination texel (x, y).
func samplePixel(img *ScratchImage, srcMip, slice, srcW, srcH, x, y, dstW, dstH uint32, filter MipFilter) Texel {
	scaleX := float32(srcW) / float32(dstW)
	scaleY := float32(srcH) / float32(dstH)
	centerX := (float32(x) + 0.5) * scaleX
	centerY := (float32(y) + 0.5) * scaleY

	support := filterSupport(filter)
	radiusX := support * scaleX
	radiusY := support * scaleY

	x0 := int(math32.Floor(centerX - radiusX))
	x1 := int(math32.Ceil(centerX + radiusX))
	y0 := int(math32.Floor(centerY - radiusY))
	y1 := int(math32.Ceil(centerY + radiusY))

	var sum Texel
	var weight float32
	for sy := y0; sy < y1; sy++ {
		cy := clampInt(sy, 0, int(srcH)-1)
		wy := filterWeight(filter, (float32(sy)+0.5-centerY)/scaleY)
		if wy == 0 {
			continue
		}
		for sx := x0; sx < x1; sx++ {
			cx := clampInt(sx, 0, int(srcW)-1)
			wx := filterWeight(filter, (float32(sx)+0.5-centerX)/scaleX)
			if wx == 0 {
				continue
			}
			w := wx * wy
			t, _ := img.Texel(srcMip, slice, uint32(cx), uint32(cy))
			sum.R += t.R * w
			sum.G += t.G * w
			sum.B += t.B * w
			sum.A += t.A * w
			weight += w
		}
	}
	if weight != 0 {
		inv := 1 / weight
		sum.R *= inv
		sum.G *= inv
		sum.B *= inv
		sum.A *= inv
	}
	return sum
}

func filterSupport(f MipFilter) float32 {
	switch f {
	case FilterKaiser:
		return 3
	case FilterLanczos:
		return 3
	default:
		return 0.5
	}
}

func filterWeight(f MipFilter, x float32) float32 {
	switch f {
	case FilterKaiser:
		return kaiserWeight(x, 3, 4)
	case FilterLanczos:
		return lanczosWeight(x, 3)
	default:
		if x >= -0.5 && x < 0.5 {
			return 1
		}
		return 0
	}
}

// kaiserWeight is a sinc windowed by the Kaiser function with shape
// parameter beta over [-support, support].
func kaiserWeight(x, support, beta float32) float32 {
	if x < -support || x > support {
		return 0
	}
	t := x / support
	window := besselI0(beta*math32.Sqrt(1-t*t)) / besselI0(beta)
	return sinc(x) * window
}

func lanczosWeight(x, a float32) float32 {
	if x < -a || x > a {
		return 0
	}
	return sinc(x) * sinc(x/a)
}

func sinc(x float32) float32 {
	if math32.Abs(x) < 1e-6 {
		return 1
	}
	px := math32.Pi * x
	return math32.Sin(px) / px
}

// besselI0 is the modified Bessel function of the first kind, order
// zero, evaluated by its power series. Converges quickly for the small
// arguments the Kaiser window produces.
func besselI0(x float32) float32 {
	sum := float32(1)
	term := float32(1)
	half := x / 2
	for k := float32(1); k < 24; k++ {
		term *= (half / k) * (half / k)
		sum += term
		if term < 1e-8*sum {
			break
		}
	}
	return sum
}

func clampInt(v, lo, hi int) int {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}
