// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"fmt"

	"golang.org/x/sync/errgroup"
)

// BC7Quality selects an encoder effort preset.
type BC7Quality uint8

const (
	BC7QualityFast BC7Quality = iota
	BC7QualityBalanced
	BC7QualityHigh
)

// bc7Params is the tuning tuple a quality preset expands to.
type bc7Params struct {
	maxPartitions   int
	uberLevel       int
	perceptual      bool
	tryLeastSquares bool
}

func (q BC7Quality) params() bc7Params {
	switch q {
	case BC7QualityFast:
		return bc7Params{maxPartitions: 0, uberLevel: 0, perceptual: false, tryLeastSquares: false}
	case BC7QualityHigh:
		return bc7Params{maxPartitions: 64, uberLevel: 4, perceptual: true, tryLeastSquares: true}
	default:
		return bc7Params{maxPartitions: 16, uberLevel: 1, perceptual: true, tryLeastSquares: true}
	}
}

// bc7WeightThreshold is the alpha range above which a block is
// considered alpha-heavy and encoded with mode 5 instead of mode 6.
const bc7AlphaRangeThreshold = 24

type rgba8 struct{ r, g, b, a uint8 }

// EncodeBC7 compresses an RGBA8 image into BC7 blocks, preserving the
// sRGB flag in the output format. Every mip of every slice is encoded;
// block rows run in parallel and the stop token is checked per mip and
// per block row.
func EncodeBC7(ctx context.Context, img *ScratchImage, quality BC7Quality) (*ScratchImage, error) {
	if img.Format != FormatRGBA8Unorm && img.Format != FormatRGBA8UnormSrgb {
		return nil, fmt.Errorf("content: bc7 encoder expects RGBA8 input, got %s", img.Format)
	}
	outFormat := FormatBC7Unorm
	if img.Format.IsSrgb() {
		outFormat = FormatBC7UnormSrgb
	}
	out, err := NewScratchImage(img.Width, img.Height, outFormat, img.MipLevels, img.ArraySize)
	if err != nil {
		return nil, err
	}
	out.IsCubemap = img.IsCubemap
	params := quality.params()

	for slice := uint32(0); slice < img.ArraySize; slice++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			if err := ctx.Err(); err != nil {
				return nil, err
			}
			if err := encodeBC7Surface(ctx, img, out, mip, slice, params); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

func encodeBC7Surface(ctx context.Context, src, dst *ScratchImage, mip, slice uint32, params bc7Params) error {
	w, h := src.MipDimensions(mip)
	blocksX := (w + 3) / 4
	blocksY := (h + 3) / 4
	srcBytes := src.Subresource(mip, slice)
	dstBytes := dst.Subresource(mip, slice)

	var g errgroup.Group
	g.SetLimit(workerLimit())
	for by := uint32(0); by < blocksY; by++ {
		by := by
		g.Go(func() error {
			if err := ctx.Err(); err != nil {
				return err
			}
			for bx := uint32(0); bx < blocksX; bx++ {
				block := extractBlock(srcBytes, w, h, bx, by)
				encoded := encodeBC7Block(&block, params)
				copy(dstBytes[(by*blocksX+bx)*16:], encoded[:])
			}
			return nil
		})
	}
	return g.Wait()
}

// extractBlock gathers a 4x4 texel block, replicating edge texels for
// partial blocks (clamp-to-edge).
func extractBlock(src []byte, w, h, bx, by uint32) [16]rgba8 {
	var out [16]rgba8
	for y := uint32(0); y < 4; y++ {
		sy := by*4 + y
		if sy >= h {
			sy = h - 1
		}
		for x := uint32(0); x < 4; x++ {
			sx := bx*4 + x
			if sx >= w {
				sx = w - 1
			}
			off := (sy*w + sx) * 4
			out[y*4+x] = rgba8{src[off], src[off+1], src[off+2], src[off+3]}
		}
	}
	return out
}

// encodeBC7Block picks mode 5 for alpha-heavy blocks and mode 6
// otherwise.
func encodeBC7Block(block *[16]rgba8, params bc7Params) [16]byte {
	minA, maxA := block[0].a, block[0].a
	for _, p := range block[1:] {
		if p.a < minA {
			minA = p.a
		}
		if p.a > maxA {
			maxA = p.a
		}
	}
	if int(maxA)-int(minA) > bc7AlphaRangeThreshold {
		return encodeMode5(block, params)
	}
	return encodeMode6(block, params)
}

var bc7Weights4 = [16]int{0, 4, 9, 13, 17, 21, 26, 30, 34, 38, 43, 47, 51, 55, 60, 64}
var bc7Weights2 = [4]int{0, 21, 43, 64}

func bc7Lerp(e0, e1 uint8, weight int) uint8 {
	return uint8((int(e0)*(64-weight) + int(e1)*weight + 32) >> 6)
}

// channelError weights the squared difference perceptually when asked.
func channelError(d [4]int, perceptual bool) int {
	if perceptual {
		return 2*d[0]*d[0] + 4*d[1]*d[1] + d[2]*d[2] + 3*d[3]*d[3]
	}
	return d[0]*d[0] + d[1]*d[1] + d[2]*d[2] + d[3]*d[3]
}

type bitWriter struct {
	out [16]byte
	pos uint
}

func (w *bitWriter) write(v uint32, bits uint) {
	for i := uint(0); i < bits; i++ {
		if v&(1<<i) != 0 {
			w.out[w.pos>>3] |= 1 << (w.pos & 7)
		}
		w.pos++
	}
}

// boundsEndpoints derives endpoints from the block's RGBA bounding box,
// then optionally refines them with a least-squares fit against the
// chosen indices. refine rounds come from the uber level.
func boundsEndpoints(block *[16]rgba8) (lo, hi rgba8) {
	lo, hi = block[0], block[0]
	for _, p := range block[1:] {
		if p.r < lo.r {
			lo.r = p.r
		}
		if p.g < lo.g {
			lo.g = p.g
		}
		if p.b < lo.b {
			lo.b = p.b
		}
		if p.a < lo.a {
			lo.a = p.a
		}
		if p.r > hi.r {
			hi.r = p.r
		}
		if p.g > hi.g {
			hi.g = p.g
		}
		if p.b > hi.b {
			hi.b = p.b
		}
		if p.a > hi.a {
			hi.a = p.a
		}
	}
	return lo, hi
}

// quant7 quantizes an 8-bit value to 7 bits; the dropped low bit rides
// in the p-bit.
func quant7(v uint8) uint8 {
	return v >> 1
}

// refineEndpoints solves the 1D least-squares fit of new endpoints to
// the block given the current palette weights. Returns ok=false when
// every pixel landed on the same index (degenerate system).
func refineEndpoints(block *[16]rgba8, indices [16]uint8) (e0, e1 rgba8, ok bool) {
	var sumW, sumWW float32
	var sumP, sumWP [4]float32
	for i, p := range block {
		w := float32(bc7Weights4[indices[i]]) / 64
		px := [4]float32{float32(p.r), float32(p.g), float32(p.b), float32(p.a)}
		sumW += w
		sumWW += w * w
		for c := 0; c < 4; c++ {
			sumP[c] += px[c]
			sumWP[c] += w * px[c]
		}
	}
	n := float32(len(block))
	det := n*sumWW - sumW*sumW
	if det < 1e-4 {
		return rgba8{}, rgba8{}, false
	}
	clamp255 := func(v float32) uint8 {
		if v <= 0 {
			return 0
		}
		if v >= 255 {
			return 255
		}
		return uint8(v + 0.5)
	}
	var lo, hi [4]uint8
	for c := 0; c < 4; c++ {
		// p_i ~ e0 + (e1-e0) * w_i
		slope := (n*sumWP[c] - sumW*sumP[c]) / det
		base := (sumP[c] - slope*sumW) / n
		lo[c] = clamp255(base)
		hi[c] = clamp255(base + slope)
	}
	return rgba8{lo[0], lo[1], lo[2], lo[3]}, rgba8{hi[0], hi[1], hi[2], hi[3]}, true
}

// dequant7 expands a 7-bit endpoint and p-bit back to 8 bits.
func dequant7(q uint8, pbit uint32) uint8 {
	return uint8(uint32(q)<<1 | pbit)
}

// encodeMode6 writes a single-subset RGBA 7.7.7.7 block with per
// endpoint p-bits and 4-bit indices.
func encodeMode6(block *[16]rgba8, params bc7Params) [16]byte {
	lo, hi := boundsEndpoints(block)

	// P-bits carry the dropped low bit; take it from the endpoint.
	p0 := uint32(lo.r & 1)
	p1 := uint32(hi.r & 1)

	q0 := rgba8{quant7(lo.r), quant7(lo.g), quant7(lo.b), quant7(lo.a)}
	q1 := rgba8{quant7(hi.r), quant7(hi.g), quant7(hi.b), quant7(hi.a)}

	indices := selectIndices4(block, q0, q1, p0, p1, params)
	if params.tryLeastSquares {
		for round := 0; round <= params.uberLevel; round++ {
			r0, r1, ok := refineEndpoints(block, indices)
			if !ok {
				break
			}
			n0 := rgba8{quant7(r0.r), quant7(r0.g), quant7(r0.b), quant7(r0.a)}
			n1 := rgba8{quant7(r1.r), quant7(r1.g), quant7(r1.b), quant7(r1.a)}
			if n0 == q0 && n1 == q1 {
				break
			}
			q0, q1 = n0, n1
			p0, p1 = uint32(r0.r&1), uint32(r1.r&1)
			indices = selectIndices4(block, q0, q1, p0, p1, params)
		}
	}

	// Anchor constraint: the first index must have its high bit clear.
	if indices[0] >= 8 {
		q0, q1 = q1, q0
		p0, p1 = p1, p0
		for i := range indices {
			indices[i] = 15 - indices[i]
		}
	}

	var w bitWriter
	w.write(1<<6, 7) // mode 6
	w.write(uint32(q0.r), 7)
	w.write(uint32(q1.r), 7)
	w.write(uint32(q0.g), 7)
	w.write(uint32(q1.g), 7)
	w.write(uint32(q0.b), 7)
	w.write(uint32(q1.b), 7)
	w.write(uint32(q0.a), 7)
	w.write(uint32(q1.a), 7)
	w.write(p0, 1)
	w.write(p1, 1)
	w.write(uint32(indices[0]), 3) // anchor drops the high bit
	for _, idx := range indices[1:] {
		w.write(uint32(idx), 4)
	}
	return w.out
}

func selectIndices4(block *[16]rgba8, q0, q1 rgba8, p0, p1 uint32, params bc7Params) [16]uint8 {
	e0 := rgba8{dequant7(q0.r, p0), dequant7(q0.g, p0), dequant7(q0.b, p0), dequant7(q0.a, p0)}
	e1 := rgba8{dequant7(q1.r, p1), dequant7(q1.g, p1), dequant7(q1.b, p1), dequant7(q1.a, p1)}

	var palette [16]rgba8
	for i, weight := range bc7Weights4 {
		palette[i] = rgba8{
			bc7Lerp(e0.r, e1.r, weight),
			bc7Lerp(e0.g, e1.g, weight),
			bc7Lerp(e0.b, e1.b, weight),
			bc7Lerp(e0.a, e1.a, weight),
		}
	}
	var out [16]uint8
	for i, p := range block {
		best, bestErr := 0, int(^uint(0)>>1)
		for j, c := range palette {
			d := [4]int{
				int(p.r) - int(c.r),
				int(p.g) - int(c.g),
				int(p.b) - int(c.b),
				int(p.a) - int(c.a),
			}
			if e := channelError(d, params.perceptual); e < bestErr {
				best, bestErr = j, e
			}
		}
		out[i] = uint8(best)
	}
	return out
}

// encodeMode5 writes a single-subset block with separate 2-bit color
// and alpha indices, suited to blocks with strong alpha gradients.
// Rotation 0 keeps alpha in the alpha channel.
func encodeMode5(block *[16]rgba8, params bc7Params) [16]byte {
	lo, hi := boundsEndpoints(block)

	c0 := rgba8{r: lo.r >> 1, g: lo.g >> 1, b: lo.b >> 1}
	c1 := rgba8{r: hi.r >> 1, g: hi.g >> 1, b: hi.b >> 1}
	a0, a1 := lo.a, hi.a

	colorIdx, alphaIdx := selectIndices2(block, c0, c1, a0, a1, params)

	if colorIdx[0] >= 2 {
		c0, c1 = c1, c0
		for i := range colorIdx {
			colorIdx[i] = 3 - colorIdx[i]
		}
	}
	if alphaIdx[0] >= 2 {
		a0, a1 = a1, a0
		for i := range alphaIdx {
			alphaIdx[i] = 3 - alphaIdx[i]
		}
	}

	var w bitWriter
	w.write(1<<5, 6) // mode 5
	w.write(0, 2)    // rotation
	w.write(uint32(c0.r), 7)
	w.write(uint32(c1.r), 7)
	w.write(uint32(c0.g), 7)
	w.write(uint32(c1.g), 7)
	w.write(uint32(c0.b), 7)
	w.write(uint32(c1.b), 7)
	w.write(uint32(a0), 8)
	w.write(uint32(a1), 8)
	w.write(uint32(colorIdx[0]), 1)
	for _, idx := range colorIdx[1:] {
		w.write(uint32(idx), 2)
	}
	w.write(uint32(alphaIdx[0]), 1)
	for _, idx := range alphaIdx[1:] {
		w.write(uint32(idx), 2)
	}
	return w.out
}

func selectIndices2(block *[16]rgba8, c0, c1 rgba8, a0, a1 uint8, params bc7Params) (color, alpha [16]uint8) {
	// 7-bit endpoints expand with bit replication.
	e0 := rgba8{r: c0.r<<1 | c0.r>>6, g: c0.g<<1 | c0.g>>6, b: c0.b<<1 | c0.b>>6}
	e1 := rgba8{r: c1.r<<1 | c1.r>>6, g: c1.g<<1 | c1.g>>6, b: c1.b<<1 | c1.b>>6}

	var colorPal [4]rgba8
	var alphaPal [4]uint8
	for i, weight := range bc7Weights2 {
		colorPal[i] = rgba8{
			r: bc7Lerp(e0.r, e1.r, weight),
			g: bc7Lerp(e0.g, e1.g, weight),
			b: bc7Lerp(e0.b, e1.b, weight),
		}
		alphaPal[i] = bc7Lerp(a0, a1, weight)
	}
	for i, p := range block {
		best, bestErr := 0, int(^uint(0)>>1)
		for j, c := range colorPal {
			d := [4]int{int(p.r) - int(c.r), int(p.g) - int(c.g), int(p.b) - int(c.b), 0}
			if e := channelError(d, params.perceptual); e < bestErr {
				best, bestErr = j, e
			}
		}
		color[i] = uint8(best)

		best, bestErr = 0, int(^uint(0)>>1)
		for j, av := range alphaPal {
			d := int(p.a) - int(av)
			if e := d * d; e < bestErr {
				best, bestErr = j, e
			}
		}
		alpha[i] = uint8(best)
	}
	return color, alpha
}
