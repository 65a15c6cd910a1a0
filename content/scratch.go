// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"fmt"
	"math"

	"github.com/x448/float16"
)

// PixelFormat enumerates the working and cooked formats the importer
// understands.
type PixelFormat uint8

const (
	FormatUnknown PixelFormat = iota
	FormatRGBA8Unorm
	FormatRGBA8UnormSrgb
	FormatRGBA16Float
	FormatRGBA32Float
	FormatBC7Unorm
	FormatBC7UnormSrgb
)

// String returns the canonical format name.
func (f PixelFormat) String() string {
	switch f {
	case FormatRGBA8Unorm:
		return "RGBA8_UNORM"
	case FormatRGBA8UnormSrgb:
		return "RGBA8_UNORM_SRGB"
	case FormatRGBA16Float:
		return "RGBA16_FLOAT"
	case FormatRGBA32Float:
		return "RGBA32_FLOAT"
	case FormatBC7Unorm:
		return "BC7_UNORM"
	case FormatBC7UnormSrgb:
		return "BC7_UNORM_SRGB"
	}
	return "UNKNOWN"
}

// BytesPerTexel returns the per-texel size for uncompressed formats and
// zero for block-compressed ones.
func (f PixelFormat) BytesPerTexel() uint32 {
	switch f {
	case FormatRGBA8Unorm, FormatRGBA8UnormSrgb:
		return 4
	case FormatRGBA16Float:
		return 8
	case FormatRGBA32Float:
		return 16
	}
	return 0
}

// IsCompressed reports whether f is block-compressed.
func (f PixelFormat) IsCompressed() bool {
	return f == FormatBC7Unorm || f == FormatBC7UnormSrgb
}

// IsSrgb reports whether texels are sRGB-encoded.
func (f PixelFormat) IsSrgb() bool {
	return f == FormatRGBA8UnormSrgb || f == FormatBC7UnormSrgb
}

// IsHDR reports whether texels carry float data.
func (f PixelFormat) IsHDR() bool {
	return f == FormatRGBA16Float || f == FormatRGBA32Float
}

// RowPitchBytes returns the unpadded row size for width texels. BC7
// rows are block rows: 16 bytes per 4x4 block.
func (f PixelFormat) RowPitchBytes(width uint32) uint32 {
	if f.IsCompressed() {
		return ((width + 3) / 4) * 16
	}
	return width * f.BytesPerTexel()
}

// RowCount returns the number of stored rows for height texels.
func (f PixelFormat) RowCount(height uint32) uint32 {
	if f.IsCompressed() {
		return (height + 3) / 4
	}
	return height
}

// SurfaceSizeBytes returns the packed byte size of one subresource.
func (f PixelFormat) SurfaceSizeBytes(width, height uint32) uint32 {
	return f.RowPitchBytes(width) * f.RowCount(height)
}

// Texel is a linear RGBA value.
type Texel struct {
	R, G, B, A float32
}

// ScratchImage is the importer's working representation: metadata plus
// one packed byte slice per subresource, addressed slice-major then
// mip.
type ScratchImage struct {
	Width     uint32
	Height    uint32
	Format    PixelFormat
	MipLevels uint32
	// ArraySize counts slices; cubemaps use 6 with IsCubemap set.
	ArraySize uint32
	IsCubemap bool

	subresources [][]byte
}

// NewScratchImage allocates zeroed storage for every subresource.
func NewScratchImage(width, height uint32, format PixelFormat, mips, arraySize uint32) (*ScratchImage, error) {
	if width == 0 || height == 0 {
		return nil, fmt.Errorf("content: zero image extent %dx%d", width, height)
	}
	if mips == 0 {
		mips = 1
	}
	if arraySize == 0 {
		arraySize = 1
	}
	img := &ScratchImage{
		Width:        width,
		Height:       height,
		Format:       format,
		MipLevels:    mips,
		ArraySize:    arraySize,
		subresources: make([][]byte, mips*arraySize),
	}
	for slice := uint32(0); slice < arraySize; slice++ {
		for mip := uint32(0); mip < mips; mip++ {
			w := ComputeMipDimension(width, mip)
			h := ComputeMipDimension(height, mip)
			img.subresources[slice*mips+mip] = make([]byte, format.SurfaceSizeBytes(w, h))
		}
	}
	return img, nil
}

// Subresource returns the packed bytes for (mip, slice).
func (s *ScratchImage) Subresource(mip, slice uint32) []byte {
	return s.subresources[slice*s.MipLevels+mip]
}

// SetSubresource replaces the packed bytes for (mip, slice). The data
// length must match the subresource's packed size.
func (s *ScratchImage) SetSubresource(mip, slice uint32, data []byte) error {
	w := ComputeMipDimension(s.Width, mip)
	h := ComputeMipDimension(s.Height, mip)
	if want := s.Format.SurfaceSizeBytes(w, h); uint32(len(data)) != want {
		return fmt.Errorf("content: subresource (%d,%d) expects %d bytes, got %d", mip, slice, want, len(data))
	}
	s.subresources[slice*s.MipLevels+mip] = data
	return nil
}

// MipDimensions returns the extent of a mip level.
func (s *ScratchImage) MipDimensions(mip uint32) (uint32, uint32) {
	return ComputeMipDimension(s.Width, mip), ComputeMipDimension(s.Height, mip)
}

// TotalBytes sums every subresource.
func (s *ScratchImage) TotalBytes() uint64 {
	var n uint64
	for _, sub := range s.subresources {
		n += uint64(len(sub))
	}
	return n
}

// Texel reads the texel at (x, y) of a subresource, decoded to linear
// float. sRGB formats are linearized; compressed formats cannot be
// read.
func (s *ScratchImage) Texel(mip, slice, x, y uint32) (Texel, error) {
	if s.Format.IsCompressed() {
		return Texel{}, fmt.Errorf("content: texel read from compressed format %s", s.Format)
	}
	w, _ := s.MipDimensions(mip)
	sub := s.Subresource(mip, slice)
	off := (y*w + x) * s.Format.BytesPerTexel()
	switch s.Format {
	case FormatRGBA8Unorm:
		return Texel{
			R: float32(sub[off]) / 255,
			G: float32(sub[off+1]) / 255,
			B: float32(sub[off+2]) / 255,
			A: float32(sub[off+3]) / 255,
		}, nil
	case FormatRGBA8UnormSrgb:
		return Texel{
			R: srgbToLinear(float32(sub[off]) / 255),
			G: srgbToLinear(float32(sub[off+1]) / 255),
			B: srgbToLinear(float32(sub[off+2]) / 255),
			A: float32(sub[off+3]) / 255,
		}, nil
	case FormatRGBA16Float:
		return Texel{
			R: float16.Frombits(le16(sub[off:])).Float32(),
			G: float16.Frombits(le16(sub[off+2:])).Float32(),
			B: float16.Frombits(le16(sub[off+4:])).Float32(),
			A: float16.Frombits(le16(sub[off+6:])).Float32(),
		}, nil
	case FormatRGBA32Float:
		return Texel{
			R: math.Float32frombits(le32(sub[off:])),
			G: math.Float32frombits(le32(sub[off+4:])),
			B: math.Float32frombits(le32(sub[off+8:])),
			A: math.Float32frombits(le32(sub[off+12:])),
		}, nil
	}
	return Texel{}, fmt.Errorf("content: texel read from format %s", s.Format)
}

// SetTexel writes a linear float texel, encoding to the subresource's
// format. sRGB formats re-encode; values are clamped for unorm targets.
func (s *ScratchImage) SetTexel(mip, slice, x, y uint32, t Texel) error {
	if s.Format.IsCompressed() {
		return fmt.Errorf("content: texel write to compressed format %s", s.Format)
	}
	w, _ := s.MipDimensions(mip)
	sub := s.Subresource(mip, slice)
	off := (y*w + x) * s.Format.BytesPerTexel()
	switch s.Format {
	case FormatRGBA8Unorm:
		sub[off] = unorm8(t.R)
		sub[off+1] = unorm8(t.G)
		sub[off+2] = unorm8(t.B)
		sub[off+3] = unorm8(t.A)
	case FormatRGBA8UnormSrgb:
		sub[off] = unorm8(linearToSrgb(t.R))
		sub[off+1] = unorm8(linearToSrgb(t.G))
		sub[off+2] = unorm8(linearToSrgb(t.B))
		sub[off+3] = unorm8(t.A)
	case FormatRGBA16Float:
		putLE16(sub[off:], float16.Fromfloat32(t.R).Bits())
		putLE16(sub[off+2:], float16.Fromfloat32(t.G).Bits())
		putLE16(sub[off+4:], float16.Fromfloat32(t.B).Bits())
		putLE16(sub[off+6:], float16.Fromfloat32(t.A).Bits())
	case FormatRGBA32Float:
		putLE32(sub[off:], math.Float32bits(t.R))
		putLE32(sub[off+4:], math.Float32bits(t.G))
		putLE32(sub[off+8:], math.Float32bits(t.B))
		putLE32(sub[off+12:], math.Float32bits(t.A))
	default:
		return fmt.Errorf("content: texel write to format %s", s.Format)
	}
	return nil
}

func unorm8(v float32) byte {
	if v <= 0 {
		return 0
	}
	if v >= 1 {
		return 255
	}
	return byte(v*255 + 0.5)
}

func le16(b []byte) uint16 { return uint16(b[0]) | uint16(b[1])<<8 }
func le32(b []byte) uint32 {
	return uint32(b[0]) | uint32(b[1])<<8 | uint32(b[2])<<16 | uint32(b[3])<<24
}

func putLE16(b []byte, v uint16) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
}

func putLE32(b []byte, v uint32) {
	b[0] = byte(v)
	b[1] = byte(v >> 8)
	b[2] = byte(v >> 16)
	b[3] = byte(v >> 24)
}
