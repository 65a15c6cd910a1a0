// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"bytes"
	"fmt"
	"image"
	"image/jpeg"
	"image/png"
	"io"
	"path"
	"strings"

	"golang.org/x/image/bmp"
	"golang.org/x/image/tiff"
	"golang.org/x/image/webp"
)

// DecodeImage turns source bytes into a ScratchImage. The container is
// sniffed from magic bytes first, then from the name's extension. LDR
// sources decode to RGBA8; 16-bit sources to RGBA16F; Radiance HDR to
// RGBA32F.
func DecodeImage(name string, data []byte) (*ScratchImage, error) {
	switch {
	case bytes.HasPrefix(data, []byte("\x89PNG\r\n\x1a\n")):
		return decodeStd(name, data, png.Decode)
	case bytes.HasPrefix(data, []byte{0xFF, 0xD8, 0xFF}):
		return decodeStd(name, data, jpeg.Decode)
	case bytes.HasPrefix(data, []byte("BM")):
		return decodeStd(name, data, bmp.Decode)
	case bytes.HasPrefix(data, []byte("II*\x00")) || bytes.HasPrefix(data, []byte("MM\x00*")):
		return decodeStd(name, data, tiff.Decode)
	case len(data) >= 12 && bytes.Equal(data[0:4], []byte("RIFF")) && bytes.Equal(data[8:12], []byte("WEBP")):
		return decodeStd(name, data, webp.Decode)
	case bytes.HasPrefix(data, []byte("#?RADIANCE")) || bytes.HasPrefix(data, []byte("#?RGBE")):
		return decodeRadianceHDR(name, data)
	}

	// Fall back to the extension for containers with weak magic.
	switch strings.ToLower(path.Ext(name)) {
	case ".hdr":
		return decodeRadianceHDR(name, data)
	case ".bmp":
		return decodeStd(name, data, bmp.Decode)
	case ".tif", ".tiff":
		return decodeStd(name, data, tiff.Decode)
	}
	return nil, fmt.Errorf("content: %s: unrecognized image container", name)
}

func decodeStd(name string, data []byte, dec func(io.Reader) (image.Image, error)) (*ScratchImage, error) {
	src, err := dec(bytes.NewReader(data))
	if err != nil {
		return nil, fmt.Errorf("content: %s: %w", name, err)
	}
	return fromImage(src)
}

// fromImage converts a decoded image to a single-mip ScratchImage,
// widening to RGBA16F when the source carries more than 8 bits per
// channel.
func fromImage(src image.Image) (*ScratchImage, error) {
	bounds := src.Bounds()
	w := uint32(bounds.Dx())
	h := uint32(bounds.Dy())

	format := FormatRGBA8Unorm
	switch src.(type) {
	case *image.RGBA64, *image.NRGBA64, *image.Gray16:
		format = FormatRGBA16Float
	}
	out, err := NewScratchImage(w, h, format, 1, 1)
	if err != nil {
		return nil, err
	}
	for y := uint32(0); y < h; y++ {
		for x := uint32(0); x < w; x++ {
			r, g, b, a := src.At(bounds.Min.X+int(x), bounds.Min.Y+int(y)).RGBA()
			t := Texel{
				R: float32(r) / 0xFFFF,
				G: float32(g) / 0xFFFF,
				B: float32(b) / 0xFFFF,
				A: float32(a) / 0xFFFF,
			}
			if err := out.SetTexel(0, 0, x, y, t); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}
