// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"bufio"
	"bytes"
	"fmt"
	"io"
	"strings"

	"github.com/chewxy/math32"
)

// decodeRadianceHDR parses the Radiance RGBE (.hdr) container into an
// RGBA32F image. Both the flat pixel stream and the newer per-channel
// RLE scanline format are handled.
func decodeRadianceHDR(name string, data []byte) (*ScratchImage, error) {
	r := bufio.NewReader(bytes.NewReader(data))

	line, err := r.ReadString('\n')
	if err != nil || !strings.HasPrefix(line, "#?") {
		return nil, fmt.Errorf("content: %s: not a radiance file", name)
	}
	for {
		line, err = r.ReadString('\n')
		if err != nil {
			return nil, fmt.Errorf("content: %s: truncated header", name)
		}
		line = strings.TrimSpace(line)
		if line == "" {
			break
		}
		if strings.HasPrefix(line, "FORMAT=") && line != "FORMAT=32-bit_rle_rgbe" {
			return nil, fmt.Errorf("content: %s: unsupported format %q", name, line)
		}
	}

	line, err = r.ReadString('\n')
	if err != nil {
		return nil, fmt.Errorf("content: %s: missing resolution", name)
	}
	var h, w uint32
	if _, err := fmt.Sscanf(strings.TrimSpace(line), "-Y %d +X %d", &h, &w); err != nil {
		return nil, fmt.Errorf("content: %s: unsupported orientation %q", name, strings.TrimSpace(line))
	}

	out, err := NewScratchImage(w, h, FormatRGBA32Float, 1, 1)
	if err != nil {
		return nil, err
	}
	scanline := make([]byte, w*4)
	for y := uint32(0); y < h; y++ {
		if err := readRGBEScanline(r, scanline, w); err != nil {
			return nil, fmt.Errorf("content: %s: row %d: %w", name, y, err)
		}
		for x := uint32(0); x < w; x++ {
			e := scanline[x*4+3]
			var t Texel
			if e != 0 {
				scale := math32.Exp2(float32(int(e) - 136))
				t.R = float32(scanline[x*4]) * scale
				t.G = float32(scanline[x*4+1]) * scale
				t.B = float32(scanline[x*4+2]) * scale
			}
			t.A = 1
			if err := out.SetTexel(0, 0, x, y, t); err != nil {
				return nil, err
			}
		}
	}
	return out, nil
}

// readRGBEScanline fills dst with w interleaved RGBE pixels.
func readRGBEScanline(r *bufio.Reader, dst []byte, w uint32) error {
	var head [4]byte
	if _, err := io.ReadFull(r, head[:]); err != nil {
		return err
	}
	// New RLE scanlines start with 2, 2 and the width; each channel is
	// then run-length coded separately.
	if head[0] == 2 && head[1] == 2 && uint32(head[2])<<8|uint32(head[3]) == w {
		for ch := 0; ch < 4; ch++ {
			x := uint32(0)
			for x < w {
				count, err := r.ReadByte()
				if err != nil {
					return err
				}
				if count > 128 {
					// Run of a single value.
					n := uint32(count) - 128
					if x+n > w {
						return fmt.Errorf("rle run overflows scanline")
					}
					v, err := r.ReadByte()
					if err != nil {
						return err
					}
					for i := uint32(0); i < n; i++ {
						dst[(x+i)*4+uint32(ch)] = v
					}
					x += n
				} else {
					n := uint32(count)
					if n == 0 || x+n > w {
						return fmt.Errorf("rle literal overflows scanline")
					}
					for i := uint32(0); i < n; i++ {
						v, err := r.ReadByte()
						if err != nil {
							return err
						}
						dst[(x+i)*4+uint32(ch)] = v
					}
					x += n
				}
			}
		}
		return nil
	}

	// Flat stream, possibly with old-style (1,1,1,count) repeats.
	copy(dst[:4], head[:])
	x := uint32(1)
	shift := uint(0)
	for x < w {
		var px [4]byte
		if _, err := io.ReadFull(r, px[:]); err != nil {
			return err
		}
		if px[0] == 1 && px[1] == 1 && px[2] == 1 {
			n := uint32(px[3]) << shift
			if x == 0 || x+n > w {
				return fmt.Errorf("old rle repeat overflows scanline")
			}
			prev := dst[(x-1)*4 : x*4]
			for i := uint32(0); i < n; i++ {
				copy(dst[(x+i)*4:], prev)
			}
			x += n
			shift += 8
		} else {
			copy(dst[x*4:], px[:])
			x++
			shift = 0
		}
	}
	return nil
}
