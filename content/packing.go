// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

// PackingPolicyID selects how cooked subresources are padded.
type PackingPolicyID uint32

const (
	// PackingD3D12 aligns row pitch to 256 bytes and subresource
	// offsets to 512 bytes, matching placed-footprint copy rules.
	PackingD3D12 PackingPolicyID = 0
	// PackingTight aligns subresource offsets to 4 bytes and leaves
	// rows unpadded.
	PackingTight PackingPolicyID = 1
)

// PackingPolicy is the alignment rule pair behind a policy id.
type PackingPolicy struct {
	ID PackingPolicyID
}

// LookupPackingPolicy resolves a policy id. Unknown ids report ok=false
// so callers can fall back and diagnose.
func LookupPackingPolicy(id PackingPolicyID) (PackingPolicy, bool) {
	switch id {
	case PackingD3D12, PackingTight:
		return PackingPolicy{ID: id}, true
	}
	return PackingPolicy{}, false
}

// AlignRowPitchBytes applies the policy's row alignment.
func (p PackingPolicy) AlignRowPitchBytes(pitch uint32) uint32 {
	if p.ID == PackingD3D12 {
		return (pitch + 255) &^ 255
	}
	return pitch
}

// AlignSubresourceOffset applies the policy's offset alignment.
func (p PackingPolicy) AlignSubresourceOffset(offset uint64) uint64 {
	if p.ID == PackingD3D12 {
		return (offset + 511) &^ 511
	}
	return (offset + 3) &^ 3
}

// SubresourceLayout places one subresource inside a cooked payload.
type SubresourceLayout struct {
	Offset    uint64
	Width     uint32
	Height    uint32
	RowPitch  uint32
	SizeBytes uint64
}

// ComputeSubresourceLayouts lays out every subresource of img under the
// policy, array-slice-major with mips innermost.
func ComputeSubresourceLayouts(img *ScratchImage, policy PackingPolicy) []SubresourceLayout {
	layouts := make([]SubresourceLayout, 0, img.ArraySize*img.MipLevels)
	var offset uint64
	for slice := uint32(0); slice < img.ArraySize; slice++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			w, h := img.MipDimensions(mip)
			pitch := policy.AlignRowPitchBytes(img.Format.RowPitchBytes(w))
			rows := img.Format.RowCount(h)
			offset = policy.AlignSubresourceOffset(offset)
			size := uint64(pitch) * uint64(rows)
			layouts = append(layouts, SubresourceLayout{
				Offset:    offset,
				Width:     w,
				Height:    h,
				RowPitch:  pitch,
				SizeBytes: size,
			})
			offset += size
		}
	}
	return layouts
}

// Cooked payload container identifiers.
const (
	cookedTextureMagic = "OXTX"
	cookedBufferMagic  = "OXBF"
	cookedVersion      = 1
)

// TextureHeader is the fixed prefix of a cooked texture payload.
type TextureHeader struct {
	Width         uint32
	Height        uint32
	Format        PixelFormat
	MipLevels     uint32
	ArraySize     uint32
	IsCubemap     bool
	PackingPolicy PackingPolicyID
}

// CookedTexturePayload is an immutable cooked texture blob:
// header | subresource layouts | padded pixel bytes.
type CookedTexturePayload struct {
	Header  TextureHeader
	Layouts []SubresourceLayout
	Data    []byte
}

// TotalSize returns the payload's pixel byte length.
func (p *CookedTexturePayload) TotalSize() uint64 { return uint64(len(p.Data)) }

// PackTexture lays out img under the policy and packs its rows into
// the padded payload bytes.
func PackTexture(img *ScratchImage, policy PackingPolicy) (*CookedTexturePayload, error) {
	layouts := ComputeSubresourceLayouts(img, policy)
	last := layouts[len(layouts)-1]
	data := make([]byte, last.Offset+last.SizeBytes)

	i := 0
	for slice := uint32(0); slice < img.ArraySize; slice++ {
		for mip := uint32(0); mip < img.MipLevels; mip++ {
			l := layouts[i]
			i++
			src := img.Subresource(mip, slice)
			w, h := img.MipDimensions(mip)
			srcPitch := img.Format.RowPitchBytes(w)
			rows := img.Format.RowCount(h)
			for row := uint32(0); row < rows; row++ {
				from := src[row*srcPitch : (row+1)*srcPitch]
				to := data[l.Offset+uint64(row)*uint64(l.RowPitch):]
				copy(to, from)
			}
		}
	}
	return &CookedTexturePayload{
		Header: TextureHeader{
			Width:         img.Width,
			Height:        img.Height,
			Format:        img.Format,
			MipLevels:     img.MipLevels,
			ArraySize:     img.ArraySize,
			IsCubemap:     img.IsCubemap,
			PackingPolicy: policy.ID,
		},
		Layouts: layouts,
		Data:    data,
	}, nil
}

// Encode serializes the payload for the loose-cooked store.
func (p *CookedTexturePayload) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(cookedTextureMagic)
	le := binary.LittleEndian
	var scratch [8]byte

	put32 := func(v uint32) {
		le.PutUint32(scratch[:4], v)
		buf.Write(scratch[:4])
	}
	put64 := func(v uint64) {
		le.PutUint64(scratch[:8], v)
		buf.Write(scratch[:8])
	}

	put32(cookedVersion)
	put32(p.Header.Width)
	put32(p.Header.Height)
	put32(uint32(p.Header.Format))
	put32(p.Header.MipLevels)
	put32(p.Header.ArraySize)
	cube := uint32(0)
	if p.Header.IsCubemap {
		cube = 1
	}
	put32(cube)
	put32(uint32(p.Header.PackingPolicy))
	put32(uint32(len(p.Layouts)))
	for _, l := range p.Layouts {
		put64(l.Offset)
		put32(l.Width)
		put32(l.Height)
		put32(l.RowPitch)
		put64(l.SizeBytes)
	}
	put64(uint64(len(p.Data)))
	buf.Write(p.Data)
	return buf.Bytes()
}

// DecodeTexturePayload parses a serialized cooked texture.
func DecodeTexturePayload(data []byte) (*CookedTexturePayload, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != cookedTextureMagic {
		return nil, fmt.Errorf("content: bad cooked texture magic")
	}
	le := binary.LittleEndian
	var scratch [8]byte
	get32 := func() (uint32, error) {
		if _, err := io.ReadFull(r, scratch[:4]); err != nil {
			return 0, err
		}
		return le.Uint32(scratch[:4]), nil
	}
	get64 := func() (uint64, error) {
		if _, err := io.ReadFull(r, scratch[:8]); err != nil {
			return 0, err
		}
		return le.Uint64(scratch[:8]), nil
	}

	version, err := get32()
	if err != nil || version != cookedVersion {
		return nil, fmt.Errorf("content: unsupported cooked texture version %d", version)
	}
	p := &CookedTexturePayload{}
	fields := []*uint32{
		&p.Header.Width, &p.Header.Height,
	}
	for _, f := range fields {
		if *f, err = get32(); err != nil {
			return nil, fmt.Errorf("content: truncated cooked texture: %w", err)
		}
	}
	format, err := get32()
	if err != nil {
		return nil, err
	}
	p.Header.Format = PixelFormat(format)
	if p.Header.MipLevels, err = get32(); err != nil {
		return nil, err
	}
	if p.Header.ArraySize, err = get32(); err != nil {
		return nil, err
	}
	cube, err := get32()
	if err != nil {
		return nil, err
	}
	p.Header.IsCubemap = cube != 0
	policy, err := get32()
	if err != nil {
		return nil, err
	}
	p.Header.PackingPolicy = PackingPolicyID(policy)

	count, err := get32()
	if err != nil {
		return nil, err
	}
	p.Layouts = make([]SubresourceLayout, count)
	for i := range p.Layouts {
		l := &p.Layouts[i]
		if l.Offset, err = get64(); err != nil {
			return nil, err
		}
		if l.Width, err = get32(); err != nil {
			return nil, err
		}
		if l.Height, err = get32(); err != nil {
			return nil, err
		}
		if l.RowPitch, err = get32(); err != nil {
			return nil, err
		}
		if l.SizeBytes, err = get64(); err != nil {
			return nil, err
		}
	}
	size, err := get64()
	if err != nil {
		return nil, err
	}
	p.Data = make([]byte, size)
	if _, err := io.ReadFull(r, p.Data); err != nil {
		return nil, fmt.Errorf("content: truncated cooked texture data: %w", err)
	}
	return p, nil
}
