// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"bytes"
	"context"
	"encoding/binary"
	"fmt"
	"io"
)

// BufferImportSettings steers one buffer cook. Stride zero cooks a raw
// byte buffer; a non-zero stride requires the source length to be a
// whole number of elements.
type BufferImportSettings struct {
	Stride    uint32
	Alignment uint32
	OnFailure FailurePolicy
}

// BufferHeader is the fixed prefix of a cooked buffer payload.
type BufferHeader struct {
	SizeBytes    uint64
	Stride       uint32
	ElementCount uint32
}

// CookedBufferPayload is an immutable cooked buffer blob.
type CookedBufferPayload struct {
	Header BufferHeader
	Data   []byte
}

// BufferJob is the input payload of the buffer pipeline.
type BufferJob struct {
	Source   []byte
	Settings BufferImportSettings
}

// BufferPipeline cooks buffer jobs concurrently.
type BufferPipeline = Pipeline[BufferJob, *CookedBufferPayload]

// NewBufferPipeline builds the bounded buffer cooking stage.
func NewBufferPipeline(workers, capacity int) *BufferPipeline {
	return NewPipeline[BufferJob, *CookedBufferPayload](workers, capacity, cookBufferItem)
}

func cookBufferItem(ctx context.Context, item WorkItem[BufferJob]) WorkResult[*CookedBufferPayload] {
	payload, diags, err := CookBuffer(item.Name, item.Payload.Source, item.Payload.Settings)
	if err == nil {
		return WorkResult[*CookedBufferPayload]{
			Name:        item.Name,
			Success:     true,
			Payload:     payload,
			Diagnostics: diags,
		}
	}
	return WorkResult[*CookedBufferPayload]{
		Name: item.Name,
		Diagnostics: append(diags,
			diagf(SeverityError, CodeStrideMismatch, item.Name, "buffer cook failed: %v", err)),
	}
}

// CookBuffer validates stride, pads the byte payload to the requested
// alignment (4 when unset) and wraps it in a cooked buffer payload.
func CookBuffer(name string, source []byte, settings BufferImportSettings) (*CookedBufferPayload, []ImportDiagnostic, error) {
	if len(source) == 0 {
		return nil, nil, fmt.Errorf("content: empty buffer source %q", name)
	}
	stride := settings.Stride
	elements := uint32(0)
	if stride > 0 {
		if uint64(len(source))%uint64(stride) != 0 {
			return nil, nil, fmt.Errorf("content: buffer %q length %d is not a multiple of stride %d",
				name, len(source), stride)
		}
		elements = uint32(uint64(len(source)) / uint64(stride))
	}
	align := settings.Alignment
	if align == 0 {
		align = 4
	}
	padded := (uint64(len(source)) + uint64(align) - 1) &^ (uint64(align) - 1)
	data := make([]byte, padded)
	copy(data, source)
	return &CookedBufferPayload{
		Header: BufferHeader{
			SizeBytes:    uint64(len(source)),
			Stride:       stride,
			ElementCount: elements,
		},
		Data: data,
	}, nil, nil
}

// Encode serializes the payload for the loose-cooked store.
func (p *CookedBufferPayload) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(cookedBufferMagic)
	le := binary.LittleEndian
	var scratch [8]byte

	le.PutUint32(scratch[:4], cookedVersion)
	buf.Write(scratch[:4])
	le.PutUint64(scratch[:8], p.Header.SizeBytes)
	buf.Write(scratch[:8])
	le.PutUint32(scratch[:4], p.Header.Stride)
	buf.Write(scratch[:4])
	le.PutUint32(scratch[:4], p.Header.ElementCount)
	buf.Write(scratch[:4])
	le.PutUint64(scratch[:8], uint64(len(p.Data)))
	buf.Write(scratch[:8])
	buf.Write(p.Data)
	return buf.Bytes()
}

// DecodeBufferPayload parses a serialized cooked buffer.
func DecodeBufferPayload(data []byte) (*CookedBufferPayload, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != cookedBufferMagic {
		return nil, fmt.Errorf("content: bad cooked buffer magic")
	}
	le := binary.LittleEndian
	var scratch [8]byte
	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return nil, err
	}
	if v := le.Uint32(scratch[:4]); v != cookedVersion {
		return nil, fmt.Errorf("content: unsupported cooked buffer version %d", v)
	}
	p := &CookedBufferPayload{}
	if _, err := io.ReadFull(r, scratch[:8]); err != nil {
		return nil, err
	}
	p.Header.SizeBytes = le.Uint64(scratch[:8])
	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return nil, err
	}
	p.Header.Stride = le.Uint32(scratch[:4])
	if _, err := io.ReadFull(r, scratch[:4]); err != nil {
		return nil, err
	}
	p.Header.ElementCount = le.Uint32(scratch[:4])
	if _, err := io.ReadFull(r, scratch[:8]); err != nil {
		return nil, err
	}
	size := le.Uint64(scratch[:8])
	p.Data = make([]byte, size)
	if _, err := io.ReadFull(r, p.Data); err != nil {
		return nil, fmt.Errorf("content: truncated cooked buffer data: %w", err)
	}
	return p, nil
}
