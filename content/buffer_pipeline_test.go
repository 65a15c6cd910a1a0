// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"bytes"
	"testing"
)

func TestCookBufferStructured(t *testing.T) {
	source := make([]byte, 96)
	for i := range source {
		source[i] = byte(i)
	}
	payload, diags, err := CookBuffer("verts", source, BufferImportSettings{Stride: 32})
	if err != nil {
		t.Fatalf("CookBuffer: %v", err)
	}
	if len(diags) != 0 {
		t.Errorf("expected no diagnostics, got %+v", diags)
	}
	if payload.Header.ElementCount != 3 {
		t.Errorf("expected 3 elements, got %d", payload.Header.ElementCount)
	}
	if payload.Header.SizeBytes != 96 {
		t.Errorf("expected size 96, got %d", payload.Header.SizeBytes)
	}
	if !bytes.Equal(payload.Data, source) {
		t.Error("payload bytes differ from source")
	}
}

func TestCookBufferStrideMismatch(t *testing.T) {
	if _, _, err := CookBuffer("bad", make([]byte, 100), BufferImportSettings{Stride: 32}); err == nil {
		t.Error("expected stride mismatch error, got nil")
	}
}

func TestCookBufferAlignmentPadding(t *testing.T) {
	payload, _, err := CookBuffer("raw", make([]byte, 10), BufferImportSettings{Alignment: 16})
	if err != nil {
		t.Fatalf("CookBuffer: %v", err)
	}
	if len(payload.Data) != 16 {
		t.Errorf("expected padded length 16, got %d", len(payload.Data))
	}
	if payload.Header.SizeBytes != 10 {
		t.Errorf("expected logical size 10, got %d", payload.Header.SizeBytes)
	}
}

func TestCookBufferEmpty(t *testing.T) {
	if _, _, err := CookBuffer("empty", nil, BufferImportSettings{}); err == nil {
		t.Error("expected error for empty source, got nil")
	}
}

func TestCookedBufferRoundTrip(t *testing.T) {
	payload, _, err := CookBuffer("roundtrip", []byte{1, 2, 3, 4, 5, 6, 7, 8}, BufferImportSettings{Stride: 4})
	if err != nil {
		t.Fatalf("CookBuffer: %v", err)
	}
	decoded, err := DecodeBufferPayload(payload.Encode())
	if err != nil {
		t.Fatalf("DecodeBufferPayload: %v", err)
	}
	if decoded.Header != payload.Header {
		t.Errorf("expected header %+v, got %+v", payload.Header, decoded.Header)
	}
	if !bytes.Equal(decoded.Data, payload.Data) {
		t.Error("decoded bytes differ")
	}
}

func TestBufferPipelineReportsFailure(t *testing.T) {
	p := NewBufferPipeline(1, 1)
	if err := p.Submit(WorkItem[BufferJob]{
		Name:    "bad",
		Payload: BufferJob{Source: make([]byte, 7), Settings: BufferImportSettings{Stride: 4}},
	}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p.Close()

	r := <-p.Results()
	if r.Success {
		t.Error("expected failure for stride mismatch")
	}
	if len(r.Diagnostics) == 0 || r.Diagnostics[0].Code != CodeStrideMismatch {
		t.Errorf("expected stride diagnostic, got %+v", r.Diagnostics)
	}
}
