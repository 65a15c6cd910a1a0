// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlib

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

func testArchive() *Archive {
	vsRefl := Reflection{ShaderModelMajor: 6, ShaderModelMinor: 6}
	csRefl := Reflection{
		ShaderModelMajor: 6,
		ShaderModelMinor: 6,
		Threadgroup:      [3]uint32{8, 8, 1},
		CBVs:             []CBVBinding{{Register: 2, Space: 0, SizeBytes: 16}},
	}
	return &Archive{
		Backend:       "d3d12",
		ToolchainHash: 0xDEADBEEF12345678,
		Modules: []Module{
			{
				Stage:      StageVertex,
				SourcePath: "shaders/mesh.hlsl",
				EntryPoint: "VSMain",
				Defines:    []Define{{Name: "BINDLESS", Value: "1"}},
				Blob:       []byte("vertex dxil bytes"),
				Reflection: vsRefl.Encode(),
			},
			{
				Stage:      StageCompute,
				SourcePath: "shaders/cull.hlsl",
				EntryPoint: "CSMain",
				Blob:       []byte("compute dxil"),
				Reflection: csRefl.Encode(),
			},
		},
	}
}

func TestArchiveRoundTrip(t *testing.T) {
	want := testArchive()
	data, err := want.Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	got, err := DecodeArchive(data)
	if err != nil {
		t.Fatalf("DecodeArchive: %v", err)
	}

	if got.Backend != "d3d12" {
		t.Errorf("expected backend d3d12, got %q", got.Backend)
	}
	if got.ToolchainHash != want.ToolchainHash {
		t.Errorf("expected toolchain hash %x, got %x", want.ToolchainHash, got.ToolchainHash)
	}
	if len(got.Modules) != 2 {
		t.Fatalf("expected 2 modules, got %d", len(got.Modules))
	}

	vs := got.Modules[0]
	if vs.Stage != StageVertex || vs.SourcePath != "shaders/mesh.hlsl" || vs.EntryPoint != "VSMain" {
		t.Errorf("unexpected vertex module: %+v", vs)
	}
	if len(vs.Defines) != 1 || vs.Defines[0] != (Define{Name: "BINDLESS", Value: "1"}) {
		t.Errorf("unexpected defines: %+v", vs.Defines)
	}
	if !bytes.Equal(vs.Blob, []byte("vertex dxil bytes")) {
		t.Errorf("vertex blob mismatch: %q", vs.Blob)
	}
	if !bytes.Equal(got.Modules[1].Blob, []byte("compute dxil")) {
		t.Errorf("compute blob mismatch: %q", got.Modules[1].Blob)
	}
}

func TestArchiveWriteFileAtomic(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shaders.oxsl")

	if err := testArchive().WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}
	entries, err := os.ReadDir(dir)
	if err != nil {
		t.Fatalf("ReadDir: %v", err)
	}
	if len(entries) != 1 || entries[0].Name() != "shaders.oxsl" {
		t.Errorf("expected only the final archive, got %v", entries)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("ReadFile: %v", err)
	}
	if _, err := DecodeArchive(data); err != nil {
		t.Errorf("written archive does not decode: %v", err)
	}
}

func TestDecodeArchiveRejectsCorrupt(t *testing.T) {
	data, err := testArchive().Encode()
	if err != nil {
		t.Fatalf("Encode: %v", err)
	}
	tests := []struct {
		name string
		data []byte
	}{
		{"bad magic", append([]byte("NOPE"), data[4:]...)},
		{"truncated directory", data[:40]},
		{"truncated blobs", data[:len(data)-10]},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := DecodeArchive(tt.data); err == nil {
				t.Error("expected error, got nil")
			}
		})
	}
}

func TestArchiveBackendNameTooLong(t *testing.T) {
	a := &Archive{Backend: "verylongbackend"}
	if _, err := a.Encode(); err == nil {
		t.Error("expected error for oversized backend name, got nil")
	}
}

func TestLibraryLoad(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "shaders.oxsl")
	if err := testArchive().WriteFile(path); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var lib Library
	if err := lib.Load(path); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if lib.Len() != 2 {
		t.Fatalf("expected 2 modules, got %d", lib.Len())
	}
	cs, ok := lib.Lookup(StageCompute, "CSMain")
	if !ok {
		t.Fatal("expected compute module lookup hit")
	}
	if cs.Reflection.Threadgroup != [3]uint32{8, 8, 1} {
		t.Errorf("expected threadgroup (8, 8, 1), got %v", cs.Reflection.Threadgroup)
	}
	if _, ok := lib.Lookup(StagePixel, "PSMain"); ok {
		t.Error("expected miss for absent module")
	}
}

func TestLibraryLoadClearsPartialState(t *testing.T) {
	dir := t.TempDir()
	good := filepath.Join(dir, "good.oxsl")
	if err := testArchive().WriteFile(good); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	// Same archive with an invalid reflection: the compute module
	// declares an SRV.
	bad := testArchive()
	refl := Reflection{
		ShaderModelMajor: 6,
		ShaderModelMinor: 6,
		Threadgroup:      [3]uint32{8, 8, 1},
		SRVCount:         1,
	}
	bad.Modules[1].Reflection = refl.Encode()
	badPath := filepath.Join(dir, "bad.oxsl")
	if err := bad.WriteFile(badPath); err != nil {
		t.Fatalf("WriteFile: %v", err)
	}

	var lib Library
	if err := lib.Load(good); err != nil {
		t.Fatalf("Load: %v", err)
	}
	if err := lib.Load(badPath); err == nil {
		t.Fatal("expected load failure for invalid reflection")
	}
	if lib.Len() != 0 {
		t.Errorf("expected library cleared after failed load, got %d modules", lib.Len())
	}
	if lib.Backend() != "" {
		t.Errorf("expected backend cleared, got %q", lib.Backend())
	}
}

func TestToolchainHashStable(t *testing.T) {
	defines := []Define{{Name: "BINDLESS", Value: "1"}}
	a := ToolchainHash("dxc-1.8", defines)
	b := ToolchainHash("dxc-1.8", defines)
	if a != b {
		t.Error("expected identical inputs to hash identically")
	}
	if c := ToolchainHash("dxc-1.9", defines); c == a {
		t.Error("expected compiler version to change the hash")
	}
}
