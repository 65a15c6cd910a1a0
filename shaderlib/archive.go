// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlib

import (
	"bufio"
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

const (
	archiveMagic   = "OXSL"
	archiveVersion = 1
	backendNameLen = 8
)

// ShaderStage identifies the pipeline stage a module targets.
type ShaderStage uint8

const (
	StageVertex ShaderStage = iota
	StagePixel
	StageCompute
	StageAmplification
	StageMesh
)

func (s ShaderStage) String() string {
	switch s {
	case StageVertex:
		return "vertex"
	case StagePixel:
		return "pixel"
	case StageCompute:
		return "compute"
	case StageAmplification:
		return "amplification"
	case StageMesh:
		return "mesh"
	}
	return fmt.Sprintf("ShaderStage(%d)", uint8(s))
}

// Define is one preprocessor definition a module was compiled with.
type Define struct {
	Name  string
	Value string
}

// Module is one compiled shader with its reflection blob.
type Module struct {
	Stage      ShaderStage
	SourcePath string
	EntryPoint string
	Defines    []Define
	Blob       []byte
	Reflection []byte
}

// Archive is a shader library: compiled modules for one backend,
// stamped with the toolchain that produced them.
type Archive struct {
	Backend       string
	ToolchainHash uint64
	Modules       []Module
}

// moduleRecord is the fixed part of a module's directory entry; blob
// positions are resolved while writing.
type moduleRecord struct {
	blobOffset uint64
	blobSize   uint64
	reflOffset uint64
	reflSize   uint64
}

func writeString16(w *bytes.Buffer, s string) error {
	if len(s) > 0xFFFF {
		return fmt.Errorf("shaderlib: string of %d bytes exceeds u16 length prefix", len(s))
	}
	var n [2]byte
	binary.LittleEndian.PutUint16(n[:], uint16(len(s)))
	w.Write(n[:])
	w.WriteString(s)
	return nil
}

func readString16(r io.Reader) (string, error) {
	var n [2]byte
	if _, err := io.ReadFull(r, n[:]); err != nil {
		return "", err
	}
	buf := make([]byte, binary.LittleEndian.Uint16(n[:]))
	if _, err := io.ReadFull(r, buf); err != nil {
		return "", err
	}
	return string(buf), nil
}

// Encode serializes the archive: header, module directory, then the
// packed blob section.
func (a *Archive) Encode() ([]byte, error) {
	if len(a.Backend) > backendNameLen {
		return nil, fmt.Errorf("shaderlib: backend name %q exceeds %d bytes", a.Backend, backendNameLen)
	}

	var dir bytes.Buffer
	le := binary.LittleEndian
	var scratch [8]byte
	put16 := func(b *bytes.Buffer, v uint16) {
		le.PutUint16(scratch[:2], v)
		b.Write(scratch[:2])
	}
	put32 := func(b *bytes.Buffer, v uint32) {
		le.PutUint32(scratch[:4], v)
		b.Write(scratch[:4])
	}
	put64 := func(b *bytes.Buffer, v uint64) {
		le.PutUint64(scratch[:8], v)
		b.Write(scratch[:8])
	}

	// Blob offsets are relative to the start of the blob section; its
	// position follows from the directory size, which is known only
	// after writing the directory, so offsets are section-relative.
	var blobs bytes.Buffer
	records := make([]moduleRecord, len(a.Modules))
	for i, m := range a.Modules {
		records[i].blobOffset = uint64(blobs.Len())
		records[i].blobSize = uint64(len(m.Blob))
		blobs.Write(m.Blob)
		records[i].reflOffset = uint64(blobs.Len())
		records[i].reflSize = uint64(len(m.Reflection))
		blobs.Write(m.Reflection)
	}

	for i, m := range a.Modules {
		dir.WriteByte(byte(m.Stage))
		if err := writeString16(&dir, m.SourcePath); err != nil {
			return nil, err
		}
		if err := writeString16(&dir, m.EntryPoint); err != nil {
			return nil, err
		}
		if len(m.Defines) > 0xFFFF {
			return nil, fmt.Errorf("shaderlib: %d defines exceed u16 count", len(m.Defines))
		}
		put16(&dir, uint16(len(m.Defines)))
		for _, d := range m.Defines {
			if err := writeString16(&dir, d.Name); err != nil {
				return nil, err
			}
			if err := writeString16(&dir, d.Value); err != nil {
				return nil, err
			}
		}
		put64(&dir, records[i].blobOffset)
		put64(&dir, records[i].blobSize)
		put64(&dir, records[i].reflOffset)
		put64(&dir, records[i].reflSize)
	}

	var out bytes.Buffer
	out.WriteString(archiveMagic)
	put32(&out, archiveVersion)
	var backend [backendNameLen]byte
	copy(backend[:], a.Backend)
	out.Write(backend[:])
	put64(&out, a.ToolchainHash)
	put32(&out, uint32(len(a.Modules)))
	out.Write(dir.Bytes())
	out.Write(blobs.Bytes())
	return out.Bytes(), nil
}

// WriteFile writes the archive atomically: the encoding lands in a
// temp file in the target directory and is renamed over the final
// name.
func (a *Archive) WriteFile(path string) error {
	data, err := a.Encode()
	if err != nil {
		return err
	}
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("shaderlib: create temp archive: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("shaderlib: write archive: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("shaderlib: close archive: %w", err)
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("shaderlib: rename archive: %w", err)
	}
	return nil
}

// DecodeArchive parses a serialized archive.
func DecodeArchive(data []byte) (*Archive, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != archiveMagic {
		return nil, fmt.Errorf("shaderlib: bad archive magic")
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
	if err != nil || version != archiveVersion {
		return nil, fmt.Errorf("shaderlib: unsupported archive version %d", version)
	}
	a := &Archive{}
	backend := make([]byte, backendNameLen)
	if _, err := io.ReadFull(r, backend); err != nil {
		return nil, fmt.Errorf("shaderlib: truncated archive: %w", err)
	}
	a.Backend = string(bytes.TrimRight(backend, "\x00"))
	if a.ToolchainHash, err = get64(); err != nil {
		return nil, fmt.Errorf("shaderlib: truncated archive: %w", err)
	}
	count, err := get32()
	if err != nil {
		return nil, fmt.Errorf("shaderlib: truncated archive: %w", err)
	}

	a.Modules = make([]Module, count)
	records := make([]moduleRecord, count)
	br := bufio.NewReader(r)
	for i := range a.Modules {
		m := &a.Modules[i]
		stage, err := br.ReadByte()
		if err != nil {
			return nil, fmt.Errorf("shaderlib: truncated module %d: %w", i, err)
		}
		m.Stage = ShaderStage(stage)
		if m.SourcePath, err = readString16(br); err != nil {
			return nil, fmt.Errorf("shaderlib: truncated module %d: %w", i, err)
		}
		if m.EntryPoint, err = readString16(br); err != nil {
			return nil, fmt.Errorf("shaderlib: truncated module %d: %w", i, err)
		}
		var n [2]byte
		if _, err := io.ReadFull(br, n[:]); err != nil {
			return nil, fmt.Errorf("shaderlib: truncated module %d: %w", i, err)
		}
		m.Defines = make([]Define, le.Uint16(n[:]))
		for j := range m.Defines {
			if m.Defines[j].Name, err = readString16(br); err != nil {
				return nil, fmt.Errorf("shaderlib: truncated module %d define %d: %w", i, j, err)
			}
			if m.Defines[j].Value, err = readString16(br); err != nil {
				return nil, fmt.Errorf("shaderlib: truncated module %d define %d: %w", i, j, err)
			}
		}
		var fields [4]uint64
		for f := range fields {
			if _, err := io.ReadFull(br, scratch[:8]); err != nil {
				return nil, fmt.Errorf("shaderlib: truncated module %d: %w", i, err)
			}
			fields[f] = le.Uint64(scratch[:8])
		}
		records[i] = moduleRecord{
			blobOffset: fields[0], blobSize: fields[1],
			reflOffset: fields[2], reflSize: fields[3],
		}
	}

	blobs, err := io.ReadAll(br)
	if err != nil {
		return nil, fmt.Errorf("shaderlib: read blob section: %w", err)
	}
	for i := range a.Modules {
		rec := records[i]
		if rec.blobOffset+rec.blobSize > uint64(len(blobs)) || rec.reflOffset+rec.reflSize > uint64(len(blobs)) {
			return nil, fmt.Errorf("shaderlib: module %d blob range exceeds archive", i)
		}
		a.Modules[i].Blob = blobs[rec.blobOffset : rec.blobOffset+rec.blobSize]
		a.Modules[i].Reflection = blobs[rec.reflOffset : rec.reflOffset+rec.reflSize]
	}
	return a, nil
}
