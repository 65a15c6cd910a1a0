// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlib

import (
	"bytes"
	"encoding/binary"
	"fmt"
	"io"
)

const (
	reflectionMagic   = "OXRF"
	reflectionVersion = 1
)

// CBVBinding is one constant buffer binding reported by reflection.
type CBVBinding struct {
	Register  uint32
	Space     uint32
	SizeBytes uint32
}

// Reflection is the OXRF v1 payload attached to every module.
type Reflection struct {
	ShaderModelMajor uint8
	ShaderModelMinor uint8
	// Threadgroup is zero for non-compute stages.
	Threadgroup [3]uint32
	CBVs        []CBVBinding

	SRVCount     uint32
	UAVCount     uint32
	SamplerCount uint32
}

// The binding contract: constant buffers a cooked shader may declare,
// all in space 0.
var allowedCBVs = map[uint32]struct {
	name string
	size uint32
}{
	1: {"SceneConstants", 256},
	2: {"RootConstants", 16},
	3: {"EnvironmentDynamicData", 192},
}

const threadgroupLimit = 1024

// Validate checks the reflection against the shader binding contract.
func (r *Reflection) Validate(stage ShaderStage) error {
	if r.ShaderModelMajor != 6 || r.ShaderModelMinor != 6 {
		return fmt.Errorf("shaderlib: shader model %d.%d, need 6.6", r.ShaderModelMajor, r.ShaderModelMinor)
	}
	x, y, z := r.Threadgroup[0], r.Threadgroup[1], r.Threadgroup[2]
	if stage == StageCompute {
		if x == 0 || y == 0 || z == 0 {
			return fmt.Errorf("shaderlib: compute threadgroup (%d, %d, %d) has a zero axis", x, y, z)
		}
		if x > threadgroupLimit || y > threadgroupLimit || z > threadgroupLimit {
			return fmt.Errorf("shaderlib: threadgroup axis exceeds %d: (%d, %d, %d)", threadgroupLimit, x, y, z)
		}
		if uint64(x)*uint64(y)*uint64(z) > threadgroupLimit {
			return fmt.Errorf("shaderlib: threadgroup volume %d exceeds %d", uint64(x)*uint64(y)*uint64(z), threadgroupLimit)
		}
	} else if x != 0 || y != 0 || z != 0 {
		return fmt.Errorf("shaderlib: non-compute stage %s declares threadgroup (%d, %d, %d)", stage, x, y, z)
	}
	for _, cbv := range r.CBVs {
		if cbv.Space != 0 {
			return fmt.Errorf("shaderlib: cbv b%d in space %d, only space 0 is bound", cbv.Register, cbv.Space)
		}
		want, ok := allowedCBVs[cbv.Register]
		if !ok {
			return fmt.Errorf("shaderlib: cbv register b%d is not part of the binding contract", cbv.Register)
		}
		if cbv.SizeBytes != want.size {
			return fmt.Errorf("shaderlib: %s (b%d) is %d bytes, expected %d",
				want.name, cbv.Register, cbv.SizeBytes, want.size)
		}
	}
	if r.SRVCount != 0 || r.UAVCount != 0 || r.SamplerCount != 0 {
		return fmt.Errorf("shaderlib: reflection declares %d SRV, %d UAV, %d sampler bindings; bindless shaders declare none",
			r.SRVCount, r.UAVCount, r.SamplerCount)
	}
	return nil
}

// Encode serializes the reflection as an OXRF v1 blob.
func (r *Reflection) Encode() []byte {
	var buf bytes.Buffer
	buf.WriteString(reflectionMagic)
	le := binary.LittleEndian
	var scratch [4]byte
	put32 := func(v uint32) {
		le.PutUint32(scratch[:], v)
		buf.Write(scratch[:])
	}
	put32(reflectionVersion)
	buf.WriteByte(r.ShaderModelMajor)
	buf.WriteByte(r.ShaderModelMinor)
	for _, v := range r.Threadgroup {
		put32(v)
	}
	put32(uint32(len(r.CBVs)))
	for _, cbv := range r.CBVs {
		put32(cbv.Register)
		put32(cbv.Space)
		put32(cbv.SizeBytes)
	}
	put32(r.SRVCount)
	put32(r.UAVCount)
	put32(r.SamplerCount)
	return buf.Bytes()
}

// DecodeReflection parses an OXRF v1 blob.
func DecodeReflection(data []byte) (*Reflection, error) {
	r := bytes.NewReader(data)
	magic := make([]byte, 4)
	if _, err := io.ReadFull(r, magic); err != nil || string(magic) != reflectionMagic {
		return nil, fmt.Errorf("shaderlib: bad reflection magic")
	}
	le := binary.LittleEndian
	var scratch [4]byte
	get32 := func() (uint32, error) {
		if _, err := io.ReadFull(r, scratch[:]); err != nil {
			return 0, err
		}
		return le.Uint32(scratch[:]), nil
	}
	version, err := get32()
	if err != nil || version != reflectionVersion {
		return nil, fmt.Errorf("shaderlib: unsupported reflection version %d", version)
	}
	out := &Reflection{}
	if out.ShaderModelMajor, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("shaderlib: truncated reflection: %w", err)
	}
	if out.ShaderModelMinor, err = r.ReadByte(); err != nil {
		return nil, fmt.Errorf("shaderlib: truncated reflection: %w", err)
	}
	for i := range out.Threadgroup {
		if out.Threadgroup[i], err = get32(); err != nil {
			return nil, fmt.Errorf("shaderlib: truncated reflection: %w", err)
		}
	}
	count, err := get32()
	if err != nil {
		return nil, fmt.Errorf("shaderlib: truncated reflection: %w", err)
	}
	out.CBVs = make([]CBVBinding, count)
	for i := range out.CBVs {
		cbv := &out.CBVs[i]
		if cbv.Register, err = get32(); err != nil {
			return nil, err
		}
		if cbv.Space, err = get32(); err != nil {
			return nil, err
		}
		if cbv.SizeBytes, err = get32(); err != nil {
			return nil, err
		}
	}
	if out.SRVCount, err = get32(); err != nil {
		return nil, err
	}
	if out.UAVCount, err = get32(); err != nil {
		return nil, err
	}
	if out.SamplerCount, err = get32(); err != nil {
		return nil, err
	}
	return out, nil
}
