// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlib

import (
	"fmt"

	"github.com/cespare/xxhash/v2"
	"github.com/gogpu/naga"
)

// CompileWGSL compiles WGSL source into a shader blob for the archive
// and returns the blob together with a reflection stub carrying the
// compute threadgroup size. Callers fill in binding data before
// validation.
func CompileWGSL(source string, stage ShaderStage, threadgroup [3]uint32) (*Module, error) {
	blob, err := naga.Compile(source)
	if err != nil {
		return nil, fmt.Errorf("shaderlib: compile wgsl: %w", err)
	}
	refl := Reflection{
		ShaderModelMajor: 6,
		ShaderModelMinor: 6,
	}
	if stage == StageCompute {
		refl.Threadgroup = threadgroup
	}
	if err := refl.Validate(stage); err != nil {
		return nil, err
	}
	return &Module{
		Stage:      stage,
		EntryPoint: "main",
		Blob:       blob,
		Reflection: refl.Encode(),
	}, nil
}

// ToolchainHash fingerprints the compiler configuration that produced
// an archive. Archives from a different toolchain are rebuilt rather
// than trusted.
func ToolchainHash(compilerVersion string, defines []Define) uint64 {
	h := xxhash.New()
	_, _ = h.WriteString(compilerVersion)
	for _, d := range defines {
		_, _ = h.WriteString(d.Name)
		_, _ = h.WriteString("=")
		_, _ = h.WriteString(d.Value)
	}
	return h.Sum64()
}
