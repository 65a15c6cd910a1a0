// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package shaderlib

import (
	"fmt"
	"os"
)

// moduleKey identifies a module inside a library.
type moduleKey struct {
	stage ShaderStage
	entry string
}

// Library holds a loaded archive with validated reflection, keyed by
// (stage, entry point).
type Library struct {
	backend       string
	toolchainHash uint64
	modules       map[moduleKey]*LoadedModule
}

// LoadedModule pairs a module's blob with its decoded reflection.
type LoadedModule struct {
	Module     Module
	Reflection Reflection
}

// Load reads an archive from disk, decodes every module's reflection
// and validates it against the binding contract. On any failure the
// library is left empty so a partially loaded archive can never be
// observed.
func (l *Library) Load(path string) error {
	l.backend = ""
	l.toolchainHash = 0
	l.modules = nil

	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("shaderlib: load %s: %w", path, err)
	}
	archive, err := DecodeArchive(data)
	if err != nil {
		return fmt.Errorf("shaderlib: load %s: %w", path, err)
	}

	modules := make(map[moduleKey]*LoadedModule, len(archive.Modules))
	for i := range archive.Modules {
		m := &archive.Modules[i]
		refl, err := DecodeReflection(m.Reflection)
		if err != nil {
			return fmt.Errorf("shaderlib: load %s: module %s/%s: %w", path, m.Stage, m.EntryPoint, err)
		}
		if err := refl.Validate(m.Stage); err != nil {
			return fmt.Errorf("shaderlib: load %s: module %s/%s: %w", path, m.Stage, m.EntryPoint, err)
		}
		key := moduleKey{stage: m.Stage, entry: m.EntryPoint}
		if _, dup := modules[key]; dup {
			return fmt.Errorf("shaderlib: load %s: duplicate module %s/%s", path, m.Stage, m.EntryPoint)
		}
		modules[key] = &LoadedModule{Module: *m, Reflection: *refl}
	}

	l.backend = archive.Backend
	l.toolchainHash = archive.ToolchainHash
	l.modules = modules
	return nil
}

// Backend returns the backend the loaded archive targets.
func (l *Library) Backend() string { return l.backend }

// ToolchainHash returns the loaded archive's toolchain fingerprint.
func (l *Library) ToolchainHash() uint64 { return l.toolchainHash }

// Len returns the number of loaded modules.
func (l *Library) Len() int { return len(l.modules) }

// Lookup finds a module by stage and entry point.
func (l *Library) Lookup(stage ShaderStage, entryPoint string) (*LoadedModule, bool) {
	m, ok := l.modules[moduleKey{stage: stage, entry: entryPoint}]
	return m, ok
}
