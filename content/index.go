// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"sync"

	"github.com/google/uuid"
)

// LooseCookedIndexName is the index file written under cooked_root.
const LooseCookedIndexName = "index.json"

// IndexFileRecord describes one external data or table file referenced
// by the index.
type IndexFileRecord struct {
	Path      string `json:"path"`
	SizeBytes uint64 `json:"size_bytes"`
	SHA256    string `json:"sha256"`
}

// IndexAssetRecord describes one cooked asset.
type IndexAssetRecord struct {
	Key         AssetKey `json:"key"`
	Type        string   `json:"type"`
	VirtualPath string   `json:"virtual_path"`
	Descriptor  []byte   `json:"descriptor,omitempty"`
	DataFile    string   `json:"data_file"`
	Offset      uint64   `json:"offset"`
	SizeBytes   uint64   `json:"size_bytes"`
	SHA256      string   `json:"sha256"`
}

// LooseCookedIndex is the persisted manifest shape.
type LooseCookedIndex struct {
	Version uint32             `json:"version"`
	Files   []IndexFileRecord  `json:"files"`
	Assets  []IndexAssetRecord `json:"assets"`
}

// ResourceTableRegistry tracks which sessions are writing each
// cooked_root so the last one out writes the index.
type ResourceTableRegistry struct {
	mu     sync.Mutex
	active map[string]map[uuid.UUID]struct{}
}

// NewResourceTableRegistry returns an empty registry.
func NewResourceTableRegistry() *ResourceTableRegistry {
	return &ResourceTableRegistry{active: make(map[string]map[uuid.UUID]struct{})}
}

// BeginSession records a session writing to root.
func (r *ResourceTableRegistry) BeginSession(root string, id uuid.UUID) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.active[root]
	if set == nil {
		set = make(map[uuid.UUID]struct{})
		r.active[root] = set
	}
	set[id] = struct{}{}
}

// EndSession removes a session and reports whether it was the last
// active writer to root.
func (r *ResourceTableRegistry) EndSession(root string, id uuid.UUID) (last bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	set := r.active[root]
	delete(set, id)
	if len(set) == 0 {
		delete(r.active, root)
		return true
	}
	return false
}

// ActiveSessions reports the number of sessions writing to root.
func (r *ResourceTableRegistry) ActiveSessions(root string) int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.active[root])
}

// LooseCookedIndexRegistry accumulates file and asset registrations and
// writes the index manifest.
type LooseCookedIndexRegistry struct {
	mu     sync.Mutex
	files  map[string]IndexFileRecord
	assets map[AssetKey]IndexAssetRecord
}

// NewLooseCookedIndexRegistry returns an empty registry.
func NewLooseCookedIndexRegistry() *LooseCookedIndexRegistry {
	return &LooseCookedIndexRegistry{
		files:  make(map[string]IndexFileRecord),
		assets: make(map[AssetKey]IndexAssetRecord),
	}
}

// RegisterFile records an external file. The file is hashed and sized
// from disk so the index always reflects what actually landed.
func (r *LooseCookedIndexRegistry) RegisterFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("content: register file %s: %w", path, err)
	}
	sum := sha256.Sum256(data)
	r.mu.Lock()
	defer r.mu.Unlock()
	r.files[path] = IndexFileRecord{
		Path:      filepath.Base(path),
		SizeBytes: uint64(len(data)),
		SHA256:    hex.EncodeToString(sum[:]),
	}
	return nil
}

// RegisterAsset records a cooked asset. Later registrations of the
// same key win, matching re-import semantics.
func (r *LooseCookedIndexRegistry) RegisterAsset(a EmittedAsset, dataFile string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.assets[a.Key] = IndexAssetRecord{
		Key:         a.Key,
		Type:        a.Type.String(),
		VirtualPath: a.VirtualPath,
		Descriptor:  a.Descriptor,
		DataFile:    filepath.Base(dataFile),
		Offset:      a.Offset,
		SizeBytes:   a.SizeBytes,
		SHA256:      hex.EncodeToString(a.SHA256[:]),
	}
}

// Lookup resolves an asset record by key.
func (r *LooseCookedIndexRegistry) Lookup(key AssetKey) (IndexAssetRecord, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	rec, ok := r.assets[key]
	return rec, ok
}

// Snapshot builds a deterministic index from the current
// registrations.
func (r *LooseCookedIndexRegistry) Snapshot() LooseCookedIndex {
	r.mu.Lock()
	defer r.mu.Unlock()
	idx := LooseCookedIndex{Version: cookedVersion}
	for _, f := range r.files {
		idx.Files = append(idx.Files, f)
	}
	for _, a := range r.assets {
		idx.Assets = append(idx.Assets, a)
	}
	sort.Slice(idx.Files, func(i, j int) bool { return idx.Files[i].Path < idx.Files[j].Path })
	sort.Slice(idx.Assets, func(i, j int) bool { return idx.Assets[i].Key < idx.Assets[j].Key })
	return idx
}

// WriteIndex persists the manifest under root atomically: the JSON is
// written to a temp file in the same directory and renamed over the
// final name.
func (r *LooseCookedIndexRegistry) WriteIndex(root string) error {
	idx := r.Snapshot()
	data, err := json.MarshalIndent(&idx, "", "  ")
	if err != nil {
		return fmt.Errorf("content: encode index: %w", err)
	}
	tmp, err := os.CreateTemp(root, LooseCookedIndexName+".tmp-*")
	if err != nil {
		return fmt.Errorf("content: create index temp: %w", err)
	}
	tmpName := tmp.Name()
	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return fmt.Errorf("content: write index temp: %w", err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("content: close index temp: %w", err)
	}
	final := filepath.Join(root, LooseCookedIndexName)
	if err := os.Rename(tmpName, final); err != nil {
		os.Remove(tmpName)
		return fmt.Errorf("content: rename index: %w", err)
	}
	return nil
}

// ReadIndex loads a previously written manifest.
func ReadIndex(root string) (*LooseCookedIndex, error) {
	data, err := os.ReadFile(filepath.Join(root, LooseCookedIndexName))
	if err != nil {
		return nil, fmt.Errorf("content: read index: %w", err)
	}
	var idx LooseCookedIndex
	if err := json.Unmarshal(data, &idx); err != nil {
		return nil, fmt.Errorf("content: parse index: %w", err)
	}
	return &idx, nil
}
