// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"bytes"
	"crypto/sha256"
	"encoding/binary"
	"fmt"
	"os"
	"path/filepath"
	"sync"
)

// LooseCookedWriter owns the cooked_root directory a session writes
// into.
type LooseCookedWriter struct {
	root string
}

// NewLooseCookedWriter prepares cooked_root for writing.
func NewLooseCookedWriter(root string) (*LooseCookedWriter, error) {
	if root == "" {
		return nil, fmt.Errorf("content: empty cooked root")
	}
	if err := os.MkdirAll(root, 0o755); err != nil {
		return nil, fmt.Errorf("content: create cooked root: %w", err)
	}
	return &LooseCookedWriter{root: root}, nil
}

// Root returns the cooked_root path.
func (w *LooseCookedWriter) Root() string { return w.root }

// emitRecord is one queued payload append.
type emitRecord struct {
	key         AssetKey
	virtualPath string
	descriptor  []byte
	payload     []byte
}

// EmittedAsset is one asset's final position in the emitter's data
// file, reported after Drain.
type EmittedAsset struct {
	Key         AssetKey
	Type        AssetType
	VirtualPath string
	Descriptor  []byte
	Offset      uint64
	SizeBytes   uint64
	SHA256      [sha256.Size]byte
}

// Emitter appends cooked payloads for one domain to a data/table file
// pair. Appends run on a dedicated goroutine so pipeline consumers are
// never blocked on disk.
type Emitter struct {
	domain    AssetType
	dataPath  string
	tablePath string

	in   chan emitRecord
	done chan struct{}

	mu      sync.Mutex
	assets  []EmittedAsset
	ioErr   error
	drained bool
}

const looseTableMagic = "OXTB"

// NewEmitter opens the domain's data file under cooked_root and starts
// the flush goroutine.
func NewEmitter(w *LooseCookedWriter, domain AssetType) (*Emitter, error) {
	e := &Emitter{
		domain:    domain,
		dataPath:  filepath.Join(w.root, domain.String()+".data"),
		tablePath: filepath.Join(w.root, domain.String()+".table"),
		in:        make(chan emitRecord, 64),
		done:      make(chan struct{}),
	}
	f, err := os.Create(e.dataPath)
	if err != nil {
		return nil, fmt.Errorf("content: open %s data file: %w", domain, err)
	}
	go e.flushLoop(f)
	return e, nil
}

// DataPath returns the data file path under cooked_root.
func (e *Emitter) DataPath() string { return e.dataPath }

// TablePath returns the table file path under cooked_root.
func (e *Emitter) TablePath() string { return e.tablePath }

func (e *Emitter) flushLoop(f *os.File) {
	defer close(e.done)
	var offset uint64
	for rec := range e.in {
		e.mu.Lock()
		failed := e.ioErr != nil
		e.mu.Unlock()
		if failed {
			continue
		}
		if _, err := f.Write(rec.payload); err != nil {
			e.mu.Lock()
			e.ioErr = fmt.Errorf("content: append %s payload: %w", e.domain, err)
			e.mu.Unlock()
			continue
		}
		e.mu.Lock()
		e.assets = append(e.assets, EmittedAsset{
			Key:         rec.key,
			Type:        e.domain,
			VirtualPath: rec.virtualPath,
			Descriptor:  rec.descriptor,
			Offset:      offset,
			SizeBytes:   uint64(len(rec.payload)),
			SHA256:      sha256.Sum256(rec.payload),
		})
		e.mu.Unlock()
		offset += uint64(len(rec.payload))
	}
	if err := f.Close(); err != nil {
		e.mu.Lock()
		if e.ioErr == nil {
			e.ioErr = fmt.Errorf("content: close %s data file: %w", e.domain, err)
		}
		e.mu.Unlock()
	}
}

// Emit queues one cooked payload for appending. The descriptor blob
// travels to the index unchanged.
func (e *Emitter) Emit(key AssetKey, virtualPath string, descriptor, payload []byte) error {
	e.mu.Lock()
	if e.drained {
		e.mu.Unlock()
		return fmt.Errorf("content: emit on drained %s emitter", e.domain)
	}
	e.mu.Unlock()
	e.in <- emitRecord{key: key, virtualPath: virtualPath, descriptor: descriptor, payload: payload}
	return nil
}

// Drain stops intake, waits for queued appends to land, writes the
// table file and returns the emitted assets.
func (e *Emitter) Drain() ([]EmittedAsset, error) {
	e.mu.Lock()
	if e.drained {
		assets := e.assets
		err := e.ioErr
		e.mu.Unlock()
		return assets, err
	}
	e.drained = true
	e.mu.Unlock()

	close(e.in)
	<-e.done

	e.mu.Lock()
	assets := e.assets
	ioErr := e.ioErr
	e.mu.Unlock()
	if ioErr != nil {
		return assets, ioErr
	}
	if err := e.writeTable(assets); err != nil {
		e.mu.Lock()
		e.ioErr = err
		e.mu.Unlock()
		return assets, err
	}
	return assets, nil
}

// writeTable serializes (key, offset, size) records next to the data
// file.
func (e *Emitter) writeTable(assets []EmittedAsset) error {
	var buf bytes.Buffer
	buf.WriteString(looseTableMagic)
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
	put32(uint32(len(assets)))
	for _, a := range assets {
		put64(uint64(a.Key))
		put64(a.Offset)
		put64(a.SizeBytes)
	}
	if err := os.WriteFile(e.tablePath, buf.Bytes(), 0o644); err != nil {
		return fmt.Errorf("content: write %s table: %w", e.domain, err)
	}
	return nil
}
