// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"fmt"
	"sync"

	"github.com/abdes/oxygen"
	"github.com/google/uuid"
)

// ImportSession is the lifetime unit for one import request. It owns a
// LooseCookedWriter for its cooked_root and builds per-domain emitters
// lazily. Finalize drains emitters, registers their output with the
// index registry and writes the index when this session is the last
// active writer to the root.
type ImportSession struct {
	id     uuid.UUID
	writer *LooseCookedWriter
	tables *ResourceTableRegistry
	index  *LooseCookedIndexRegistry

	mu        sync.Mutex
	emitters  map[AssetType]*Emitter
	diags     []ImportDiagnostic
	finalized bool
}

// NewImportSession opens a session writing under root.
func NewImportSession(root string, tables *ResourceTableRegistry, index *LooseCookedIndexRegistry) (*ImportSession, error) {
	if tables == nil || index == nil {
		return nil, fmt.Errorf("content: nil registry")
	}
	writer, err := NewLooseCookedWriter(root)
	if err != nil {
		return nil, err
	}
	s := &ImportSession{
		id:       uuid.New(),
		writer:   writer,
		tables:   tables,
		index:    index,
		emitters: make(map[AssetType]*Emitter),
	}
	tables.BeginSession(root, s.id)
	oxygen.Logger().Debug("import session opened", "session", s.id, "root", root)
	return s, nil
}

// ID returns the session identifier.
func (s *ImportSession) ID() uuid.UUID { return s.id }

// Emitter returns the session's emitter for a domain, creating it on
// first use.
func (s *ImportSession) Emitter(domain AssetType) (*Emitter, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.finalized {
		return nil, fmt.Errorf("content: session %s already finalized", s.id)
	}
	if e, ok := s.emitters[domain]; ok {
		return e, nil
	}
	e, err := NewEmitter(s.writer, domain)
	if err != nil {
		return nil, err
	}
	s.emitters[domain] = e
	return e, nil
}

// Report attaches diagnostics gathered during the import to the
// session.
func (s *ImportSession) Report(diags ...ImportDiagnostic) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.diags = append(s.diags, diags...)
}

// Finalize drains every emitter, ends the table session and registers
// files and assets with the index registry. The index is written when
// this session was the last active writer to cooked_root. Diagnostics
// of severity Error do not block the write; when any are present an
// import.index_written_with_errors diagnostic is appended so cooked
// files and the index never desynchronize.
func (s *ImportSession) Finalize() ([]ImportDiagnostic, error) {
	s.mu.Lock()
	if s.finalized {
		diags := s.diags
		s.mu.Unlock()
		return diags, fmt.Errorf("content: session %s already finalized", s.id)
	}
	s.finalized = true
	emitters := s.emitters
	s.mu.Unlock()

	var firstErr error
	for domain, e := range emitters {
		assets, err := e.Drain()
		if err != nil {
			if firstErr == nil {
				firstErr = err
			}
			s.Report(diagf(SeverityError, CodeIndexWrittenWithErrors, domain.String(),
				"emitter drain failed: %v", err))
		}
		for _, a := range assets {
			s.index.RegisterAsset(a, e.DataPath())
		}
		if err == nil {
			if ferr := s.index.RegisterFile(e.DataPath()); ferr != nil && firstErr == nil {
				firstErr = ferr
			}
			if ferr := s.index.RegisterFile(e.TablePath()); ferr != nil && firstErr == nil {
				firstErr = ferr
			}
		}
	}

	last := s.tables.EndSession(s.writer.Root(), s.id)
	if last {
		hadErrors := false
		s.mu.Lock()
		for _, d := range s.diags {
			if d.Severity == SeverityError {
				hadErrors = true
				break
			}
		}
		s.mu.Unlock()
		if err := s.index.WriteIndex(s.writer.Root()); err != nil {
			if firstErr == nil {
				firstErr = err
			}
		} else if hadErrors || firstErr != nil {
			s.Report(diagf(SeverityWarning, CodeIndexWrittenWithErrors, s.writer.Root(),
				"index written while the session carried error diagnostics"))
		}
		oxygen.Logger().Debug("import session finalized", "session", s.id, "index_written", true)
	} else {
		oxygen.Logger().Debug("import session finalized", "session", s.id, "index_written", false)
	}

	s.mu.Lock()
	diags := s.diags
	s.mu.Unlock()
	return diags, firstErr
}
