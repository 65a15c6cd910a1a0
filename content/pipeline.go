// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"

	"golang.org/x/sync/errgroup"
)

// ErrPipelineClosed is returned by Submit after Close.
var ErrPipelineClosed = errors.New("content: pipeline closed")

// WorkItem is one unit of pipeline input. Ctx is the item's stop
// token; a nil Ctx never cancels.
type WorkItem[I any] struct {
	Ctx     context.Context
	Name    string
	Payload I
}

func (w *WorkItem[I]) ctx() context.Context {
	if w.Ctx == nil {
		return context.Background()
	}
	return w.Ctx
}

// WorkResult is one unit of pipeline output. Cancelled and failed
// items carry Success=false and a zero payload.
type WorkResult[O any] struct {
	Name            string
	Success         bool
	UsedPlaceholder bool
	Payload         O
	Diagnostics     []ImportDiagnostic
}

// Progress is a snapshot of pipeline counters. InFlight is derived so
// Submitted == Completed + Failed + InFlight holds at every
// observation.
type Progress struct {
	Submitted uint64
	Completed uint64
	Failed    uint64
	InFlight  uint64
}

// ProcessFunc cooks one item. Implementations must honor ctx and
// report failure through the result, reserving panics for bugs.
type ProcessFunc[I, O any] func(ctx context.Context, item WorkItem[I]) WorkResult[O]

// Pipeline is a bounded multiple-producer single-consumer stage.
// Producers call Submit or TrySubmit; the single consumer reads
// Results. Close stops intake, drains queued items and then closes the
// results channel.
type Pipeline[I, O any] struct {
	in   chan WorkItem[I]
	out  chan WorkResult[O]
	quit chan struct{}
	fn   ProcessFunc[I, O]

	submitted atomic.Uint64
	completed atomic.Uint64
	failed    atomic.Uint64

	closeOnce sync.Once
	group     *errgroup.Group
}

// NewPipeline starts workers goroutines over a capacity-bounded input
// channel.
func NewPipeline[I, O any](workers, capacity int, fn ProcessFunc[I, O]) *Pipeline[I, O] {
	if workers < 1 {
		workers = 1
	}
	if capacity < 1 {
		capacity = 1
	}
	p := &Pipeline[I, O]{
		in:   make(chan WorkItem[I], capacity),
		out:  make(chan WorkResult[O], capacity),
		quit: make(chan struct{}),
		fn:   fn,
	}
	p.group = &errgroup.Group{}
	for i := 0; i < workers; i++ {
		p.group.Go(p.worker)
	}
	go func() {
		_ = p.group.Wait()
		close(p.out)
	}()
	return p
}

func (p *Pipeline[I, O]) worker() error {
	for {
		select {
		case item := <-p.in:
			p.handle(item)
		case <-p.quit:
			// Drain whatever was queued before the close.
			for {
				select {
				case item := <-p.in:
					p.handle(item)
				default:
					return nil
				}
			}
		}
	}
}

func (p *Pipeline[I, O]) handle(item WorkItem[I]) {
	ctx := item.ctx()
	var result WorkResult[O]
	if err := ctx.Err(); err != nil {
		result = WorkResult[O]{
			Name: item.Name,
			Diagnostics: []ImportDiagnostic{
				diagf(SeverityWarning, CodeCancelled, item.Name, "cancelled before processing: %v", err),
			},
		}
	} else {
		result = p.fn(ctx, item)
	}
	if result.Success {
		p.completed.Add(1)
	} else {
		p.failed.Add(1)
	}
	p.out <- result
}

// Submit queues an item, blocking while the input channel is full.
func (p *Pipeline[I, O]) Submit(item WorkItem[I]) error {
	select {
	case <-p.quit:
		return ErrPipelineClosed
	default:
	}
	select {
	case p.in <- item:
		p.submitted.Add(1)
		return nil
	case <-p.quit:
		return ErrPipelineClosed
	}
}

// TrySubmit queues an item without blocking; it reports false when the
// pipeline is full or closed.
func (p *Pipeline[I, O]) TrySubmit(item WorkItem[I]) bool {
	select {
	case <-p.quit:
		return false
	default:
	}
	select {
	case p.in <- item:
		p.submitted.Add(1)
		return true
	default:
		return false
	}
}

// Results is the single-consumer output channel. It is closed after
// Close once the last queued item's result has been emitted.
func (p *Pipeline[I, O]) Results() <-chan WorkResult[O] {
	return p.out
}

// Close stops intake. Workers drain queued items and exit; the results
// channel closes after the last result. Safe to call more than once.
func (p *Pipeline[I, O]) Close() {
	p.closeOnce.Do(func() { close(p.quit) })
}

// GetProgress returns a counter snapshot.
func (p *Pipeline[I, O]) GetProgress() Progress {
	// Read terminal counters first so in-flight never goes negative
	// when a submit lands between the loads.
	completed := p.completed.Load()
	failed := p.failed.Load()
	submitted := p.submitted.Load()
	return Progress{
		Submitted: submitted,
		Completed: completed,
		Failed:    failed,
		InFlight:  submitted - completed - failed,
	}
}
