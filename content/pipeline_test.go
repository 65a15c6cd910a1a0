// Copyright 2026 The oxygen Authors
// SPDX-License-Identifier: BSD-3-Clause

package content

import (
	"context"
	"sync"
	"testing"
	"time"
)

func echoProcess(ctx context.Context, item WorkItem[int]) WorkResult[int] {
	return WorkResult[int]{Name: item.Name, Success: true, Payload: item.Payload * 2}
}

func TestPipelineProcessesAllItems(t *testing.T) {
	p := NewPipeline[int, int](4, 8, echoProcess)

	const n = 32
	go func() {
		for i := 0; i < n; i++ {
			if err := p.Submit(WorkItem[int]{Name: "item", Payload: i}); err != nil {
				t.Errorf("Submit: %v", err)
			}
		}
		p.Close()
	}()

	var sum int
	count := 0
	for r := range p.Results() {
		if !r.Success {
			t.Errorf("expected success for %s", r.Name)
		}
		sum += r.Payload
		count++
	}
	if count != n {
		t.Fatalf("expected %d results, got %d", n, count)
	}
	if want := n * (n - 1); sum != want {
		t.Errorf("expected payload sum %d, got %d", want, sum)
	}
}

func TestPipelineProgressInvariant(t *testing.T) {
	release := make(chan struct{})
	p := NewPipeline[int, int](1, 4, func(ctx context.Context, item WorkItem[int]) WorkResult[int] {
		<-release
		return WorkResult[int]{Name: item.Name, Success: true}
	})

	for i := 0; i < 3; i++ {
		if err := p.Submit(WorkItem[int]{Name: "held"}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	pr := p.GetProgress()
	if pr.Submitted != 3 {
		t.Errorf("expected 3 submitted, got %d", pr.Submitted)
	}
	if pr.Submitted != pr.Completed+pr.Failed+pr.InFlight {
		t.Errorf("progress invariant broken: %+v", pr)
	}

	close(release)
	p.Close()
	for range p.Results() {
	}
	pr = p.GetProgress()
	if pr.Completed != 3 || pr.InFlight != 0 {
		t.Errorf("expected 3 completed and 0 in flight, got %+v", pr)
	}
}

func TestPipelineTrySubmitBackpressure(t *testing.T) {
	block := make(chan struct{})
	p := NewPipeline[int, int](1, 1, func(ctx context.Context, item WorkItem[int]) WorkResult[int] {
		<-block
		return WorkResult[int]{Success: true}
	})
	defer p.Close()

	// Fill the worker plus the buffered slot; the channel is
	// eventually full.
	deadline := time.Now().Add(2 * time.Second)
	accepted := 0
	for time.Now().Before(deadline) && accepted < 2 {
		if p.TrySubmit(WorkItem[int]{Name: "fill"}) {
			accepted++
		}
	}
	if accepted != 2 {
		t.Fatalf("expected 2 accepted submissions, got %d", accepted)
	}
	if p.TrySubmit(WorkItem[int]{Name: "overflow"}) {
		t.Error("expected TrySubmit to reject when full")
	}
	close(block)
}

func TestPipelineSubmitAfterClose(t *testing.T) {
	p := NewPipeline[int, int](1, 1, echoProcess)
	p.Close()
	if err := p.Submit(WorkItem[int]{Name: "late"}); err != ErrPipelineClosed {
		t.Errorf("expected ErrPipelineClosed, got %v", err)
	}
	if p.TrySubmit(WorkItem[int]{Name: "late"}) {
		t.Error("expected TrySubmit to reject after close")
	}
}

func TestPipelineCloseDrainsQueued(t *testing.T) {
	var mu sync.Mutex
	seen := 0
	p := NewPipeline[int, int](1, 8, func(ctx context.Context, item WorkItem[int]) WorkResult[int] {
		mu.Lock()
		seen++
		mu.Unlock()
		return WorkResult[int]{Success: true}
	})
	for i := 0; i < 5; i++ {
		if err := p.Submit(WorkItem[int]{Name: "queued"}); err != nil {
			t.Fatalf("Submit: %v", err)
		}
	}
	p.Close()
	results := 0
	for range p.Results() {
		results++
	}
	if results != 5 {
		t.Errorf("expected 5 drained results, got %d", results)
	}
	mu.Lock()
	defer mu.Unlock()
	if seen != 5 {
		t.Errorf("expected 5 processed items, got %d", seen)
	}
}

func TestPipelineCancelledItem(t *testing.T) {
	p := NewPipeline[int, int](1, 1, echoProcess)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if err := p.Submit(WorkItem[int]{Ctx: ctx, Name: "doomed"}); err != nil {
		t.Fatalf("Submit: %v", err)
	}
	p.Close()

	r, ok := <-p.Results()
	if !ok {
		t.Fatal("expected a result before close")
	}
	if r.Success {
		t.Error("expected cancelled item to fail")
	}
	if len(r.Diagnostics) == 0 || r.Diagnostics[0].Code != CodeCancelled {
		t.Errorf("expected cancellation diagnostic, got %+v", r.Diagnostics)
	}
	pr := p.GetProgress()
	if pr.Failed != 1 {
		t.Errorf("expected 1 failed, got %d", pr.Failed)
	}
}
