// Package workqueue implements the scan's bounded-parallel, dynamically
// growing work queue. It is the concurrency primitive shared by the
// opener, path-scan, and classfile-scan phases.
//
// The shape is grounded on the teacher pack's DAG processors
// (ocm.software/open-component-model/bindings/go/dag/sync), which drive
// errgroup-bounded fan-out in waves and grow their frontier as each wave
// completes. Here there is no dependency graph to respect, so instead of
// waiting for a whole wave to finish before starting the next, workers
// pull from a single shared queue and push follow-on units back onto it
// as they discover them -- the "in-flight enqueue" semantics spec.md
// requires.
package workqueue

import (
	"context"
	"sync"
)

// Handle is passed to every Processor invocation so it can enqueue
// follow-on work discovered while processing the current unit.
type Handle[T any] struct {
	q *queue[T]
}

// AddWorkUnits enqueues additional units. Safe to call concurrently from
// any worker, including the one currently processing a unit.
func (h *Handle[T]) AddWorkUnits(units ...T) {
	h.q.push(units...)
}

// Processor handles one work unit. It may enqueue further units via qh.
type Processor[T any] func(ctx context.Context, unit T, qh *Handle[T]) error

type queue[T any] struct {
	mu            sync.Mutex
	cond          *sync.Cond
	pending       []T
	activeWorkers int
	woken         bool // set by cancellation to break out of Cond.Wait
}

func newQueue[T any](initial []T) *queue[T] {
	q := &queue[T]{pending: append([]T(nil), initial...)}
	q.cond = sync.NewCond(&q.mu)
	return q
}

// push increments pending before making units visible, matching
// spec.md's "Enqueue during processing increments pending before the
// push" ordering requirement, so a racing termination check never sees
// pending==0 while a unit is in flight to the queue.
func (q *queue[T]) push(units ...T) {
	if len(units) == 0 {
		return
	}
	q.mu.Lock()
	q.pending = append(q.pending, units...)
	q.mu.Unlock()
	q.cond.Broadcast()
}

// popOrWait blocks until a unit is available, the queue has drained
// with no active worker, or shouldStop reports true.
func (q *queue[T]) popOrWait(shouldStop func() bool) (unit T, ok bool) {
	q.mu.Lock()
	defer q.mu.Unlock()
	for {
		if len(q.pending) > 0 {
			u := q.pending[0]
			q.pending = q.pending[1:]
			q.activeWorkers++
			return u, true
		}
		if q.activeWorkers == 0 || shouldStop() || q.woken {
			var zero T
			return zero, false
		}
		q.cond.Wait()
	}
}

func (q *queue[T]) doneProcessing() {
	q.mu.Lock()
	q.activeWorkers--
	q.mu.Unlock()
	q.cond.Broadcast()
}

// interrupt wakes every waiter so they can observe cancellation.
func (q *queue[T]) interrupt() {
	q.mu.Lock()
	q.woken = true
	q.mu.Unlock()
	q.cond.Broadcast()
}

// Canceller is satisfied by internal/cancel.Monitor. Kept as a narrow
// interface so workqueue does not need to import the cancel package.
type Canceller interface {
	Tripped() bool
}

// Run executes processor for every unit in initial and for every unit
// added via Handle.AddWorkUnits while processing, using parallelism
// worker goroutines. It returns once the queue has drained (no pending
// units and no active worker) or the monitor trips.
//
// A processor error is not returned directly: callers are expected to
// record it on their own cancel.Monitor and trip cancellation, since the
// queue itself has no opinion on failure aggregation (spec.md: "the
// first failure is recorded by the Interruption Monitor").
func Run[T any](ctx context.Context, monitor Canceller, parallelism int, initial []T, processor Processor[T]) {
	if parallelism < 1 {
		parallelism = 1
	}

	q := newQueue(initial)
	handle := &Handle[T]{q: q}

	stop := make(chan struct{})
	go func() {
		select {
		case <-ctx.Done():
			q.interrupt()
		case <-stop:
		}
	}()
	defer close(stop)

	shouldStop := func() bool { return monitor.Tripped() }

	var wg sync.WaitGroup
	for i := 0; i < parallelism; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			worker(ctx, q, handle, processor, shouldStop)
		}()
	}
	wg.Wait()
}

func worker[T any](ctx context.Context, q *queue[T], handle *Handle[T], processor Processor[T], shouldStop func() bool) {
	for {
		if shouldStop() {
			return
		}
		unit, ok := q.popOrWait(shouldStop)
		if !ok {
			return
		}
		_ = processor(ctx, unit, handle)
		q.doneProcessing()
	}
}
