// Package cancel implements the scan's cooperative cancellation token.
//
// A Monitor wraps a context.Context with context.WithCancelCause so that
// every worker across every phase shares one cancellation signal and one
// first-failure cause, without needing a separate atomic flag: ctx.Err()
// and context.Cause(ctx) already give workers both pieces of state.
package cancel

import (
	"context"
	"errors"
	"sync"
)

// ErrCancelled is the cause recorded when the caller cancels the parent
// context rather than a worker failing.
var ErrCancelled = errors.New("scan cancelled")

// Monitor is checked at phase boundaries and I/O boundaries inside
// work-queue processors. Tripping it is idempotent: only the first cause
// is kept, subsequent causes are attached as suppressed via errors.Join
// in Err.
type Monitor struct {
	ctx    context.Context
	cancel context.CancelCauseFunc

	mu         sync.Mutex
	firstCause error
	suppressed []error
}

// New derives a Monitor-controlled context from parent. Workers should
// thread the returned context through every I/O call.
func New(parent context.Context) (*Monitor, context.Context) {
	ctx, cancel := context.WithCancelCause(parent)
	m := &Monitor{ctx: ctx, cancel: cancel}
	return m, ctx
}

// Trip records err as a failure cause. The first call wins and cancels
// the derived context; later calls attach their error as suppressed.
func (m *Monitor) Trip(err error) {
	if err == nil {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firstCause == nil {
		m.firstCause = err
		m.cancel(err)
		return
	}
	m.suppressed = append(m.suppressed, err)
}

// Tripped reports whether the monitor has recorded a failure or the
// parent context has been cancelled.
func (m *Monitor) Tripped() bool {
	return m.ctx.Err() != nil
}

// Err returns the recorded failure, joined with any suppressed failures,
// or nil if the monitor was never tripped.
func (m *Monitor) Err() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.firstCause == nil {
		if err := m.ctx.Err(); err != nil {
			return ErrCancelled
		}
		return nil
	}
	return errors.Join(append([]error{m.firstCause}, m.suppressed...)...)
}

// Context returns the Monitor-controlled context.
func (m *Monitor) Context() context.Context {
	return m.ctx
}
