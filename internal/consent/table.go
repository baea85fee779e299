// Package consent holds the in-flight permission requests waiting for a human.
package consent

import (
	"context"
	"sync"

	"github.com/cockroachdb/errors"
)

// ErrSuperseded is returned to a waiter displaced by a newer request from the
// same origin.
var ErrSuperseded = errors.New("consent request superseded")

type Decision int

const (
	DecisionDenied Decision = iota
	DecisionGranted
)

func (d Decision) String() string {
	if d == DecisionGranted {
		return "granted"
	}
	return "denied"
}

type outcome struct {
	decision Decision
	err      error
}

// waiter.ch is buffered; only whoever removes the waiter from the table sends.
type waiter struct {
	ch chan outcome
}

// Table keeps at most one waiter per origin.
type Table struct {
	mu      sync.Mutex
	pending map[string]*waiter
}

func NewTable() *Table {
	return &Table{pending: make(map[string]*waiter)}
}

// Wait is a registered waiter. A Resolve that lands after Register and
// before Await is kept for Await.
type Wait struct {
	t      *Table
	origin string
	w      *waiter
}

// Register installs a waiter for origin, displacing any previous one.
func (t *Table) Register(origin string) *Wait {
	w := &waiter{ch: make(chan outcome, 1)}

	t.mu.Lock()
	if prev, ok := t.pending[origin]; ok {
		prev.ch <- outcome{err: ErrSuperseded}
	}
	t.pending[origin] = w
	t.mu.Unlock()

	return &Wait{t: t, origin: origin, w: w}
}

// Await blocks until origin is resolved, the wait is superseded or ctx ends.
func (t *Table) Await(ctx context.Context, origin string) (Decision, error) {
	return t.Register(origin).Await(ctx)
}

func (w *Wait) Await(ctx context.Context) (Decision, error) {
	select {
	case o := <-w.w.ch:
		return o.decision, o.err
	case <-ctx.Done():
		w.Cancel()

		// a resolve may have landed between ctx.Done and the lock
		select {
		case o := <-w.w.ch:
			return o.decision, o.err
		default:
		}
		return DecisionDenied, ctx.Err()
	}
}

// Cancel drops the waiter if it is still the one registered for its origin.
// Safe to call after the wait has completed.
func (w *Wait) Cancel() {
	w.t.mu.Lock()
	if w.t.pending[w.origin] == w.w {
		delete(w.t.pending, w.origin)
	}
	w.t.mu.Unlock()
}

// Resolve completes the wait for origin. It returns false when nothing was
// pending.
func (t *Table) Resolve(origin string, d Decision) bool {
	t.mu.Lock()
	w, ok := t.pending[origin]
	if ok {
		delete(t.pending, origin)
	}
	t.mu.Unlock()

	if !ok {
		return false
	}
	w.ch <- outcome{decision: d}
	return true
}

func (t *Table) Pending(origin string) bool {
	t.mu.Lock()
	defer t.mu.Unlock()
	_, ok := t.pending[origin]
	return ok
}

func (t *Table) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.pending)
}
