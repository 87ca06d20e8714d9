package engine

import (
	"sync"
	"sync/atomic"
)

// Subscription represents an active signal connection.
type Subscription struct {
	emitter  *Emitter
	signal   string
	id       int
	canceled atomic.Bool
}

// Cancel disconnects the subscription. Safe to call more than once.
func (s *Subscription) Cancel() {
	if s.canceled.CompareAndSwap(false, true) {
		s.emitter.remove(s.signal, s.id)
	}
}

// IsCanceled returns true if this subscription has been canceled.
func (s *Subscription) IsCanceled() bool {
	return s.canceled.Load()
}

// Emitter is a per-object signal dispatch table. Emission snapshots the
// subscriber list and invokes callbacks without the lock held, so a callback
// may connect or cancel subscriptions on the same object.
type Emitter struct {
	mu   sync.Mutex
	next int
	subs map[string]map[int]func(args ...any)
}

// NewEmitter returns an empty dispatch table.
func NewEmitter() *Emitter {
	return &Emitter{subs: make(map[string]map[int]func(args ...any))}
}

// Connect subscribes fn to the named signal.
func (e *Emitter) Connect(signal string, fn func(args ...any)) *Subscription {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.next++
	sub := &Subscription{emitter: e, signal: signal, id: e.next}
	m := e.subs[signal]
	if m == nil {
		m = make(map[int]func(args ...any))
		e.subs[signal] = m
	}
	m[sub.id] = fn
	return sub
}

// Emit delivers args to every live subscriber of the named signal.
func (e *Emitter) Emit(signal string, args ...any) {
	e.mu.Lock()
	m := e.subs[signal]
	fns := make([]func(args ...any), 0, len(m))
	for _, fn := range m {
		fns = append(fns, fn)
	}
	e.mu.Unlock()

	for _, fn := range fns {
		fn(args...)
	}
}

func (e *Emitter) remove(signal string, id int) {
	e.mu.Lock()
	defer e.mu.Unlock()
	if m := e.subs[signal]; m != nil {
		delete(m, id)
		if len(m) == 0 {
			delete(e.subs, signal)
		}
	}
}
