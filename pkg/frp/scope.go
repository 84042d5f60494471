package frp

import (
	"sync"
	"sync/atomic"
)

// Scope is a general-purpose Lifetime: a hierarchical disposable owner for
// objects living outside the graph, such as a widget or a client
// connection. Binding a sub-network to a Scope ties the sub-network to the
// scope's end.
//
// Scope may be disposed from any goroutine, but cleanups run on the
// disposing goroutine. When cleanups touch a Runtime, dispose the scope on
// the goroutine that owns it.
type Scope struct {
	id     uint64
	parent *Scope

	children   []*Scope
	childrenMu sync.Mutex

	cleanups   []cleanup
	cleanupsMu sync.Mutex

	disposed atomic.Bool
}

// NewScope creates a Scope. If parent is non-nil the new scope is disposed
// together with it.
func NewScope(parent *Scope) *Scope {
	s := &Scope{
		id:     nextSeq(),
		parent: parent,
	}
	if parent != nil {
		if parent.IsDisposed() {
			s.disposed.Store(true)
			return s
		}
		parent.addChild(s)
	}
	return s
}

// ID returns the unique identifier for this Scope.
func (s *Scope) ID() uint64 {
	return s.id
}

// Parent returns the parent Scope, or nil for a root Scope.
func (s *Scope) Parent() *Scope {
	return s.parent
}

// IsDisposed returns true once Dispose has started.
func (s *Scope) IsDisposed() bool {
	return s.disposed.Load()
}

func (s *Scope) addChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()
	s.children = append(s.children, child)
}

func (s *Scope) removeChild(child *Scope) {
	s.childrenMu.Lock()
	defer s.childrenMu.Unlock()

	for i, c := range s.children {
		if c == child {
			s.children = append(s.children[:i], s.children[i+1:]...)
			return
		}
	}
}

// OnCleanup registers a function to run when the scope is disposed.
func (s *Scope) OnCleanup(fn func()) {
	s.addCleanup(fn)
}

// addCleanup registers fn and returns a function that unregisters it.
func (s *Scope) addCleanup(fn func()) (remove func()) {
	if s.disposed.Load() {
		// Already disposed, run cleanup immediately
		fn()
		return func() {}
	}

	s.cleanupsMu.Lock()
	defer s.cleanupsMu.Unlock()
	id := nextSeq()
	s.cleanups = append(s.cleanups, cleanup{id: id, fn: fn})
	return func() {
		s.cleanupsMu.Lock()
		defer s.cleanupsMu.Unlock()
		s.cleanups = removeCleanup(s.cleanups, id)
	}
}

// Dispose disposes child scopes in reverse order, then runs cleanups in
// reverse registration order. Dispose is idempotent.
func (s *Scope) Dispose() {
	if s.disposed.Swap(true) {
		return
	}

	if s.parent != nil {
		s.parent.removeChild(s)
	}

	s.childrenMu.Lock()
	children := s.children
	s.children = nil
	s.childrenMu.Unlock()

	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	s.cleanupsMu.Lock()
	cleanups := s.cleanups
	s.cleanups = nil
	s.cleanupsMu.Unlock()

	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i].fn()
	}
}

type cleanup struct {
	id uint64
	fn func()
}

func removeCleanup(cleanups []cleanup, id uint64) []cleanup {
	for i, c := range cleanups {
		if c.id == id {
			return append(cleanups[:i], cleanups[i+1:]...)
		}
	}
	return cleanups
}
