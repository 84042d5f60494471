package frp

// token is one strong reference to a node. Handles, Network slots and
// watches each hold a token; a node dies when its last token is released.
type token struct {
	rt       *Runtime
	id       NodeID
	watch    bool
	released bool
}

// release drops the reference. Releasing twice is a no-op.
func (t *token) release() {
	if t == nil || t.released {
		return
	}
	t.released = true
	if t.watch {
		if n := t.rt.arena.get(t.id); n != nil && n.watchers > 0 {
			n.watchers--
		}
	}
	t.rt.decref(t.id)
}

// node resolves the token to its node, or nil if the token was released or
// the node is detached.
func (t *token) node() *node {
	if t == nil || t.released {
		return nil
	}
	n := t.rt.arena.get(t.id)
	if n == nil || n.detached {
		return nil
	}
	return n
}

// watch mints a watch token on the node behind t.
func (t *token) watchToken() *token {
	if t.released {
		return &token{rt: t.rt, id: t.id, watch: true, released: true}
	}
	w := t.rt.incref(t.id)
	if w.released {
		return w
	}
	w.watch = true
	t.rt.arena.get(t.id).watchers++
	return w
}

// as converts a cached payload back to T. A missing payload yields the
// zero value.
func as[T any](v any) T {
	t, _ := v.(T)
	return t
}

// Stream is a typed handle to a node emitting discrete events of type T.
//
// The zero Stream is not attached to any node. Passing it to a combinator
// panics.
type Stream[T any] struct {
	tok *token
}

// ID returns the node id, or the zero id for a zero Stream.
func (s Stream[T]) ID() NodeID {
	if s.tok == nil {
		return NodeID{}
	}
	return s.tok.id
}

// IsZero reports whether s was never attached to a node.
func (s Stream[T]) IsZero() bool {
	return s.tok == nil
}

// Alive reports whether this handle still keeps its node alive.
func (s Stream[T]) Alive() bool {
	return s.tok.node() != nil
}

// Label returns the node's diagnostic label.
func (s Stream[T]) Label() string {
	if n := s.tok.node(); n != nil {
		return n.label
	}
	return ""
}

// Named sets the node's diagnostic label and returns s.
func (s Stream[T]) Named(label string) Stream[T] {
	if n := s.tok.node(); n != nil && label != "" {
		n.label = label
	}
	return s
}

// Clone returns an independent handle on the same node. The clone keeps
// the node alive until it is released, even after the owning Network is
// disposed.
func (s Stream[T]) Clone() Stream[T] {
	if s.tok == nil {
		return s
	}
	if s.tok.released {
		return Stream[T]{tok: &token{rt: s.tok.rt, id: s.tok.id, released: true}}
	}
	return Stream[T]{tok: s.tok.rt.incref(s.tok.id)}
}

// Release drops this handle's reference. Handles returned by combinators
// share their reference with the owning Network, so releasing either one
// releases both. Release is idempotent.
func (s Stream[T]) Release() {
	s.tok.release()
}

// Last returns the most recent payload emitted by the node. Plain streams
// make no promise about what that value means between emissions; prefer
// a Behavior when a current value is needed.
func (s Stream[T]) Last() (T, bool) {
	n := s.tok.node()
	if n == nil || !n.hasCache {
		var zero T
		return zero, false
	}
	return as[T](n.cache), true
}

// Behavior is a typed handle to a node whose current value can be sampled
// without a push. A Behavior is also a Stream: it emits whenever its value
// is updated.
type Behavior[T any] struct {
	Stream[T]
}

// Sample returns the current value, or the zero value if the behavior has
// not seen one yet or has been released.
func (b Behavior[T]) Sample() T {
	v, _ := b.Last()
	return v
}

// Named sets the node's diagnostic label and returns b.
func (b Behavior[T]) Named(label string) Behavior[T] {
	b.Stream.Named(label)
	return b
}

// Clone returns an independent handle on the same node.
func (b Behavior[T]) Clone() Behavior[T] {
	return Behavior[T]{Stream: b.Stream.Clone()}
}

// Watch registers a watcher on the behavior. The watch keeps the node and
// its subscription alive until released.
func (b Behavior[T]) Watch() Watch[T] {
	if b.tok == nil {
		return Watch[T]{}
	}
	return Watch[T]{tok: b.tok.watchToken()}
}

// Watchers returns the number of live watches on the behavior.
func (b Behavior[T]) Watchers() int {
	if n := b.tok.node(); n != nil {
		return n.watchers
	}
	return 0
}

// Watch is a pull-only reference to a Behavior. It is what combinators such
// as Gate and Sample hold on their behavior input.
type Watch[T any] struct {
	tok *token
}

// Sample returns the behavior's current value, or the zero value once the
// watch has been released.
func (w Watch[T]) Sample() T {
	n := w.tok.node()
	if n == nil {
		var zero T
		return zero
	}
	return as[T](n.cache)
}

// Alive reports whether the watch still holds its behavior.
func (w Watch[T]) Alive() bool {
	return w.tok.node() != nil
}

// Release drops the watch. Release is idempotent.
func (w Watch[T]) Release() {
	w.tok.release()
}

// Source is a Stream that accepts externally pushed values.
type Source[T any] struct {
	Stream[T]
}

// Emit pushes v into the source. Outside a propagation step this starts a
// new step and then drains the deferred queue before returning. Emitting
// into a released source is a no-op.
func (s *Source[T]) Emit(v T) {
	n := s.tok.node()
	if n == nil {
		return
	}
	s.tok.rt.push(n, v)
}

// EmitLater schedules v to be emitted after the current propagation step
// unwinds. Outside a step it behaves like Emit.
func (s *Source[T]) EmitLater(v T) {
	if s.tok.node() == nil {
		return
	}
	s.tok.rt.schedule(s.tok.id, v)
}

// Clone returns an independent handle on the same source.
func (s *Source[T]) Clone() *Source[T] {
	return &Source[T]{Stream: s.Stream.Clone()}
}

// Named sets the node's diagnostic label and returns s.
func (s *Source[T]) Named(label string) *Source[T] {
	s.Stream.Named(label)
	return s
}
