package frp

// Merge forwards every payload of every input unchanged. Each upstream
// emission produces exactly one downstream notification, in the order the
// upstream notifications occur.
func Merge[T any](net *Network, streams ...Stream[T]) Stream[T] {
	srcs := make([]*node, len(streams))
	for i, s := range streams {
		srcs[i] = net.resolve(s.tok, KindMerge)
	}
	n, out := build[T](net, KindMerge)
	rt := net.rt
	for _, src := range srcs {
		src.subscribe(n, func(v any) { rt.emit(n, v) })
	}
	return out
}

// Gather is a Merge whose inputs are attached after construction.
type Gather[T any] struct {
	Stream[T]
	net *Network
}

// NewGather creates a Gather with no inputs.
func NewGather[T any](net *Network) *Gather[T] {
	_, s := build[T](net, KindMerge)
	return &Gather[T]{Stream: s, net: net}
}

// Attach adds s as an input. Attaching to a released Gather is a no-op.
func (g *Gather[T]) Attach(s Stream[T]) {
	n := g.tok.node()
	if n == nil {
		return
	}
	src := g.net.resolve(s.tok, KindMerge)
	rt := g.net.rt
	src.subscribe(n, func(v any) { rt.emit(n, v) })
}
