package frp

// Defer re-emits every payload of s after the current propagation step
// unwinds, each as a propagation step of its own. It is the sanctioned way
// to feed a value back into the graph that produced it.
func Defer[T any](net *Network, s Stream[T]) Stream[T] {
	src := net.resolve(s.tok, KindDefer)
	n, out := build[T](net, KindDefer)
	rt := net.rt
	src.subscribe(n, func(v any) { rt.schedule(n.id, v) })
	return out
}
