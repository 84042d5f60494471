package frp

// Sampler materializes s into a Behavior holding its latest payload. The
// behavior starts from the last value s emitted, or the zero value.
//
// The sampler stays subscribed to s for as long as the sampler node is
// alive: while its network, a handle or at least one Watch holds it.
func Sampler[T any](net *Network, s Stream[T]) Behavior[T] {
	src := net.resolve(s.tok, KindSampler)
	n, out := build[T](net, KindSampler)
	if src.hasCache {
		n.cache, n.hasCache = src.cache, true
	}
	subscribeSampler(net.rt, src, n)
	return Behavior[T]{Stream: out}
}

// Hold is Sampler with an explicit initial value.
func Hold[T any](net *Network, s Stream[T], initial T) Behavior[T] {
	src := net.resolve(s.tok, KindSampler)
	n, out := build[T](net, KindSampler)
	n.cache, n.hasCache = initial, true
	subscribeSampler(net.rt, src, n)
	return Behavior[T]{Stream: out}
}

func subscribeSampler(rt *Runtime, src, n *node) {
	src.subscribe(n, func(v any) { rt.emit(n, v) })
}
