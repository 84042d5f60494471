package frp

// Previous emits, for every payload of s, the payload that preceded it. The
// first emission yields initial.
//
// The node caches the incoming payload rather than the emitted one, so
// Last reports the most recent input.
func Previous[T any](net *Network, s Stream[T], initial T) Stream[T] {
	src := net.resolve(s.tok, KindPrevious)
	n, out := build[T](net, KindPrevious)
	n.cache, n.hasCache = initial, true
	rt := net.rt
	src.subscribe(n, func(v any) {
		prior := n.cache
		rt.emit(n, prior)
		n.cache = v
	})
	return out
}
