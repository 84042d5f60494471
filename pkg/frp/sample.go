package frp

// Sample emits the current value of b every time trigger emits. The
// trigger's own payload is ignored.
func Sample[T, U any](net *Network, trigger Stream[U], b Behavior[T]) Stream[T] {
	src := net.resolve(trigger.tok, KindSample)
	net.resolve(b.tok, KindSample)
	n, out := build[T](net, KindSample)
	w := hold(n, b)
	rt := net.rt
	src.subscribe(n, func(any) { rt.emit(n, w.Sample()) })
	return out
}
