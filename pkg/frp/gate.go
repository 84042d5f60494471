package frp

// Gate forwards payloads of s while cond is true and drops them otherwise.
// cond is read at the instant s emits.
func Gate[T any](net *Network, s Stream[T], cond Behavior[bool]) Stream[T] {
	src := net.resolve(s.tok, KindGate)
	net.resolve(cond.tok, KindGate)
	n, out := build[T](net, KindGate)
	w := hold(n, cond)
	rt := net.rt
	src.subscribe(n, func(v any) {
		if w.Sample() {
			rt.emit(n, v)
		}
	})
	return out
}

// GateNot forwards payloads of s while cond is false.
func GateNot[T any](net *Network, s Stream[T], cond Behavior[bool]) Stream[T] {
	src := net.resolve(s.tok, KindGate)
	net.resolve(cond.tok, KindGate)
	n, out := build[T](net, KindGate)
	w := hold(n, cond)
	rt := net.rt
	src.subscribe(n, func(v any) {
		if !w.Sample() {
			rt.emit(n, v)
		}
	})
	return out
}

// Filter forwards the payloads of s for which keep returns true.
func Filter[T any](net *Network, s Stream[T], keep func(T) bool) Stream[T] {
	src := net.resolve(s.tok, KindFilter)
	n, out := build[T](net, KindFilter)
	rt := net.rt
	src.subscribe(n, func(v any) {
		if keep(as[T](v)) {
			rt.emit(n, v)
		}
	})
	return out
}
