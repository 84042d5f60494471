package frp

// Toggle flips a boolean on every emission of s and emits the new state.
// The state starts at initial.
func Toggle[T any](net *Network, s Stream[T], initial bool) Stream[bool] {
	src := net.resolve(s.tok, KindToggle)
	n, out := build[bool](net, KindToggle)
	n.cache, n.hasCache = initial, true
	rt := net.rt
	src.subscribe(n, func(any) { rt.emit(n, !as[bool](n.cache)) })
	return out
}

// Count emits the number of events s has produced so far, starting at 1.
func Count[T any](net *Network, s Stream[T]) Stream[int] {
	src := net.resolve(s.tok, KindCount)
	n, out := build[int](net, KindCount)
	n.cache, n.hasCache = 0, true
	rt := net.rt
	src.subscribe(n, func(any) { rt.emit(n, as[int](n.cache)+1) })
	return out
}
