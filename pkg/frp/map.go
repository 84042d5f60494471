package frp

// Map applies f to every payload of s. f runs exactly once per emission,
// synchronously, in the producer's call stack.
func Map[T, U any](net *Network, s Stream[T], f func(T) U) Stream[U] {
	src := net.resolve(s.tok, KindMap)
	n, out := build[U](net, KindMap)
	rt := net.rt
	src.subscribe(n, func(v any) { rt.emit(n, f(as[T](v))) })
	return out
}

// Map2 applies f to every payload of s together with the current value of
// b. Only s triggers; updates of b are not propagated.
func Map2[T, U, R any](net *Network, s Stream[T], b Behavior[U], f func(T, U) R) Stream[R] {
	src := net.resolve(s.tok, KindMap)
	net.resolve(b.tok, KindMap)
	n, out := build[R](net, KindMap)
	w := hold(n, b)
	rt := net.rt
	src.subscribe(n, func(v any) { rt.emit(n, f(as[T](v), w.Sample())) })
	return out
}

// hold gives consumer a watch on b, released when consumer is destroyed.
func hold[T any](consumer *node, b Behavior[T]) Watch[T] {
	w := b.Watch()
	consumer.holds = append(consumer.holds, w.tok)
	consumer.watches = append(consumer.watches, b.tok.id)
	return w
}
