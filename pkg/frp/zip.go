package frp

// Pair is the payload of Zip.
type Pair[A, B any] struct {
	First  A
	Second B
}

// Zip emits a Pair whenever either input emits, combining the new payload
// with the latest payload of the other input. Inputs that have not emitted
// yet contribute their zero value.
func Zip[A, B any](net *Network, a Stream[A], b Stream[B]) Stream[Pair[A, B]] {
	return Apply2(net, a, b, func(x A, y B) Pair[A, B] {
		return Pair[A, B]{First: x, Second: y}
	})
}

// Apply2 emits f(a, b) whenever either input emits, using the latest
// payload of the other input.
func Apply2[A, B, R any](net *Network, a Stream[A], b Stream[B], f func(A, B) R) Stream[R] {
	srcA := net.resolve(a.tok, KindZip)
	srcB := net.resolve(b.tok, KindZip)
	n, out := build[R](net, KindZip)
	lastA, _ := a.Last()
	lastB, _ := b.Last()
	rt := net.rt
	srcA.subscribe(n, func(v any) {
		lastA = as[A](v)
		rt.emit(n, f(lastA, lastB))
	})
	srcB.subscribe(n, func(v any) {
		lastB = as[B](v)
		rt.emit(n, f(lastA, lastB))
	})
	return out
}
