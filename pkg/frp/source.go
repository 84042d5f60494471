package frp

// NewSource creates a Source owned by net.
func NewSource[T any](net *Network) *Source[T] {
	_, s := build[T](net, KindSource)
	return &Source[T]{Stream: s}
}

// Constant replaces every payload of s with v.
func Constant[T, U any](net *Network, s Stream[T], v U) Stream[U] {
	src := net.resolve(s.tok, KindConstant)
	n, out := build[U](net, KindConstant)
	rt := net.rt
	src.subscribe(n, func(any) { rt.emit(n, v) })
	return out
}

// ForEach runs fn on every payload of s and passes the payload through.
func ForEach[T any](net *Network, s Stream[T], fn func(T)) Stream[T] {
	src := net.resolve(s.tok, KindForEach)
	n, out := build[T](net, KindForEach)
	rt := net.rt
	src.subscribe(n, func(v any) {
		fn(as[T](v))
		rt.emit(n, v)
	})
	return out
}
