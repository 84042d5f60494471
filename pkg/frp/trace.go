package frp

// Trace passes every payload of s through unchanged, logging it at Info
// level and recording an Annotation on the propagation step.
func Trace[T any](net *Network, s Stream[T], message string) Stream[T] {
	src := net.resolve(s.tok, KindTrace)
	n, out := build[T](net, KindTrace)
	rt := net.rt
	src.subscribe(n, func(v any) {
		rt.annotate(n, message, v)
		rt.logger.Info("frp: trace", "node", n.label, "message", message, "value", v)
		rt.emit(n, v)
	})
	return out
}
