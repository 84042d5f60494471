// Package frptest provides testing helpers for frp graphs.
//
// The frptest package reduces boilerplate when testing pipelines by giving
// each test an isolated runtime, recording the notifications of a stream
// and asserting on coded aborts.
//
// # Quick Start
//
//	func TestDoubler(t *testing.T) {
//	    net := frptest.NewNetwork(t)
//	    src := frp.NewSource[int](net)
//	    rec := frptest.Record(net, frp.Map(net, src.Stream, double))
//
//	    src.Emit(1)
//	    src.Emit(2)
//	    rec.Expect(t, 2, 4)
//	}
//
// # Aborts
//
// Reentrancy and budget violations abort the propagation step with a panic.
// ExpectAbort recovers it and checks the diagnostic code:
//
//	frptest.ExpectAbort(t, frp.CodeReentrant, func() { src.Emit(1) })
package frptest
