// Package frp provides a push-based reactive dataflow engine.
//
// A graph is built from nodes. Streams carry discrete events; Behaviors
// carry a value that can be sampled at any time. Every node is created by a
// combinator inside a Network, which owns it and can tear down everything it
// created as a unit.
//
// # Core Types
//
// Source[T] is the entry point for externally pushed values:
//
//	net := frp.NewNetwork("editor")
//	clicks := frp.NewSource[int](net)
//	doubled := frp.Map(net, clicks.Stream, func(v int) int { return v * 2 })
//	frp.ForEach(net, doubled, func(v int) { fmt.Println(v) })
//	clicks.Emit(21) // prints 42
//
// Behavior[T] materializes a Stream into a sampleable value:
//
//	pos := frp.Sampler(net, mouse.Position)
//	fmt.Println(pos.Sample())
//
// # Propagation
//
// Emitting into a Source starts a propagation step: a synchronous,
// depth-first walk of the consumer graph. Consumers registered on the same
// producer run in registration order. No emission is coalesced or reordered.
// A node that is asked to notify while it is already notifying aborts the
// step with a panic carrying a *NodeError; such a cycle is a programming
// error. Intentional feedback goes through Defer or Source.EmitLater, which
// run after the current step unwinds.
//
// # Lifetime
//
// Each handle returned by a combinator carries an ownership token that the
// creating Network also holds. Releasing the handle or disposing the
// Network drops the token; Clone mints an independent token that outlives
// the Network. When a node loses its last token it stops receiving events.
// Producers forget it lazily, the next time they try to notify it.
//
// # Threading
//
// A Runtime is confined to a single goroutine. Nothing in this package
// locks. Code running on other goroutines must hand work to the goroutine
// that owns the runtime (see the server package's Loop).
package frp
