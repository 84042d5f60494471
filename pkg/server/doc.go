// Package server runs an frp graph behind a websocket bridge.
//
// A Runtime is not safe for concurrent use. Loop confines it to a single
// goroutine: network handlers and HTTP endpoints submit work to the loop
// instead of touching the graph directly.
//
// Server exposes named inputs and outputs of the graph to clients:
//
//	rt := frp.NewRuntime()
//	srv := server.New(rt, server.DefaultOptions())
//
//	clicks := frp.NewSource[struct{}](srv.Network())
//	server.Expose(srv, "clicks", clicks)
//	server.Publish(srv, "count", frp.Count(srv.Network(), clicks.Stream))
//
//	srv.OnConnect(func(c *server.Conn) {
//	    m := input.NewMouse(c.Network())
//	    server.Expose(c, "mouse.position", m.Position)
//	    server.Publish(c, "mouse.delta", m.Delta)
//	})
//
//	err := srv.Run(ctx)
//
// Outputs published on the Server are broadcast to every connection.
// Inputs and outputs registered on a Conn live in a sub-network bound to
// the connection and are torn down when it closes.
//
// # Wire protocol
//
// Frames use the binary framing of package protocol. The server sends
// Hello first, then Output frames as the graph emits. Each Input frame is
// answered with an Ack once its propagation step, and the deferred
// emissions it caused, have completed, or with an Error frame.
//
// # HTTP endpoints
//
//	GET /healthz     liveness probe
//	GET /graph       JSON snapshot of the graph (?network= filters)
//	GET /graph.dot   Graphviz rendering of the graph
//	GET /metrics     Prometheus metrics, when a Gatherer is configured
//	GET /ws          websocket bridge
package server
