package frp

import "context"

// Step describes one propagation step: the synchronous traversal triggered
// by a single push into a Source, or by one deferred emission.
//
// Middleware receives the Step before the traversal and may read the
// counters after calling next.
type Step struct {
	// Seq numbers steps within a Runtime, starting at 1.
	Seq uint64

	// Origin is the node whose emission started the step.
	Origin      NodeID
	OriginLabel string

	// Network is the name of the network owning Origin.
	Network string

	// Deferred is true when the step was scheduled by Defer or EmitLater.
	Deferred bool

	// Emissions counts notifications delivered to consumers.
	Emissions int

	// Purged counts dead consumer registrations removed.
	Purged int

	// Scheduled counts emissions queued for after this step.
	Scheduled int

	// Annotations are recorded by Trace nodes.
	Annotations []Annotation

	// Context starts as context.Background. Middleware may replace it, for
	// instance with a context carrying a tracing span.
	Context context.Context
}

// Annotation is a diagnostic record left by a Trace node.
type Annotation struct {
	Node    NodeID
	Label   string
	Message string
	Value   any
}

// Middleware wraps a propagation step. It must call next exactly once.
// If next panics, the panic must be allowed to continue unwinding.
type Middleware func(step *Step, next func())
