package frp

import "reflect"

// Kind identifies the combinator that built a node.
type Kind uint8

const (
	KindSource Kind = iota + 1
	KindMap
	KindMerge
	KindGate
	KindSample
	KindToggle
	KindPrevious
	KindSampler
	KindTrace
	KindCount
	KindConstant
	KindZip
	KindForEach
	KindDefer
	KindFilter
)

// String returns the combinator name.
func (k Kind) String() string {
	switch k {
	case KindSource:
		return "source"
	case KindMap:
		return "map"
	case KindMerge:
		return "merge"
	case KindGate:
		return "gate"
	case KindSample:
		return "sample"
	case KindToggle:
		return "toggle"
	case KindPrevious:
		return "previous"
	case KindSampler:
		return "sampler"
	case KindTrace:
		return "trace"
	case KindCount:
		return "count"
	case KindConstant:
		return "constant"
	case KindZip:
		return "zip"
	case KindForEach:
		return "foreach"
	case KindDefer:
		return "defer"
	case KindFilter:
		return "filter"
	default:
		return "unknown"
	}
}

// edge is a consumer registration living in its producer's list.
// target is a weak reference; deliver receives the producer's payload.
type edge struct {
	target  NodeID
	deliver func(v any)
}

// node is the type-erased unit of the graph. Typed views are provided by
// Stream, Behavior and Source.
type node struct {
	id      NodeID
	seq     uint64
	kind    Kind
	label   string
	typ     reflect.Type
	network string

	// refs counts live ownership tokens (Network slot, handles, watches).
	refs int

	// watchers counts Watch handles relying on cache for pull reads.
	watchers int

	cache    any
	hasCache bool

	consumers []edge

	// inputs and watches record producers for inspection only.
	inputs  []NodeID
	watches []NodeID

	// holds are tokens this node keeps on other nodes (watched behaviors).
	holds []*token

	notifying bool
	detached  bool
}

// subscribe registers consumer on producer in registration order.
func (p *node) subscribe(consumer *node, deliver func(v any)) {
	p.consumers = append(p.consumers, edge{target: consumer.id, deliver: deliver})
	consumer.inputs = append(consumer.inputs, p.id)
}

// liveConsumers returns the consumer ids that still resolve in rt.
func (p *node) liveConsumers(rt *Runtime) []NodeID {
	ids := make([]NodeID, 0, len(p.consumers))
	for _, e := range p.consumers {
		if c := rt.arena.get(e.target); c != nil && !c.detached {
			ids = append(ids, e.target)
		}
	}
	return ids
}
