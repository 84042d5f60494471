package frp

import (
	"fmt"
	"io"
	"sort"
	"strings"
)

// Stats is a summary of a Runtime's arena and counters.
type Stats struct {
	LiveNodes int    `json:"live_nodes"`
	FreeSlots int    `json:"free_slots"`
	Steps     uint64 `json:"steps"`
	Emissions uint64 `json:"emissions"`
	Purged    uint64 `json:"purged"`
	Deferred  int    `json:"deferred"`
}

// Stats returns the runtime's current statistics.
func (rt *Runtime) Stats() Stats {
	return Stats{
		LiveNodes: rt.arena.live,
		FreeSlots: len(rt.arena.free),
		Steps:     rt.steps,
		Emissions: rt.emissions,
		Purged:    rt.purged,
		Deferred:  len(rt.deferred),
	}
}

// NodeInfo describes one node in a Snapshot.
type NodeInfo struct {
	ID        NodeID   `json:"id"`
	Label     string   `json:"label"`
	Kind      string   `json:"kind"`
	Type      string   `json:"type"`
	Network   string   `json:"network"`
	Refs      int      `json:"refs"`
	Watchers  int      `json:"watchers"`
	Detached  bool     `json:"detached,omitempty"`
	Inputs    []NodeID `json:"inputs,omitempty"`
	Watches   []NodeID `json:"watches,omitempty"`
	Consumers []NodeID `json:"consumers,omitempty"`
}

// Snapshot is a point-in-time description of the graph.
type Snapshot struct {
	Stats Stats      `json:"stats"`
	Nodes []NodeInfo `json:"nodes"`
}

// Snapshot describes every node in the arena, in slot order.
func (rt *Runtime) Snapshot() Snapshot {
	snap := Snapshot{Stats: rt.Stats()}
	rt.arena.each(func(n *node) {
		info := NodeInfo{
			ID:        n.id,
			Label:     n.label,
			Kind:      n.kind.String(),
			Network:   n.network,
			Refs:      n.refs,
			Watchers:  n.watchers,
			Detached:  n.detached,
			Inputs:    append([]NodeID(nil), n.inputs...),
			Watches:   append([]NodeID(nil), n.watches...),
			Consumers: n.liveConsumers(rt),
		}
		if n.typ != nil {
			info.Type = n.typ.String()
		}
		snap.Nodes = append(snap.Nodes, info)
	})
	return snap
}

// Network returns the nodes of the snapshot owned by the named network.
func (s Snapshot) Network(name string) []NodeInfo {
	var out []NodeInfo
	for _, n := range s.Nodes {
		if n.Network == name {
			out = append(out, n)
		}
	}
	return out
}

// WriteDOT renders snap as a Graphviz digraph, one cluster per network.
// Event edges are solid; watch edges are dashed.
func WriteDOT(w io.Writer, snap Snapshot) error {
	var b strings.Builder
	b.WriteString("digraph frp {\n")
	b.WriteString("  rankdir=LR;\n")
	b.WriteString("  node [shape=box, fontname=\"monospace\"];\n")

	groups := make(map[string][]NodeInfo)
	present := make(map[NodeID]bool, len(snap.Nodes))
	for _, n := range snap.Nodes {
		groups[n.Network] = append(groups[n.Network], n)
		present[n.ID] = true
	}
	names := make([]string, 0, len(groups))
	for name := range groups {
		names = append(names, name)
	}
	sort.Strings(names)

	for i, name := range names {
		fmt.Fprintf(&b, "  subgraph cluster_%d {\n", i)
		fmt.Fprintf(&b, "    label=%q;\n", name)
		for _, n := range groups[name] {
			fmt.Fprintf(&b, "    %q [label=%q];\n", n.ID.String(), fmt.Sprintf("%s\n%s", n.Label, n.Type))
		}
		b.WriteString("  }\n")
	}

	for _, n := range snap.Nodes {
		for _, in := range n.Inputs {
			if !present[in] {
				continue
			}
			fmt.Fprintf(&b, "  %q -> %q;\n", in.String(), n.ID.String())
		}
		for _, in := range n.Watches {
			if !present[in] {
				continue
			}
			fmt.Fprintf(&b, "  %q -> %q [style=dashed];\n", in.String(), n.ID.String())
		}
	}
	b.WriteString("}\n")

	_, err := io.WriteString(w, b.String())
	return err
}
