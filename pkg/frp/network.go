package frp

import (
	"fmt"
	"reflect"
)

// Lifetime is anything that can run cleanup functions when it ends.
// Scope and Network both implement it.
//
// A sub-network disposed before its owner unregisters itself from a Scope
// or Network owner. Other Lifetime implementations keep the registration
// until they end.
type Lifetime interface {
	OnCleanup(fn func())
}

type detachable interface {
	addCleanup(fn func()) (remove func())
}

// Network is a named scope owning the nodes created through it.
//
// Disposing a Network drops its reference to every node it created, disposes
// its sub-networks and runs its cleanups. Nodes still referenced by a cloned
// handle survive.
type Network struct {
	rt     *Runtime
	name   string
	parent *Network

	children []*Network
	tokens   []*token
	cleanups []cleanup
	detach   func()

	subs     int
	disposed bool
}

// NewNetwork creates a Network on the default Runtime.
func NewNetwork(name string) *Network {
	return defaultRuntime.NewNetwork(name)
}

// NewNetwork creates a top-level Network on rt.
func (rt *Runtime) NewNetwork(name string) *Network {
	if name == "" {
		name = fmt.Sprintf("network#%d", nextSeq())
	}
	return &Network{rt: rt, name: name}
}

// Name returns the network name.
func (net *Network) Name() string {
	return net.name
}

// Runtime returns the Runtime the network builds nodes in.
func (net *Network) Runtime() *Runtime {
	return net.rt
}

// Parent returns the enclosing network, or nil for a top-level one.
func (net *Network) Parent() *Network {
	return net.parent
}

// IsDisposed reports whether Dispose has run.
func (net *Network) IsDisposed() bool {
	return net.disposed
}

// Len returns the number of nodes the network still owns.
func (net *Network) Len() int {
	count := 0
	for _, t := range net.tokens {
		if t.node() != nil {
			count++
		}
	}
	return count
}

// SubNetwork creates a child network. The child is disposed when the parent
// is disposed, or when owner ends, whichever comes first. owner may be nil.
func (net *Network) SubNetwork(owner Lifetime) *Network {
	net.subs++
	return net.SubNetworkNamed(fmt.Sprintf("%s/%d", net.name, net.subs), owner)
}

// SubNetworkNamed is SubNetwork with an explicit name.
func (net *Network) SubNetworkNamed(name string, owner Lifetime) *Network {
	net.checkAlive("sub-network")
	child := &Network{rt: net.rt, name: name, parent: net}
	net.children = append(net.children, child)
	switch o := owner.(type) {
	case nil:
	case detachable:
		child.detach = o.addCleanup(child.Dispose)
	default:
		o.OnCleanup(child.Dispose)
	}
	return child
}

// OnCleanup registers fn to run when the network is disposed. Cleanups run
// in reverse registration order. On a disposed network fn runs immediately.
func (net *Network) OnCleanup(fn func()) {
	net.addCleanup(fn)
}

func (net *Network) addCleanup(fn func()) (remove func()) {
	if net.disposed {
		fn()
		return func() {}
	}
	id := nextSeq()
	net.cleanups = append(net.cleanups, cleanup{id: id, fn: fn})
	return func() {
		net.cleanups = removeCleanup(net.cleanups, id)
	}
}

// Dispose tears the network down: sub-networks first, in reverse creation
// order, then the network's node references, then cleanups. If a
// propagation step is in flight, released nodes keep their cached values
// until the step unwinds. Dispose is idempotent.
func (net *Network) Dispose() {
	if net.disposed {
		return
	}
	net.disposed = true

	if net.parent != nil {
		net.parent.removeChild(net)
	}
	if net.detach != nil {
		net.detach()
		net.detach = nil
	}

	children := net.children
	net.children = nil
	for i := len(children) - 1; i >= 0; i-- {
		children[i].Dispose()
	}

	tokens := net.tokens
	net.tokens = nil
	for i := len(tokens) - 1; i >= 0; i-- {
		tokens[i].release()
	}

	cleanups := net.cleanups
	net.cleanups = nil
	for i := len(cleanups) - 1; i >= 0; i-- {
		cleanups[i].fn()
	}

	net.rt.logger.Debug("frp: network disposed", "network", net.name, "nodes", len(tokens))
}

func (net *Network) removeChild(child *Network) {
	for i, c := range net.children {
		if c == child {
			net.children = append(net.children[:i], net.children[i+1:]...)
			return
		}
	}
}

// checkAlive panics if the network can no longer build nodes.
func (net *Network) checkAlive(what string) {
	if !net.disposed {
		return
	}
	panic(&NodeError{
		Code:   CodeDisposed,
		Label:  net.name,
		Detail: fmt.Sprintf("cannot build %s", what),
		Err:    ErrNetworkDisposed,
	})
}

// adopt records tok in the network's ownership slots. Released tokens are
// compacted away before the slice grows.
func (net *Network) adopt(tok *token) {
	if len(net.tokens) == cap(net.tokens) && len(net.tokens) > 0 {
		kept := net.tokens[:0]
		for _, t := range net.tokens {
			if !t.released {
				kept = append(kept, t)
			}
		}
		for i := len(kept); i < len(net.tokens); i++ {
			net.tokens[i] = nil
		}
		net.tokens = kept
	}
	net.tokens = append(net.tokens, tok)
}

// resolve returns the live node behind an input handle, panicking if the
// handle cannot be wired into this network.
func (net *Network) resolve(tok *token, kind Kind) *node {
	var detail string
	switch {
	case tok == nil:
		detail = fmt.Sprintf("%s given a zero handle", kind)
	case tok.rt != net.rt:
		detail = fmt.Sprintf("%s given a handle from another runtime", kind)
	default:
		if n := tok.node(); n != nil {
			return n
		}
		detail = fmt.Sprintf("%s given a released handle", kind)
	}
	id := NodeID{}
	if tok != nil {
		id = tok.id
	}
	panic(&NodeError{
		Code:   CodeInvalidInput,
		Node:   id,
		Label:  net.name,
		Detail: detail,
		Err:    ErrInvalidInput,
	})
}

// build allocates a node of the given kind producing T.
func build[T any](net *Network, kind Kind) (*node, Stream[T]) {
	n, tok := net.rt.newNode(net, kind, reflect.TypeFor[T]())
	return n, Stream[T]{tok: tok}
}
