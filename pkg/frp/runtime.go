package frp

import (
	"context"
	"fmt"
	"log/slog"
	"reflect"
)

// Runtime is the propagation engine. It owns the node arena, the deferred
// emission queue and the bookkeeping of the propagation step in flight.
//
// A Runtime must only be used from one goroutine at a time.
type Runtime struct {
	arena      arena
	logger     *slog.Logger
	middleware []Middleware
	budget     Budget

	// step is the propagation step in flight, nil between steps.
	step *Step

	// deferred holds emissions scheduled to run after the current step.
	deferred []pendingEmit
	draining bool

	// graveyard holds nodes whose last token was dropped mid-step.
	// They are destroyed once control returns to the top-level push.
	graveyard []*node

	steps     uint64
	emissions uint64
	purged    uint64
}

type pendingEmit struct {
	id NodeID
	v  any
}

// Option configures a Runtime.
type Option func(*Runtime)

// WithLogger sets the logger used for trace output and debug messages.
func WithLogger(l *slog.Logger) Option {
	return func(rt *Runtime) {
		if l != nil {
			rt.logger = l
		}
	}
}

// WithMiddleware appends middleware run around every propagation step.
func WithMiddleware(mw ...Middleware) Option {
	return func(rt *Runtime) {
		rt.middleware = append(rt.middleware, mw...)
	}
}

// WithBudget sets the propagation budget.
func WithBudget(b Budget) Option {
	return func(rt *Runtime) {
		rt.budget = b
	}
}

// NewRuntime creates a Runtime with its own arena.
func NewRuntime(opts ...Option) *Runtime {
	rt := &Runtime{
		logger: slog.Default(),
		budget: DefaultBudget(),
	}
	for _, opt := range opts {
		opt(rt)
	}
	return rt
}

var defaultRuntime = NewRuntime()

// Default returns the process-wide Runtime used by NewNetwork.
func Default() *Runtime {
	return defaultRuntime
}

// Use appends middleware. It must not be called during a propagation step.
func (rt *Runtime) Use(mw ...Middleware) {
	rt.middleware = append(rt.middleware, mw...)
}

// Logger returns the runtime's logger.
func (rt *Runtime) Logger() *slog.Logger {
	return rt.logger
}

// InStep reports whether a propagation step is in flight.
func (rt *Runtime) InStep() bool {
	return rt.step != nil
}

// newNode allocates a node owned by net and returns the token shared by
// the network slot and the handle handed back to the caller.
func (rt *Runtime) newNode(net *Network, kind Kind, typ reflect.Type) (*node, *token) {
	net.checkAlive(kind.String())
	n := &node{
		seq:     nextSeq(),
		kind:    kind,
		typ:     typ,
		network: net.name,
		refs:    1,
	}
	rt.arena.alloc(n)
	n.label = fmt.Sprintf("%s#%d", kind, n.seq)
	tok := &token{rt: rt, id: n.id}
	net.adopt(tok)
	return n, tok
}

// incref mints a new token on id. A dead id yields a released token.
func (rt *Runtime) incref(id NodeID) *token {
	n := rt.arena.get(id)
	if n == nil || n.detached {
		return &token{rt: rt, id: id, released: true}
	}
	n.refs++
	return &token{rt: rt, id: id}
}

// decref drops one strong reference from id.
func (rt *Runtime) decref(id NodeID) {
	n := rt.arena.get(id)
	if n == nil || n.refs == 0 {
		return
	}
	n.refs--
	if n.refs > 0 {
		return
	}
	if rt.step != nil {
		// Keep the cache valid until the step unwinds; no new deliveries.
		n.detached = true
		rt.graveyard = append(rt.graveyard, n)
		return
	}
	rt.destroy(n)
}

func (rt *Runtime) destroy(n *node) {
	n.detached = true
	holds := n.holds
	n.holds = nil
	for i := len(holds) - 1; i >= 0; i-- {
		holds[i].release()
	}
	n.consumers = nil
	n.cache = nil
	rt.arena.remove(n.id)
}

// flush destroys nodes parked in the graveyard. Destroying one may release
// others, which are destroyed immediately since no step is in flight.
func (rt *Runtime) flush() {
	for len(rt.graveyard) > 0 {
		dead := rt.graveyard
		rt.graveyard = nil
		for _, n := range dead {
			if rt.arena.get(n.id) == n {
				rt.destroy(n)
			}
		}
	}
}

// push is the entry point for a Source emission. Outside a step it runs a
// new propagation step followed by the deferred queue; inside a step it
// notifies synchronously within the current step.
func (rt *Runtime) push(n *node, v any) {
	if rt.step != nil {
		rt.emit(n, v)
		return
	}
	rt.runStep(n, v, false)
	rt.drain()
}

// runStep runs one propagation step rooted at origin, wrapped by middleware.
func (rt *Runtime) runStep(origin *node, v any, deferred bool) {
	rt.steps++
	step := &Step{
		Seq:         rt.steps,
		Origin:      origin.id,
		OriginLabel: origin.label,
		Network:     origin.network,
		Deferred:    deferred,
		Context:     context.Background(),
	}
	rt.step = step

	completed := false
	defer func() {
		rt.step = nil
		rt.emissions += uint64(step.Emissions)
		rt.purged += uint64(step.Purged)
		if !completed {
			// Aborted: queued feedback belongs to a graph in an unknown state.
			rt.deferred = nil
		}
		rt.flush()
	}()

	body := func() { rt.emit(origin, v) }
	for i := len(rt.middleware) - 1; i >= 0; i-- {
		mw, next := rt.middleware[i], body
		body = func() { mw(step, next) }
	}
	body()
	completed = true
}

// drain runs deferred emissions, each as its own propagation step, until
// the queue is empty. Emissions scheduled while draining form a new round.
func (rt *Runtime) drain() {
	if rt.draining {
		return
	}
	rt.draining = true
	defer func() { rt.draining = false }()

	rounds := 0
	for len(rt.deferred) > 0 {
		rounds++
		if limit := rt.budget.MaxDeferredRounds; limit > 0 && rounds > limit {
			first := rt.deferred[0].id
			rt.deferred = nil
			panic(rt.budgetError(CodeDeferredBudget, first,
				fmt.Sprintf("deferred queue still busy after %d rounds", limit)))
		}
		batch := rt.deferred
		rt.deferred = nil
		for _, p := range batch {
			n := rt.arena.get(p.id)
			if n == nil || n.detached {
				continue
			}
			rt.runStep(n, p.v, true)
		}
	}
}

// schedule queues an emission of id to run after the current step.
// Outside a step it is pushed immediately.
func (rt *Runtime) schedule(id NodeID, v any) {
	if rt.step == nil {
		if n := rt.arena.get(id); n != nil && !n.detached {
			rt.push(n, v)
		}
		return
	}
	rt.step.Scheduled++
	rt.deferred = append(rt.deferred, pendingEmit{id: id, v: v})
}

// emit caches v on n and notifies every live consumer in registration
// order, purging consumers whose weak reference no longer resolves.
func (rt *Runtime) emit(n *node, v any) {
	if n.detached {
		return
	}
	if n.notifying {
		panic(&NodeError{
			Code:  CodeReentrant,
			Node:  n.id,
			Label: n.label,
			Err:   ErrReentrant,
		})
	}
	n.cache, n.hasCache = v, true
	n.notifying = true
	defer func() { n.notifying = false }()

	// Consumers registered during this notification wait for the next one.
	end := len(n.consumers)
	dead := 0
	for i := 0; i < end; i++ {
		e := n.consumers[i]
		if c := rt.arena.get(e.target); c == nil || c.detached {
			n.consumers[i].deliver = nil
			dead++
			continue
		}
		rt.countEmission(n)
		e.deliver(v)
	}
	if dead > 0 {
		rt.purge(n, dead)
	}
}

func (rt *Runtime) purge(n *node, dead int) {
	kept := n.consumers[:0]
	for _, e := range n.consumers {
		if e.deliver != nil {
			kept = append(kept, e)
		}
	}
	for i := len(kept); i < len(n.consumers); i++ {
		n.consumers[i] = edge{}
	}
	n.consumers = kept
	if rt.step != nil {
		rt.step.Purged += dead
	}
	rt.logger.Debug("frp: purged detached consumers", "node", n.label, "count", dead)
}

func (rt *Runtime) countEmission(n *node) {
	step := rt.step
	if step == nil {
		return
	}
	step.Emissions++
	if limit := rt.budget.MaxEmissions; limit > 0 && step.Emissions > limit {
		panic(rt.budgetError(CodeEmissionBudget, n.id,
			fmt.Sprintf("step %d delivered more than %d notifications", step.Seq, limit)))
	}
}

func (rt *Runtime) budgetError(code string, id NodeID, detail string) *NodeError {
	label := ""
	if n := rt.arena.get(id); n != nil {
		label = n.label
	}
	return &NodeError{
		Code:   code,
		Node:   id,
		Label:  label,
		Detail: detail,
		Err:    ErrBudgetExceeded,
	}
}

// annotate records a trace annotation on the step in flight.
func (rt *Runtime) annotate(n *node, message string, v any) {
	if rt.step == nil {
		return
	}
	rt.step.Annotations = append(rt.step.Annotations, Annotation{
		Node:    n.id,
		Label:   n.label,
		Message: message,
		Value:   v,
	})
}
