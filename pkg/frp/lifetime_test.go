package frp_test

import (
	"errors"
	"testing"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/frptest"
)

func TestReleasedMapStopsNotifying(t *testing.T) {
	net := frptest.NewNetwork(t)
	rt := net.Runtime()
	src := frp.NewSource[int](net)
	doubled := frp.Map(net, src.Stream, func(v int) int { return v * 2 })
	rec := frptest.Record(net, doubled)

	src.Emit(1)
	rec.Expect(t, 2)

	doubled.Release()
	if doubled.Alive() {
		t.Error("released handle should not be alive")
	}

	src.Emit(2)
	src.Emit(3)
	rec.Expect(t, 2)

	if rt.Stats().Purged == 0 {
		t.Error("dead consumer should have been purged")
	}
}

func TestReleaseIsIdempotent(t *testing.T) {
	net := frptest.NewNetwork(t)
	src := frp.NewSource[int](net)
	m := frp.Map(net, src.Stream, func(v int) int { return v })
	keep := m.Clone()

	m.Release()
	m.Release()
	if !keep.Alive() {
		t.Error("double release must not drop the clone's reference")
	}
	keep.Release()
}

func TestEmitOnReleasedSourceIsNoop(t *testing.T) {
	net := frptest.NewNetwork(t)
	src := frp.NewSource[int](net)
	rec := frptest.Record(net, src.Stream)

	src.Release()
	src.Emit(1)
	src.EmitLater(2)
	rec.Expect(t)
}

func TestNetworkDispose(t *testing.T) {
	rt := frptest.NewRuntime()
	net := rt.NewNetwork("ui")
	src := frp.NewSource[int](net)
	frptest.Record(net, frp.Map(net, src.Stream, func(v int) int { return v }))

	if net.Len() != 3 {
		t.Errorf("Len() = %d, want 3", net.Len())
	}

	net.Dispose()
	net.Dispose()

	if !net.IsDisposed() {
		t.Error("network should be disposed")
	}
	if rt.Stats().LiveNodes != 0 {
		t.Errorf("live nodes = %d, want 0", rt.Stats().LiveNodes)
	}
	src.Emit(1)
}

func TestCloneOutlivesNetwork(t *testing.T) {
	rt := frptest.NewRuntime()
	net := rt.NewNetwork("short")
	other := rt.NewNetwork("long")
	t.Cleanup(other.Dispose)

	src := frp.NewSource[int](net)
	inc := frp.Map(net, src.Stream, func(v int) int { return v + 1 })
	srcKeep := src.Clone()
	incKeep := inc.Clone()
	rec := frptest.Record(other, incKeep)

	net.Dispose()
	if src.Alive() {
		t.Error("network handle should be released with the network")
	}

	srcKeep.Emit(3)
	rec.Expect(t, 4)

	incKeep.Release()
	srcKeep.Emit(4)
	rec.Expect(t, 4)
	srcKeep.Release()
}

func TestBuildOnDisposedNetwork(t *testing.T) {
	net := frptest.NewNetwork(t)
	src := frp.NewSource[int](net)
	keep := src.Clone()
	net.Dispose()

	ne := frptest.ExpectAbort(t, frp.CodeDisposed, func() {
		frp.Map(net, keep.Stream, func(v int) int { return v })
	})
	if ne != nil && !errors.Is(ne, frp.ErrNetworkDisposed) {
		t.Errorf("error should wrap ErrNetworkDisposed: %v", ne)
	}
	keep.Release()
}

func TestInvalidInputs(t *testing.T) {
	net := frptest.NewNetwork(t)
	foreign := frptest.NewNetwork(t)
	released := frp.NewSource[int](net)
	released.Release()
	alien := frp.NewSource[int](foreign)

	tests := []struct {
		name  string
		input frp.Stream[int]
	}{
		{"zero", frp.Stream[int]{}},
		{"released", released.Stream},
		{"other runtime", alien.Stream},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			ne := frptest.ExpectAbort(t, frp.CodeInvalidInput, func() {
				frp.Map(net, tt.input, func(v int) int { return v })
			})
			if ne != nil && !errors.Is(ne, frp.ErrInvalidInput) {
				t.Errorf("error should wrap ErrInvalidInput: %v", ne)
			}
		})
	}
}

func TestSubNetworkBoundToScope(t *testing.T) {
	net := frptest.NewNetwork(t)
	src := frp.NewSource[int](net)
	parentRec := frptest.Record(net, src.Stream)

	widget := frp.NewScope(nil)
	sub := net.SubNetwork(widget)
	subRec := frptest.Record(sub, frp.Map(sub, src.Stream, func(v int) int { return -v }))

	src.Emit(1)
	widget.Dispose()
	src.Emit(2)

	if !sub.IsDisposed() {
		t.Error("sub-network should be disposed with its owner")
	}
	if net.IsDisposed() {
		t.Error("parent network must survive its sub-network")
	}
	subRec.Expect(t, -1)
	parentRec.Expect(t, 1, 2)
}

func TestSubNetworkDisposedWithParent(t *testing.T) {
	rt := frptest.NewRuntime()
	net := rt.NewNetwork("parent")
	widget := frp.NewScope(nil)
	sub := net.SubNetwork(widget)
	nested := sub.SubNetwork(nil)

	if sub.Parent() != net || nested.Parent() != sub {
		t.Fatal("sub-networks should record their parent")
	}
	if sub.Name() != "parent/1" {
		t.Errorf("sub-network name = %q, want %q", sub.Name(), "parent/1")
	}

	var order []string
	net.OnCleanup(func() { order = append(order, "parent") })
	sub.OnCleanup(func() { order = append(order, "sub") })
	nested.OnCleanup(func() { order = append(order, "nested") })

	net.Dispose()
	if !sub.IsDisposed() || !nested.IsDisposed() {
		t.Error("children should be disposed with the parent")
	}
	want := []string{"nested", "sub", "parent"}
	if len(order) != len(want) {
		t.Fatalf("cleanup order = %v, want %v", order, want)
	}
	for i := range want {
		if order[i] != want[i] {
			t.Errorf("cleanup order = %v, want %v", order, want)
			break
		}
	}

	// The owner ending later must be harmless.
	widget.Dispose()
}

func TestOnCleanupAfterDisposeRunsImmediately(t *testing.T) {
	net := frptest.NewNetwork(t)
	net.Dispose()

	ran := false
	net.OnCleanup(func() { ran = true })
	if !ran {
		t.Error("cleanup on a disposed network should run immediately")
	}
}

func TestWatchKeepsSamplerAlive(t *testing.T) {
	net := frptest.NewNetwork(t)
	rt := net.Runtime()
	src := frp.NewSource[int](net)
	b := frp.Sampler(net, src.Stream)

	w := b.Watch()
	if b.Watchers() != 1 {
		t.Errorf("Watchers() = %d, want 1", b.Watchers())
	}

	before := rt.Stats().LiveNodes
	b.Release()
	if !w.Alive() {
		t.Fatal("watch should keep the sampler alive")
	}

	src.Emit(4)
	if w.Sample() != 4 {
		t.Errorf("Sample() = %d, want 4", w.Sample())
	}

	w.Release()
	if rt.Stats().LiveNodes != before-1 {
		t.Errorf("live nodes = %d, want %d", rt.Stats().LiveNodes, before-1)
	}
	src.Emit(5)
	if w.Sample() != 0 {
		t.Errorf("released watch should sample zero, got %d", w.Sample())
	}
}

func TestGateHoldsItsCondition(t *testing.T) {
	net := frptest.NewNetwork(t)
	rt := net.Runtime()
	s := frp.NewSource[int](net)
	open := frp.NewSource[bool](net)
	cond := frp.Hold(net, open.Stream, true)
	gated := frp.Gate(net, s.Stream, cond)
	rec := frptest.Record(net, gated)

	cond.Release()
	s.Emit(1)
	open.Emit(false)
	s.Emit(2)
	rec.Expect(t, 1)

	before := rt.Stats().LiveNodes
	gated.Release()
	if got := rt.Stats().LiveNodes; got != before-2 {
		t.Errorf("releasing the gate should free it and its condition: live = %d, want %d", got, before-2)
	}
}

func TestReleaseDuringStep(t *testing.T) {
	net := frptest.NewNetwork(t)
	rt := net.Runtime()
	src := frp.NewSource[int](net)
	victim := frp.Map(net, src.Stream, func(v int) int { return v * 100 })

	// The first consumer of victim drops the last reference to it while
	// victim is still notifying; the second must still receive the payload.
	frp.ForEach(net, victim, func(int) { victim.Release() })
	rec := frptest.Record(net, victim)

	before := rt.Stats().LiveNodes
	src.Emit(1)
	rec.Expect(t, 100)

	if got := rt.Stats().LiveNodes; got != before-1 {
		t.Errorf("victim should be destroyed after the step: live = %d, want %d", got, before-1)
	}

	src.Emit(2)
	rec.Expect(t, 100)
}

func TestDisposeDuringStep(t *testing.T) {
	rt := frptest.NewRuntime()
	outer := rt.NewNetwork("outer")
	t.Cleanup(outer.Dispose)
	inner := outer.SubNetwork(nil)

	src := frp.NewSource[int](outer)
	frp.ForEach(inner, src.Stream, func(int) { inner.Dispose() })
	innerRec := frptest.Record(inner, src.Stream)
	outerRec := frptest.Record(outer, src.Stream)

	src.Emit(1)
	src.Emit(2)

	innerRec.Expect(t)
	outerRec.Expect(t, 1, 2)
	if rt.InStep() {
		t.Error("runtime should not be in a step after emit returns")
	}
}

func TestNamedLabels(t *testing.T) {
	net := frptest.NewNetwork(t)
	src := frp.NewSource[int](net).Named("clicks")
	m := frp.Map(net, src.Stream, func(v int) int { return v })

	if src.Label() != "clicks" {
		t.Errorf("Label() = %q, want %q", src.Label(), "clicks")
	}
	if m.Label() == "" {
		t.Error("unnamed node should get a default label")
	}
	m.Release()
	if m.Label() != "" {
		t.Error("released handle should report an empty label")
	}
}

func TestScopeHierarchy(t *testing.T) {
	root := frp.NewScope(nil)
	child := frp.NewScope(root)

	if child.Parent() != root {
		t.Error("child parent should be root")
	}
	if root.ID() == child.ID() {
		t.Error("scopes should have distinct ids")
	}

	var order []string
	root.OnCleanup(func() { order = append(order, "root") })
	child.OnCleanup(func() { order = append(order, "child") })

	root.Dispose()
	if !child.IsDisposed() {
		t.Error("child should be disposed with root")
	}
	if len(order) != 2 || order[0] != "child" || order[1] != "root" {
		t.Errorf("cleanup order = %v, want [child root]", order)
	}

	late := frp.NewScope(root)
	if !late.IsDisposed() {
		t.Error("scope created under a disposed parent should start disposed")
	}
}
