package frptest

import (
	"testing"

	"github.com/vango-dev/frp/pkg/frp"
)

func TestRecorder(t *testing.T) {
	net := NewNetwork(t)
	src := frp.NewSource[string](net)
	rec := Record(net, src.Stream)

	if _, ok := rec.Last(); ok {
		t.Error("empty recorder should have no last value")
	}

	src.Emit("a")
	src.Emit("b")
	rec.Expect(t, "a", "b")

	if rec.Len() != 2 {
		t.Errorf("Len() = %d, want 2", rec.Len())
	}
	if v, _ := rec.Last(); v != "b" {
		t.Errorf("Last() = %q, want %q", v, "b")
	}

	rec.Reset()
	rec.Expect(t)

	rec.Release()
	src.Emit("c")
	rec.Expect(t)
}

func TestRecorderValuesIsCopy(t *testing.T) {
	net := NewNetwork(t)
	src := frp.NewSource[int](net)
	rec := Record(net, src.Stream)
	src.Emit(1)

	vals := rec.Values()
	vals[0] = 99
	rec.Expect(t, 1)
}

func TestExpectAbort(t *testing.T) {
	net := NewNetwork(t)
	src := frp.NewSource[int](net)
	frp.ForEach(net, src.Stream, func(v int) { src.Emit(v) })

	ne := ExpectAbort(t, frp.CodeReentrant, func() { src.Emit(1) })
	if ne == nil {
		t.Fatal("expected a NodeError")
	}
	if ne.Node != src.ID() {
		t.Errorf("abort node = %s, want %s", ne.Node, src.ID())
	}
}

func TestNewNetworkDisposedOnCleanup(t *testing.T) {
	var net *frp.Network
	t.Run("inner", func(t *testing.T) {
		net = NewNetwork(t)
		frp.NewSource[int](net)
	})
	if !net.IsDisposed() {
		t.Error("network should be disposed when the subtest ends")
	}
}
