package frp

import "testing"

func TestArenaGeneration(t *testing.T) {
	var a arena
	first := &node{}
	id := a.alloc(first)

	if id.IsZero() {
		t.Fatal("allocated id should not be zero")
	}
	if a.get(id) != first {
		t.Error("get should resolve a live id")
	}

	a.remove(id)
	if a.get(id) != nil {
		t.Error("get should not resolve a removed id")
	}

	second := &node{}
	reused := a.alloc(second)
	if reused.Index != id.Index {
		t.Errorf("slot should be reused: got index %d, want %d", reused.Index, id.Index)
	}
	if reused.Generation != id.Generation+1 {
		t.Errorf("generation = %d, want %d", reused.Generation, id.Generation+1)
	}
	if a.get(id) != nil {
		t.Error("stale id should not resolve to the new occupant")
	}
	if a.get(reused) != second {
		t.Error("new id should resolve")
	}
}

func TestArenaLiveCount(t *testing.T) {
	var a arena
	ids := []NodeID{a.alloc(&node{}), a.alloc(&node{}), a.alloc(&node{})}
	if a.live != 3 {
		t.Errorf("live = %d, want 3", a.live)
	}

	a.remove(ids[1])
	a.remove(ids[1])
	if a.live != 2 {
		t.Errorf("live after double remove = %d, want 2", a.live)
	}

	count := 0
	a.each(func(*node) { count++ })
	if count != 2 {
		t.Errorf("each visited %d nodes, want 2", count)
	}
}

func TestArenaGetUnknown(t *testing.T) {
	var a arena
	if a.get(NodeID{}) != nil {
		t.Error("zero id should not resolve")
	}
	if a.get(NodeID{Index: 7, Generation: 1}) != nil {
		t.Error("out of range id should not resolve")
	}
}

func TestTokenReleaseIdempotent(t *testing.T) {
	rt := NewRuntime()
	net := rt.NewNetwork("tokens")
	n, tok := rt.newNode(net, KindSource, nil)
	extra := rt.incref(n.id)

	if n.refs != 2 {
		t.Fatalf("refs = %d, want 2", n.refs)
	}
	tok.release()
	tok.release()
	if n.refs != 1 {
		t.Errorf("refs after double release = %d, want 1", n.refs)
	}

	extra.release()
	if rt.arena.get(n.id) != nil {
		t.Error("node should be destroyed after its last token is released")
	}
}

func TestDecrefDuringStepDefersDestroy(t *testing.T) {
	rt := NewRuntime()
	net := rt.NewNetwork("graveyard")
	n, tok := rt.newNode(net, KindSource, nil)

	rt.step = &Step{}
	tok.release()
	if rt.arena.get(n.id) == nil {
		t.Fatal("node should stay in the arena until the step unwinds")
	}
	if !n.detached {
		t.Error("node should be detached")
	}

	rt.step = nil
	rt.flush()
	if rt.arena.get(n.id) != nil {
		t.Error("node should be destroyed by flush")
	}
}
