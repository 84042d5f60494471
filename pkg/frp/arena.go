package frp

// arena stores nodes in generation-checked slots.
// A strong reference is a slot whose node has refs > 0; a weak reference is
// a NodeID that resolves through get and is treated as absent when the
// generation no longer matches.
type arena struct {
	slots []slot
	free  []uint32
	live  int
}

type slot struct {
	gen  uint32
	node *node
}

func (a *arena) alloc(n *node) NodeID {
	var idx uint32
	if k := len(a.free); k > 0 {
		idx = a.free[k-1]
		a.free = a.free[:k-1]
	} else {
		idx = uint32(len(a.slots))
		a.slots = append(a.slots, slot{})
	}
	s := &a.slots[idx]
	s.gen++
	s.node = n
	a.live++
	id := NodeID{Index: idx, Generation: s.gen}
	n.id = id
	return id
}

// get resolves id, returning nil for stale or unknown ids.
func (a *arena) get(id NodeID) *node {
	if id.IsZero() || int(id.Index) >= len(a.slots) {
		return nil
	}
	s := &a.slots[id.Index]
	if s.gen != id.Generation || s.node == nil {
		return nil
	}
	return s.node
}

// remove frees the slot held by id. The next alloc of the slot bumps the
// generation, so outstanding ids stay unresolvable.
func (a *arena) remove(id NodeID) {
	if a.get(id) == nil {
		return
	}
	a.slots[id.Index].node = nil
	a.free = append(a.free, id.Index)
	a.live--
}

// each calls fn for every live node in slot order.
func (a *arena) each(fn func(*node)) {
	for i := range a.slots {
		if n := a.slots[i].node; n != nil {
			fn(n)
		}
	}
}
