package input

import "github.com/vango-dev/frp/pkg/frp"

// change is a pending update of the pressed-key mask.
type change struct {
	key   Key
	state bool
	clear bool
}

func (c change) apply(m KeyMask) KeyMask {
	if c.clear {
		return KeyMask{}
	}
	return m.With(c.key, c.state)
}

// Keyboard tracks the set of pressed keys.
type Keyboard struct {
	Network *frp.Network

	// Pressed and Released receive key events. Defocus clears the mask,
	// since key releases are lost while the surface is unfocused.
	Pressed  *frp.Source[Key]
	Released *frp.Source[Key]
	Defocus  *frp.Source[struct{}]

	// Mask is the set of currently pressed keys. Changes emits it after
	// every key event.
	Mask    frp.Behavior[KeyMask]
	Changes frp.Stream[KeyMask]
}

// NewKeyboard builds a keyboard driver in a sub-network of parent.
func NewKeyboard(parent *frp.Network) *Keyboard {
	net := parent.SubNetworkNamed(parent.Name()+"/keyboard", nil)

	pressed := frp.NewSource[Key](net).Named("keyboard.pressed")
	released := frp.NewSource[Key](net).Named("keyboard.released")
	defocus := frp.NewSource[struct{}](net).Named("keyboard.defocus")

	set := frp.Map(net, pressed.Stream, func(k Key) change { return change{key: k, state: true} })
	unset := frp.Map(net, released.Stream, func(k Key) change {
		if k == KeyMeta {
			// Releasing Meta swallows the key-up events of everything
			// pressed with it.
			return change{clear: true}
		}
		return change{key: k}
	})
	cleared := frp.Constant(net, defocus.Stream, change{clear: true})
	changed := frp.Merge(net, set, unset, cleared)

	// The mask feeds back into itself through a behavior, which is only
	// sampled and never triggers.
	previous := frp.NewGather[KeyMask](net)
	last := frp.Hold(net, previous.Stream, KeyMask{})
	masks := frp.Map2(net, changed, last, change.apply).Named("keyboard.mask")
	previous.Attach(masks)

	return &Keyboard{
		Network:  net,
		Pressed:  pressed,
		Released: released,
		Defocus:  defocus,
		Mask:     frp.Hold(net, masks, KeyMask{}),
		Changes:  masks,
	}
}

// Shortcut returns a stream firing whenever the pressed set becomes
// exactly mask.
func (kb *Keyboard) Shortcut(mask KeyMask) frp.Stream[KeyMask] {
	return frp.Filter(kb.Network, kb.Changes, func(m KeyMask) bool { return m == mask })
}

// Dispose tears down the keyboard's network.
func (kb *Keyboard) Dispose() {
	kb.Network.Dispose()
}

// Actions binds callbacks to exact key combinations.
type Actions struct {
	actions map[KeyMask]func(KeyMask)
	stream  frp.Stream[KeyMask]
}

// NewActions listens to kb's mask changes inside net.
func NewActions(net *frp.Network, kb *Keyboard) *Actions {
	a := &Actions{actions: make(map[KeyMask]func(KeyMask))}
	a.stream = frp.ForEach(net, kb.Changes, func(m KeyMask) {
		if fn, ok := a.actions[m]; ok {
			fn(m)
		}
	}).Named("keyboard.actions")
	return a
}

// Set binds fn to mask, replacing any previous binding.
func (a *Actions) Set(mask KeyMask, fn func(KeyMask)) {
	a.actions[mask] = fn
}

// Unset removes the binding for mask.
func (a *Actions) Unset(mask KeyMask) {
	delete(a.actions, mask)
}

// Release stops listening for key changes.
func (a *Actions) Release() {
	a.stream.Release()
}
