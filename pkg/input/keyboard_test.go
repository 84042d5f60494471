package input

import (
	"testing"

	"github.com/vango-dev/frp/pkg/frptest"
)

func TestKeyboardMask(t *testing.T) {
	net := frptest.NewNetwork(t)
	kb := NewKeyboard(net)

	if !kb.Mask.Sample().IsEmpty() {
		t.Fatal("mask should start empty")
	}

	kb.Pressed.Emit("x")
	if want := NewKeyMask("x"); kb.Mask.Sample() != want {
		t.Errorf("mask = %v, want %v", kb.Mask.Sample(), want)
	}

	kb.Pressed.Emit(KeyControl)
	if want := NewKeyMask("x", KeyControl); kb.Mask.Sample() != want {
		t.Errorf("mask = %v, want %v", kb.Mask.Sample(), want)
	}

	kb.Released.Emit("x")
	if want := NewKeyMask(KeyControl); kb.Mask.Sample() != want {
		t.Errorf("mask = %v, want %v", kb.Mask.Sample(), want)
	}
}

func TestKeyboardClears(t *testing.T) {
	net := frptest.NewNetwork(t)
	kb := NewKeyboard(net)

	kb.Pressed.Emit("a")
	kb.Pressed.Emit("b")
	kb.Defocus.Emit(struct{}{})
	if !kb.Mask.Sample().IsEmpty() {
		t.Errorf("defocus should clear the mask, got %v", kb.Mask.Sample())
	}

	kb.Pressed.Emit(KeyMeta)
	kb.Pressed.Emit("c")
	kb.Released.Emit(KeyMeta)
	if !kb.Mask.Sample().IsEmpty() {
		t.Errorf("releasing Meta should clear the mask, got %v", kb.Mask.Sample())
	}
}

func TestKeyboardShortcut(t *testing.T) {
	net := frptest.NewNetwork(t)
	kb := NewKeyboard(net)
	undo := NewKeyMask(KeyControl, "z")
	rec := frptest.Record(net, kb.Shortcut(undo))

	kb.Pressed.Emit("Z")
	kb.Pressed.Emit(KeyControl)
	kb.Pressed.Emit(KeyShift)
	rec.Expect(t, undo)
}

func TestKeyboardActions(t *testing.T) {
	net := frptest.NewNetwork(t)
	kb := NewKeyboard(net)
	actions := NewActions(net, kb)

	undoKeys := NewKeyMask(KeyControl, "z")
	redoKeys := NewKeyMask(KeyControl, "y")
	var undone, redone bool
	actions.Set(undoKeys, func(KeyMask) { undone = true })
	actions.Set(redoKeys, func(KeyMask) { redone = true })

	kb.Pressed.Emit("Z")
	if undone || redone {
		t.Fatal("no action should fire yet")
	}
	kb.Pressed.Emit(KeyControl)
	if !undone || redone {
		t.Fatalf("undo should fire: undone=%v redone=%v", undone, redone)
	}
	undone = false

	kb.Released.Emit("z")
	if undone || redone {
		t.Fatal("releasing z should not fire anything")
	}
	kb.Pressed.Emit("y")
	if undone || !redone {
		t.Fatalf("redo should fire: undone=%v redone=%v", undone, redone)
	}
	redone = false
	kb.Released.Emit("y")
	kb.Released.Emit(KeyControl)

	actions.Unset(undoKeys)
	kb.Pressed.Emit("Z")
	kb.Pressed.Emit(KeyControl)
	if undone || redone {
		t.Error("unset action should not fire")
	}

	actions.Release()
	actions.Set(undoKeys, func(KeyMask) { undone = true })
	kb.Released.Emit(KeyControl)
	kb.Pressed.Emit(KeyControl)
	if undone {
		t.Error("released actions should not fire")
	}
}

func TestKeyboardDispose(t *testing.T) {
	net := frptest.NewNetwork(t)
	kb := NewKeyboard(net)
	kb.Dispose()

	kb.Pressed.Emit("a")
	if net.IsDisposed() {
		t.Error("disposing the keyboard must not dispose its parent")
	}
	if kb.Mask.Alive() {
		t.Error("mask should be released with the keyboard network")
	}
}
