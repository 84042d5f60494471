package input

import (
	"testing"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/frptest"
)

func TestMouseIsDown(t *testing.T) {
	net := frptest.NewNetwork(t)
	m := NewMouse(net)
	rec := frptest.Record(net, m.IsDown)

	if m.Pressed.Sample() {
		t.Fatal("mouse should start released")
	}

	m.Down.Emit(struct{}{})
	if !m.Pressed.Sample() {
		t.Error("Pressed should be true after down")
	}
	m.Up.Emit(struct{}{})
	if m.Pressed.Sample() {
		t.Error("Pressed should be false after up")
	}
	rec.Expect(t, true, false)
}

func TestMouseDelta(t *testing.T) {
	net := frptest.NewNetwork(t)
	m := NewMouse(net)
	rec := frptest.Record(net, m.Delta)

	m.Position.Emit(Position{X: 10, Y: 10})
	m.Position.Emit(Position{X: 15, Y: 12})
	m.Position.Emit(Position{X: 15, Y: 2})
	rec.Expect(t,
		Position{X: 10, Y: 10},
		Position{X: 5, Y: 2},
		Position{X: 0, Y: -10},
	)
}

func TestMouseDrag(t *testing.T) {
	net := frptest.NewNetwork(t)
	m := NewMouse(net)
	rec := frptest.Record(net, frp.Gate(net, m.Position.Stream, m.Pressed))

	m.Position.Emit(Position{X: 1})
	m.Down.Emit(struct{}{})
	m.Position.Emit(Position{X: 2})
	m.Up.Emit(struct{}{})
	m.Position.Emit(Position{X: 3})
	rec.Expect(t, Position{X: 2})
}
