package input

import "github.com/vango-dev/frp/pkg/frp"

// Position is a point on the screen in pixels.
type Position struct {
	X int `json:"x"`
	Y int `json:"y"`
}

// Sub returns p - q.
func (p Position) Sub(q Position) Position {
	return Position{X: p.X - q.X, Y: p.Y - q.Y}
}

// Mouse exposes pointer events.
type Mouse struct {
	Network *frp.Network

	Up       *frp.Source[struct{}]
	Down     *frp.Source[struct{}]
	Wheel    *frp.Source[float64]
	Leave    *frp.Source[struct{}]
	Position *frp.Source[Position]

	// IsDown emits true on every press and false on every release.
	IsDown frp.Stream[bool]
	// Pressed is true while a button is held.
	Pressed frp.Behavior[bool]
	// Delta emits the movement between consecutive positions.
	Delta frp.Stream[Position]
}

// NewMouse builds a mouse driver in a sub-network of parent.
func NewMouse(parent *frp.Network) *Mouse {
	net := parent.SubNetworkNamed(parent.Name()+"/mouse", nil)

	up := frp.NewSource[struct{}](net).Named("mouse.up")
	down := frp.NewSource[struct{}](net).Named("mouse.down")
	wheel := frp.NewSource[float64](net).Named("mouse.wheel")
	leave := frp.NewSource[struct{}](net).Named("mouse.leave")
	position := frp.NewSource[Position](net).Named("mouse.position")

	isDown := frp.Merge(net,
		frp.Constant(net, down.Stream, true),
		frp.Constant(net, up.Stream, false),
	).Named("mouse.is_down")

	// current is registered on position before previous, so it already
	// holds the new position when previous emits.
	current := frp.Hold(net, position.Stream, Position{})
	previous := frp.Previous(net, position.Stream, Position{})
	delta := frp.Map2(net, previous, current, func(prev, cur Position) Position {
		return cur.Sub(prev)
	}).Named("mouse.delta")

	return &Mouse{
		Network:  net,
		Up:       up,
		Down:     down,
		Wheel:    wheel,
		Leave:    leave,
		Position: position,
		IsDown:   isDown,
		Pressed:  frp.Hold(net, isDown, false).Named("mouse.pressed"),
		Delta:    delta,
	}
}

// Dispose tears down the mouse's network.
func (m *Mouse) Dispose() {
	m.Network.Dispose()
}
