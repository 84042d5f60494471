package main

import (
	"fmt"
	"sort"

	"github.com/spf13/cobra"

	"github.com/vango-dev/frp/internal/errors"
	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/input"
	"github.com/vango-dev/frp/pkg/server"
)

// demo is a graph the CLI can serve. Shared wires graph-wide inputs and
// outputs into the server; PerConn wires the part every connection gets
// its own copy of.
type demo struct {
	Name        string
	Description string
	Shared      func(s *server.Server)
	PerConn     func(e server.Endpoint)
}

var demos = map[string]demo{
	"counter": {
		Name:        "counter",
		Description: "shared click counter and lamp, broadcast to every client",
		Shared:      counterGraph,
	},
	"mouse": {
		Name:        "mouse",
		Description: "per-connection mouse deltas and drags",
		PerConn:     mouseGraph,
	},
	"keyboard": {
		Name:        "keyboard",
		Description: "per-connection pressed-key mask and shortcuts",
		PerConn:     keyboardGraph,
	},
	"all": {
		Name:        "all",
		Description: "counter, mouse and keyboard together",
		Shared:      counterGraph,
		PerConn: func(e server.Endpoint) {
			mouseGraph(e)
			keyboardGraph(e)
		},
	},
}

// lookupDemo returns the named demo or an E501 error.
func lookupDemo(name string) (demo, error) {
	d, ok := demos[name]
	if !ok {
		return demo{}, errors.New("E501").
			WithDetail(fmt.Sprintf("No demo named %q.", name)).
			WithSuggestion("Run 'frp demos' to list the available demos")
	}
	return d, nil
}

// install wires d into s. Per-connection parts are built on every connect.
func (d demo) install(s *server.Server) {
	if d.Shared != nil {
		d.Shared(s)
	}
	if d.PerConn != nil {
		s.OnConnect(func(c *server.Conn) { d.PerConn(c) })
	}
}

// flatten wires every part of d into the server network, for inspection.
func (d demo) flatten(s *server.Server) {
	if d.Shared != nil {
		d.Shared(s)
	}
	if d.PerConn != nil {
		d.PerConn(s)
	}
}

func counterGraph(s *server.Server) {
	net := s.Network()
	clicks := frp.NewSource[struct{}](net).Named("clicks")
	server.Expose(s, "clicks", clicks)

	server.Publish(s, "count", frp.Count(net, clicks.Stream).Named("count"))
	server.Publish(s, "lamp", frp.Toggle(net, clicks.Stream, false).Named("lamp"))
}

func mouseGraph(e server.Endpoint) {
	net := e.Network()
	m := input.NewMouse(net)
	server.Expose(e, "mouse.position", m.Position)
	server.Expose(e, "mouse.down", m.Down)
	server.Expose(e, "mouse.up", m.Up)
	server.Expose(e, "mouse.wheel", m.Wheel)
	server.Expose(e, "mouse.leave", m.Leave)

	server.Publish(e, "mouse.pressed", m.IsDown)
	server.Publish(e, "mouse.delta", m.Delta)
	server.Publish(e, "mouse.drag", frp.Gate(net, m.Delta, m.Pressed).Named("mouse.drag"))
	server.Publish(e, "mouse.hover", frp.GateNot(net, m.Position.Stream, m.Pressed).Named("mouse.hover"))
}

func keyboardGraph(e server.Endpoint) {
	net := e.Network()
	kb := input.NewKeyboard(net)
	server.Expose(e, "keyboard.pressed", kb.Pressed)
	server.Expose(e, "keyboard.released", kb.Released)
	server.Expose(e, "keyboard.defocus", kb.Defocus)

	server.Publish(e, "keyboard.mask", frp.Map(net, kb.Changes, input.KeyMask.String))

	save := kb.Shortcut(input.NewKeyMask(input.KeyControl, "s"))
	server.Publish(e, "keyboard.action", frp.Constant(net, save, "save").Named("keyboard.save"))
}

func demosCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "demos",
		Short: "List the demo graphs",
		Long: `List the demo graphs that serve and graph can run.

Examples:
  frp demos
  frp serve --demo mouse`,
		Args: cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			names := make([]string, 0, len(demos))
			for name := range demos {
				names = append(names, name)
			}
			sort.Strings(names)

			w := cmd.OutOrStdout()
			for _, name := range names {
				fmt.Fprintf(w, "  %-10s %s\n", name, demos[name].Description)
			}
		},
	}
}
