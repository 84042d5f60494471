package server

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"sort"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/protocol"
)

// Endpoint is where inputs and outputs are registered: the Server for
// graph-wide names, or a Conn for names private to one connection.
type Endpoint interface {
	// Network is the network Publish builds its sink nodes in.
	Network() *frp.Network

	endpoint() *registry
}

// pushFunc decodes a JSON value and emits it into a source.
type pushFunc func(raw json.RawMessage, deferred bool) error

type registry struct {
	inputs  map[string]pushFunc
	outputs map[string]bool
	send    func(frame []byte)
	logger  *slog.Logger
}

func newRegistry(send func([]byte), logger *slog.Logger) *registry {
	return &registry{
		inputs:  make(map[string]pushFunc),
		outputs: make(map[string]bool),
		send:    send,
		logger:  logger,
	}
}

// names returns the sorted union of the keys of a and b.
func names[V any](a, b map[string]V) []string {
	seen := make(map[string]bool, len(a)+len(b))
	out := make([]string, 0, len(a)+len(b))
	for _, m := range []map[string]V{a, b} {
		for name := range m {
			if !seen[name] {
				seen[name] = true
				out = append(out, name)
			}
		}
	}
	sort.Strings(out)
	return out
}

// Expose makes src writable by clients under name. Values arrive as JSON
// and are decoded into T; a value that does not decode is rejected with
// an InvalidInput error. Registering a name twice replaces the first
// source.
//
// Call Expose before the server runs, or from a loop task.
func Expose[T any](e Endpoint, name string, src *frp.Source[T]) {
	e.endpoint().inputs[name] = func(raw json.RawMessage, deferred bool) error {
		var v T
		if err := json.Unmarshal(raw, &v); err != nil {
			return fmt.Errorf("input %q: %w", name, err)
		}
		if deferred {
			src.EmitLater(v)
		} else {
			src.Emit(v)
		}
		return nil
	}
}

// Publish sends every payload of s to clients as an Output named name.
// On the Server the output is broadcast to every connection; on a Conn it
// goes to that connection only. The returned stream is the sink node; its
// lifetime is that of the endpoint's network.
func Publish[T any](e Endpoint, name string, s frp.Stream[T]) frp.Stream[T] {
	reg := e.endpoint()
	reg.outputs[name] = true
	return frp.ForEach(e.Network(), s, func(v T) {
		out, err := protocol.NewOutput(name, v)
		if err != nil {
			reg.logger.Error("output encode failed", "output", name, "error", err)
			return
		}
		frame, err := protocol.NewFrame(protocol.FrameOutput, protocol.EncodeOutput(out)).MarshalBinary()
		if err != nil {
			reg.logger.Error("output frame rejected", "output", name, "error", err)
			return
		}
		reg.send(frame)
	}).Named("publish:" + name)
}
