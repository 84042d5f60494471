package frptest

import (
	"io"
	"log/slog"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/vango-dev/frp/pkg/frp"
)

// NewRuntime creates an isolated Runtime whose logger discards output.
// Extra options are applied after the defaults.
func NewRuntime(opts ...frp.Option) *frp.Runtime {
	base := []frp.Option{frp.WithLogger(slog.New(slog.NewTextHandler(io.Discard, nil)))}
	return frp.NewRuntime(append(base, opts...)...)
}

// NewNetwork creates a Network on a fresh Runtime and disposes it when the
// test ends.
func NewNetwork(t testing.TB, opts ...frp.Option) *frp.Network {
	t.Helper()
	net := NewRuntime(opts...).NewNetwork(t.Name())
	t.Cleanup(net.Dispose)
	return net
}

// Recorder collects every payload a stream emits.
type Recorder[T any] struct {
	values []T
	stream frp.Stream[T]
}

// Record subscribes a recorder to s inside net.
//
// Example:
//
//	rec := frptest.Record(net, doubled)
//	src.Emit(21)
//	rec.Expect(t, 42)
func Record[T any](net *frp.Network, s frp.Stream[T]) *Recorder[T] {
	r := &Recorder[T]{}
	r.stream = frp.ForEach(net, s, func(v T) {
		r.values = append(r.values, v)
	}).Named("recorder")
	return r
}

// Values returns a copy of the recorded payloads, in emission order.
func (r *Recorder[T]) Values() []T {
	return append([]T(nil), r.values...)
}

// Len returns the number of recorded payloads.
func (r *Recorder[T]) Len() int {
	return len(r.values)
}

// Last returns the most recent payload.
func (r *Recorder[T]) Last() (T, bool) {
	if len(r.values) == 0 {
		var zero T
		return zero, false
	}
	return r.values[len(r.values)-1], true
}

// Reset forgets everything recorded so far.
func (r *Recorder[T]) Reset() {
	r.values = nil
}

// Stream returns the recorder's pass-through node.
func (r *Recorder[T]) Stream() frp.Stream[T] {
	return r.stream
}

// Release detaches the recorder from its stream.
func (r *Recorder[T]) Release() {
	r.stream.Release()
}

// Expect asserts that exactly want was recorded, in order.
func (r *Recorder[T]) Expect(t testing.TB, want ...T) {
	t.Helper()
	got := r.values
	if len(want) == 0 && len(got) == 0 {
		return
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("recorded values mismatch (-want +got):\n%s", diff)
	}
}

// ExpectAbort runs fn and asserts that it panics with a *frp.NodeError
// carrying code. The error is returned for further checks.
func ExpectAbort(t testing.TB, code string, fn func()) (ne *frp.NodeError) {
	t.Helper()
	defer func() {
		t.Helper()
		r := recover()
		if r == nil {
			t.Errorf("expected abort with %s, got none", code)
			return
		}
		var ok bool
		ne, ok = frp.AsNodeError(r)
		if !ok {
			t.Errorf("expected *frp.NodeError panic, got %T: %v", r, r)
			return
		}
		if ne.Code != code {
			t.Errorf("abort code = %s, want %s (%v)", ne.Code, code, ne)
		}
	}()
	fn()
	return nil
}
