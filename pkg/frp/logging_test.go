package frp_test

import (
	"context"
	"log/slog"
	"sync"
	"testing"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/frptest"
)

type logRecord struct {
	level slog.Level
	msg   string
	attrs map[string]any
}

// captureHandler keeps every record at every level.
type captureHandler struct {
	mu      sync.Mutex
	records []logRecord
}

func (h *captureHandler) Enabled(context.Context, slog.Level) bool { return true }

func (h *captureHandler) Handle(_ context.Context, r slog.Record) error {
	rec := logRecord{level: r.Level, msg: r.Message, attrs: make(map[string]any)}
	r.Attrs(func(a slog.Attr) bool {
		rec.attrs[a.Key] = a.Value.Any()
		return true
	})
	h.mu.Lock()
	h.records = append(h.records, rec)
	h.mu.Unlock()
	return nil
}

func (h *captureHandler) WithAttrs([]slog.Attr) slog.Handler { return h }
func (h *captureHandler) WithGroup(string) slog.Handler      { return h }

func (h *captureHandler) all() []logRecord {
	h.mu.Lock()
	defer h.mu.Unlock()
	return append([]logRecord(nil), h.records...)
}

func newCapturingNetwork(t *testing.T) (*frp.Network, *captureHandler) {
	t.Helper()
	h := &captureHandler{}
	rt := frptest.NewRuntime(frp.WithLogger(slog.New(h)))
	net := rt.NewNetwork(t.Name())
	t.Cleanup(net.Dispose)
	return net, h
}

func TestTraceLogsEveryEmission(t *testing.T) {
	net, h := newCapturingNetwork(t)
	s := frp.NewSource[int](net)
	traced := frp.Trace(net, s.Stream, "clicks seen").Named("traced")
	rec := frptest.Record(net, traced)

	s.Emit(7)
	s.Emit(8)
	rec.Expect(t, 7, 8)

	var traces []logRecord
	for _, r := range h.all() {
		if r.msg == "frp: trace" {
			traces = append(traces, r)
		}
	}
	if len(traces) != 2 {
		t.Fatalf("trace records = %d, want 2", len(traces))
	}
	for i, want := range []int64{7, 8} {
		r := traces[i]
		if r.level != slog.LevelInfo {
			t.Errorf("record %d level = %v, want INFO", i, r.level)
		}
		if r.attrs["node"] != "traced" {
			t.Errorf("record %d node = %v, want traced", i, r.attrs["node"])
		}
		if r.attrs["message"] != "clicks seen" {
			t.Errorf("record %d message = %v", i, r.attrs["message"])
		}
		if r.attrs["value"] != want {
			t.Errorf("record %d value = %v (%T), want %d", i, r.attrs["value"], r.attrs["value"], want)
		}
	}
}

func TestPurgeIsNotLoggedAsFailure(t *testing.T) {
	net, h := newCapturingNetwork(t)
	rt := net.Runtime()
	src := frp.NewSource[int](net)
	doubled := frp.Map(net, src.Stream, func(v int) int { return v * 2 })
	frptest.Record(net, doubled)

	src.Emit(1)
	doubled.Release()
	src.Emit(2)

	if rt.Stats().Purged == 0 {
		t.Fatal("dead consumer should have been purged")
	}

	var sawPurge bool
	for _, r := range h.all() {
		if r.level >= slog.LevelWarn {
			t.Errorf("unexpected %v record %q %v", r.level, r.msg, r.attrs)
		}
		if r.msg == "frp: purged detached consumers" {
			sawPurge = true
			if r.level != slog.LevelDebug {
				t.Errorf("purge logged at %v, want DEBUG", r.level)
			}
		}
	}
	if !sawPurge {
		t.Error("purge should be logged at debug level")
	}
}
