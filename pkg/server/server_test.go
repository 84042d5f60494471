package server

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"golang.org/x/time/rate"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/frptest"
	"github.com/vango-dev/frp/pkg/input"
	"github.com/vango-dev/frp/pkg/protocol"
)

var discard = slog.New(slog.NewTextHandler(io.Discard, nil))

type testServer struct {
	*Server
	ts *httptest.Server
}

// startServer builds a server whose graph is wired by setup, runs its loop
// and serves it over httptest.
func startServer(t *testing.T, opts Options, setup func(s *Server), rtOpts ...frp.Option) *testServer {
	t.Helper()
	if opts.Logger == nil {
		opts.Logger = discard
	}
	if opts.HeartbeatInterval == 0 {
		opts.HeartbeatInterval = time.Hour
	}
	s := New(frptest.NewRuntime(rtOpts...), opts)
	if setup != nil {
		setup(s)
	}

	ctx, cancel := context.WithCancel(context.Background())
	stopped := make(chan struct{})
	go func() {
		_ = s.Loop().Run(ctx)
		close(stopped)
	}()
	ts := httptest.NewServer(s.Handler())
	t.Cleanup(func() {
		ts.Close()
		cancel()
		<-stopped
	})
	return &testServer{Server: s, ts: ts}
}

// clickCounter publishes the number of clicks to every client.
func clickCounter(s *Server) {
	clicks := frp.NewSource[struct{}](s.Network()).Named("clicks")
	Expose(s, "clicks", clicks)
	Publish(s, "count", frp.Count(s.Network(), clicks.Stream))
}

func wsURL(ts *httptest.Server) string {
	return "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
}

type client struct {
	t     *testing.T
	ws    *websocket.Conn
	hello *protocol.Hello
}

func dial(t *testing.T, ts *testServer) *client {
	t.Helper()
	ws, resp, err := websocket.DefaultDialer.Dial(wsURL(ts.ts), nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	t.Cleanup(func() { ws.Close() })

	c := &client{t: t, ws: ws}
	f := c.read()
	require.Equal(t, protocol.FrameHello, f.Type)
	c.hello, err = protocol.DecodeHello(f.Payload)
	require.NoError(t, err)
	return c
}

func (c *client) read() *protocol.Frame {
	c.t.Helper()
	require.NoError(c.t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, msg, err := c.ws.ReadMessage()
	require.NoError(c.t, err)
	f, err := protocol.DecodeFrame(msg)
	require.NoError(c.t, err)
	return f
}

func (c *client) write(f *protocol.Frame) {
	c.t.Helper()
	require.NoError(c.t, c.ws.WriteMessage(websocket.BinaryMessage, f.Encode()))
}

func (c *client) input(seq uint64, target string, v any) {
	c.t.Helper()
	in, err := protocol.NewInput(seq, target, v)
	require.NoError(c.t, err)
	c.write(protocol.NewFrame(protocol.FrameInput, protocol.EncodeInput(in)))
}

func (c *client) output() *protocol.Output {
	c.t.Helper()
	f := c.read()
	require.Equal(c.t, protocol.FrameOutput, f.Type, "frame %s", f.Type)
	out, err := protocol.DecodeOutput(f.Payload)
	require.NoError(c.t, err)
	return out
}

func (c *client) ack() *protocol.Ack {
	c.t.Helper()
	f := c.read()
	require.Equal(c.t, protocol.FrameAck, f.Type, "frame %s", f.Type)
	ack, err := protocol.DecodeAck(f.Payload)
	require.NoError(c.t, err)
	return ack
}

func (c *client) errorFrame() *protocol.ErrorMessage {
	c.t.Helper()
	f := c.read()
	require.Equal(c.t, protocol.FrameError, f.Type, "frame %s", f.Type)
	em, err := protocol.DecodeErrorMessage(f.Payload)
	require.NoError(c.t, err)
	return em
}

func TestHelloAndInput(t *testing.T) {
	ts := startServer(t, Options{}, clickCounter)
	c := dial(t, ts)

	assert.Equal(t, protocol.CurrentVersion, c.hello.Version)
	assert.NotEmpty(t, c.hello.ConnID)
	assert.Equal(t, uint64(64), c.hello.Window)
	assert.Equal(t, []string{"clicks"}, c.hello.Inputs)
	assert.Equal(t, []string{"count"}, c.hello.Outputs)

	c.input(1, "clicks", struct{}{})
	out := c.output()
	assert.Equal(t, "count", out.Target)
	assert.JSONEq(t, "1", string(out.Value))
	assert.Equal(t, &protocol.Ack{LastSeq: 1, Window: 64}, c.ack())

	c.input(2, "clicks", struct{}{})
	assert.JSONEq(t, "2", string(c.output().Value))
	assert.Equal(t, uint64(2), c.ack().LastSeq)
}

func TestBroadcastReachesEveryClient(t *testing.T) {
	ts := startServer(t, Options{}, clickCounter)
	a := dial(t, ts)
	b := dial(t, ts)
	require.Eventually(t, func() bool { return ts.Conns() == 2 }, 5*time.Second, 10*time.Millisecond)

	a.input(1, "clicks", struct{}{})
	assert.JSONEq(t, "1", string(a.output().Value))
	a.ack()

	assert.JSONEq(t, "1", string(b.output().Value))
}

func TestConnectionNetwork(t *testing.T) {
	ts := startServer(t, Options{}, func(s *Server) {
		s.OnConnect(func(c *Conn) {
			m := input.NewMouse(c.Network())
			Expose(c, "mouse.position", m.Position)
			Publish(c, "mouse.delta", m.Delta)
		})
	})

	a := dial(t, ts)
	b := dial(t, ts)
	assert.Equal(t, []string{"mouse.position"}, a.hello.Inputs)
	assert.Equal(t, []string{"mouse.delta"}, a.hello.Outputs)
	assert.NotEqual(t, a.hello.ConnID, b.hello.ConnID)

	a.input(1, "mouse.position", input.Position{X: 1, Y: 1})
	assert.JSONEq(t, `{"x":1,"y":1}`, string(a.output().Value))
	a.ack()
	a.input(2, "mouse.position", input.Position{X: 4, Y: 5})
	assert.JSONEq(t, `{"x":3,"y":4}`, string(a.output().Value))
	a.ack()

	// b has its own mouse; a's deltas never reach it.
	b.input(1, "mouse.position", input.Position{X: 2, Y: 2})
	assert.JSONEq(t, `{"x":2,"y":2}`, string(b.output().Value))
	b.ack()

	prefix := "conn/" + a.hello.ConnID
	countNodes := func() int {
		snap, err := ts.snapshot(context.Background())
		if err != nil {
			return -1
		}
		n := 0
		for _, node := range snap.Nodes {
			if strings.HasPrefix(node.Network, prefix) {
				n++
			}
		}
		return n
	}
	require.Positive(t, countNodes())

	require.NoError(t, a.ws.Close())
	require.Eventually(t, func() bool { return countNodes() == 0 }, 5*time.Second, 10*time.Millisecond)
	assert.Equal(t, 1, ts.Conns())
}

func TestInputErrors(t *testing.T) {
	ts := startServer(t, Options{}, func(s *Server) {
		clickCounter(s)
		n := frp.NewSource[int](s.Network())
		Expose(s, "number", n)
	})
	c := dial(t, ts)

	c.input(7, "missing", 1)
	em := c.errorFrame()
	assert.Equal(t, uint64(7), em.Seq)
	assert.Equal(t, protocol.ErrUnknownTarget, em.Code)
	assert.False(t, em.Fatal)

	c.input(8, "number", "not a number")
	em = c.errorFrame()
	assert.Equal(t, uint64(8), em.Seq)
	assert.Equal(t, protocol.ErrInvalidInput, em.Code)

	require.NoError(t, c.ws.WriteMessage(websocket.BinaryMessage, []byte{0x01}))
	assert.Equal(t, protocol.ErrInvalidFrame, c.errorFrame().Code)

	c.write(protocol.NewFrame(protocol.FrameAck, protocol.EncodeAck(protocol.NewAck(1, 1))))
	assert.Equal(t, protocol.ErrInvalidFrame, c.errorFrame().Code)

	// errors do not close the connection
	c.input(9, "number", 3)
	assert.Equal(t, uint64(9), c.ack().LastSeq)
}

func TestAbortedInput(t *testing.T) {
	ts := startServer(t, Options{}, func(s *Server) {
		net := s.Network()
		src := frp.NewSource[int](net)
		Expose(s, "n", src)
		doubled := frp.Map(net, src.Stream, func(v int) int { return v * 2 })
		Publish(s, "doubled", doubled)
	}, frp.WithBudget(frp.Budget{MaxEmissions: 1}))
	c := dial(t, ts)

	c.input(1, "n", 2)
	em := c.errorFrame()
	assert.Equal(t, uint64(1), em.Seq)
	assert.Equal(t, protocol.ErrAborted, em.Code)
	assert.Contains(t, em.Message, frp.CodeEmissionBudget)
	assert.False(t, em.Fatal)

	// the connection and the loop survive the abort
	c.input(2, "missing", 0)
	assert.Equal(t, protocol.ErrUnknownTarget, c.errorFrame().Code)
}

func TestDeferredInput(t *testing.T) {
	ts := startServer(t, Options{}, clickCounter)
	c := dial(t, ts)

	in, err := protocol.NewInput(1, "clicks", struct{}{})
	require.NoError(t, err)
	f := protocol.NewFrame(protocol.FrameInput, protocol.EncodeInput(in))
	f.Flags = protocol.FlagDeferred
	c.write(f)

	assert.JSONEq(t, "1", string(c.output().Value))
	assert.Equal(t, uint64(1), c.ack().LastSeq)
}

func TestRateLimit(t *testing.T) {
	ts := startServer(t, Options{InputRate: rate.Every(time.Hour), InputBurst: 1}, clickCounter)
	c := dial(t, ts)

	c.input(1, "clicks", struct{}{})
	c.output()
	c.ack()

	c.input(2, "clicks", struct{}{})
	em := c.errorFrame()
	assert.Equal(t, uint64(2), em.Seq)
	assert.Equal(t, protocol.ErrRateLimited, em.Code)
}

func TestPing(t *testing.T) {
	ts := startServer(t, Options{}, nil)
	c := dial(t, ts)

	c.write(protocol.NewFrame(protocol.FrameControl, protocol.EncodeControl(protocol.ControlPing, protocol.NewPing(42))))
	f := c.read()
	require.Equal(t, protocol.FrameControl, f.Type)
	ct, payload, err := protocol.DecodeControl(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.ControlPong, ct)
	assert.Equal(t, &protocol.PingPong{Timestamp: 42}, payload)
}

func TestClientClose(t *testing.T) {
	ts := startServer(t, Options{}, nil)
	c := dial(t, ts)
	require.Eventually(t, func() bool { return ts.Conns() == 1 }, 5*time.Second, 10*time.Millisecond)

	c.write(protocol.NewFrame(protocol.FrameControl,
		protocol.EncodeControl(protocol.ControlClose, protocol.NewClose(protocol.CloseNormal, "bye"))))
	require.Eventually(t, func() bool { return ts.Conns() == 0 }, 5*time.Second, 10*time.Millisecond)
}

func TestHTTPEndpoints(t *testing.T) {
	reg := prometheus.NewRegistry()
	ts := startServer(t, Options{Gatherer: reg, Registerer: reg}, clickCounter)

	get := func(path string) (int, string) {
		resp, err := http.Get(ts.ts.URL + path)
		require.NoError(t, err)
		defer resp.Body.Close()
		body, err := io.ReadAll(resp.Body)
		require.NoError(t, err)
		return resp.StatusCode, string(body)
	}

	code, body := get("/healthz")
	assert.Equal(t, http.StatusOK, code)
	assert.Equal(t, "ok\n", body)

	code, body = get("/graph")
	require.Equal(t, http.StatusOK, code)
	var snap frp.Snapshot
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	var labels []string
	for _, n := range snap.Nodes {
		labels = append(labels, n.Label)
	}
	assert.Contains(t, labels, "clicks")
	assert.Contains(t, labels, "publish:count")

	code, body = get("/graph?network=nope")
	require.Equal(t, http.StatusOK, code)
	snap = frp.Snapshot{}
	require.NoError(t, json.Unmarshal([]byte(body), &snap))
	assert.Empty(t, snap.Nodes)

	code, body = get("/graph.dot")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "digraph frp")
	assert.Contains(t, body, `label="server"`)

	dial(t, ts)
	code, body = get("/metrics")
	assert.Equal(t, http.StatusOK, code)
	assert.Contains(t, body, "frp_bridge_connections 1")
}

func TestInputAfterLoopClosed(t *testing.T) {
	ts := startServer(t, Options{}, clickCounter)
	c := dial(t, ts)

	ts.Loop().Close()
	c.input(1, "clicks", struct{}{})

	em := c.errorFrame()
	assert.True(t, em.Fatal)
	assert.Equal(t, protocol.ErrShuttingDown, em.Code)

	f := c.read()
	require.Equal(t, protocol.FrameControl, f.Type)
	ct, payload, err := protocol.DecodeControl(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.ControlClose, ct)
	assert.Equal(t, protocol.CloseServerShutdown, payload.(*protocol.CloseMessage).Reason)

	require.NoError(t, c.ws.SetReadDeadline(time.Now().Add(5*time.Second)))
	_, _, err = c.ws.ReadMessage()
	assert.Error(t, err)
}

func TestServeShutdown(t *testing.T) {
	s := New(frptest.NewRuntime(), Options{Logger: discard, HeartbeatInterval: time.Hour})
	clickCounter(s)

	ln, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	ctx, cancel := context.WithCancel(context.Background())
	served := make(chan error, 1)
	go func() { served <- s.Serve(ctx, ln) }()

	ws, resp, err := websocket.DefaultDialer.Dial("ws://"+ln.Addr().String()+"/ws", nil)
	require.NoError(t, err)
	if resp != nil && resp.Body != nil {
		resp.Body.Close()
	}
	defer ws.Close()
	c := &client{t: t, ws: ws}
	require.Equal(t, protocol.FrameHello, c.read().Type)

	cancel()

	em := c.errorFrame()
	assert.True(t, em.Fatal)
	assert.Equal(t, protocol.ErrShuttingDown, em.Code)

	f := c.read()
	require.Equal(t, protocol.FrameControl, f.Type)
	ct, payload, err := protocol.DecodeControl(f.Payload)
	require.NoError(t, err)
	assert.Equal(t, protocol.ControlClose, ct)
	assert.Equal(t, protocol.CloseServerShutdown, payload.(*protocol.CloseMessage).Reason)

	select {
	case err := <-served:
		assert.NoError(t, err)
	case <-time.After(10 * time.Second):
		t.Fatal("Serve did not return")
	}
	assert.True(t, s.Network().IsDisposed())
}
