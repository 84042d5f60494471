package server

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/gorilla/websocket"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/protocol"
)

// Server bridges an frp graph to websocket clients.
type Server struct {
	opts    Options
	loop    *Loop
	net     *frp.Network
	scope   *frp.Scope
	reg     *registry
	metrics *bridgeMetrics

	onConnect []func(c *Conn)

	upgrader websocket.Upgrader
	router   chi.Router

	mu    sync.Mutex
	conns map[string]*Conn

	httpServer *http.Server
	logger     *slog.Logger
}

// New creates a Server driving rt. The server's network and every
// connection sub-network are built on rt.
func New(rt *frp.Runtime, opts Options) *Server {
	opts = opts.withDefaults()
	logger := opts.Logger.With("component", "server")

	s := &Server{
		opts:    opts,
		loop:    NewLoop(rt, opts.QueueSize, logger),
		net:     rt.NewNetwork("server"),
		scope:   frp.NewScope(nil),
		metrics: newBridgeMetrics(opts.Registerer),
		upgrader: websocket.Upgrader{
			ReadBufferSize:  opts.ReadBufferSize,
			WriteBufferSize: opts.WriteBufferSize,
			CheckOrigin:     opts.checkOrigin(),
		},
		conns:  make(map[string]*Conn),
		logger: logger,
	}
	s.reg = newRegistry(s.broadcast, logger)
	s.router = s.routes()
	return s
}

func (s *Server) routes() chi.Router {
	r := chi.NewRouter()
	r.Get("/healthz", s.handleHealth)
	r.Get("/graph", s.handleGraph)
	r.Get("/graph.dot", s.handleGraphDOT)
	r.Get("/ws", s.HandleWebSocket)
	if s.opts.Gatherer != nil {
		r.Handle(s.opts.MetricsPath, promhttp.HandlerFor(s.opts.Gatherer, promhttp.HandlerOpts{}))
	}
	return r
}

// Network returns the server's network. Build graph-wide inputs and
// outputs in it before Run, or from a loop task.
func (s *Server) Network() *frp.Network {
	return s.net
}

func (s *Server) endpoint() *registry {
	return s.reg
}

// Loop returns the loop owning the runtime.
func (s *Server) Loop() *Loop {
	return s.loop
}

// Handler returns the HTTP handler serving every endpoint.
func (s *Server) Handler() http.Handler {
	return s.router
}

// ServeHTTP implements http.Handler.
func (s *Server) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	s.router.ServeHTTP(w, r)
}

// OnConnect registers fn to run on the loop for every new connection,
// before the client receives Hello. fn typically builds per-connection
// inputs and outputs in c.Network().
func (s *Server) OnConnect(fn func(c *Conn)) {
	s.onConnect = append(s.onConnect, fn)
}

// Logger returns the server logger.
func (s *Server) Logger() *slog.Logger {
	return s.logger
}

// Conns returns the number of open connections.
func (s *Server) Conns() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.conns)
}

// Run listens on Options.Addr and serves until ctx is done or the server
// fails.
func (s *Server) Run(ctx context.Context) error {
	ln, err := net.Listen("tcp", s.opts.Addr)
	if err != nil {
		return fmt.Errorf("server: listen %s: %w", s.opts.Addr, err)
	}
	return s.Serve(ctx, ln)
}

// Serve runs the loop and the HTTP server on ln until ctx is done. On
// return every connection is closed and the server's network disposed.
func (s *Server) Serve(ctx context.Context, ln net.Listener) error {
	s.httpServer = &http.Server{
		Handler:           s.router,
		ReadHeaderTimeout: 10 * time.Second,
	}

	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		return s.loop.Run(gctx)
	})
	g.Go(func() error {
		s.logger.Info("server starting", "address", ln.Addr().String())
		if err := s.httpServer.Serve(ln); !errors.Is(err, http.ErrServerClosed) {
			return err
		}
		return nil
	})
	g.Go(func() error {
		<-gctx.Done()
		return s.shutdown()
	})

	err := g.Wait()

	// The loop has stopped, so this goroutine now owns the runtime.
	s.scope.Dispose()
	s.net.Dispose()
	s.logger.Info("server shutdown complete")
	return err
}

func (s *Server) shutdown() error {
	s.logger.Info("shutting down...")

	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()
	for _, c := range conns {
		c.closeWith(protocol.NewFatalError(protocol.ErrShuttingDown, "server shutting down"))
	}

	ctx, cancel := context.WithTimeout(context.Background(), s.opts.ShutdownTimeout)
	defer cancel()
	if err := s.httpServer.Shutdown(ctx); err != nil {
		s.logger.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

// broadcast queues frame on every open connection.
func (s *Server) broadcast(frame []byte) {
	s.mu.Lock()
	conns := make([]*Conn, 0, len(s.conns))
	for _, c := range s.conns {
		conns = append(conns, c)
	}
	s.mu.Unlock()

	for _, c := range conns {
		c.enqueueOutput(frame)
	}
}

func (s *Server) addConn(c *Conn) {
	s.mu.Lock()
	s.conns[c.id] = c
	s.mu.Unlock()
	s.metrics.connOpened()
}

func (s *Server) removeConn(c *Conn) {
	s.mu.Lock()
	_, ok := s.conns[c.id]
	delete(s.conns, c.id)
	s.mu.Unlock()
	if ok {
		s.metrics.connClosed()
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	select {
	case <-s.loop.Done():
		http.Error(w, "loop stopped", http.StatusServiceUnavailable)
	default:
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		_, _ = w.Write([]byte("ok\n"))
	}
}

func (s *Server) snapshot(ctx context.Context) (frp.Snapshot, error) {
	var snap frp.Snapshot
	err := s.loop.Do(ctx, func(rt *frp.Runtime) error {
		snap = rt.Snapshot()
		return nil
	})
	return snap, err
}

func (s *Server) handleGraph(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	if name := r.URL.Query().Get("network"); name != "" {
		snap.Nodes = snap.Network(name)
	}
	w.Header().Set("Content-Type", "application/json")
	if err := json.NewEncoder(w).Encode(snap); err != nil {
		s.logger.Error("graph encode failed", "error", err)
	}
}

func (s *Server) handleGraphDOT(w http.ResponseWriter, r *http.Request) {
	snap, err := s.snapshot(r.Context())
	if err != nil {
		http.Error(w, err.Error(), http.StatusServiceUnavailable)
		return
	}
	var buf bytes.Buffer
	if err := frp.WriteDOT(&buf, snap); err != nil {
		http.Error(w, err.Error(), http.StatusInternalServerError)
		return
	}
	w.Header().Set("Content-Type", "text/vnd.graphviz; charset=utf-8")
	_, _ = w.Write(buf.Bytes())
}

// HandleWebSocket upgrades the request and serves the connection until it
// closes.
func (s *Server) HandleWebSocket(w http.ResponseWriter, r *http.Request) {
	ws, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		s.logger.Error("websocket upgrade failed", "error", err)
		return
	}

	c := newConn(s, ws)
	var hello *protocol.Hello
	err = s.loop.Do(r.Context(), func(rt *frp.Runtime) error {
		c.net = s.net.SubNetworkNamed("conn/"+c.id, c.scope)
		for _, fn := range s.onConnect {
			fn(c)
		}
		hello = &protocol.Hello{
			Version: protocol.CurrentVersion,
			ConnID:  c.id,
			Window:  uint64(s.opts.Window),
			Inputs:  names(s.reg.inputs, c.reg.inputs),
			Outputs: names(s.reg.outputs, c.reg.outputs),
		}
		return nil
	})
	if err != nil {
		s.logger.Error("connection setup failed", "conn_id", c.id, "error", err)
		em := protocol.NewFatalError(protocol.ErrServerError, "connection setup failed")
		_ = ws.WriteMessage(websocket.BinaryMessage, protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)).Encode())
		c.Close()
		return
	}

	s.addConn(c)
	c.logger.Info("client connected", "remote", r.RemoteAddr)
	c.enqueue(protocol.NewFrame(protocol.FrameHello, protocol.EncodeHello(hello)).Encode())

	go c.writeLoop()
	c.readLoop()
}
