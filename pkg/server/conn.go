package server

import (
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"golang.org/x/time/rate"

	"github.com/vango-dev/frp/pkg/frp"
	"github.com/vango-dev/frp/pkg/protocol"
)

// Conn is one websocket client. Its sub-network and everything registered
// on it live until the connection closes.
type Conn struct {
	id    string
	srv   *Server
	ws    *websocket.Conn
	scope *frp.Scope
	net   *frp.Network
	reg   *registry

	send    chan []byte
	limiter *rate.Limiter
	pending atomic.Int64

	done      chan struct{}
	closeOnce sync.Once
	closing   atomic.Bool
	logger    *slog.Logger
}

func newConn(s *Server, ws *websocket.Conn) *Conn {
	id := uuid.NewString()
	limit, burst := s.opts.InputRate, s.opts.InputBurst
	if limit <= 0 {
		limit, burst = rate.Inf, 0
	}
	c := &Conn{
		id:      id,
		srv:     s,
		ws:      ws,
		scope:   frp.NewScope(s.scope),
		send:    make(chan []byte, s.opts.SendQueueSize),
		limiter: rate.NewLimiter(limit, burst),
		done:    make(chan struct{}),
		logger:  s.logger.With("conn_id", id),
	}
	c.reg = newRegistry(c.enqueueOutput, c.logger)
	return c
}

// ID returns the connection id sent to the client in Hello.
func (c *Conn) ID() string {
	return c.id
}

// Network returns the connection's sub-network. It is disposed when the
// connection closes.
func (c *Conn) Network() *frp.Network {
	return c.net
}

// Scope returns the connection's lifetime.
func (c *Conn) Scope() *frp.Scope {
	return c.scope
}

func (c *Conn) endpoint() *registry {
	return c.reg
}

// Done is closed when the connection closes.
func (c *Conn) Done() <-chan struct{} {
	return c.done
}

// Close closes the connection and schedules disposal of its sub-network
// on the loop. Close is idempotent.
func (c *Conn) Close() {
	c.closeOnce.Do(func() {
		close(c.done)
		_ = c.ws.Close()
		c.srv.removeConn(c)
		c.srv.loop.Post(func(*frp.Runtime) {
			c.scope.Dispose()
		})
		c.logger.Info("client disconnected")
	})
}

// closeWith sends em and a close control frame, then closes once they
// have been written. Only the first call queues anything.
func (c *Conn) closeWith(em *protocol.ErrorMessage) {
	if c.closing.Swap(true) {
		return
	}
	c.enqueue(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)).Encode())
	reason := protocol.CloseError
	if em.Code == protocol.ErrShuttingDown {
		reason = protocol.CloseServerShutdown
	}
	c.enqueue(protocol.NewFrame(protocol.FrameControl,
		protocol.EncodeControl(protocol.ControlClose, protocol.NewClose(reason, em.Message))).Encode())
	c.enqueue(nil)
}

// enqueue queues a frame for the write loop. A nil frame closes the
// connection once everything before it is written. A client that cannot
// keep up is disconnected.
func (c *Conn) enqueue(frame []byte) bool {
	select {
	case c.send <- frame:
		return true
	case <-c.done:
		return false
	default:
		c.logger.Warn("send queue full, closing slow client")
		c.srv.metrics.slowClient()
		go c.Close()
		return false
	}
}

func (c *Conn) enqueueOutput(frame []byte) {
	if c.enqueue(frame) {
		c.srv.metrics.output()
	}
}

func (c *Conn) sendError(em *protocol.ErrorMessage) {
	c.enqueue(protocol.NewFrame(protocol.FrameError, protocol.EncodeErrorMessage(em)).Encode())
}

// window is the number of inputs the client may still send.
func (c *Conn) window() uint64 {
	return uint64(max(0, int64(c.srv.opts.Window)-c.pending.Load()))
}

// readLoop reads frames until the connection fails or the client closes.
func (c *Conn) readLoop() {
	defer c.drainAndClose()
	c.ws.SetReadLimit(c.srv.opts.MaxMessageSize)

	for {
		_ = c.ws.SetReadDeadline(time.Now().Add(c.srv.opts.ReadTimeout))
		_, msg, err := c.ws.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err,
				websocket.CloseGoingAway,
				websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.logger.Error("read error", "error", err)
			}
			return
		}

		frame, err := protocol.DecodeFrame(msg)
		if err != nil {
			c.logger.Debug("frame decode error", "error", err)
			c.sendError(protocol.NewError(0, protocol.ErrInvalidFrame, err.Error()))
			continue
		}

		switch frame.Type {
		case protocol.FrameInput:
			if !c.handleInput(frame) {
				return
			}
		case protocol.FrameControl:
			if !c.handleControl(frame.Payload) {
				return
			}
		default:
			c.sendError(protocol.NewError(0, protocol.ErrInvalidFrame,
				fmt.Sprintf("unexpected %s frame", frame.Type)))
		}
	}
}

// drainAndClose closes the connection. After closeWith it first gives the
// write loop up to WriteTimeout to flush the queued close frames.
func (c *Conn) drainAndClose() {
	if c.closing.Load() {
		timer := time.NewTimer(c.srv.opts.WriteTimeout)
		select {
		case <-c.done:
		case <-timer.C:
		}
		timer.Stop()
	}
	c.Close()
}

// handleInput queues the input on the loop. It returns false when the
// connection should stop reading.
func (c *Conn) handleInput(frame *protocol.Frame) bool {
	in, err := protocol.DecodeInput(frame.Payload)
	if err != nil {
		c.srv.metrics.input("invalid")
		c.sendError(protocol.NewError(0, protocol.ErrInvalidInput, err.Error()))
		return true
	}
	if !c.limiter.Allow() {
		c.srv.metrics.input("rate_limited")
		c.sendError(protocol.NewError(in.Seq, protocol.ErrRateLimited, "input rate exceeded"))
		return true
	}

	deferred := frame.Flags.Has(protocol.FlagDeferred)
	c.pending.Add(1)
	err = c.srv.loop.Submit(func(*frp.Runtime) {
		em := c.apply(in, deferred)
		c.pending.Add(-1)
		if em != nil {
			c.sendError(em)
			return
		}
		c.enqueue(protocol.NewFrame(protocol.FrameAck, protocol.EncodeAck(protocol.NewAck(in.Seq, c.window()))).Encode())
	})
	switch {
	case err == nil:
		return true
	case errors.Is(err, ErrLoopBusy):
		c.pending.Add(-1)
		c.srv.metrics.input("busy")
		c.sendError(protocol.NewError(in.Seq, protocol.ErrRateLimited, "server busy"))
		return true
	default:
		c.pending.Add(-1)
		c.closeWith(protocol.NewFatalError(protocol.ErrShuttingDown, "server shutting down"))
		return false
	}
}

// apply pushes the input into its source. It runs on the loop.
func (c *Conn) apply(in *protocol.Input, deferred bool) (em *protocol.ErrorMessage) {
	push, ok := c.reg.inputs[in.Target]
	if !ok {
		push, ok = c.srv.reg.inputs[in.Target]
	}
	if !ok {
		c.srv.metrics.input("unknown_target")
		return protocol.NewError(in.Seq, protocol.ErrUnknownTarget, fmt.Sprintf("no input named %q", in.Target))
	}

	defer func() {
		r := recover()
		if r == nil {
			return
		}
		ne, ok := frp.AsNodeError(r)
		if !ok {
			panic(r)
		}
		c.logger.Warn("input aborted propagation", "target", in.Target, "code", ne.Code, "error", ne)
		c.srv.metrics.input("aborted")
		em = protocol.NewError(in.Seq, protocol.ErrAborted, ne.Error())
	}()

	if err := push(in.Value, deferred); err != nil {
		c.srv.metrics.input("invalid")
		return protocol.NewError(in.Seq, protocol.ErrInvalidInput, err.Error())
	}
	c.srv.metrics.input("applied")
	return nil
}

// handleControl answers pings. It returns false when the client closes.
func (c *Conn) handleControl(payload []byte) bool {
	ct, data, err := protocol.DecodeControl(payload)
	if err != nil {
		c.sendError(protocol.NewError(0, protocol.ErrInvalidFrame, err.Error()))
		return true
	}

	switch ct {
	case protocol.ControlPing:
		if pp, ok := data.(*protocol.PingPong); ok {
			c.enqueue(protocol.NewFrame(protocol.FrameControl,
				protocol.EncodeControl(protocol.ControlPong, pp)).Encode())
		}
	case protocol.ControlPong:
		c.logger.Debug("received pong")
	case protocol.ControlClose:
		if cm, ok := data.(*protocol.CloseMessage); ok {
			c.logger.Info("client closing", "reason", cm.Reason, "message", cm.Message)
		}
		return false
	}
	return true
}

// writeLoop writes queued frames and heartbeat pings. It is the only
// writer on the websocket.
func (c *Conn) writeLoop() {
	ticker := time.NewTicker(c.srv.opts.HeartbeatInterval)
	defer ticker.Stop()

	for {
		select {
		case frame := <-c.send:
			if frame == nil {
				c.Close()
				return
			}
			if err := c.write(frame); err != nil {
				c.logger.Debug("write error", "error", err)
				c.Close()
				return
			}

		case <-ticker.C:
			ping := protocol.EncodeControl(protocol.ControlPing, protocol.NewPing(uint64(time.Now().UnixMilli())))
			if err := c.write(protocol.NewFrame(protocol.FrameControl, ping).Encode()); err != nil {
				c.Close()
				return
			}

		case <-c.done:
			return
		}
	}
}

func (c *Conn) write(frame []byte) error {
	_ = c.ws.SetWriteDeadline(time.Now().Add(c.srv.opts.WriteTimeout))
	return c.ws.WriteMessage(websocket.BinaryMessage, frame)
}
