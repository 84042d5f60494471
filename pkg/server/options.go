package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"golang.org/x/time/rate"
)

// Options configures a Server. Zero fields take the value from
// DefaultOptions.
type Options struct {
	// Addr is the listen address used by Run.
	Addr string

	// ReadBufferSize and WriteBufferSize size the websocket buffers.
	ReadBufferSize  int
	WriteBufferSize int

	// ReadTimeout is the maximum time to wait for a message from a client.
	// Clients are pinged every HeartbeatInterval, which should be shorter.
	ReadTimeout time.Duration

	// WriteTimeout is the maximum time to wait when sending a message.
	WriteTimeout time.Duration

	// HeartbeatInterval is the time between heartbeat pings.
	HeartbeatInterval time.Duration

	// ShutdownTimeout bounds graceful HTTP shutdown.
	ShutdownTimeout time.Duration

	// MaxMessageSize is the maximum size of an incoming websocket message.
	MaxMessageSize int64

	// InputRate and InputBurst limit inputs per connection. A zero
	// InputRate disables limiting.
	InputRate  rate.Limit
	InputBurst int

	// Window is the number of unapplied inputs a client may have in
	// flight. It is advertised in Hello and updated in every Ack.
	Window int

	// QueueSize is the capacity of the loop's task queue.
	QueueSize int

	// SendQueueSize is the number of outgoing frames buffered per
	// connection. A connection whose buffer fills up is closed.
	SendQueueSize int

	// AllowedOrigins lists origins accepted on /ws. Empty means the
	// request origin must match its host; "*" accepts any origin.
	AllowedOrigins []string

	// MetricsPath is where Gatherer is served.
	MetricsPath string

	// Gatherer, when set, is served on MetricsPath.
	Gatherer prometheus.Gatherer

	// Registerer, when set, receives the bridge's own collectors.
	Registerer prometheus.Registerer

	// Logger defaults to slog.Default().
	Logger *slog.Logger
}

// DefaultOptions returns Options with sensible defaults.
func DefaultOptions() Options {
	return Options{
		Addr:              ":8080",
		ReadBufferSize:    4096,
		WriteBufferSize:   4096,
		ReadTimeout:       60 * time.Second,
		WriteTimeout:      10 * time.Second,
		HeartbeatInterval: 30 * time.Second,
		ShutdownTimeout:   10 * time.Second,
		MaxMessageSize:    64 * 1024,
		InputRate:         120,
		InputBurst:        32,
		Window:            64,
		QueueSize:         1024,
		SendQueueSize:     256,
		MetricsPath:       "/metrics",
	}
}

func (o Options) withDefaults() Options {
	d := DefaultOptions()
	if o.Addr == "" {
		o.Addr = d.Addr
	}
	if o.ReadBufferSize == 0 {
		o.ReadBufferSize = d.ReadBufferSize
	}
	if o.WriteBufferSize == 0 {
		o.WriteBufferSize = d.WriteBufferSize
	}
	if o.ReadTimeout == 0 {
		o.ReadTimeout = d.ReadTimeout
	}
	if o.WriteTimeout == 0 {
		o.WriteTimeout = d.WriteTimeout
	}
	if o.HeartbeatInterval == 0 {
		o.HeartbeatInterval = d.HeartbeatInterval
	}
	if o.ShutdownTimeout == 0 {
		o.ShutdownTimeout = d.ShutdownTimeout
	}
	if o.MaxMessageSize == 0 {
		o.MaxMessageSize = d.MaxMessageSize
	}
	if o.InputRate > 0 && o.InputBurst == 0 {
		o.InputBurst = d.InputBurst
	}
	if o.Window == 0 {
		o.Window = d.Window
	}
	if o.QueueSize == 0 {
		o.QueueSize = d.QueueSize
	}
	if o.SendQueueSize == 0 {
		o.SendQueueSize = d.SendQueueSize
	}
	if o.MetricsPath == "" {
		o.MetricsPath = d.MetricsPath
	}
	if o.Logger == nil {
		o.Logger = slog.Default()
	}
	return o
}

// checkOrigin builds the upgrader's origin check. A nil result keeps
// gorilla's same-origin default.
func (o Options) checkOrigin() func(*http.Request) bool {
	if len(o.AllowedOrigins) == 0 {
		return nil
	}
	allowed := make(map[string]bool, len(o.AllowedOrigins))
	for _, origin := range o.AllowedOrigins {
		if origin == "*" {
			return func(*http.Request) bool { return true }
		}
		allowed[origin] = true
	}
	return func(r *http.Request) bool {
		return allowed[r.Header.Get("Origin")]
	}
}
