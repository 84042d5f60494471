package middleware

import (
	"log/slog"
	"time"

	"github.com/vango-dev/frp/pkg/frp"
)

// Logging logs each step at debug level once it completes, and aborted
// steps at error level before the panic continues. A nil logger uses
// slog.Default().
func Logging(logger *slog.Logger) frp.Middleware {
	if logger == nil {
		logger = slog.Default()
	}
	return func(step *frp.Step, next func()) {
		start := time.Now()
		completed := false
		defer func() {
			attrs := []any{
				"seq", step.Seq,
				"origin", step.Origin.String(),
				"label", step.OriginLabel,
				"network", step.Network,
				"deferred", step.Deferred,
				"emissions", step.Emissions,
				"duration", time.Since(start),
			}
			if completed {
				logger.DebugContext(step.Context, "frp: step", attrs...)
				return
			}
			r := recover()
			logger.ErrorContext(step.Context, "frp: step aborted", append(attrs, "error", panicError(r))...)
			panic(r)
		}()

		next()
		completed = true
	}
}
