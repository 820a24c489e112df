package middleware

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"stormgmt/message"
)

// Logging records every dispatched operation with its duration and, for
// faults, the error code.
func Logging(log zerolog.Logger) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			start := time.Now()
			resp := next(ctx, req)
			ev := log.Debug()
			if resp.Error != nil {
				ev = log.Warn().Int("code", resp.Error.Code).Str("error", resp.Error.Message)
			}
			ev.Str("method", req.Method).Dur("duration", time.Since(start)).Msg("dispatch")
			return resp
		}
	}
}
