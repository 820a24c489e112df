package middleware

import (
	"context"

	"stormgmt/fault"
	"stormgmt/message"
)

// Recover converts a handler panic into a plugin-internal fault. The
// transport cannot encode an unstructured failure, so nothing may escape
// the dispatch boundary unwrapped.
func Recover() Middleware {
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) (resp *message.Message) {
			defer func() {
				if r := recover(); r != nil {
					resp = message.NewFault(req.ID, fault.Newf(fault.ErrPluginFailure, "internal failure in %q: %v", req.Method, r))
				}
			}()
			return next(ctx, req)
		}
	}
}
