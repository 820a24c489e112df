package middleware

import (
	"context"

	"golang.org/x/time/rate"

	"stormgmt/fault"
	"stormgmt/message"
)

// RateLimit rejects requests beyond a token-bucket budget with a busy
// fault. The limiter is shared across every connection the chain serves.
func RateLimit(perSecond float64, burst int) Middleware {
	limiter := rate.NewLimiter(rate.Limit(perSecond), burst)
	return func(next HandlerFunc) HandlerFunc {
		return func(ctx context.Context, req *message.Message) *message.Message {
			if !limiter.Allow() {
				return message.NewFault(req.ID, fault.New(fault.ErrBusy, "rate limit exceeded"))
			}
			return next(ctx, req)
		}
	}
}
