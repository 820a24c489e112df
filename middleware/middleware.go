// Package middleware composes cross-cutting behavior around the plugin
// dispatch handler.
//
// Every instrumented operation flows through an explicit chain of named
// wrappers rather than reflective call interception:
//
//	Chain(A, B, C)(dispatch) → A(B(C(dispatch)))
//	Execution order: A.before → B.before → C.before → dispatch → C.after → ...
package middleware

import (
	"context"

	"stormgmt/message"
)

// HandlerFunc processes one decoded request message and produces the reply
// message (success or fault). It never returns nil.
type HandlerFunc func(ctx context.Context, req *message.Message) *message.Message

// Middleware wraps a handler with additional behavior.
type Middleware func(next HandlerFunc) HandlerFunc

// Chain combines middlewares into one, preserving registration order.
func Chain(middlewares ...Middleware) Middleware {
	return func(next HandlerFunc) HandlerFunc {
		for i := len(middlewares) - 1; i >= 0; i-- {
			next = middlewares[i](next)
		}
		return next
	}
}
