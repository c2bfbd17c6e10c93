// Package kit carries the transport-agnostic plumbing shared by every tool
// surface: the Endpoint abstraction, middleware chaining, request-scoped
// context values, and the MCP registration bridge.
package kit

import "context"

// Endpoint is a transport-agnostic handler: a typed request in, a response
// out. Transports decode their wire format into the request and encode the
// response back.
type Endpoint func(ctx context.Context, req any) (any, error)

// Middleware wraps an Endpoint with cross-cutting behavior.
type Middleware func(Endpoint) Endpoint

// Chain composes middlewares so the first one listed is outermost.
func Chain(mw ...Middleware) Middleware {
	return func(next Endpoint) Endpoint {
		for i := len(mw) - 1; i >= 0; i-- {
			next = mw[i](next)
		}
		return next
	}
}
