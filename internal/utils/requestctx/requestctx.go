// Package requestctx carries per-request metadata through layers that never see gin.
package requestctx

import "context"

type metaKey struct{}

// Meta is the request metadata attached by the HTTP middleware chain.
type Meta struct {
	RequestID string
	UserID    string
}

// With returns a copy of ctx carrying m.
func With(ctx context.Context, m Meta) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, metaKey{}, m)
}

// From returns the metadata stored in ctx, or the zero Meta.
func From(ctx context.Context) Meta {
	if ctx == nil {
		return Meta{}
	}
	m, _ := ctx.Value(metaKey{}).(Meta)
	return m
}

// WithRequestID sets the request id, keeping any other metadata.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	m := From(ctx)
	m.RequestID = requestID
	return With(ctx, m)
}

// RequestID returns the request id stored in ctx.
func RequestID(ctx context.Context) string {
	return From(ctx).RequestID
}

// WithUserID sets the authenticated subject, keeping any other metadata.
func WithUserID(ctx context.Context, userID string) context.Context {
	m := From(ctx)
	m.UserID = userID
	return With(ctx, m)
}

// UserID returns the authenticated subject stored in ctx.
func UserID(ctx context.Context) string {
	return From(ctx).UserID
}
