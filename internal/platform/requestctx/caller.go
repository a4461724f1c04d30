// Package requestctx carries caller identity through request contexts.
package requestctx

import "context"

type accountIDContextKey struct{}

type capabilityTokenContextKey struct{}

type requestIDContextKey struct{}

// WithAccountID stores the calling account in context.
func WithAccountID(ctx context.Context, accountID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, accountIDContextKey{}, accountID)
}

// AccountIDFromContext returns the calling account stored in context.
func AccountIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(accountIDContextKey{}).(string)
	return value
}

// WithCapabilityToken stores a signed capability token presented by the caller.
func WithCapabilityToken(ctx context.Context, token string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, capabilityTokenContextKey{}, token)
}

// CapabilityTokenFromContext returns the capability token stored in context.
func CapabilityTokenFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(capabilityTokenContextKey{}).(string)
	return value
}

// WithRequestID stores a caller-supplied request id for event correlation.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	if ctx == nil {
		ctx = context.Background()
	}
	return context.WithValue(ctx, requestIDContextKey{}, requestID)
}

// RequestIDFromContext returns the request id stored in context.
func RequestIDFromContext(ctx context.Context) string {
	if ctx == nil {
		return ""
	}
	value, _ := ctx.Value(requestIDContextKey{}).(string)
	return value
}
