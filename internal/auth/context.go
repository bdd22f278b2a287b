package auth

// context.go carries the inbound caller's bearer credential on the request
// context so that outbound registry calls can forward it.  The token lives
// only on the per-request context.Context; there is no process-wide
// "current caller" slot, so concurrent requests can never leak one
// caller's credential onto another's outbound calls.

import "context"

type ctxKey int

const (
	tokenKey ctxKey = iota
	roleKey
)

// WithToken returns a context carrying the raw bearer token string that
// authenticated the inbound request.
func WithToken(ctx context.Context, raw string) context.Context {
	return context.WithValue(ctx, tokenKey, raw)
}

// TokenFrom extracts the raw bearer token from the context.  It returns ""
// when the request was not authenticated; callers then proceed without a
// credential and let the remote registry reject the call itself.
func TokenFrom(ctx context.Context) string {
	if v, ok := ctx.Value(tokenKey).(string); ok {
		return v
	}
	return ""
}

// WithRole returns a context carrying the caller's role claim.
func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, roleKey, role)
}

// RoleFrom extracts the caller's role claim, or "" when absent.
func RoleFrom(ctx context.Context) string {
	if v, ok := ctx.Value(roleKey).(string); ok {
		return v
	}
	return ""
}
