// Package requestid carries a per-request correlation id through a context.
package requestid

import "context"

// contextKey is unexported so values set here cannot collide with keys from
// other packages that use the same string.
type contextKey string

const (
	// Header is sent on outgoing connections and read from incoming requests.
	Header = "X-Request-Id"

	ctxKey contextKey = "x-request-id"
)

func WithID(ctx context.Context, id string) context.Context {
	if id == "" {
		return ctx
	}
	return context.WithValue(ctx, ctxKey, id)
}

// FromContext returns the id stored in ctx, or "" when there is none.
func FromContext(ctx context.Context) string {
	if id, ok := ctx.Value(ctxKey).(string); ok {
		return id
	}
	return ""
}
