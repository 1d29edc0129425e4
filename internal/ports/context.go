package ports

import "context"

// ContextKey type for context keys
type ContextKey string

const ClientInfoContextKey ContextKey = "client_info"

// ClientInfo describes the caller of the current request for audit records
type ClientInfo struct {
	IP        string
	UserAgent string
	RequestID string
}

// WithClientInfo stores caller details in the request context
func WithClientInfo(ctx context.Context, info ClientInfo) context.Context {
	return context.WithValue(ctx, ClientInfoContextKey, info)
}

// ClientInfoFrom retrieves caller details, or the zero value outside a request
func ClientInfoFrom(ctx context.Context) ClientInfo {
	info, _ := ctx.Value(ClientInfoContextKey).(ClientInfo)
	return info
}
