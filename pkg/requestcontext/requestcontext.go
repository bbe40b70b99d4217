// Package requestcontext carries request-scoped values between middleware,
// handlers and services without each layer depending on net/http.
package requestcontext

import (
	"context"

	id "proctor/pkg/domain"
)

type (
	contextKeyRequestID         struct{}
	contextKeyUserID            struct{}
	contextKeyRole              struct{}
	contextKeyClientIP          struct{}
	contextKeyUserAgent         struct{}
	contextKeyDeviceFingerprint struct{}
)

func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, contextKeyRequestID{}, requestID)
}

// RequestID returns the request ID, or "" outside an HTTP request.
func RequestID(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyRequestID{}).(string)
	return v
}

func WithUserID(ctx context.Context, userID id.UserID) context.Context {
	return context.WithValue(ctx, contextKeyUserID{}, userID)
}

// UserID returns the authenticated user, or the nil ID when unauthenticated.
func UserID(ctx context.Context) id.UserID {
	v, _ := ctx.Value(contextKeyUserID{}).(id.UserID)
	return v
}

func WithRole(ctx context.Context, role string) context.Context {
	return context.WithValue(ctx, contextKeyRole{}, role)
}

func Role(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyRole{}).(string)
	return v
}

// WithClientMetadata stores the client IP and User-Agent extracted at the edge.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, contextKeyClientIP{}, clientIP)
	return context.WithValue(ctx, contextKeyUserAgent{}, userAgent)
}

func ClientIP(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyClientIP{}).(string)
	return v
}

func UserAgent(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyUserAgent{}).(string)
	return v
}

func WithDeviceFingerprint(ctx context.Context, fingerprint string) context.Context {
	return context.WithValue(ctx, contextKeyDeviceFingerprint{}, fingerprint)
}

func DeviceFingerprint(ctx context.Context) string {
	v, _ := ctx.Value(contextKeyDeviceFingerprint{}).(string)
	return v
}
