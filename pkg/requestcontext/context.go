// Package requestcontext provides HTTP-independent accessors for
// request-scoped values. Middleware sets them, services read them; keeping
// the package free of net/http lets the core import it without pulling
// transport code.
//
// Usage in services:
//
//	now := requestcontext.Now(ctx)
//	role := requestcontext.Role(ctx)
//
// Usage in tests:
//
//	ctx = requestcontext.WithTime(ctx, fixedMonday)
//	ctx = requestcontext.WithRole(ctx, domain.RoleTeacher)
package requestcontext

import (
	"context"
	"time"

	"github.com/google/uuid"

	id "presente/pkg/domain"
)

type (
	userIDKey      struct{}
	roleKey        struct{}
	requestIDKey   struct{}
	requestTimeKey struct{}
	clientIPKey    struct{}
	userAgentKey   struct{}
)

// Exported context keys for tests that need raw context.WithValue.
var (
	ContextKeyUserID      = userIDKey{}
	ContextKeyRole        = roleKey{}
	ContextKeyRequestID   = requestIDKey{}
	ContextKeyRequestTime = requestTimeKey{}
	ContextKeyClientIP    = clientIPKey{}
	ContextKeyUserAgent   = userAgentKey{}
)

// UserID retrieves the authenticated identity-provider subject from the
// context. Returns the nil UUID when unauthenticated.
func UserID(ctx context.Context) uuid.UUID {
	if u, ok := ctx.Value(ContextKeyUserID).(uuid.UUID); ok {
		return u
	}
	return uuid.Nil
}

// WithUserID injects the authenticated subject into the context.
func WithUserID(ctx context.Context, userID uuid.UUID) context.Context {
	return context.WithValue(ctx, ContextKeyUserID, userID)
}

// Role retrieves the caller's asserted role. Empty when unauthenticated.
func Role(ctx context.Context) id.Role {
	if r, ok := ctx.Value(ContextKeyRole).(id.Role); ok {
		return r
	}
	return ""
}

// WithRole injects the caller's role into the context.
func WithRole(ctx context.Context, role id.Role) context.Context {
	return context.WithValue(ctx, ContextKeyRole, role)
}

// RequestID retrieves the request correlation ID.
func RequestID(ctx context.Context) string {
	if reqID, ok := ctx.Value(ContextKeyRequestID).(string); ok {
		return reqID
	}
	return ""
}

// WithRequestID injects a request correlation ID.
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, ContextKeyRequestID, requestID)
}

// Now retrieves the request-scoped time. Every operation within one request
// observes the same "now"; falls back to time.Now for workers and tests that
// did not pin a clock.
func Now(ctx context.Context) time.Time {
	if t, ok := ctx.Value(ContextKeyRequestTime).(time.Time); ok {
		return t
	}
	return time.Now()
}

// WithTime pins the request-scoped clock. Tests use this to exercise the
// schedule-window and period derivations deterministically.
func WithTime(ctx context.Context, t time.Time) context.Context {
	return context.WithValue(ctx, ContextKeyRequestTime, t)
}

// ClientIP retrieves the client IP recorded by the metadata middleware.
func ClientIP(ctx context.Context) string {
	if ip, ok := ctx.Value(ContextKeyClientIP).(string); ok {
		return ip
	}
	return ""
}

// UserAgent retrieves the raw User-Agent header.
func UserAgent(ctx context.Context) string {
	if ua, ok := ctx.Value(ContextKeyUserAgent).(string); ok {
		return ua
	}
	return ""
}

// WithClientMetadata injects client IP and User-Agent, mirroring what the
// metadata middleware does for real requests.
func WithClientMetadata(ctx context.Context, clientIP, userAgent string) context.Context {
	ctx = context.WithValue(ctx, ContextKeyClientIP, clientIP)
	return context.WithValue(ctx, ContextKeyUserAgent, userAgent)
}
