// Package contextkeys provides centralized context key definitions
//
// IMPORTANT: All context keys used across the application must be defined here.
// This prevents typos, documents dependencies, and makes key usage discoverable.
package contextkeys

import "context"

// Key is the type for context keys to prevent collisions
type Key string

const (
	// IdentityKey contains *identity.Identity
	// Set by: middleware identity stage after assertion verification
	// Required by: rate limiter (subject keys), resource access controller
	IdentityKey Key = "identity"

	// SessionIDKey contains the session id string bound to the validated
	// CSRF token.
	// Set by: csrf.Guard on successful validation
	SessionIDKey Key = "session_id"

	// CSRFTokenKey contains the validated raw CSRF token string
	// Set by: csrf.Guard on successful validation
	CSRFTokenKey Key = "csrf_token"

	// PayloadKey contains the decoded request payload (map[string]interface{})
	// Set by: middleware payload decode stage
	// Required by: resource access controller (resource-id field lookup)
	PayloadKey Key = "payload"

	// ResourceKey contains the loaded resource document (storage.Document)
	// Set by: resource access controller after a granted check
	ResourceKey Key = "resource"

	// RequestIDKey contains request ID string (UUID)
	// Set by: httputil.RequestIDMiddleware
	// Used by: logger, response headers
	RequestIDKey Key = "request_id"

	// LoggerKey contains *observability.Logger
	// Set by: httputil.RequestIDMiddleware
	LoggerKey Key = "logger"
)

// WithIdentity adds the caller identity to the context
func WithIdentity(ctx context.Context, ident interface{}) context.Context {
	return context.WithValue(ctx, IdentityKey, ident)
}

// WithSessionID adds the validated session id to the context
func WithSessionID(ctx context.Context, sessionID string) context.Context {
	return context.WithValue(ctx, SessionIDKey, sessionID)
}

// WithCSRFToken adds the validated CSRF token to the context
func WithCSRFToken(ctx context.Context, token string) context.Context {
	return context.WithValue(ctx, CSRFTokenKey, token)
}

// WithPayload adds the decoded request payload to the context
func WithPayload(ctx context.Context, payload interface{}) context.Context {
	return context.WithValue(ctx, PayloadKey, payload)
}

// WithResource adds the loaded resource document to the context
func WithResource(ctx context.Context, resource interface{}) context.Context {
	return context.WithValue(ctx, ResourceKey, resource)
}

// WithRequestID adds request ID to the context
func WithRequestID(ctx context.Context, requestID string) context.Context {
	return context.WithValue(ctx, RequestIDKey, requestID)
}

// WithLogger adds logger to the context
func WithLogger(ctx context.Context, logger interface{}) context.Context {
	return context.WithValue(ctx, LoggerKey, logger)
}

// GetRequestID retrieves request ID from context
func GetRequestID(ctx context.Context) string {
	if requestID, ok := ctx.Value(RequestIDKey).(string); ok {
		return requestID
	}
	return ""
}

// GetSessionID retrieves the validated session id from context
func GetSessionID(ctx context.Context) string {
	if sessionID, ok := ctx.Value(SessionIDKey).(string); ok {
		return sessionID
	}
	return ""
}
