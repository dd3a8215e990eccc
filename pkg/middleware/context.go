package middleware

import (
	"context"

	"github.com/kinshipapp/gatekeeper/pkg/contextkeys"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/resource"
)

// IdentityFromContext returns the caller identity attached by the identity
// stage, or nil for endpoints with no identity requirement.
func IdentityFromContext(ctx context.Context) *identity.Identity {
	if ident, ok := ctx.Value(contextkeys.IdentityKey).(*identity.Identity); ok {
		return ident
	}
	return nil
}

// PayloadFromContext returns the decoded request payload. Never nil; an
// empty body decodes to an empty map.
func PayloadFromContext(ctx context.Context) map[string]interface{} {
	if payload, ok := ctx.Value(contextkeys.PayloadKey).(map[string]interface{}); ok {
		return payload
	}
	return map[string]interface{}{}
}

// GrantFromContext returns the resource access grant attached by the
// resource stage, or nil for endpoints without a resource config.
func GrantFromContext(ctx context.Context) *resource.Grant {
	if grant, ok := ctx.Value(contextkeys.ResourceKey).(*resource.Grant); ok {
		return grant
	}
	return nil
}
