package resource

import (
	"context"
	"errors"
	"net/http"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
	"github.com/kinshipapp/gatekeeper/pkg/storage"
)

// Authenticator establishes the caller's identity and reads profiles.
// Satisfied by identity.Gate.
type Authenticator interface {
	RequireAuthenticated(ctx context.Context, r *http.Request) (*identity.Identity, error)
	Profile(ctx context.Context, subject string) (storage.Document, error)
}

// Grant is a successful access decision: who the caller is and the
// document they were granted access to.
type Grant struct {
	CallerID string
	Resource storage.Document
	// Level that granted access. Empty when Public short-circuited.
	MatchedLevel string
}

// Controller loads resources and evaluates access configs against callers
type Controller struct {
	store   storage.DocumentStore
	gate    Authenticator
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewController creates a resource access controller
func NewController(store storage.DocumentStore, gate Authenticator, metrics *observability.Metrics, logger *observability.Logger) *Controller {
	return &Controller{store: store, gate: gate, metrics: metrics, logger: logger}
}

// Resolve authenticates the caller, loads the resource named by the
// payload, and evaluates the configured levels in order. The first
// satisfied level grants access.
func (c *Controller) Resolve(ctx context.Context, r *http.Request, payload map[string]interface{}, cfg *AccessConfig) (*Grant, error) {
	ident, err := c.gate.RequireAuthenticated(ctx, r)
	if err != nil {
		return nil, err
	}

	resourceID, _ := payload[cfg.RequestField].(string)
	if resourceID == "" {
		c.metrics.PermissionChecksTotal.WithLabelValues(cfg.ResourceType, "missing_parameter").Inc()
		return nil, apierror.Newf(apierror.MissingParameter, "missing parameter: %s", cfg.RequestField)
	}

	resource, err := c.store.Get(ctx, cfg.collection(), resourceID)
	if errors.Is(err, storage.ErrNotFound) {
		c.metrics.PermissionChecksTotal.WithLabelValues(cfg.ResourceType, "not_found").Inc()
		return nil, apierror.Newf(apierror.NotFound, "%s not found", cfg.ResourceType)
	}
	if err != nil {
		return nil, apierror.Wrap(apierror.Internal, "loading resource failed", err)
	}

	if cfg.hasLevel(Public) {
		c.metrics.PermissionChecksTotal.WithLabelValues(cfg.ResourceType, Public.String()).Inc()
		return &Grant{CallerID: ident.Subject, Resource: resource, MatchedLevel: Public.String()}, nil
	}

	for _, level := range orderedLevels {
		if !cfg.hasLevel(level) {
			continue
		}
		ok, err := c.satisfies(ctx, level, ident.Subject, resourceID, resource, cfg)
		if err != nil {
			return nil, err
		}
		if ok {
			c.metrics.PermissionChecksTotal.WithLabelValues(cfg.ResourceType, level.String()).Inc()
			return &Grant{CallerID: ident.Subject, Resource: resource, MatchedLevel: level.String()}, nil
		}
	}

	if cfg.AllowInvited {
		for _, invited := range resource.GetStringSlice(cfg.invitedField()) {
			if invited == ident.Subject {
				c.metrics.PermissionChecksTotal.WithLabelValues(cfg.ResourceType, "invited").Inc()
				return &Grant{CallerID: ident.Subject, Resource: resource, MatchedLevel: "invited"}, nil
			}
		}
	}

	if cfg.Custom != nil {
		ok, err := cfg.Custom(ctx, resource, ident.Subject)
		if err != nil {
			return nil, apierror.Wrap(apierror.Internal, "access predicate failed", err)
		}
		if ok {
			c.metrics.PermissionChecksTotal.WithLabelValues(cfg.ResourceType, "custom").Inc()
			return &Grant{CallerID: ident.Subject, Resource: resource, MatchedLevel: "custom"}, nil
		}
	}

	c.metrics.PermissionChecksTotal.WithLabelValues(cfg.ResourceType, "denied").Inc()
	c.logger.WithField("resource_type", cfg.ResourceType).
		WithField("resource_id", resourceID).
		WithField("caller", ident.Subject).
		Debug("no permission level matched")
	return nil, apierror.Newf(apierror.PermissionDenied, "access to %s denied", cfg.ResourceType)
}

// orderedLevels is the evaluation precedence. Public is handled before the
// loop; the rest run most specific first.
var orderedLevels = []Level{Authenticated, ProfileOwner, HostAdmin, FamilyMember, TreeOwner}

// satisfies maps one level to its predicate. Store failures during a
// membership lookup fail closed: granting on a failed read is not an
// acceptable degradation for a permission check.
func (c *Controller) satisfies(ctx context.Context, level Level, callerID, resourceID string, resource storage.Document, cfg *AccessConfig) (bool, error) {
	switch level {
	case Authenticated:
		return true, nil

	case ProfileOwner:
		return callerID == resourceID, nil

	case HostAdmin:
		owner := resource.GetString(cfg.ownerField())
		return owner != "" && owner == callerID, nil

	case FamilyMember:
		groupID := resource.GetString(cfg.groupField())
		if groupID == "" {
			return false, nil
		}
		profile, err := c.gate.Profile(ctx, callerID)
		if apierror.IsKind(err, apierror.NotFound) {
			return false, nil
		}
		if err != nil {
			return false, apierror.Wrap(apierror.Internal, "membership lookup failed", err)
		}
		return profile.GetString(cfg.groupField()) == groupID, nil

	case TreeOwner:
		groupID := resource.GetString(cfg.groupField())
		if groupID == "" {
			return false, nil
		}
		group, err := c.store.Get(ctx, FamilyCollection, groupID)
		if errors.Is(err, storage.ErrNotFound) {
			return false, nil
		}
		if err != nil {
			return false, apierror.Wrap(apierror.Internal, "group lookup failed", err)
		}
		return group.GetString(defaultOwnerField) == callerID, nil

	default:
		return false, nil
	}
}
