package resource

import (
	"context"
	"strings"

	"github.com/kinshipapp/gatekeeper/pkg/storage"
)

// Collections holding group and membership documents.
const (
	FamilyCollection = "families"

	defaultOwnerField   = "ownerId"
	defaultGroupField   = "familyId"
	defaultInvitedField = "invitedMembers"
)

// Predicate is an endpoint-supplied access rule evaluated after every
// configured level has failed to match.
type Predicate func(ctx context.Context, resource storage.Document, callerID string) (bool, error)

// AccessConfig declares how one endpoint authorizes access to a resource.
// It is attached to the endpoint, never persisted.
type AccessConfig struct {
	// ResourceType names the resource in errors and metrics ("event",
	// "story", "profile").
	ResourceType string

	// Collection the resource lives in. Defaults to ResourceType + "s".
	Collection string

	// RequestField is the payload field carrying the resource id.
	RequestField string

	// OwnerField is the document field holding the owning user's id.
	// Defaults by resource type: hostId for events, authorId for stories,
	// ownerId otherwise.
	OwnerField string

	// GroupField is the document field linking the resource to its family
	// group. Defaults to familyId.
	GroupField string

	// InvitedField is the document field listing invited member ids.
	// Defaults to invitedMembers.
	InvitedField string

	// Levels are evaluated in specificity order; the first satisfied level
	// grants access.
	Levels []Level

	// AllowInvited also grants access when the caller appears in the
	// resource's invited-members list.
	AllowInvited bool

	// Custom is evaluated last, after all levels and the invitation check.
	Custom Predicate
}

// collection returns the configured collection or the type-derived default
// (event -> events, story -> stories, family -> families)
func (c *AccessConfig) collection() string {
	if c.Collection != "" {
		return c.Collection
	}
	if name, ok := strings.CutSuffix(c.ResourceType, "y"); ok {
		return name + "ies"
	}
	return c.ResourceType + "s"
}

// ownerField returns the configured owner field or the type-derived default
func (c *AccessConfig) ownerField() string {
	if c.OwnerField != "" {
		return c.OwnerField
	}
	switch c.ResourceType {
	case "event":
		return "hostId"
	case "story":
		return "authorId"
	default:
		return defaultOwnerField
	}
}

func (c *AccessConfig) groupField() string {
	if c.GroupField != "" {
		return c.GroupField
	}
	return defaultGroupField
}

func (c *AccessConfig) invitedField() string {
	if c.InvitedField != "" {
		return c.InvitedField
	}
	return defaultInvitedField
}

// hasLevel reports whether the config includes the given level
func (c *AccessConfig) hasLevel(level Level) bool {
	for _, l := range c.Levels {
		if l == level {
			return true
		}
	}
	return false
}
