package main

import (
	"net/http"

	"github.com/kinshipapp/gatekeeper/pkg/api"
	"github.com/kinshipapp/gatekeeper/pkg/httputil"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/middleware"
	"github.com/kinshipapp/gatekeeper/pkg/ratelimit"
	"github.com/kinshipapp/gatekeeper/pkg/resource"
)

// registerEndpoints declares the guard configuration for each RPC endpoint.
// Handlers respond with the authorization decision; the app backend sits
// behind this service and trusts its verdicts.
func registerEndpoints(server *api.Server) {
	writeLimit := ratelimit.Defaults(ratelimit.CategoryWrite)
	generalLimit := ratelimit.Defaults(ratelimit.CategoryGeneral)
	sensitiveLimit := ratelimit.Defaults(ratelimit.CategorySensitive)
	sensitiveLimit.IgnoreAdmin = true

	server.Handle(middleware.EndpointConfig{
		Name:      "getEvent",
		AuthLevel: identity.LevelAuth,
		RateLimit: &generalLimit,
		Resource: &resource.AccessConfig{
			ResourceType: "event",
			RequestField: "eventId",
			Levels:       []resource.Level{resource.HostAdmin, resource.FamilyMember, resource.TreeOwner},
			AllowInvited: true,
		},
	}, http.HandlerFunc(verdictHandler))

	server.Handle(middleware.EndpointConfig{
		Name:      "updateEvent",
		AuthLevel: identity.LevelVerified,
		RateLimit: &writeLimit,
		CSRF:      true,
		Resource: &resource.AccessConfig{
			ResourceType: "event",
			RequestField: "eventId",
			Levels:       []resource.Level{resource.HostAdmin},
		},
	}, http.HandlerFunc(verdictHandler))

	server.Handle(middleware.EndpointConfig{
		Name:      "getStory",
		AuthLevel: identity.LevelAuth,
		RateLimit: &generalLimit,
		Resource: &resource.AccessConfig{
			ResourceType: "story",
			RequestField: "storyId",
			Levels:       []resource.Level{resource.HostAdmin, resource.FamilyMember},
		},
	}, http.HandlerFunc(verdictHandler))

	server.Handle(middleware.EndpointConfig{
		Name:      "updateProfile",
		AuthLevel: identity.LevelOnboarded,
		RateLimit: &writeLimit,
		CSRF:      true,
		Resource: &resource.AccessConfig{
			ResourceType: "profile",
			Collection:   "users",
			RequestField: "profileId",
			Levels:       []resource.Level{resource.ProfileOwner},
		},
	}, http.HandlerFunc(verdictHandler))

	server.Handle(middleware.EndpointConfig{
		Name:      "deleteFamily",
		AuthLevel: identity.LevelOnboarded,
		RateLimit: &sensitiveLimit,
		CSRF:      true,
		Resource: &resource.AccessConfig{
			ResourceType: "family",
			Collection:   "families",
			RequestField: "familyId",
			OwnerField:   "ownerId",
			Levels:       []resource.Level{resource.HostAdmin},
		},
	}, http.HandlerFunc(verdictHandler))
}

// verdictHandler reports the granted authorization context. Reached only
// after every configured guard has passed.
func verdictHandler(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	grant := middleware.GrantFromContext(r.Context())

	verdict := map[string]interface{}{"allowed": true}
	if ident != nil {
		verdict["callerId"] = ident.Subject
	}
	if grant != nil {
		verdict["matchedLevel"] = grant.MatchedLevel
	}
	httputil.WriteSuccess(w, verdict)
}
