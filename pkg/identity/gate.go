package identity

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"github.com/hashicorp/golang-lru/v2/expirable"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
	"github.com/kinshipapp/gatekeeper/pkg/storage"
)

// ProfileCollection is the document collection holding user profiles
const ProfileCollection = "users"

// Profile field names read by the gate
const (
	fieldEmailVerified = "emailVerified"
	fieldPhoneVerified = "phoneVerified"
	fieldOnboarded     = "onboarded"
	fieldAdmin         = "admin"
)

// Gate resolves and asserts the caller's authentication tier. Profile reads
// go through a short-lived LRU cache; verification flags change rarely and
// a stale read self-corrects within the TTL.
type Gate struct {
	verifier Verifier
	profiles storage.DocumentStore
	cache    *expirable.LRU[string, storage.Document]
	logger   *observability.Logger
}

// NewGate creates an identity gate over the given verifier and profile store
func NewGate(verifier Verifier, profiles storage.DocumentStore, logger *observability.Logger) *Gate {
	return &Gate{
		verifier: verifier,
		profiles: profiles,
		cache:    expirable.NewLRU[string, storage.Document](1024, nil, 30*time.Second),
		logger:   logger,
	}
}

// FromRequest resolves the caller from the request's bearer assertion.
// Returns (nil, nil) when no assertion is present; the caller decides
// whether anonymity is acceptable.
func (g *Gate) FromRequest(ctx context.Context, r *http.Request) (*Identity, error) {
	authHeader := r.Header.Get("Authorization")
	if authHeader == "" {
		return nil, nil
	}

	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" {
		return nil, apierror.New(apierror.Unauthenticated, "invalid authorization header format")
	}

	ident, err := g.verifier.Verify(ctx, parts[1])
	if err != nil {
		return nil, apierror.Wrap(apierror.Unauthenticated, "invalid or expired identity assertion", err)
	}
	return ident, nil
}

// RequireAuthenticated resolves the caller and fails UNAUTHENTICATED when no
// valid assertion is attached.
func (g *Gate) RequireAuthenticated(ctx context.Context, r *http.Request) (*Identity, error) {
	ident, err := g.FromRequest(ctx, r)
	if err != nil {
		return nil, err
	}
	if ident == nil {
		return nil, apierror.New(apierror.Unauthenticated, "authentication required")
	}
	return ident, nil
}

// RequireVerified requires authentication plus an email- or phone-verified
// flag, asserted by the provider or stored on the profile. Store failures
// surface as INTERNAL: verification is a safety-critical check and must not
// fail open.
func (g *Gate) RequireVerified(ctx context.Context, r *http.Request) (*Identity, error) {
	ident, err := g.RequireAuthenticated(ctx, r)
	if err != nil {
		return nil, err
	}

	if ident.EmailVerified || ident.PhoneVerified {
		return ident, nil
	}

	profile, err := g.Profile(ctx, ident.Subject)
	if err != nil {
		if apierror.KindOf(err) != apierror.Internal {
			return nil, err
		}
		return nil, apierror.Wrap(apierror.Internal, "verification status lookup failed", err)
	}

	if !profile.GetBool(fieldEmailVerified) && !profile.GetBool(fieldPhoneVerified) {
		return nil, apierror.New(apierror.PermissionDenied, "email or phone verification required")
	}
	return ident, nil
}

// RequireOnboarded requires verification plus a completed profile
func (g *Gate) RequireOnboarded(ctx context.Context, r *http.Request) (*Identity, error) {
	ident, err := g.RequireVerified(ctx, r)
	if err != nil {
		return nil, err
	}

	profile, err := g.Profile(ctx, ident.Subject)
	if err != nil {
		if apierror.KindOf(err) != apierror.Internal {
			return nil, err
		}
		return nil, apierror.Wrap(apierror.Internal, "profile lookup failed", err)
	}

	if !profile.GetBool(fieldOnboarded) {
		return nil, apierror.New(apierror.PermissionDenied, "onboarding incomplete")
	}
	return ident, nil
}

// Require asserts the given tier. LevelNone resolves the identity when an
// assertion happens to be present but never fails on its absence.
func (g *Gate) Require(ctx context.Context, r *http.Request, level Level) (*Identity, error) {
	switch level {
	case LevelNone:
		ident, err := g.FromRequest(ctx, r)
		if err != nil {
			// A present-but-invalid assertion is ignored at this level
			g.logger.WithError(err).Debug("ignoring invalid assertion on anonymous endpoint")
			return nil, nil
		}
		return ident, nil
	case LevelAuth:
		return g.RequireAuthenticated(ctx, r)
	case LevelVerified:
		return g.RequireVerified(ctx, r)
	default:
		return g.RequireOnboarded(ctx, r)
	}
}

// Profile loads the caller's profile document through the cache. A missing
// profile maps to NOT_FOUND.
func (g *Gate) Profile(ctx context.Context, subject string) (storage.Document, error) {
	if doc, ok := g.cache.Get(subject); ok {
		return doc, nil
	}

	doc, err := g.profiles.Get(ctx, ProfileCollection, subject)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apierror.New(apierror.NotFound, "profile not found")
	}
	if err != nil {
		return nil, err
	}

	g.cache.Add(subject, doc)
	return doc, nil
}

// IsAdmin reports whether the subject's profile carries the admin flag.
// Lookup failures propagate; callers on a best-effort path treat them as
// non-admin.
func (g *Gate) IsAdmin(ctx context.Context, subject string) (bool, error) {
	profile, err := g.Profile(ctx, subject)
	if err != nil {
		return false, err
	}
	return profile.GetBool(fieldAdmin), nil
}
