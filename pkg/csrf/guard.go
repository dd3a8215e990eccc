package csrf

import (
	"context"
	"net/http"
	"strings"

	"github.com/google/uuid"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
	"github.com/kinshipapp/gatekeeper/pkg/contextkeys"
	"github.com/kinshipapp/gatekeeper/pkg/httputil"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
)

const (
	// HeaderName carries the header copy of the double-submitted token
	HeaderName = "X-CSRF-Token"
	// CookieName carries the cookie copy of the double-submitted token
	CookieName = "csrf-token"
)

// IdentityResolver resolves the caller from a request without requiring
// authentication. Satisfied by identity.Gate.
type IdentityResolver interface {
	FromRequest(ctx context.Context, r *http.Request) (*identity.Identity, error)
}

// Guard validates double-submitted anti-forgery tokens on protected calls
type Guard struct {
	codec          *Codec
	resolver       IdentityResolver
	trustedClients []string
	metrics        *observability.Metrics
	logger         *observability.Logger
}

// NewGuard creates a CSRF guard. trustedClients are user-agent substrings
// identifying non-browser clients that skip CSRF entirely.
func NewGuard(codec *Codec, resolver IdentityResolver, trustedClients []string, metrics *observability.Metrics, logger *observability.Logger) *Guard {
	return &Guard{
		codec:          codec,
		resolver:       resolver,
		trustedClients: trustedClients,
		metrics:        metrics,
		logger:         logger,
	}
}

// isTrustedClient reports whether the user agent matches a known
// non-browser client signature.
func (g *Guard) isTrustedClient(userAgent string) bool {
	for _, signature := range g.trustedClients {
		if signature != "" && strings.Contains(userAgent, signature) {
			return true
		}
	}
	return false
}

// Check validates the request's anti-forgery tokens and returns the session
// id the token was bound to. Callers that pass get the validated token and
// session id attached to their context by Handler.
func (g *Guard) Check(r *http.Request) (token string, sessionID string, err error) {
	headerToken := r.Header.Get(HeaderName)
	if headerToken == "" {
		g.metrics.CSRFRejectedTotal.WithLabelValues("missing_header").Inc()
		return "", "", apierror.New(apierror.PermissionDenied, "csrf token missing in header")
	}

	cookieToken := ParseCookies(r.Header.Get("Cookie"))[CookieName]
	if cookieToken == "" {
		g.metrics.CSRFRejectedTotal.WithLabelValues("missing_cookie").Inc()
		return "", "", apierror.New(apierror.PermissionDenied, "csrf token missing in cookie")
	}

	if headerToken != cookieToken {
		g.metrics.CSRFRejectedTotal.WithLabelValues("mismatch").Inc()
		return "", "", apierror.New(apierror.PermissionDenied, "csrf token mismatch")
	}

	binding, err := g.codec.Decode(headerToken)
	if err != nil {
		g.metrics.CSRFRejectedTotal.WithLabelValues("invalid").Inc()
		return "", "", err
	}

	// An invalid assertion binds nothing; the caller is anonymous here and
	// the token must carry a pre-auth binding to pass.
	ident, err := g.resolver.FromRequest(r.Context(), r)
	if err != nil {
		ident = nil
	}

	var expected Binding
	switch {
	case ident != nil:
		// Assertions without a sid claim get a generated session id at
		// issuance; the token's embedded session is authoritative then.
		sessionID := ident.SessionID
		if sessionID == "" {
			sessionID = binding.SessionID
		}
		expected = Binding{Subject: ident.Subject, SessionID: sessionID}
	case looksLikeSessionID(binding.SessionID):
		expected = Binding{
			Subject:   SessionIdentifier(httputil.ClientIP(r), r.UserAgent(), binding.SessionID),
			SessionID: binding.SessionID,
		}
	default:
		g.metrics.CSRFRejectedTotal.WithLabelValues("invalid").Inc()
		return "", "", apierror.New(apierror.PermissionDenied, "csrf token invalid or expired")
	}

	if err := g.codec.Validate(headerToken, expected); err != nil {
		g.metrics.CSRFRejectedTotal.WithLabelValues("invalid").Inc()
		return "", "", err
	}

	if ident != nil {
		g.metrics.CSRFValidatedTotal.WithLabelValues("identity").Inc()
	} else {
		g.metrics.CSRFValidatedTotal.WithLabelValues("session").Inc()
	}
	return headerToken, binding.SessionID, nil
}

// Handler wraps an HTTP handler with CSRF validation. Trusted non-browser
// clients are invoked directly.
func (g *Guard) Handler(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if g.isTrustedClient(r.UserAgent()) {
			g.metrics.CSRFExemptTotal.Inc()
			next.ServeHTTP(w, r)
			return
		}

		token, sessionID, err := g.Check(r)
		if err != nil {
			g.logger.WithField("client", httputil.ClientIP(r)).
				WithField("reason", apierror.MessageOf(err)).
				Debug("csrf rejection")
			httputil.WriteAPIError(w, err)
			return
		}

		ctx := contextkeys.WithCSRFToken(r.Context(), token)
		ctx = contextkeys.WithSessionID(ctx, sessionID)
		next.ServeHTTP(w, r.WithContext(ctx))
	})
}

// looksLikeSessionID reports whether the value has the shape of a session
// id issued by this layer (UUIDv4), distinguishing pre-auth session tokens
// from identity-bound ones.
func looksLikeSessionID(value string) bool {
	_, err := uuid.Parse(value)
	return err == nil
}
