package csrf

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kinshipapp/gatekeeper/pkg/httputil"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
)

// IssueResponse is returned by both token-issuance endpoints
type IssueResponse struct {
	Token           string `json:"token"`
	SessionID       string `json:"sessionId"`
	ExpiresInMillis int64  `json:"expiresInMillis"`
}

// Issuer creates anti-forgery tokens for the two issuance endpoints
type Issuer struct {
	codec      *Codec
	sessionTTL time.Duration
	authedTTL  time.Duration
	metrics    *observability.Metrics
}

// NewIssuer creates a token issuer over the given codec
func NewIssuer(codec *Codec, sessionTTL, authedTTL time.Duration, metrics *observability.Metrics) *Issuer {
	return &Issuer{
		codec:      codec,
		sessionTTL: sessionTTL,
		authedTTL:  authedTTL,
		metrics:    metrics,
	}
}

// IssueSession issues a pre-auth token bound to a fresh session id and the
// identifier derived from the client's address and user agent.
func (i *Issuer) IssueSession(r *http.Request) (*IssueResponse, error) {
	sessionID := uuid.NewString()
	subject := SessionIdentifier(httputil.ClientIP(r), r.UserAgent(), sessionID)

	token, err := i.codec.Issue(subject, sessionID, i.sessionTTL)
	if err != nil {
		return nil, err
	}

	i.metrics.CSRFIssuedTotal.WithLabelValues("session").Inc()
	return &IssueResponse{
		Token:           token,
		SessionID:       sessionID,
		ExpiresInMillis: i.sessionTTL.Milliseconds(),
	}, nil
}

// IssueAuthenticated issues a token bound to the caller's id and the session
// carried by the identity assertion, with the longer authenticated TTL.
func (i *Issuer) IssueAuthenticated(ident *identity.Identity) (*IssueResponse, error) {
	sessionID := ident.SessionID
	if sessionID == "" {
		sessionID = uuid.NewString()
	}

	token, err := i.codec.Issue(ident.Subject, sessionID, i.authedTTL)
	if err != nil {
		return nil, err
	}

	i.metrics.CSRFIssuedTotal.WithLabelValues("identity").Inc()
	return &IssueResponse{
		Token:           token,
		SessionID:       sessionID,
		ExpiresInMillis: i.authedTTL.Milliseconds(),
	}, nil
}
