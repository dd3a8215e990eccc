package api

import (
	"net/http"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
	"github.com/kinshipapp/gatekeeper/pkg/httputil"
	"github.com/kinshipapp/gatekeeper/pkg/middleware"
)

// handleIssueSessionToken issues a pre-auth anti-forgery token bound to the
// client's address and user agent. No authentication required.
func (s *Server) handleIssueSessionToken(w http.ResponseWriter, r *http.Request) {
	resp, err := s.issuer.IssueSession(r)
	if err != nil {
		s.logger.WithError(err).Error("session token issuance failed")
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}

// handleIssueAuthenticatedToken issues an anti-forgery token bound to the
// authenticated caller, with the longer TTL.
func (s *Server) handleIssueAuthenticatedToken(w http.ResponseWriter, r *http.Request) {
	ident := middleware.IdentityFromContext(r.Context())
	if ident == nil {
		httputil.WriteAPIError(w, apierror.New(apierror.Unauthenticated, "authentication required"))
		return
	}

	resp, err := s.issuer.IssueAuthenticated(ident)
	if err != nil {
		s.logger.WithError(err).WithField("user", ident.Subject).
			Error("authenticated token issuance failed")
		httputil.WriteAPIError(w, err)
		return
	}
	httputil.WriteSuccess(w, resp)
}
