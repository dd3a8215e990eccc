// Package csrf implements the double-submit-cookie anti-forgery scheme for
// state-changing calls from browser clients. Tokens are HS256-signed claims
// binding a subject (the caller's id, or a session identifier derived from
// the client address, user agent, and session id for pre-auth flows) to a
// session. A protected call must present the same token in both the
// X-CSRF-Token header and the csrf-token cookie, and the token must
// independently validate against the caller's current binding.
//
// Non-browser clients identified by their user-agent signature are exempt:
// they do not share cookies with an attacker-controlled page, so the
// cross-site threat model this guard defends against does not apply.
package csrf
