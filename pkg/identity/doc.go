// Package identity resolves the caller's identity from the opaque assertion
// attached to each request and asserts the authentication tier an endpoint
// requires: authenticated, email-or-phone-verified, or onboarded. The tiers
// compose strictly: onboarded implies verified implies authenticated.
package identity
