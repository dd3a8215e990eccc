// Package middleware assembles the per-endpoint authorization chain from a
// declarative EndpointConfig. The stage order is fixed: CSRF validation
// wraps everything, then payload decoding, rate limiting, identity
// enforcement, and resource access, so a forged-token request never reaches
// a counter and abusive traffic is throttled before a permission
// evaluation is paid for.
package middleware
