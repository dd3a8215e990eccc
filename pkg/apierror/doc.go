// Package apierror defines the stable error kinds returned by the
// authorization layer and their mapping to HTTP status codes.
//
// Authorization failures (Unauthenticated, PermissionDenied, NotFound,
// MissingParameter, ResourceExhausted) are terminal: they propagate to the
// caller unchanged. Internal is reserved for infrastructure failures in
// checks that cannot safely fail open.
package apierror
