// Package httputil provides JSON response helpers, request parsing, and the
// request-id/logging/recovery middleware shared by all endpoints.
package httputil
