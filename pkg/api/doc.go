// Package api wires guarded RPC endpoints onto an HTTP server. Endpoints
// are registered with a declarative guard config; the package also serves
// the token issuance endpoints and the health/metrics surface.
package api
