// Package observability provides structured logging, Prometheus metrics,
// and health checks for the authorization layer.
package observability
