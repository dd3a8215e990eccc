// Package storage provides the document and counter store clients backing
// the authorization layer: a Postgres-backed document store for profiles,
// resources, and family groups, and the Redis client used for rate-limit
// counters.
package storage
