// Package ratelimit enforces per-subject fixed-window quotas over a shared
// counter store. The counter update is a single atomic read-check-write in
// the store, so concurrent requests at the window edge never over-admit.
//
// Quota is a defense-in-depth control, not a safety invariant: any store
// failure other than an explicit quota-exceeded decision is logged and the
// request is allowed (fail-open).
package ratelimit
