package ratelimit

import (
	"context"
	"time"
)

// Category namespaces counters by abuse class. Each category carries its own
// defaults; endpoints may override max/window explicitly.
type Category string

const (
	CategoryGeneral   Category = "general"
	CategoryAuth      Category = "auth"
	CategoryWrite     Category = "write"
	CategoryMedia     Category = "media"
	CategorySensitive Category = "sensitive"
)

// Config defines one endpoint's quota
type Config struct {
	Category      Category
	MaxRequests   int
	WindowSeconds int
	// IgnoreAdmin exempts admin callers (identity-based limiting only)
	IgnoreAdmin bool
}

// Defaults returns the identity-based quota for a category
func Defaults(category Category) Config {
	switch category {
	case CategoryAuth:
		return Config{Category: category, MaxRequests: 10, WindowSeconds: 300}
	case CategoryWrite:
		return Config{Category: category, MaxRequests: 60, WindowSeconds: 60}
	case CategoryMedia:
		return Config{Category: category, MaxRequests: 30, WindowSeconds: 60}
	case CategorySensitive:
		return Config{Category: category, MaxRequests: 5, WindowSeconds: 3600}
	default:
		return Config{Category: CategoryGeneral, MaxRequests: 120, WindowSeconds: 60}
	}
}

// IPDefaults returns the stricter unauthenticated quota for a category:
// lower max, longer window.
func IPDefaults(category Category) Config {
	cfg := Defaults(category)
	cfg.MaxRequests = cfg.MaxRequests / 4
	if cfg.MaxRequests < 1 {
		cfg.MaxRequests = 1
	}
	cfg.WindowSeconds = cfg.WindowSeconds * 2
	cfg.IgnoreAdmin = false
	return cfg
}

// Decision is the outcome of one atomic counter consume
type Decision struct {
	Allowed bool
	// Count is the counter value after the operation (unchanged when denied)
	Count int64
	// RetryAfter is how long until the window resets, set when denied
	RetryAfter time.Duration
}

// CounterStore performs the atomic fixed-window consume. A denied decision
// is not an error; errors mean the store itself failed and the caller's
// fail-open policy applies.
type CounterStore interface {
	Consume(ctx context.Context, key string, maxRequests int, window time.Duration) (Decision, error)
}
