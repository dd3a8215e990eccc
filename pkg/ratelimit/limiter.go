package ratelimit

import (
	"context"
	"fmt"
	"time"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
)

// AdminChecker reports whether a subject carries the admin flag. Satisfied
// by identity.Gate.
type AdminChecker interface {
	IsAdmin(ctx context.Context, subject string) (bool, error)
}

// Limiter applies quota configs to subjects. All infrastructure failures
// are best-effort by policy: only an explicit quota-exceeded decision
// produces RESOURCE_EXHAUSTED.
type Limiter struct {
	store   CounterStore
	admins  AdminChecker
	metrics *observability.Metrics
	logger  *observability.Logger
}

// NewLimiter creates a limiter over the given counter store. admins may be
// nil when no admin bypass is configured anywhere.
func NewLimiter(store CounterStore, admins AdminChecker, metrics *observability.Metrics, logger *observability.Logger) *Limiter {
	return &Limiter{
		store:   store,
		admins:  admins,
		metrics: metrics,
		logger:  logger,
	}
}

// ConsumeUser applies an identity-based quota to the calling user. The
// returned decision carries counter state for response headers; err is nil
// when admitted (including every fail-open path) and RESOURCE_EXHAUSTED
// when the quota is spent.
func (l *Limiter) ConsumeUser(ctx context.Context, userID string, cfg Config) (Decision, error) {
	if cfg.IgnoreAdmin && l.admins != nil {
		admin, err := l.admins.IsAdmin(ctx, userID)
		if err != nil {
			// Best-effort check: proceed as a non-admin rather than block
			l.logger.WithError(err).WithField("user", userID).
				Warn("admin lookup failed, applying quota")
		} else if admin {
			return Decision{Allowed: true}, nil
		}
	}

	key := fmt.Sprintf("user:%s:%s", userID, cfg.Category)
	return l.consume(ctx, key, cfg)
}

// ConsumeIP applies the IP-based quota for unauthenticated calls. An empty
// address is an indeterminate identity: the request is allowed rather than
// blocked. The admin bypass never applies here.
func (l *Limiter) ConsumeIP(ctx context.Context, ip string, cfg Config) (Decision, error) {
	if ip == "" {
		l.logger.WithField("category", string(cfg.Category)).
			Warn("no resolvable client address, skipping rate limit")
		return Decision{Allowed: true}, nil
	}

	key := fmt.Sprintf("ip:%s:%s", ip, cfg.Category)
	return l.consume(ctx, key, cfg)
}

func (l *Limiter) consume(ctx context.Context, key string, cfg Config) (Decision, error) {
	start := time.Now()
	decision, err := l.store.Consume(ctx, key, cfg.MaxRequests, time.Duration(cfg.WindowSeconds)*time.Second)
	l.metrics.ObserveStoreOperation("redis", "consume", start)

	if err != nil {
		// Fail open: availability over strict enforcement
		l.metrics.RateLimitFailOpenTotal.WithLabelValues(string(cfg.Category)).Inc()
		l.logger.WithError(err).WithField("key", key).
			Warn("counter store failed, allowing request")
		return Decision{Allowed: true}, nil
	}

	if !decision.Allowed {
		l.metrics.RateLimitExceededTotal.WithLabelValues(string(cfg.Category)).Inc()
		retrySeconds := int64(decision.RetryAfter / time.Second)
		return decision, apierror.Newf(apierror.ResourceExhausted,
			"quota exceeded, retry after %d seconds", retrySeconds)
	}

	l.metrics.RateLimitAllowedTotal.WithLabelValues(string(cfg.Category)).Inc()
	return decision, nil
}
