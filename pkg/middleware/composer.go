package middleware

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
	"github.com/kinshipapp/gatekeeper/pkg/contextkeys"
	"github.com/kinshipapp/gatekeeper/pkg/csrf"
	"github.com/kinshipapp/gatekeeper/pkg/httputil"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
	"github.com/kinshipapp/gatekeeper/pkg/ratelimit"
	"github.com/kinshipapp/gatekeeper/pkg/resource"
)

// EndpointConfig declares the guards applied to one endpoint
type EndpointConfig struct {
	// Name identifies the endpoint in metrics and logs
	Name string
	// AuthLevel is the identity tier required. LevelNone skips identity
	// checks entirely; CSRF and rate limiting still apply if configured.
	AuthLevel identity.Level
	// RateLimit applies a quota when set. Authenticated callers consume a
	// per-user counter; anonymous callers fall back to a per-IP counter
	// with the stricter IP defaults for the same category.
	RateLimit *ratelimit.Config
	// CSRF requires double-submitted anti-forgery tokens from browser
	// clients.
	CSRF bool
	// Resource loads and authorizes a resource document when set. Implies
	// at least LevelAuth.
	Resource *resource.AccessConfig
}

// Composer builds guarded handlers from endpoint configs
type Composer struct {
	gate      *identity.Gate
	limiter   *ratelimit.Limiter
	guard     *csrf.Guard
	resources *resource.Controller
	metrics   *observability.Metrics
	logger    *observability.Logger
}

// NewComposer creates a composer over the four guard components
func NewComposer(gate *identity.Gate, limiter *ratelimit.Limiter, guard *csrf.Guard, resources *resource.Controller, metrics *observability.Metrics, logger *observability.Logger) *Composer {
	return &Composer{
		gate:      gate,
		limiter:   limiter,
		guard:     guard,
		resources: resources,
		metrics:   metrics,
		logger:    logger,
	}
}

// Wrap builds the guarded handler for one endpoint. Stages run in fixed
// order; the first failing stage writes the error response and the chain
// stops.
func (c *Composer) Wrap(cfg EndpointConfig, handler http.Handler) http.Handler {
	guarded := http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := c.runStages(w, r, cfg, handler); err != nil {
			c.metrics.AuthzDecisionsTotal.WithLabelValues(cfg.Name, string(apierror.KindOf(err))).Inc()
			c.logger.WithField("endpoint", cfg.Name).
				WithField("kind", string(apierror.KindOf(err))).
				WithField("request_id", contextkeys.GetRequestID(r.Context())).
				Info("request denied")
			httputil.WriteAPIError(w, err)
			return
		}
	})

	if cfg.CSRF {
		return c.guard.Handler(guarded)
	}
	return guarded
}

// runStages executes payload decode, rate limit, identity, and resource
// stages, then the handler. CSRF ran before this when enabled.
func (c *Composer) runStages(w http.ResponseWriter, r *http.Request, cfg EndpointConfig, handler http.Handler) error {
	payload, err := decodePayload(r)
	if err != nil {
		return err
	}
	ctx := contextkeys.WithPayload(r.Context(), payload)
	r = r.WithContext(ctx)

	if cfg.RateLimit != nil {
		if err := c.applyRateLimit(w, r, cfg); err != nil {
			return err
		}
	}

	if cfg.AuthLevel != identity.LevelNone {
		ident, err := c.gate.Require(ctx, r, cfg.AuthLevel)
		if err != nil {
			return err
		}
		ctx = contextkeys.WithIdentity(ctx, ident)
		r = r.WithContext(ctx)
	}

	if cfg.Resource != nil {
		grant, err := c.resources.Resolve(ctx, r, payload, cfg.Resource)
		if err != nil {
			return err
		}
		ctx = contextkeys.WithResource(ctx, grant)
		r = r.WithContext(ctx)
	}

	c.metrics.AuthzDecisionsTotal.WithLabelValues(cfg.Name, "allowed").Inc()
	handler.ServeHTTP(w, r)
	return nil
}

// applyRateLimit consumes the endpoint's quota. An authenticated caller
// consumes the per-user counter; anyone else falls back to the stricter
// per-IP counter for the same category.
func (c *Composer) applyRateLimit(w http.ResponseWriter, r *http.Request, cfg EndpointConfig) error {
	ctx := r.Context()

	ident, err := c.gate.FromRequest(ctx, r)
	if err != nil {
		ident = nil
	}

	var decision ratelimit.Decision
	var limit int
	if ident != nil {
		limit = cfg.RateLimit.MaxRequests
		decision, err = c.limiter.ConsumeUser(ctx, ident.Subject, *cfg.RateLimit)
	} else {
		ipCfg := ratelimit.IPDefaults(cfg.RateLimit.Category)
		limit = ipCfg.MaxRequests
		decision, err = c.limiter.ConsumeIP(ctx, httputil.ClientIP(r), ipCfg)
	}

	w.Header().Set("X-RateLimit-Limit", fmt.Sprintf("%d", limit))
	if err != nil {
		w.Header().Set("X-RateLimit-Remaining", "0")
		w.Header().Set("Retry-After", fmt.Sprintf("%d", int64(decision.RetryAfter.Seconds())))
		return err
	}

	remaining := int64(limit) - decision.Count
	if remaining < 0 {
		remaining = 0
	}
	w.Header().Set("X-RateLimit-Remaining", fmt.Sprintf("%d", remaining))
	return nil
}

// decodePayload reads the JSON request body into a map. An empty body is
// an empty payload; malformed JSON is a client error.
func decodePayload(r *http.Request) (map[string]interface{}, error) {
	payload := map[string]interface{}{}
	if r.Body == nil || r.ContentLength == 0 {
		return payload, nil
	}
	if err := json.NewDecoder(r.Body).Decode(&payload); err != nil {
		return nil, apierror.Wrap(apierror.MissingParameter, "malformed request payload", err)
	}
	return payload, nil
}
