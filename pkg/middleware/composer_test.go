package middleware

import (
	"bytes"
	"context"
	"encoding/json"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/go-redis/redis/v8"
	"github.com/golang-jwt/jwt/v5"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kinshipapp/gatekeeper/pkg/csrf"
	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
	"github.com/kinshipapp/gatekeeper/pkg/ratelimit"
	"github.com/kinshipapp/gatekeeper/pkg/resource"
	"github.com/kinshipapp/gatekeeper/pkg/storage"
)

const (
	testIdentitySecret = "composer-identity-secret"
	testCSRFSecret     = "composer-csrf-secret"
	mobileAgent        = "KinshipMobile/3.2 (iPhone)"
)

type fakeStore struct {
	docs map[string]storage.Document
}

func (f *fakeStore) Get(_ context.Context, collection, id string) (storage.Document, error) {
	doc, ok := f.docs[collection+"/"+id]
	if !ok {
		return nil, storage.ErrNotFound
	}
	return doc, nil
}

func signAssertion(t *testing.T, subject string) string {
	t.Helper()
	claims := jwt.RegisteredClaims{
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(time.Now()),
		ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Hour)),
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString([]byte(testIdentitySecret))
	if err != nil {
		t.Fatalf("signing assertion: %v", err)
	}
	return signed
}

func newTestComposer(t *testing.T, docs map[string]storage.Document) *Composer {
	t.Helper()

	mr, err := miniredis.Run()
	if err != nil {
		t.Fatalf("starting miniredis: %v", err)
	}
	t.Cleanup(mr.Close)

	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { client.Close() })

	store := &fakeStore{docs: docs}
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := observability.NewLogger(observability.ErrorLevel, io.Discard)

	gate := identity.NewGate(identity.NewHMACVerifier(testIdentitySecret), store, logger)
	limiter := ratelimit.NewLimiter(ratelimit.NewRedisCounterStore(client, "gk"), gate, metrics, logger)
	guard := csrf.NewGuard(csrf.NewCodec(testCSRFSecret), gate, []string{"KinshipMobile"}, metrics, logger)
	resources := resource.NewController(store, gate, metrics, logger)

	return NewComposer(gate, limiter, guard, resources, metrics, logger)
}

func postJSON(token string, userAgent string, payload map[string]interface{}) *http.Request {
	body, _ := json.Marshal(payload)
	req := httptest.NewRequest(http.MethodPost, "/rpc/getEvent", bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("User-Agent", userAgent)
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func TestWrapFullChainAllows(t *testing.T) {
	composer := newTestComposer(t, map[string]storage.Document{
		"events/ev-1": {"hostId": "user-u"},
	})

	cfg := EndpointConfig{
		Name:      "getEvent",
		AuthLevel: identity.LevelAuth,
		RateLimit: &ratelimit.Config{Category: ratelimit.CategoryGeneral, MaxRequests: 10, WindowSeconds: 60},
		CSRF:      true,
		Resource: &resource.AccessConfig{
			ResourceType: "event",
			RequestField: "eventId",
			Levels:       []resource.Level{resource.HostAdmin},
		},
	}

	var seen struct {
		subject string
		payload map[string]interface{}
		grant   *resource.Grant
	}
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen.subject = IdentityFromContext(r.Context()).Subject
		seen.payload = PayloadFromContext(r.Context())
		seen.grant = GrantFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	req := postJSON(signAssertion(t, "user-u"), mobileAgent, map[string]interface{}{"eventId": "ev-1"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if seen.subject != "user-u" {
		t.Errorf("identity in context = %q, want user-u", seen.subject)
	}
	if seen.payload["eventId"] != "ev-1" {
		t.Errorf("payload in context = %v, missing eventId", seen.payload)
	}
	if seen.grant == nil || seen.grant.MatchedLevel != "host_admin" {
		t.Errorf("grant = %+v, want host_admin", seen.grant)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "10" {
		t.Errorf("X-RateLimit-Limit = %q, want 10", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestWrapRateLimitExceeded(t *testing.T) {
	composer := newTestComposer(t, nil)

	cfg := EndpointConfig{
		Name:      "ping",
		AuthLevel: identity.LevelAuth,
		RateLimit: &ratelimit.Config{Category: ratelimit.CategoryGeneral, MaxRequests: 2, WindowSeconds: 60},
	}
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	token := signAssertion(t, "user-u")
	var last *httptest.ResponseRecorder
	for i := 0; i < 3; i++ {
		last = httptest.NewRecorder()
		handler.ServeHTTP(last, postJSON(token, mobileAgent, nil))
	}

	if last.Code != http.StatusTooManyRequests {
		t.Fatalf("third call status = %d, want 429", last.Code)
	}
	if last.Header().Get("Retry-After") == "" {
		t.Error("Retry-After header should be set on denial")
	}
	if last.Header().Get("X-RateLimit-Remaining") != "0" {
		t.Errorf("X-RateLimit-Remaining = %q, want 0", last.Header().Get("X-RateLimit-Remaining"))
	}
}

func TestWrapAnonymousFallsBackToIPLimit(t *testing.T) {
	composer := newTestComposer(t, nil)

	// general IP defaults: 120/4 = 30 per double window
	cfg := EndpointConfig{
		Name:      "issueSessionToken",
		AuthLevel: identity.LevelNone,
		RateLimit: &ratelimit.Config{Category: ratelimit.CategoryGeneral, MaxRequests: 120, WindowSeconds: 60},
	}
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := postJSON("", mobileAgent, nil)
	req.RemoteAddr = "203.0.113.9:55000"
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusOK {
		t.Fatalf("status = %d, want 200, body %s", rec.Code, rec.Body.String())
	}
	if rec.Header().Get("X-RateLimit-Limit") != "30" {
		t.Errorf("X-RateLimit-Limit = %q, want the stricter IP limit 30", rec.Header().Get("X-RateLimit-Limit"))
	}
}

func TestWrapCSRFRunsBeforeEverything(t *testing.T) {
	composer := newTestComposer(t, nil)

	cfg := EndpointConfig{
		Name:      "createEvent",
		AuthLevel: identity.LevelAuth,
		RateLimit: &ratelimit.Config{Category: ratelimit.CategoryWrite, MaxRequests: 5, WindowSeconds: 60},
		CSRF:      true,
	}
	var called bool
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		called = true
	}))

	// Browser client without tokens: rejected before rate limiting, so no
	// rate-limit headers appear.
	req := postJSON(signAssertion(t, "user-u"), "Mozilla/5.0", map[string]interface{}{"title": "picnic"})
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if called {
		t.Error("handler must not run on CSRF failure")
	}
	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403", rec.Code)
	}
	if rec.Header().Get("X-RateLimit-Limit") != "" {
		t.Error("rate limiter must not run before CSRF validation passes")
	}
}

func TestWrapRequiresIdentity(t *testing.T) {
	composer := newTestComposer(t, nil)

	cfg := EndpointConfig{Name: "getProfile", AuthLevel: identity.LevelAuth}
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("", mobileAgent, nil))

	if rec.Code != http.StatusUnauthorized {
		t.Errorf("status = %d, want 401", rec.Code)
	}
}

func TestWrapAuthLevelNoneSkipsIdentity(t *testing.T) {
	composer := newTestComposer(t, nil)

	cfg := EndpointConfig{Name: "health", AuthLevel: identity.LevelNone}
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if IdentityFromContext(r.Context()) != nil {
			t.Error("no identity should be attached at level none")
		}
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON("", mobileAgent, nil))

	if rec.Code != http.StatusOK {
		t.Errorf("status = %d, want 200", rec.Code)
	}
}

func TestWrapMalformedPayload(t *testing.T) {
	composer := newTestComposer(t, nil)

	cfg := EndpointConfig{Name: "createEvent", AuthLevel: identity.LevelNone}
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	req := httptest.NewRequest(http.MethodPost, "/rpc/createEvent", bytes.NewReader([]byte("{not json")))
	req.Header.Set("User-Agent", mobileAgent)
	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, req)

	if rec.Code != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", rec.Code)
	}
}

func TestWrapResourceDenied(t *testing.T) {
	composer := newTestComposer(t, map[string]storage.Document{
		"events/ev-1": {"hostId": "user-u"},
	})

	cfg := EndpointConfig{
		Name:      "getEvent",
		AuthLevel: identity.LevelAuth,
		Resource: &resource.AccessConfig{
			ResourceType: "event",
			RequestField: "eventId",
			Levels:       []resource.Level{resource.HostAdmin},
		},
	}
	handler := composer.Wrap(cfg, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, postJSON(signAssertion(t, "user-v"), mobileAgent, map[string]interface{}{"eventId": "ev-1"}))

	if rec.Code != http.StatusForbidden {
		t.Errorf("status = %d, want 403, body %s", rec.Code, rec.Body.String())
	}
}
