package ratelimit

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
)

// fakeCounterStore returns scripted decisions and records keys
type fakeCounterStore struct {
	decision Decision
	err      error
	keys     []string
}

func (f *fakeCounterStore) Consume(ctx context.Context, key string, maxRequests int, window time.Duration) (Decision, error) {
	f.keys = append(f.keys, key)
	return f.decision, f.err
}

// fakeAdmins maps subjects to admin flags and can fail
type fakeAdmins struct {
	admins map[string]bool
	err    error
}

func (f *fakeAdmins) IsAdmin(ctx context.Context, subject string) (bool, error) {
	if f.err != nil {
		return false, f.err
	}
	return f.admins[subject], nil
}

func newTestLimiter(store CounterStore, admins AdminChecker) *Limiter {
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	logger := observability.NewLogger(observability.ErrorLevel, nil)
	return NewLimiter(store, admins, metrics, logger)
}

func TestConsumeUserAllowed(t *testing.T) {
	store := &fakeCounterStore{decision: Decision{Allowed: true, Count: 1}}
	limiter := newTestLimiter(store, nil)

	cfg := Defaults(CategoryGeneral)
	if _, err := limiter.ConsumeUser(context.Background(), "alice", cfg); err != nil {
		t.Fatalf("ConsumeUser() error = %v", err)
	}

	if len(store.keys) != 1 || store.keys[0] != "user:alice:general" {
		t.Errorf("counter key = %v, want [user:alice:general]", store.keys)
	}
}

func TestConsumeUserExhausted(t *testing.T) {
	store := &fakeCounterStore{decision: Decision{Allowed: false, Count: 10, RetryAfter: 42 * time.Second}}
	limiter := newTestLimiter(store, nil)

	_, err := limiter.ConsumeUser(context.Background(), "alice", Defaults(CategoryAuth))
	if !apierror.IsKind(err, apierror.ResourceExhausted) {
		t.Fatalf("error = %v, want RESOURCE_EXHAUSTED", err)
	}
	if !strings.Contains(err.Error(), "retry after 42 seconds") {
		t.Errorf("error message %q should carry the retry-after hint", err.Error())
	}
}

func TestConsumeUserFailOpen(t *testing.T) {
	store := &fakeCounterStore{err: errors.New("redis: connection refused")}
	limiter := newTestLimiter(store, nil)

	if _, err := limiter.ConsumeUser(context.Background(), "alice", Defaults(CategoryGeneral)); err != nil {
		t.Errorf("store failure must not block the request, got %v", err)
	}
}

func TestConsumeUserAdminBypass(t *testing.T) {
	store := &fakeCounterStore{decision: Decision{Allowed: false}}
	limiter := newTestLimiter(store, &fakeAdmins{admins: map[string]bool{"root": true}})

	cfg := Defaults(CategorySensitive)
	cfg.IgnoreAdmin = true

	if _, err := limiter.ConsumeUser(context.Background(), "root", cfg); err != nil {
		t.Errorf("admin should bypass the quota, got %v", err)
	}
	if len(store.keys) != 0 {
		t.Errorf("admin bypass should not touch the counter, consumed %v", store.keys)
	}
}

func TestConsumeUserAdminLookupFailureProceedsAsNonAdmin(t *testing.T) {
	store := &fakeCounterStore{decision: Decision{Allowed: true, Count: 1}}
	limiter := newTestLimiter(store, &fakeAdmins{err: errors.New("profile store down")})

	cfg := Defaults(CategoryGeneral)
	cfg.IgnoreAdmin = true

	if _, err := limiter.ConsumeUser(context.Background(), "alice", cfg); err != nil {
		t.Errorf("failed admin lookup must not block, got %v", err)
	}
	if len(store.keys) != 1 {
		t.Errorf("request should proceed through the counter as a non-admin, consumed %v", store.keys)
	}
}

func TestConsumeUserNoBypassWhenNotConfigured(t *testing.T) {
	store := &fakeCounterStore{decision: Decision{Allowed: true, Count: 1}}
	limiter := newTestLimiter(store, &fakeAdmins{admins: map[string]bool{"root": true}})

	// IgnoreAdmin unset: even admins consume quota
	if _, err := limiter.ConsumeUser(context.Background(), "root", Defaults(CategoryGeneral)); err != nil {
		t.Fatalf("ConsumeUser() error = %v", err)
	}
	if len(store.keys) != 1 {
		t.Errorf("admin without bypass should consume, got %v", store.keys)
	}
}

func TestConsumeIP(t *testing.T) {
	store := &fakeCounterStore{decision: Decision{Allowed: true, Count: 1}}
	limiter := newTestLimiter(store, nil)

	if _, err := limiter.ConsumeIP(context.Background(), "203.0.113.1", IPDefaults(CategoryAuth)); err != nil {
		t.Fatalf("ConsumeIP() error = %v", err)
	}
	if store.keys[0] != "ip:203.0.113.1:auth" {
		t.Errorf("counter key = %s, want ip:203.0.113.1:auth", store.keys[0])
	}
}

func TestConsumeIPIndeterminateAddressAllows(t *testing.T) {
	store := &fakeCounterStore{decision: Decision{Allowed: false}}
	limiter := newTestLimiter(store, nil)

	if _, err := limiter.ConsumeIP(context.Background(), "", IPDefaults(CategoryGeneral)); err != nil {
		t.Errorf("unresolvable address must fail open, got %v", err)
	}
	if len(store.keys) != 0 {
		t.Errorf("no counter should be touched without an address, got %v", store.keys)
	}
}

func TestConsumeIPStoreFailureAllows(t *testing.T) {
	store := &fakeCounterStore{err: errors.New("redis down")}
	limiter := newTestLimiter(store, nil)

	if _, err := limiter.ConsumeIP(context.Background(), "203.0.113.1", IPDefaults(CategoryGeneral)); err != nil {
		t.Errorf("IP path never blocks on a failed store, got %v", err)
	}
}

func TestIPDefaultsStricter(t *testing.T) {
	for _, category := range []Category{CategoryGeneral, CategoryAuth, CategoryWrite, CategoryMedia, CategorySensitive} {
		user := Defaults(category)
		ip := IPDefaults(category)

		if ip.MaxRequests >= user.MaxRequests && user.MaxRequests > 1 {
			t.Errorf("%s: IP max %d should be below user max %d", category, ip.MaxRequests, user.MaxRequests)
		}
		if ip.WindowSeconds <= user.WindowSeconds {
			t.Errorf("%s: IP window %d should exceed user window %d", category, ip.WindowSeconds, user.WindowSeconds)
		}
		if ip.MaxRequests < 1 {
			t.Errorf("%s: IP max must stay positive", category)
		}
		if ip.IgnoreAdmin {
			t.Errorf("%s: IP path must never honor the admin bypass", category)
		}
	}
}
