package csrf

import (
	"net/http/httptest"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/kinshipapp/gatekeeper/pkg/identity"
	"github.com/kinshipapp/gatekeeper/pkg/observability"
)

func newTestIssuer() (*Issuer, *Codec) {
	codec := NewCodec("issuer-test-secret")
	metrics := observability.NewMetrics(prometheus.NewRegistry())
	return NewIssuer(codec, 30*time.Minute, 4*time.Hour, metrics), codec
}

func TestIssueSession(t *testing.T) {
	issuer, codec := newTestIssuer()

	req := httptest.NewRequest("POST", "/rpc/issueSessionToken", nil)
	req.RemoteAddr = "192.0.2.1:51234"
	req.Header.Set("User-Agent", "Mozilla/5.0")

	resp, err := issuer.IssueSession(req)
	if err != nil {
		t.Fatalf("IssueSession() error = %v", err)
	}

	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("session id %q is not a UUID", resp.SessionID)
	}
	if resp.ExpiresInMillis != (30 * time.Minute).Milliseconds() {
		t.Errorf("ExpiresInMillis = %d, want %d", resp.ExpiresInMillis, (30 * time.Minute).Milliseconds())
	}

	want := Binding{
		Subject:   SessionIdentifier("192.0.2.1", "Mozilla/5.0", resp.SessionID),
		SessionID: resp.SessionID,
	}
	if err := codec.Validate(resp.Token, want); err != nil {
		t.Errorf("issued token does not validate against derived binding: %v", err)
	}
}

func TestIssueAuthenticated(t *testing.T) {
	issuer, codec := newTestIssuer()

	ident := &identity.Identity{Subject: "user-42", SessionID: "sess-abc"}
	resp, err := issuer.IssueAuthenticated(ident)
	if err != nil {
		t.Fatalf("IssueAuthenticated() error = %v", err)
	}

	if resp.SessionID != "sess-abc" {
		t.Errorf("session id = %q, want the assertion's session", resp.SessionID)
	}
	if resp.ExpiresInMillis != (4 * time.Hour).Milliseconds() {
		t.Errorf("ExpiresInMillis = %d, want %d", resp.ExpiresInMillis, (4 * time.Hour).Milliseconds())
	}
	if err := codec.Validate(resp.Token, Binding{Subject: "user-42", SessionID: "sess-abc"}); err != nil {
		t.Errorf("issued token does not validate: %v", err)
	}
}

func TestIssueAuthenticatedWithoutSession(t *testing.T) {
	issuer, _ := newTestIssuer()

	resp, err := issuer.IssueAuthenticated(&identity.Identity{Subject: "user-42"})
	if err != nil {
		t.Fatalf("IssueAuthenticated() error = %v", err)
	}
	if _, err := uuid.Parse(resp.SessionID); err != nil {
		t.Errorf("fresh session id %q is not a UUID", resp.SessionID)
	}
}
