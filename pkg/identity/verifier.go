package identity

import (
	"context"
	"fmt"

	"github.com/coreos/go-oidc/v3/oidc"
	"github.com/golang-jwt/jwt/v5"
)

// Verifier validates an opaque identity assertion and resolves the caller.
type Verifier interface {
	Verify(ctx context.Context, assertion string) (*Identity, error)
}

// OIDCVerifier validates assertions as OIDC ID tokens against a discovered
// provider. This is the production verifier.
type OIDCVerifier struct {
	verifier *oidc.IDTokenVerifier
}

// NewOIDCVerifier discovers the issuer and builds an ID token verifier
func NewOIDCVerifier(ctx context.Context, issuerURL, clientID string) (*OIDCVerifier, error) {
	provider, err := oidc.NewProvider(ctx, issuerURL)
	if err != nil {
		return nil, fmt.Errorf("failed to discover OIDC provider: %w", err)
	}

	return &OIDCVerifier{
		verifier: provider.Verifier(&oidc.Config{ClientID: clientID}),
	}, nil
}

// Verify validates the ID token signature, issuer, audience, and expiry
func (v *OIDCVerifier) Verify(ctx context.Context, assertion string) (*Identity, error) {
	token, err := v.verifier.Verify(ctx, assertion)
	if err != nil {
		return nil, fmt.Errorf("invalid identity assertion: %w", err)
	}

	var claims struct {
		SessionID     string `json:"sid"`
		EmailVerified bool   `json:"email_verified"`
		PhoneVerified bool   `json:"phone_number_verified"`
	}
	if err := token.Claims(&claims); err != nil {
		return nil, fmt.Errorf("decoding assertion claims: %w", err)
	}

	return &Identity{
		Subject:       token.Subject,
		SessionID:     claims.SessionID,
		EmailVerified: claims.EmailVerified,
		PhoneVerified: claims.PhoneVerified,
	}, nil
}

// hmacClaims are the claims carried by self-issued HS256 assertions
type hmacClaims struct {
	jwt.RegisteredClaims
	SessionID     string `json:"sid"`
	EmailVerified bool   `json:"email_verified"`
	PhoneVerified bool   `json:"phone_number_verified"`
}

// HMACVerifier validates assertions as HS256 JWTs signed with a shared
// secret. Used by self-hosted deployments and tests.
type HMACVerifier struct {
	secret []byte
}

// NewHMACVerifier creates a verifier for HS256-signed assertions
func NewHMACVerifier(secret string) *HMACVerifier {
	return &HMACVerifier{secret: []byte(secret)}
}

// Verify checks the signature and expiry and extracts the caller
func (v *HMACVerifier) Verify(ctx context.Context, assertion string) (*Identity, error) {
	token, err := jwt.ParseWithClaims(assertion, &hmacClaims{}, func(_ *jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}))
	if err != nil {
		return nil, fmt.Errorf("invalid identity assertion: %w", err)
	}

	claims, ok := token.Claims.(*hmacClaims)
	if !ok || !token.Valid || claims.Subject == "" {
		return nil, fmt.Errorf("invalid identity assertion: missing subject")
	}

	return &Identity{
		Subject:       claims.Subject,
		SessionID:     claims.SessionID,
		EmailVerified: claims.EmailVerified,
		PhoneVerified: claims.PhoneVerified,
	}, nil
}
