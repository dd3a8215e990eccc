package csrf

import (
	"crypto/sha256"
	"encoding/hex"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"

	"github.com/kinshipapp/gatekeeper/pkg/apierror"
)

// claims are the fields embedded in every anti-forgery token
type claims struct {
	jwt.RegisteredClaims
	SessionID string `json:"sid"`
}

// Codec signs and validates anti-forgery tokens
type Codec struct {
	secret []byte
	// now is replaceable in tests
	now func() time.Time
}

// NewCodec creates a token codec with the given signing secret
func NewCodec(secret string) *Codec {
	return &Codec{secret: []byte(secret), now: time.Now}
}

// SessionIdentifier derives the pre-auth binding subject by one-way hashing
// the client address, user agent, and session id. A client whose address
// changes mid-session fails validation and must re-issue.
func SessionIdentifier(clientAddress, userAgent, sessionID string) string {
	sum := sha256.Sum256([]byte(clientAddress + "|" + userAgent + "|" + sessionID))
	return hex.EncodeToString(sum[:])
}

// Issue signs a token binding subject and sessionID for the given TTL
func (c *Codec) Issue(subject, sessionID string, ttl time.Duration) (string, error) {
	now := c.now()
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   subject,
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
		},
		SessionID: sessionID,
	})

	signed, err := token.SignedString(c.secret)
	if err != nil {
		return "", fmt.Errorf("signing csrf token: %w", err)
	}
	return signed, nil
}

// Binding is the subject/session pair a token was issued for
type Binding struct {
	Subject   string
	SessionID string
}

// Decode verifies the token's signature and expiry and returns its embedded
// binding. Any failure maps to the single client-visible denial: forged and
// expired tokens are indistinguishable on the wire.
func (c *Codec) Decode(token string) (*Binding, error) {
	parsed, err := jwt.ParseWithClaims(token, &claims{}, func(_ *jwt.Token) (interface{}, error) {
		return c.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(func() time.Time { return c.now() }),
	)
	if err != nil {
		return nil, apierror.Wrap(apierror.PermissionDenied, "csrf token invalid or expired", err)
	}

	tokenClaims, ok := parsed.Claims.(*claims)
	if !ok || !parsed.Valid || tokenClaims.Subject == "" {
		return nil, apierror.New(apierror.PermissionDenied, "csrf token invalid or expired")
	}

	return &Binding{
		Subject:   tokenClaims.Subject,
		SessionID: tokenClaims.SessionID,
	}, nil
}

// Validate decodes the token and checks it against the expected binding
func (c *Codec) Validate(token string, expected Binding) error {
	binding, err := c.Decode(token)
	if err != nil {
		return err
	}
	if binding.Subject != expected.Subject || binding.SessionID != expected.SessionID {
		return apierror.New(apierror.PermissionDenied, "csrf token invalid or expired")
	}
	return nil
}
