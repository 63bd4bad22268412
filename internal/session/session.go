// Package session issues and validates short-lived EdDSA JWT session
// tokens for agents whose signed requests have already been verified.
// A session token lets an agent make follow-up calls without re-signing
// every request.
package session

import (
	"crypto/ed25519"
	"fmt"
	"time"

	jwtlib "github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// Issuer mints and validates session tokens with a single Ed25519 key.
type Issuer struct {
	key      ed25519.PrivateKey
	issuer   string
	audience string
	ttl      time.Duration
	clock    func() time.Time
}

// NewIssuer creates an Issuer. The signing key must be a full 64-byte
// Ed25519 private key.
func NewIssuer(signingKey []byte, issuer, audience string, ttl time.Duration) (*Issuer, error) {
	if len(signingKey) != ed25519.PrivateKeySize {
		return nil, fmt.Errorf("signing key must be %d bytes, got %d", ed25519.PrivateKeySize, len(signingKey))
	}
	return &Issuer{
		key:      ed25519.PrivateKey(signingKey),
		issuer:   issuer,
		audience: audience,
		ttl:      ttl,
		clock:    time.Now,
	}, nil
}

// Issue mints a session token for a verified agent DID. Returns the
// signed token and its expiry.
func (i *Issuer) Issue(did string) (string, time.Time, error) {
	issuedAt := i.clock()
	expires := issuedAt.Add(i.ttl)
	token := jwtlib.NewWithClaims(jwtlib.SigningMethodEdDSA, jwtlib.MapClaims{
		"sub": did,
		"aud": i.audience,
		"iss": i.issuer,
		"iat": issuedAt.Unix(),
		"exp": expires.Unix(),
		"jti": uuid.NewString(),
	})
	signed, err := token.SignedString(i.key)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("sign session token: %w", err)
	}
	return signed, expires, nil
}

// Validate checks a presented token with fail-closed semantics and
// returns the agent DID from the subject claim. Algorithm, issuer,
// audience, expiry, and jti are all required.
func (i *Issuer) Validate(tokenString string) (string, error) {
	token, err := jwtlib.Parse(tokenString, func(token *jwtlib.Token) (interface{}, error) {
		if token.Method != jwtlib.SigningMethodEdDSA {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return i.key.Public(), nil
	},
		jwtlib.WithIssuer(i.issuer),
		jwtlib.WithAudience(i.audience),
		jwtlib.WithExpirationRequired(),
		jwtlib.WithTimeFunc(i.clock),
	)
	if err != nil {
		return "", fmt.Errorf("parse session token: %w", err)
	}

	claims, ok := token.Claims.(jwtlib.MapClaims)
	if !ok {
		return "", fmt.Errorf("unexpected claims type")
	}
	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return "", fmt.Errorf("missing or invalid sub claim")
	}
	if jti, ok := claims["jti"].(string); !ok || jti == "" {
		return "", fmt.Errorf("missing or invalid jti claim")
	}
	return sub, nil
}
