// Package serviceauth mints and verifies the bearer token the executor
// manager presents to the backend's internal surface (claim, start, fail,
// callback). End-user authentication is out of scope for this control
// plane; this protects only the service-to-service hop.
package serviceauth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "executor-manager"

// Issuer mints short-lived service tokens signed with a shared secret.
type Issuer struct {
	secret []byte
	ttl    time.Duration
}

// NewIssuer creates an Issuer. ttl defaults to 1 hour when zero.
func NewIssuer(secret string, ttl time.Duration) *Issuer {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &Issuer{secret: []byte(secret), ttl: ttl}
}

// Mint returns a signed JWT asserting the executor-manager identity.
func (i *Issuer) Mint() (string, error) {
	now := time.Now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   issuer,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(i.ttl)),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	signed, err := token.SignedString(i.secret)
	if err != nil {
		return "", fmt.Errorf("sign service token: %w", err)
	}
	return signed, nil
}

// Verifier validates service tokens minted by an Issuer sharing the same
// secret.
type Verifier struct {
	secret []byte
}

func NewVerifier(secret string) *Verifier {
	return &Verifier{secret: []byte(secret)}
}

// Verify parses and validates tokenString, returning an error if it is
// malformed, expired, or signed with a different secret.
func (v *Verifier) Verify(tokenString string) error {
	claims := &jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", t.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil {
		return fmt.Errorf("parse service token: %w", err)
	}
	if !token.Valid {
		return fmt.Errorf("service token invalid")
	}
	if claims.Issuer != issuer {
		return fmt.Errorf("unexpected issuer %q", claims.Issuer)
	}
	return nil
}
