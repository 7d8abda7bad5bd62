// Package token signs and verifies credential tokens: ES256 JWTs whose
// issuer and audience are both the issuing institution's ID.
package token

import (
	"crypto/ecdsa"
	"encoding/base64"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

// Claims is the open holder payload.
type Claims map[string]any

// Registered claim names injected at signing time.
const (
	ClaimIssuer   = "iss"
	ClaimAudience = "aud"
	ClaimIssuedAt = "iat"
)

// ErrInvalidToken is the only error a verifier sees. Cause recovers the
// detail for logging.
var ErrInvalidToken = errors.New("invalid or tampered token")

// reservedClaims may never be supplied by the holder.
var reservedClaims = map[string]struct{}{
	ClaimIssuer:   {},
	ClaimAudience: {},
	ClaimIssuedAt: {},
	"issuer":      {},
	"audience":    {},
	"issuedAt":    {},
	"exp":         {},
	"nbf":         {},
}

// ReservedKey returns the first holder-supplied key that collides with an
// injected claim.
func ReservedKey(c Claims) (string, bool) {
	for k := range c {
		if _, ok := reservedClaims[k]; ok {
			return k, true
		}
	}
	return "", false
}

// Sign builds the token. Callers validate claims first; Sign only refuses
// what would produce an ambiguous token.
func Sign(c Claims, issuerID string, issuedAt time.Time, key *ecdsa.PrivateKey) (string, error) {
	if len(c) == 0 {
		return "", errors.New("claims are empty")
	}
	if k, ok := ReservedKey(c); ok {
		return "", fmt.Errorf("claim %q is reserved", k)
	}
	if key == nil {
		return "", errors.New("signing key is nil")
	}

	mc := make(jwt.MapClaims, len(c)+3)
	for k, v := range c {
		mc[k] = v
	}
	mc[ClaimIssuer] = issuerID
	mc[ClaimAudience] = issuerID
	mc[ClaimIssuedAt] = issuedAt.Unix()

	signed, err := jwt.NewWithClaims(jwt.SigningMethodES256, mc).SignedString(key)
	if err != nil {
		return "", fmt.Errorf("sign token: %w", err)
	}
	return signed, nil
}

type verifyError struct {
	cause error
}

func (e *verifyError) Error() string { return ErrInvalidToken.Error() }
func (e *verifyError) Unwrap() []error {
	return []error{ErrInvalidToken, e.cause}
}

func invalid(cause error) error { return &verifyError{cause: cause} }

// Cause returns the detailed reason behind a verification failure, for logs.
func Cause(err error) error {
	var ve *verifyError
	if errors.As(err, &ve) {
		return ve.cause
	}
	return err
}

// Verify checks the signature against publicKeyPEM and that iss and aud both
// equal issuerID. The returned claims include iss, aud and iat.
func Verify(tokenString, publicKeyPEM, issuerID string) (Claims, error) {
	if err := CheckStructure(tokenString); err != nil {
		return nil, invalid(err)
	}
	pub, err := jwt.ParseECPublicKeyFromPEM([]byte(publicKeyPEM))
	if err != nil {
		return nil, invalid(fmt.Errorf("parse public key: %w", err))
	}

	parsed, err := jwt.Parse(tokenString,
		func(t *jwt.Token) (any, error) { return pub, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodES256.Alg()}),
		jwt.WithIssuer(issuerID),
		jwt.WithAudience(issuerID),
		jwt.WithStrictDecoding(),
	)
	if err != nil {
		return nil, invalid(err)
	}
	mc, ok := parsed.Claims.(jwt.MapClaims)
	if !ok || !parsed.Valid {
		return nil, invalid(errors.New("unexpected claims type"))
	}
	// WithAudience accepts an array containing issuerID; a credential's aud
	// is always the bare string.
	if aud, ok := mc[ClaimAudience].(string); !ok || aud != issuerID {
		return nil, invalid(errors.New("audience is not the issuer"))
	}
	if iat, err := mc.GetIssuedAt(); err != nil || iat == nil {
		return nil, invalid(errors.New("issued-at is missing or malformed"))
	}

	out := make(Claims, len(mc))
	for k, v := range mc {
		out[k] = v
	}
	return out, nil
}

// CheckStructure accepts exactly three non-empty, canonically encoded
// base64url segments.
func CheckStructure(s string) error {
	parts := strings.Split(s, ".")
	if len(parts) != 3 {
		return fmt.Errorf("expected 3 segments, got %d", len(parts))
	}
	for i, p := range parts {
		if p == "" {
			return fmt.Errorf("segment %d is empty", i)
		}
		if _, err := base64.RawURLEncoding.Strict().DecodeString(p); err != nil {
			return fmt.Errorf("segment %d is not base64url: %w", i, err)
		}
	}
	return nil
}

// Email returns the holder email claim when present and a string.
func (c Claims) Email() (string, bool) {
	v, ok := c["email"].(string)
	if !ok || strings.TrimSpace(v) == "" {
		return "", false
	}
	return v, true
}

// Holder returns the claims without the injected registered claims.
func (c Claims) Holder() Claims {
	out := make(Claims, len(c))
	for k, v := range c {
		switch k {
		case ClaimIssuer, ClaimAudience, ClaimIssuedAt:
			continue
		}
		out[k] = v
	}
	return out
}
