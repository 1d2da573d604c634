package relay

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

var (
	ErrTokenInvalid = errors.New("pairing token is invalid")
	ErrTokenExpired = errors.New("pairing token is expired")
)

// TokenClaims are the validated claims of a pairing token.
type TokenClaims struct {
	SessionID string
	TokenID   string
	ExpiresAt time.Time
}

// Tokens issues and verifies HS256 pairing tokens scoped to one session.
type Tokens struct {
	secret []byte
	issuer string
	Now    func() time.Time
}

// NewTokens creates a signer for the given secret and issuer.
func NewTokens(secret []byte, issuer string) *Tokens {
	return &Tokens{secret: secret, issuer: issuer, Now: time.Now}
}

// Issue signs a token for sessionID that expires at expiresAt.
func (t *Tokens) Issue(sessionID string, expiresAt time.Time) (string, TokenClaims, error) {
	if len(t.secret) == 0 {
		return "", TokenClaims{}, errors.New("pairing token signer is not configured")
	}

	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    t.issuer,
		Subject:   sessionID,
		ID:        uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(expiresAt),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", TokenClaims{}, fmt.Errorf("sign pairing token: %w", err)
	}
	return signed, TokenClaims{
		SessionID: sessionID,
		TokenID:   claims.ID,
		ExpiresAt: claims.ExpiresAt.Time.UTC(),
	}, nil
}

// Verify checks the signature, issuer and expiry of token and that it was
// issued for sessionID.
func (t *Tokens) Verify(token, sessionID string) (TokenClaims, error) {
	token = strings.TrimSpace(token)
	if token == "" {
		return TokenClaims{}, ErrTokenInvalid
	}

	var parsed jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(token, &parsed, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithoutClaimsValidation(),
	)
	if err != nil {
		return TokenClaims{}, fmt.Errorf("%w: %v", ErrTokenInvalid, err)
	}

	if parsed.Issuer != t.issuer {
		return TokenClaims{}, fmt.Errorf("%w: issuer mismatch", ErrTokenInvalid)
	}
	if parsed.Subject == "" || parsed.Subject != sessionID {
		return TokenClaims{}, fmt.Errorf("%w: session mismatch", ErrTokenInvalid)
	}
	if parsed.ID == "" || parsed.ExpiresAt == nil {
		return TokenClaims{}, fmt.Errorf("%w: jti and exp are required", ErrTokenInvalid)
	}

	claims := TokenClaims{
		SessionID: parsed.Subject,
		TokenID:   parsed.ID,
		ExpiresAt: parsed.ExpiresAt.Time.UTC(),
	}
	if !claims.ExpiresAt.After(t.now()) {
		return claims, ErrTokenExpired
	}
	return claims, nil
}

func (t *Tokens) now() time.Time {
	if t.Now == nil {
		return time.Now()
	}
	return t.Now()
}
