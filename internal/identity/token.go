package identity

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenService issues and verifies the HMAC-signed access tokens the API
// authenticates with. Every token carries a unique jti so individual
// sessions can be revoked before expiry.
type TokenService struct {
	signingKey []byte
	issuer     string
	ttl        time.Duration
}

func NewTokenService(signingKey []byte, issuer string, ttl time.Duration) *TokenService {
	return &TokenService{signingKey: signingKey, issuer: issuer, ttl: ttl}
}

// Claims is the verified content of an access token.
type Claims struct {
	UserID    uuid.UUID
	TokenID   string
	ExpiresAt time.Time
}

// Issue mints a token for the user, valid from now for the configured TTL.
func (s *TokenService) Issue(userID uuid.UUID, now time.Time) (string, Claims, error) {
	claims := Claims{
		UserID:    userID,
		TokenID:   uuid.NewString(),
		ExpiresAt: now.Add(s.ttl),
	}
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.RegisteredClaims{
		Issuer:    s.issuer,
		Subject:   userID.String(),
		ID:        claims.TokenID,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(claims.ExpiresAt),
	})
	signed, err := token.SignedString(s.signingKey)
	if err != nil {
		return "", Claims{}, fmt.Errorf("sign token: %w", err)
	}
	return signed, claims, nil
}

// Parse verifies signature, issuer, and expiry, and extracts the claims.
// All failures come back as a single opaque error; callers must not
// distinguish expired from forged tokens.
func (s *TokenService) Parse(raw string) (Claims, error) {
	var registered jwt.RegisteredClaims
	_, err := jwt.ParseWithClaims(raw, &registered,
		func(t *jwt.Token) (any, error) { return s.signingKey, nil },
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(s.issuer),
		jwt.WithExpirationRequired(),
	)
	if err != nil {
		return Claims{}, errors.New("invalid token")
	}

	userID, err := uuid.Parse(registered.Subject)
	if err != nil || registered.ID == "" {
		return Claims{}, errors.New("invalid token")
	}
	return Claims{
		UserID:    userID,
		TokenID:   registered.ID,
		ExpiresAt: registered.ExpiresAt.Time,
	}, nil
}

// TTL exposes the configured token lifetime for revocation bookkeeping.
func (s *TokenService) TTL() time.Duration { return s.ttl }
