package auth

import (
	"context"
	"errors"
	"fmt"
	"time"

	"altotrafico-web/internal/storage"
	"altotrafico-web/models"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const (
	issuer        = "altotrafico-web"
	sessionPrefix = "session:"
)

var ErrInvalidToken = errors.New("invalid token")

type Claims struct {
	UserID   string `json:"user_id"`
	Username string `json:"username"`
	Email    string `json:"email,omitempty"`
	jwt.RegisteredClaims
}

func (c *Claims) Identity() models.Identity {
	return models.Identity{ID: c.UserID, Username: c.Username, Email: c.Email}
}

// TokenIssuer signs admin session tokens and tracks their JTIs in the KV store
// so that logout can revoke them before expiry.
type TokenIssuer struct {
	secret []byte
	ttl    time.Duration
	kv     storage.KV
	now    func() time.Time
}

func NewTokenIssuer(secret string, ttl time.Duration, kv storage.KV) (*TokenIssuer, error) {
	if len(secret) < 32 {
		return nil, fmt.Errorf("session secret must be at least 32 characters")
	}
	if ttl <= 0 {
		ttl = 24 * time.Hour
	}
	return &TokenIssuer{secret: []byte(secret), ttl: ttl, kv: kv, now: time.Now}, nil
}

func (t *TokenIssuer) TTL() time.Duration { return t.ttl }

func (t *TokenIssuer) Issue(ctx context.Context, id models.Identity) (string, time.Time, error) {
	now := t.now()
	exp := now.Add(t.ttl)
	jti := uuid.NewString()

	claims := Claims{
		UserID:   id.ID,
		Username: id.Username,
		Email:    id.Email,
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        jti,
			Subject:   id.ID,
			ExpiresAt: jwt.NewNumericDate(exp),
			IssuedAt:  jwt.NewNumericDate(now),
			Issuer:    issuer,
		},
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, err
	}

	if err := t.kv.Set(ctx, sessionPrefix+jti, []byte(id.ID), t.ttl); err != nil {
		return "", time.Time{}, fmt.Errorf("store session: %w", err)
	}
	return signed, exp, nil
}

func (t *TokenIssuer) Validate(ctx context.Context, tokenString string) (*Claims, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		// Prevent algorithm confusion attacks
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, errors.New("unexpected signing method")
		}
		return t.secret, nil
	}, jwt.WithIssuer(issuer), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return nil, ErrInvalidToken
	}

	ok, err := t.kv.Exists(ctx, sessionPrefix+claims.ID)
	if err != nil || !ok {
		return nil, ErrInvalidToken
	}
	return claims, nil
}

// Revoke deletes the session record for a token's JTI.
func (t *TokenIssuer) Revoke(ctx context.Context, jti string) error {
	if jti == "" {
		return nil
	}
	return t.kv.Del(ctx, sessionPrefix+jti)
}
