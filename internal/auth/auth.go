// Package auth validates the bearer tokens that authenticate chat
// connections. Token issuance belongs to the external auth service; this
// package only checks signatures, expiry, and the revocation list.
package auth

import (
	"context"
	"errors"
	"fmt"
	"log"

	"github.com/golang-jwt/jwt/v5"
	"github.com/redis/go-redis/v9"
)

var ErrInvalidToken = errors.New("auth: invalid token")

// Identity is the authenticated principal behind a connection.
type Identity struct {
	UserID        string
	FullName      string
	InstitutionID string
}

// Claims is the expected JWT payload. Subject carries the user ID; the
// jti is used against the revocation list.
type Claims struct {
	FullName      string `json:"name"`
	InstitutionID string `json:"institution_id"`
	jwt.RegisteredClaims
}

// Validator checks HS256 tokens against a shared secret and, when a Redis
// client is configured, against a revocation list keyed by jti.
type Validator struct {
	secret        []byte
	redis         *redis.Client
	revokedPrefix string
}

func NewValidator(secret string, redisClient *redis.Client) *Validator {
	return &Validator{
		secret:        []byte(secret),
		redis:         redisClient,
		revokedPrefix: "revoked_tokens",
	}
}

// Validate parses and verifies tokenString and returns the identity it
// carries. Any parse, signature, expiry, or claim problem comes back as
// ErrInvalidToken.
func (v *Validator) Validate(ctx context.Context, tokenString string) (Identity, error) {
	claims := &Claims{}
	token, err := jwt.ParseWithClaims(tokenString, claims, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return v.secret, nil
	})
	if err != nil || !token.Valid {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if claims.Subject == "" || claims.InstitutionID == "" {
		return Identity{}, fmt.Errorf("%w: missing subject or institution claim", ErrInvalidToken)
	}

	revoked, err := v.isRevoked(ctx, claims.ID)
	if err != nil {
		// Fail open: a Redis outage must not lock every user out.
		log.Printf("revocation check failed for jti %q: %v", claims.ID, err)
	}
	if revoked {
		return Identity{}, fmt.Errorf("%w: token revoked", ErrInvalidToken)
	}

	return Identity{
		UserID:        claims.Subject,
		FullName:      claims.FullName,
		InstitutionID: claims.InstitutionID,
	}, nil
}

func (v *Validator) isRevoked(ctx context.Context, jti string) (bool, error) {
	if v.redis == nil || jti == "" {
		return false, nil
	}
	exists, err := v.redis.Exists(ctx, v.revokedPrefix+":"+jti).Result()
	if err != nil {
		return false, err
	}
	return exists == 1, nil
}
