// Package auth provides JWT validation for the API surface.
//
// Tokens are issued elsewhere; this service only verifies them and extracts
// the acting mover's identity.
package auth

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"

	"stocklot/internal/core/actor"
	"stocklot/internal/core/id"
)

// Claims represents the JWT claims this service reads.
type Claims struct {
	jwt.RegisteredClaims
	MoverID string `json:"mid"`
}

// JWTService validates bearer tokens.
type JWTService struct {
	secret []byte
}

// NewJWTService creates a new JWT service.
func NewJWTService(secret string) *JWTService {
	return &JWTService{secret: []byte(secret)}
}

// ValidateToken verifies the token signature and returns the acting mover.
// The mover ID comes from the "mid" claim, falling back to the subject.
func (s *JWTService) ValidateToken(tokenString string) (*actor.Actor, error) {
	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	raw := claims.MoverID
	if raw == "" {
		raw = claims.Subject
	}
	moverID, err := id.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("invalid mover id in token: %w", err)
	}

	return &actor.Actor{
		MoverID: moverID,
		Subject: claims.Subject,
	}, nil
}
