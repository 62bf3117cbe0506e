/*
auth.go - Bearer token issuing and validation

PURPOSE:
  Identifies the caller of every mutating API request. Tokens are HS256 JWTs
  carrying the actor id and role; the role decides what the taxation service
  allows (admins decide exemptions, agents collect payments).

  Accounts and passwords are managed elsewhere. This package only mints and
  checks tokens, which is what cmd/token does for operators.

CLAIMS:
  {"sub": "agent-17", "role": "agent", "iat": ..., "exp": ...}

SEE ALSO:
  - middleware.go: HTTP integration
  - generic/types.go: Actor and Role
*/
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hassan3xl/taxation-backend/generic"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token expired")
	ErrMissingToken = errors.New("missing token")
)

// Service issues and validates actor tokens.
type Service struct {
	jwtSecret []byte
	tokenExp  time.Duration

	// Now is the clock used for iat/exp. Defaults to time.Now.
	Now func() time.Time
}

// NewService creates a token service. expiry <= 0 falls back to 24 hours.
func NewService(secret string, expiry time.Duration) (*Service, error) {
	if secret == "" {
		return nil, errors.New("auth: empty JWT secret")
	}
	if expiry <= 0 {
		expiry = 24 * time.Hour
	}
	return &Service{
		jwtSecret: []byte(secret),
		tokenExp:  expiry,
		Now:       time.Now,
	}, nil
}

// GenerateToken signs a token for actor.
func (s *Service) GenerateToken(actor generic.Actor) (string, error) {
	if actor.ID == "" {
		return "", &generic.ValidationError{Field: "sub", Message: "actor id is required"}
	}
	if !generic.IsValidRole(actor.Role) {
		return "", &generic.ValidationError{Field: "role", Message: fmt.Sprintf("unknown role %q", actor.Role)}
	}

	now := s.Now()
	claims := jwt.MapClaims{
		"sub":  actor.ID,
		"role": string(actor.Role),
		"exp":  now.Add(s.tokenExp).Unix(),
		"iat":  now.Unix(),
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString(s.jwtSecret)
}

// ValidateToken checks the signature and expiry and returns the actor.
// A leading "Bearer " is accepted.
func (s *Service) ValidateToken(tokenString string) (generic.Actor, error) {
	tokenString = strings.TrimPrefix(tokenString, "Bearer ")
	if tokenString == "" {
		return generic.Actor{}, ErrMissingToken
	}

	token, err := jwt.Parse(tokenString, func(token *jwt.Token) (interface{}, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return s.jwtSecret, nil
	}, jwt.WithTimeFunc(s.Now), jwt.WithExpirationRequired())

	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return generic.Actor{}, ErrExpiredToken
		}
		return generic.Actor{}, ErrInvalidToken
	}
	if !token.Valid {
		return generic.Actor{}, ErrInvalidToken
	}

	claims, ok := token.Claims.(jwt.MapClaims)
	if !ok {
		return generic.Actor{}, ErrInvalidToken
	}

	sub, ok := claims["sub"].(string)
	if !ok || sub == "" {
		return generic.Actor{}, ErrInvalidToken
	}
	roleStr, ok := claims["role"].(string)
	if !ok {
		return generic.Actor{}, ErrInvalidToken
	}
	role := generic.Role(roleStr)
	if !generic.IsValidRole(role) {
		return generic.Actor{}, ErrInvalidToken
	}

	return generic.Actor{ID: sub, Role: role}, nil
}

// ExtractTokenFromHeader returns the token part of an Authorization header.
func ExtractTokenFromHeader(authHeader string) string {
	if authHeader == "" {
		return ""
	}
	parts := strings.SplitN(authHeader, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return ""
	}
	return strings.TrimSpace(parts[1])
}
