// Package auth validates access tokens issued by the identity service.
package auth

import (
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"board-service/internal/access"
)

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpiredToken = errors.New("token has expired")
)

// Claims carried by access tokens.
type Claims struct {
	Name  string   `json:"name"`
	Roles []string `json:"roles,omitempty"`
	jwt.RegisteredClaims
}

// Validator checks HS256 tokens against a shared secret and issuer.
type Validator struct {
	secret []byte
	issuer string
}

// NewValidator constructs a Validator.
func NewValidator(secret, issuer string) *Validator {
	return &Validator{secret: []byte(secret), issuer: issuer}
}

// Validate parses the token and returns the subject it authenticates.
func (v *Validator) Validate(tokenString string) (access.Subject, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	var claims Claims
	_, err := jwt.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return access.Subject{}, ErrExpiredToken
		}
		return access.Subject{}, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}

	if _, err := uuid.Parse(claims.Subject); err != nil {
		return access.Subject{}, fmt.Errorf("%w: subject is not a user id", ErrInvalidToken)
	}
	if claims.Name == "" {
		return access.Subject{}, fmt.Errorf("%w: missing name", ErrInvalidToken)
	}

	return access.Subject{
		UserID:   claims.Subject,
		Username: claims.Name,
		Roles:    claims.Roles,
	}, nil
}
