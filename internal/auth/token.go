package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
)

const issuer = "library"

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrEmptySecret  = errors.New("token secret is empty")
	ErrEmptySubject = errors.New("token subject is empty")
)

// Identity is the authenticated caller
type Identity struct {
	Subject string
}

// Tokens signs and verifies HS256 bearer tokens
type Tokens struct {
	secret []byte
	now    func() time.Time
}

func NewTokens(secret string) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, ErrEmptySecret
	}

	return &Tokens{secret: []byte(secret), now: time.Now}, nil
}

// Issue returns a token for subject valid for ttl
func (t *Tokens) Issue(subject string, ttl time.Duration) (string, error) {
	if subject == "" {
		return "", ErrEmptySubject
	}

	now := t.now()
	claims := jwt.RegisteredClaims{
		Issuer:    issuer,
		Subject:   subject,
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
	}

	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", fmt.Errorf("signing token: %w", err)
	}

	return signed, nil
}

func (t *Tokens) Verify(token string) (Identity, error) {
	var claims jwt.RegisteredClaims

	_, err := jwt.ParseWithClaims(token, &claims, func(*jwt.Token) (any, error) {
		return t.secret, nil
	},
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(issuer),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(t.now),
	)
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}

	if claims.Subject == "" {
		return Identity{}, fmt.Errorf("%w: %w", ErrInvalidToken, ErrEmptySubject)
	}

	return Identity{Subject: claims.Subject}, nil
}
