package session

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

const tokenIssuer = "curasync-portal"

// ErrInvalidToken is returned when a session token fails verification.
var ErrInvalidToken = errors.New("session: invalid token")

// Tokens issues and verifies HMAC-signed session handles. The subject of a
// token is the session id.
type Tokens struct {
	secret []byte
	ttl    time.Duration
	now    func() time.Time
}

// NewTokens returns a token codec. An empty secret is rejected.
func NewTokens(secret string, ttl time.Duration) (*Tokens, error) {
	if strings.TrimSpace(secret) == "" {
		return nil, fmt.Errorf("session: signing secret required")
	}
	return &Tokens{secret: []byte(secret), ttl: ttl, now: time.Now}, nil
}

// NewSessionID returns a fresh random session id.
func NewSessionID() string {
	return uuid.NewString()
}

// Issue signs a token for sessionID and reports when it expires.
func (t *Tokens) Issue(sessionID string) (string, time.Time, error) {
	now := t.now()
	claims := jwt.RegisteredClaims{
		Subject:  sessionID,
		Issuer:   tokenIssuer,
		IssuedAt: jwt.NewNumericDate(now),
	}
	var expires time.Time
	if t.ttl > 0 {
		expires = now.Add(t.ttl)
		claims.ExpiresAt = jwt.NewNumericDate(expires)
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(t.secret)
	if err != nil {
		return "", time.Time{}, fmt.Errorf("session: sign token: %w", err)
	}
	return signed, expires, nil
}

// Parse verifies tokenString and returns the session id it carries.
func (t *Tokens) Parse(tokenString string) (string, error) {
	claims := jwt.RegisteredClaims{}
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, jwt.ErrSignatureInvalid
		}
		return t.secret, nil
	}, jwt.WithIssuer(tokenIssuer), jwt.WithTimeFunc(t.now))
	if err != nil || !token.Valid {
		return "", ErrInvalidToken
	}
	if claims.Subject == "" {
		return "", ErrInvalidToken
	}
	return claims.Subject, nil
}
