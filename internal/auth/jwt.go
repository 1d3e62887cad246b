// Package auth verifies and issues the HS256 tokens players connect with.
package auth

import (
	"errors"
	"fmt"
	"strings"
	"time"

	"mathduel-service/internal/domain"

	"github.com/golang-jwt/jwt/v5"
)

// Claims carried by a player token. Subject is the player ID.
type Claims struct {
	Email string `json:"email"`
	Name  string `json:"name,omitempty"`
	jwt.RegisteredClaims
}

type Verifier struct {
	secret []byte
	issuer string
	ttl    time.Duration
	now    func() time.Time
}

// NewVerifier returns a verifier for tokens signed with secret. An empty issuer
// disables the issuer check.
func NewVerifier(secret, issuer string, ttl time.Duration) *Verifier {
	return &Verifier{
		secret: []byte(secret),
		issuer: issuer,
		ttl:    ttl,
		now:    time.Now,
	}
}

// Verify parses raw and maps its claims to an identity. Every failure wraps
// domain.ErrInvalidToken.
func (v *Verifier) Verify(raw string) (domain.Identity, error) {
	if raw == "" {
		return domain.Identity{}, domain.ErrInvalidToken
	}

	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithTimeFunc(v.now),
	}
	if v.issuer != "" {
		opts = append(opts, jwt.WithIssuer(v.issuer))
	}

	claims := &Claims{}
	_, err := jwt.ParseWithClaims(raw, claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	}, opts...)
	if err != nil {
		return domain.Identity{}, fmt.Errorf("%w: %v", domain.ErrInvalidToken, err)
	}
	if claims.Subject == "" {
		return domain.Identity{}, fmt.Errorf("%w: missing subject", domain.ErrInvalidToken)
	}

	return domain.Identity{
		UserID:      claims.Subject,
		Email:       claims.Email,
		DisplayName: displayName(claims),
	}, nil
}

// Issue signs a token for the given player.
func (v *Verifier) Issue(userID, email, name string) (string, error) {
	if userID == "" {
		return "", errors.New("user id required")
	}
	now := v.now()
	claims := Claims{
		Email: email,
		Name:  name,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:  userID,
			Issuer:   v.issuer,
			IssuedAt: jwt.NewNumericDate(now),
		},
	}
	if v.ttl > 0 {
		claims.ExpiresAt = jwt.NewNumericDate(now.Add(v.ttl))
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(v.secret)
}

// displayName prefers the explicit name, then the email local part, then the subject.
func displayName(c *Claims) string {
	if c.Name != "" {
		return c.Name
	}
	if local, _, ok := strings.Cut(c.Email, "@"); ok && local != "" {
		return local
	}
	if c.Email != "" {
		return c.Email
	}
	return c.Subject
}
