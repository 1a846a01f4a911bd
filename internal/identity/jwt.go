// Package identity adapts the external identity provider's bearer tokens
// into the claims the core trusts. Token issuance, password flows, and
// account management all live in the provider; this package only verifies.
package identity

import (
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"

	"presente/internal/platform/middleware"
	id "presente/pkg/domain"
)

// Verifier validates HS256 bearer tokens minted by the identity provider.
type Verifier struct {
	signingKey []byte
}

func NewVerifier(signingKey string) *Verifier {
	return &Verifier{signingKey: []byte(signingKey)}
}

type providerClaims struct {
	Role   string `json:"role"`
	Active bool   `json:"active"`
	jwt.RegisteredClaims
}

// ValidateToken implements middleware.TokenValidator.
func (v *Verifier) ValidateToken(tokenString string) (*middleware.IdentityClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &providerClaims{}, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", t.Header["alg"])
		}
		return v.signingKey, nil
	})
	if err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}

	claims, ok := token.Claims.(*providerClaims)
	if !ok || !token.Valid {
		return nil, fmt.Errorf("invalid token claims")
	}

	subject, err := uuid.Parse(claims.Subject)
	if err != nil || subject == uuid.Nil {
		return nil, fmt.Errorf("token subject is not a valid UUID")
	}
	role, err := id.ParseRole(claims.Role)
	if err != nil {
		return nil, fmt.Errorf("token role: %w", err)
	}

	return &middleware.IdentityClaims{
		UserID: subject,
		Role:   role,
		Active: claims.Active,
	}, nil
}

// MintToken issues a token the way the provider would. Test and development
// helper; production tokens come from the provider itself.
func (v *Verifier) MintToken(subject uuid.UUID, role id.Role, active bool) (string, error) {
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, providerClaims{
		Role:   role.String(),
		Active: active,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject: subject.String(),
		},
	})
	return token.SignedString(v.signingKey)
}
