// Package identity verifies caller bearer tokens.
package identity

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
	"github.com/uniedit/paygate/internal/model"
	"github.com/uniedit/paygate/internal/port/outbound"
)

// ErrInvalidToken is returned for tokens that fail verification.
var ErrInvalidToken = errors.New("invalid token")

// JWTConfig holds token verification configuration.
type JWTConfig struct {
	Secret string
	// Issuer is checked against the iss claim when set.
	Issuer string
}

// jwtVerifier implements outbound.IdentityVerifierPort for HS256 tokens.
type jwtVerifier struct {
	secret []byte
	parser *jwt.Parser
}

// NewJWTVerifier creates an HS256 token verifier.
func NewJWTVerifier(cfg JWTConfig) outbound.IdentityVerifierPort {
	opts := []jwt.ParserOption{
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithExpirationRequired(),
	}
	if cfg.Issuer != "" {
		opts = append(opts, jwt.WithIssuer(cfg.Issuer))
	}
	return &jwtVerifier{
		secret: []byte(cfg.Secret),
		parser: jwt.NewParser(opts...),
	}
}

type identityClaims struct {
	Email string `json:"email"`
	jwt.RegisteredClaims
}

// Verify validates the token and extracts the caller identity.
func (v *jwtVerifier) Verify(_ context.Context, tokenString string) (*model.Identity, error) {
	var claims identityClaims
	token, err := v.parser.ParseWithClaims(tokenString, &claims, func(*jwt.Token) (interface{}, error) {
		return v.secret, nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidToken, err)
	}
	if !token.Valid || claims.Subject == "" {
		return nil, ErrInvalidToken
	}

	return &model.Identity{
		Subject: claims.Subject,
		Email:   claims.Email,
	}, nil
}

// Compile-time check
var _ outbound.IdentityVerifierPort = (*jwtVerifier)(nil)
