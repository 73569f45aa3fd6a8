// Package auth verifies the access tokens issued by the identity service and
// exposes the tenant, branch and user they carry.
package auth

import (
	"errors"
	"time"

	"github.com/atelier-erp/backend/internal/infrastructure/config"
	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
)

// TokenTypeAccess is the only token type this service accepts
const TokenTypeAccess = "access"

// Common errors
var (
	ErrInvalidToken     = errors.New("invalid token")
	ErrExpiredToken     = errors.New("token has expired")
	ErrTokenNotYetValid = errors.New("token is not yet valid")
	ErrInvalidTokenType = errors.New("invalid token type")
	ErrInvalidClaims    = errors.New("invalid token claims")
	ErrMissingTenantID  = errors.New("missing tenant_id in claims")
	ErrMissingBranchID  = errors.New("missing branch_id in claims")
	ErrMissingUserID    = errors.New("missing user_id in claims")
)

// Claims are the identity claims of an access token
type Claims struct {
	jwt.RegisteredClaims
	TenantID  string `json:"tenant_id"`
	BranchID  string `json:"branch_id"`
	UserID    string `json:"user_id"`
	Username  string `json:"username,omitempty"`
	TokenType string `json:"token_type"`
}

// Identity is the parsed tenant, branch and user of a request
type Identity struct {
	TenantID uuid.UUID
	BranchID uuid.UUID
	UserID   uuid.UUID
}

// Identity parses the identity claims into UUIDs
func (c *Claims) Identity() (Identity, error) {
	tenantID, err := uuid.Parse(c.TenantID)
	if err != nil {
		return Identity{}, ErrInvalidClaims
	}
	branchID, err := uuid.Parse(c.BranchID)
	if err != nil {
		return Identity{}, ErrInvalidClaims
	}
	userID, err := uuid.Parse(c.UserID)
	if err != nil {
		return Identity{}, ErrInvalidClaims
	}
	return Identity{TenantID: tenantID, BranchID: branchID, UserID: userID}, nil
}

// JWTService verifies HS256 access tokens
type JWTService struct {
	secret []byte
	issuer string
}

// NewJWTService creates a new JWT service
func NewJWTService(cfg config.JWTConfig) *JWTService {
	return &JWTService{
		secret: []byte(cfg.Secret),
		issuer: cfg.Issuer,
	}
}

// GenerateAccessToken signs an access token for the identity. Production
// tokens come from the identity service; this is used by tests and local
// tooling that share the secret.
func (s *JWTService) GenerateAccessToken(id Identity, username string, ttl time.Duration) (string, error) {
	now := time.Now()
	claims := &Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			ID:        uuid.New().String(),
			Issuer:    s.issuer,
			Subject:   id.UserID.String(),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			NotBefore: jwt.NewNumericDate(now),
			IssuedAt:  jwt.NewNumericDate(now),
		},
		TenantID:  id.TenantID.String(),
		BranchID:  id.BranchID.String(),
		UserID:    id.UserID.String(),
		Username:  username,
		TokenType: TokenTypeAccess,
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(s.secret)
}

// ValidateAccessToken verifies the signature, lifetime, issuer and type of a
// token and returns its claims
func (s *JWTService) ValidateAccessToken(tokenString string) (*Claims, error) {
	opts := []jwt.ParserOption{jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()})}
	if s.issuer != "" {
		opts = append(opts, jwt.WithIssuer(s.issuer))
	}

	token, err := jwt.ParseWithClaims(tokenString, &Claims{}, func(token *jwt.Token) (any, error) {
		return s.secret, nil
	}, opts...)
	if err != nil {
		switch {
		case errors.Is(err, jwt.ErrTokenExpired):
			return nil, ErrExpiredToken
		case errors.Is(err, jwt.ErrTokenNotValidYet):
			return nil, ErrTokenNotYetValid
		}
		return nil, ErrInvalidToken
	}

	claims, ok := token.Claims.(*Claims)
	if !ok || !token.Valid {
		return nil, ErrInvalidClaims
	}
	if claims.TokenType != TokenTypeAccess {
		return nil, ErrInvalidTokenType
	}
	switch {
	case claims.TenantID == "":
		return nil, ErrMissingTenantID
	case claims.BranchID == "":
		return nil, ErrMissingBranchID
	case claims.UserID == "":
		return nil, ErrMissingUserID
	}
	return claims, nil
}
