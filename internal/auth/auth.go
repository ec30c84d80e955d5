package auth

import (
	"context"
	"errors"
	"fmt"

	"github.com/golang-jwt/jwt/v5"
)

// Roles carried in access tokens.
const (
	RolePlatformAdmin = "PLATFORM_ADMIN"
	RoleCompanyAdmin  = "COMPANY_ADMIN"
	RoleDriver        = "DRIVER"
	RoleParent        = "PARENT"
)

// ErrInvalidCredential is returned for missing, malformed or expired tokens.
var ErrInvalidCredential = errors.New("invalid credential")

// Identity is the verified identity behind a bearer token.
type Identity struct {
	UserID    string
	Email     string
	Role      string
	CompanyID string
	SchoolID  string
}

// IsTracker reports whether the role auto-subscribes to bus rooms.
func (id Identity) IsTracker() bool {
	return id.Role == RoleDriver || id.Role == RoleParent
}

// IsAdmin reports whether the role belongs to an admin console user.
func (id Identity) IsAdmin() bool {
	return id.Role == RolePlatformAdmin || id.Role == RoleCompanyAdmin
}

// CredentialVerifier validates a bearer token and returns the identity it
// encodes. Implementations must return ErrInvalidCredential (possibly
// wrapped) for any token that should refuse the connection.
type CredentialVerifier interface {
	Verify(ctx context.Context, token string) (Identity, error)
}

// accessClaims mirrors the claims issued by the auth service.
type accessClaims struct {
	Email     string `json:"email"`
	Role      string `json:"role"`
	CompanyID string `json:"companyId"`
	SchoolID  string `json:"schoolId"`
	jwt.RegisteredClaims
}

// JWTVerifier verifies HMAC-signed access tokens locally.
type JWTVerifier struct {
	secret []byte
}

// NewJWTVerifier creates a verifier for the given shared access secret.
func NewJWTVerifier(secret string) *JWTVerifier {
	return &JWTVerifier{secret: []byte(secret)}
}

// Verify parses and validates the token and extracts the identity claims.
func (v *JWTVerifier) Verify(_ context.Context, token string) (Identity, error) {
	if token == "" {
		return Identity{}, ErrInvalidCredential
	}

	var claims accessClaims
	parsed, err := jwt.ParseWithClaims(token, &claims, func(t *jwt.Token) (any, error) {
		if _, ok := t.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %q", t.Method.Alg())
		}
		return v.secret, nil
	})
	if err != nil {
		return Identity{}, fmt.Errorf("%w: %v", ErrInvalidCredential, err)
	}
	if !parsed.Valid || claims.Subject == "" {
		return Identity{}, ErrInvalidCredential
	}

	return Identity{
		UserID:    claims.Subject,
		Email:     claims.Email,
		Role:      claims.Role,
		CompanyID: claims.CompanyID,
		SchoolID:  claims.SchoolID,
	}, nil
}
