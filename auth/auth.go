// Copyright 2025 Poiesic Systems
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.


// Package auth handles password hashing and session tokens: bcrypt for
// the stored hashes, HS256 JWTs for the sessions.
package auth

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/poiesic/expensit/core"
	"golang.org/x/crypto/bcrypt"
)

// DefaultTokenTTL is how long an issued session token stays valid.
const DefaultTokenTTL = 24 * time.Hour

// HashPassword derives a bcrypt hash for storage on the tenant.
func HashPassword(password string) (string, error) {
	hash, err := bcrypt.GenerateFromPassword([]byte(password), bcrypt.DefaultCost)
	if err != nil {
		return "", err
	}
	return string(hash), nil
}

// CheckPassword compares a candidate password against a stored hash.
// Returns ErrInvalidCredentials on mismatch.
func CheckPassword(hash, password string) error {
	if err := bcrypt.CompareHashAndPassword([]byte(hash), []byte(password)); err != nil {
		return ErrInvalidCredentials
	}
	return nil
}

// Claims identifies the tenant a verified token belongs to.
type Claims struct {
	TenantID core.ID
	Email    string
	Role     core.Role
}

// tokenClaims is the JWT wire shape.
type tokenClaims struct {
	Email string `json:"email"`
	Role  string `json:"role"`
	jwt.RegisteredClaims
}

// Authenticator issues and verifies session tokens.
type Authenticator struct {
	secret []byte
	ttl    time.Duration
}

// Option configures an Authenticator.
type Option func(*Authenticator)

// WithTokenTTL overrides the session lifetime. Negative values issue
// already-expired tokens, which tests rely on.
func WithTokenTTL(ttl time.Duration) Option {
	return func(a *Authenticator) {
		if ttl != 0 {
			a.ttl = ttl
		}
	}
}

// NewAuthenticator creates an Authenticator signing with secret.
func NewAuthenticator(secret string, opts ...Option) (*Authenticator, error) {
	if secret == "" {
		return nil, ErrSecretRequired
	}
	a := &Authenticator{
		secret: []byte(secret),
		ttl:    DefaultTokenTTL,
	}
	for _, opt := range opts {
		opt(a)
	}
	return a, nil
}

// Issue signs a session token for the tenant.
func (a *Authenticator) Issue(tenant *core.Tenant) (string, error) {
	now := time.Now()
	claims := tokenClaims{
		Email: tenant.Email,
		Role:  tenant.Role.String(),
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   fmt.Sprintf("%d", tenant.Id),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(a.ttl)),
		},
	}
	return jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(a.secret)
}

// Verify validates a token and returns the tenant identity it carries.
// Returns ErrExpiredToken for stale tokens and ErrInvalidToken for
// everything else that fails validation.
func (a *Authenticator) Verify(tokenString string) (*Claims, error) {
	var claims tokenClaims
	token, err := jwt.ParseWithClaims(tokenString, &claims, func(token *jwt.Token) (any, error) {
		if _, ok := token.Method.(*jwt.SigningMethodHMAC); !ok {
			return nil, fmt.Errorf("unexpected signing method %v", token.Header["alg"])
		}
		return a.secret, nil
	})
	if err != nil {
		if errors.Is(err, jwt.ErrTokenExpired) {
			return nil, fmt.Errorf("%w: %w", ErrExpiredToken, err)
		}
		return nil, fmt.Errorf("%w: %w", ErrInvalidToken, err)
	}
	if !token.Valid {
		return nil, ErrInvalidToken
	}

	var tenantID core.ID
	if _, err := fmt.Sscanf(claims.Subject, "%d", &tenantID); err != nil || tenantID == 0 {
		return nil, fmt.Errorf("%w: bad subject %q", ErrInvalidToken, claims.Subject)
	}

	role := core.RoleUser
	if claims.Role == core.RoleAdmin.String() {
		role = core.RoleAdmin
	}

	return &Claims{
		TenantID: tenantID,
		Email:    claims.Email,
		Role:     role,
	}, nil
}
