// Copyright 2025 Kadir Pekel
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

package auth

import (
	"context"
	"fmt"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

// DefaultRefreshInterval is the minimum JWKS refresh interval.
const DefaultRefreshInterval = 15 * time.Minute

// TokenValidator turns a raw bearer token into claims.
type TokenValidator interface {
	ValidateToken(ctx context.Context, token string) (*Claims, error)
}

// JWTValidator validates JWT tokens from external auth providers.
// It fetches and caches the provider's JWKS and refreshes it in the background.
type JWTValidator struct {
	jwksURL  string
	cache    *jwk.Cache
	issuer   string
	audience string
	skew     time.Duration
}

// ValidatorOption configures a JWTValidator.
type ValidatorOption func(*validatorOptions)

type validatorOptions struct {
	refresh time.Duration
	skew    time.Duration
}

// WithRefreshInterval sets the minimum JWKS refresh interval.
func WithRefreshInterval(d time.Duration) ValidatorOption {
	return func(o *validatorOptions) {
		if d > 0 {
			o.refresh = d
		}
	}
}

// WithClockSkew tolerates clock drift when checking exp/nbf/iat.
func WithClockSkew(d time.Duration) ValidatorOption {
	return func(o *validatorOptions) {
		o.skew = d
	}
}

// NewJWTValidator registers jwksURL with a refreshing cache and performs the
// initial fetch. The background refresh stops when ctx is cancelled.
func NewJWTValidator(ctx context.Context, jwksURL, issuer, audience string, opts ...ValidatorOption) (*JWTValidator, error) {
	o := &validatorOptions{refresh: DefaultRefreshInterval}
	for _, opt := range opts {
		opt(o)
	}

	cache := jwk.NewCache(ctx)
	if err := cache.Register(jwksURL, jwk.WithMinRefreshInterval(o.refresh)); err != nil {
		return nil, fmt.Errorf("failed to register JWKS URL: %w", err)
	}

	if _, err := cache.Refresh(ctx, jwksURL); err != nil {
		return nil, fmt.Errorf("failed to fetch JWKS from %s: %w", jwksURL, err)
	}

	return &JWTValidator{
		jwksURL:  jwksURL,
		cache:    cache,
		issuer:   issuer,
		audience: audience,
		skew:     o.skew,
	}, nil
}

// ValidateToken verifies signature, expiry, issuer and audience, then
// extracts claims.
func (v *JWTValidator) ValidateToken(ctx context.Context, tokenString string) (*Claims, error) {
	keyset, err := v.cache.Get(ctx, v.jwksURL)
	if err != nil {
		return nil, fmt.Errorf("failed to get JWKS: %w", err)
	}

	parseOpts := []jwt.ParseOption{
		jwt.WithKeySet(keyset),
		jwt.WithValidate(true),
		jwt.WithAcceptableSkew(v.skew),
	}
	if v.issuer != "" {
		parseOpts = append(parseOpts, jwt.WithIssuer(v.issuer))
	}
	if v.audience != "" {
		parseOpts = append(parseOpts, jwt.WithAudience(v.audience))
	}

	token, err := jwt.Parse([]byte(tokenString), parseOpts...)
	if err != nil {
		return nil, ErrInvalidToken.WithCause(err)
	}

	return claimsFromToken(ctx, token), nil
}

var registeredClaims = map[string]bool{
	"sub": true, "email": true, "role": true, "tenant_id": true,
	"iss": true, "aud": true, "exp": true, "iat": true, "nbf": true, "jti": true,
}

func claimsFromToken(ctx context.Context, token jwt.Token) *Claims {
	claims := &Claims{
		Subject: token.Subject(),
		Custom:  make(map[string]any),
	}

	claims.Email = stringClaim(token, "email")
	claims.Role = stringClaim(token, "role")
	claims.TenantID = stringClaim(token, "tenant_id")

	for iter := token.Iterate(ctx); iter.Next(ctx); {
		pair := iter.Pair()
		key, ok := pair.Key.(string)
		if !ok || registeredClaims[key] {
			continue
		}
		claims.Custom[key] = pair.Value
	}

	return claims
}

func stringClaim(token jwt.Token, name string) string {
	if v, ok := token.Get(name); ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return ""
}
