package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/lestrrat-go/jwx/v2/jwa"
	"github.com/lestrrat-go/jwx/v2/jwk"
	"github.com/lestrrat-go/jwx/v2/jwt"
)

const (
	testIssuer   = "https://test-issuer.com"
	testAudience = "test-audience"
	testKeyID    = "test-key-id"
)

func createJWKS(t testing.TB, publicKey *rsa.PublicKey) jwk.Set {
	t.Helper()

	key, err := jwk.FromRaw(publicKey)
	if err != nil {
		t.Fatalf("jwk from public key: %v", err)
	}
	if err := key.Set(jwk.KeyIDKey, testKeyID); err != nil {
		t.Fatal(err)
	}
	if err := key.Set(jwk.AlgorithmKey, jwa.RS256); err != nil {
		t.Fatal(err)
	}

	keyset := jwk.NewSet()
	if err := keyset.AddKey(key); err != nil {
		t.Fatal(err)
	}
	return keyset
}

func createTestJWT(t testing.TB, privateKey *rsa.PrivateKey, issuer, audience, subject string, expiresIn time.Duration, claims map[string]any) string {
	t.Helper()

	token := jwt.New()
	set := map[string]any{
		jwt.IssuerKey:     issuer,
		jwt.AudienceKey:   audience,
		jwt.SubjectKey:    subject,
		jwt.IssuedAtKey:   time.Now(),
		jwt.ExpirationKey: time.Now().Add(expiresIn),
	}
	for k, v := range claims {
		set[k] = v
	}
	for k, v := range set {
		if err := token.Set(k, v); err != nil {
			t.Fatalf("set %s: %v", k, err)
		}
	}

	key, err := jwk.FromRaw(privateKey)
	if err != nil {
		t.Fatal(err)
	}
	if err := key.Set(jwk.KeyIDKey, testKeyID); err != nil {
		t.Fatal(err)
	}

	signed, err := jwt.Sign(token, jwt.WithKey(jwa.RS256, key))
	if err != nil {
		t.Fatalf("sign: %v", err)
	}
	return string(signed)
}

func setupTestValidator(t testing.TB) (*JWTValidator, *rsa.PrivateKey) {
	t.Helper()

	privateKey, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatalf("Failed to generate key pair: %v", err)
	}
	keyset := createJWKS(t, &privateKey.PublicKey)

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/.well-known/jwks.json" {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		_ = json.NewEncoder(w).Encode(keyset)
	}))
	t.Cleanup(server.Close)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	validator, err := NewJWTValidator(ctx, server.URL+"/.well-known/jwks.json", testIssuer, testAudience)
	if err != nil {
		t.Fatalf("Failed to create validator: %v", err)
	}
	return validator, privateKey
}

// staticValidator accepts exactly one token.
type staticValidator struct {
	token  string
	claims *Claims
}

func (s staticValidator) ValidateToken(_ context.Context, token string) (*Claims, error) {
	if token != s.token {
		return nil, ErrInvalidToken
	}
	return s.claims, nil
}
