// internal/auth/validator_test.go
package auth

import (
	"context"
	"crypto/rand"
	"crypto/rsa"
	"encoding/base64"
	"encoding/json"
	"math/big"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// jwksServer publie la clé publique d'un couple RSA de test
func jwksServer(t *testing.T, pub *rsa.PublicKey, kid string) *httptest.Server {
	t.Helper()
	doc := map[string]interface{}{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": kid,
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(pub.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(pub.E)).Bytes()),
		}},
	}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != jwksPath {
			http.NotFound(w, r)
			return
		}
		json.NewEncoder(w).Encode(doc)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, kid, issuer, sub string, exp time.Time) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, jwt.MapClaims{
		"sub": sub,
		"iss": issuer,
		"aud": expectedAud,
		"exp": exp.Unix(),
		"iat": time.Now().Unix(),
	})
	token.Header["kid"] = kid
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func TestValidateRSAToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, &key.PublicKey, "key-1")

	v := NewValidator(srv.URL, "")
	expiry := time.Now().Add(time.Hour).Truncate(time.Second)
	token := signToken(t, key, "key-1", srv.URL+issuerPath, "user-123", expiry)

	claims, err := v.Validate(context.Background(), token)
	require.NoError(t, err)
	assert.Equal(t, "user-123", claims.UserID)
	assert.WithinDuration(t, expiry, claims.Expiry, time.Second)

	// Deuxième validation servie depuis le cache de clés
	_, err = v.Validate(context.Background(), token)
	assert.NoError(t, err)
}

func TestValidateExpiredToken(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, &key.PublicKey, "key-1")

	v := NewValidator(srv.URL, "")
	token := signToken(t, key, "key-1", srv.URL+issuerPath, "user-123", time.Now().Add(-time.Hour))

	_, err = v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenExpired)
}

func TestValidateWrongIssuer(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, &key.PublicKey, "key-1")

	v := NewValidator(srv.URL, "")
	token := signToken(t, key, "key-1", "https://evil.example", "user-123", time.Now().Add(time.Hour))

	_, err = v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateUnknownKey(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, &key.PublicKey, "key-1")

	other, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)

	v := NewValidator(srv.URL, "")
	token := signToken(t, other, "key-2", srv.URL+issuerPath, "user-123", time.Now().Add(time.Hour))

	_, err = v.Validate(context.Background(), token)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateHS256SharedSecret(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.NotFound(w, r)
	}))
	t.Cleanup(srv.Close)

	v := NewValidator(srv.URL, "super-secret")
	token := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "user-456",
		"iss": srv.URL + issuerPath,
		"aud": expectedAud,
		"exp": time.Now().Add(time.Hour).Unix(),
	})
	signed, err := token.SignedString([]byte("super-secret"))
	require.NoError(t, err)

	claims, err := v.Validate(context.Background(), signed)
	require.NoError(t, err)
	assert.Equal(t, "user-456", claims.UserID)

	// Mauvais secret rejeté
	bad, err := token.SignedString([]byte("wrong"))
	require.NoError(t, err)
	_, err = v.Validate(context.Background(), bad)
	assert.ErrorIs(t, err, ErrTokenInvalid)
}

func TestValidateGarbage(t *testing.T) {
	v := NewValidator("http://localhost:0", "")
	_, err := v.Validate(context.Background(), "not-a-token")
	assert.ErrorIs(t, err, ErrTokenInvalid)
}
