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

	"github.com/gin-gonic/gin"
	"github.com/golang-jwt/jwt/v5"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postora/postora-server/internal/config"
)

const (
	testIssuer = "https://auth.postora.test/realms/postora"
	testKID    = "test-key"
)

func jwksServer(t *testing.T, key *rsa.PrivateKey) *httptest.Server {
	t.Helper()
	body, err := json.Marshal(map[string]any{
		"keys": []map[string]string{{
			"kty": "RSA",
			"kid": testKID,
			"alg": "RS256",
			"use": "sig",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}},
	})
	require.NoError(t, err)
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write(body)
	}))
	t.Cleanup(srv.Close)
	return srv
}

func signToken(t *testing.T, key *rsa.PrivateKey, claims jwt.MapClaims) string {
	t.Helper()
	token := jwt.NewWithClaims(jwt.SigningMethodRS256, claims)
	token.Header["kid"] = testKID
	signed, err := token.SignedString(key)
	require.NoError(t, err)
	return signed
}

func newRouter(t *testing.T, cfg *config.Config) *gin.Engine {
	t.Helper()
	gin.SetMode(gin.TestMode)
	v, err := NewValidator(context.Background(), cfg, zerolog.Nop())
	require.NoError(t, err)
	t.Cleanup(v.Close)

	r := gin.New()
	r.Use(v.Middleware())
	r.GET("/whoami", func(c *gin.Context) {
		owner := OwnerID(c)
		if owner == nil {
			c.String(http.StatusOK, "anonymous")
			return
		}
		c.String(http.StatusOK, *owner)
	})
	return r
}

func TestMiddleware_Disabled(t *testing.T) {
	r := newRouter(t, &config.Config{})

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/whoami", nil))

	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "anonymous", w.Body.String())
}

func TestMiddleware_Enabled(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	require.NoError(t, err)
	srv := jwksServer(t, key)
	r := newRouter(t, &config.Config{
		AuthEnabled: true,
		AuthIssuer:  testIssuer,
		AuthJWKSURL: srv.URL,
		Account:     "postora-api",
	})

	valid := jwt.MapClaims{
		"iss": testIssuer,
		"sub": "user-123",
		"aud": "postora-api",
		"exp": time.Now().Add(time.Hour).Unix(),
	}

	tests := []struct {
		name   string
		header string
		status int
		body   string
	}{
		{"valid token", "Bearer " + signToken(t, key, valid), http.StatusOK, "user-123"},
		{"missing token", "", http.StatusUnauthorized, ""},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized, ""},
		{"wrong issuer", "Bearer " + signToken(t, key, jwt.MapClaims{
			"iss": "https://evil.test", "sub": "user-123", "aud": "postora-api", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized, ""},
		{"expired", "Bearer " + signToken(t, key, jwt.MapClaims{
			"iss": testIssuer, "sub": "user-123", "aud": "postora-api", "exp": time.Now().Add(-time.Minute).Unix(),
		}), http.StatusUnauthorized, ""},
		{"no subject", "Bearer " + signToken(t, key, jwt.MapClaims{
			"iss": testIssuer, "aud": "postora-api", "exp": time.Now().Add(time.Hour).Unix(),
		}), http.StatusUnauthorized, ""},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/whoami", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			w := httptest.NewRecorder()
			r.ServeHTTP(w, req)

			assert.Equal(t, tt.status, w.Code)
			if tt.body != "" {
				assert.Equal(t, tt.body, w.Body.String())
			}
		})
	}
}

func TestBearerToken(t *testing.T) {
	assert.Equal(t, "abc", bearerToken("bearer abc"))
	assert.Equal(t, "", bearerToken("Bearer"))
	assert.Equal(t, "", bearerToken(""))
}
