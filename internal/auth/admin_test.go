package auth

import (
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAuthMiddleware(t *testing.T) {
	cfg := NewAdminConfig("s3cret")
	valid, err := cfg.NewToken("ops", time.Minute)
	require.NoError(t, err)
	expired, err := cfg.NewToken("ops", -time.Minute)
	require.NoError(t, err)
	otherKey, err := NewAdminConfig("other").NewToken("ops", time.Minute)
	require.NoError(t, err)
	player, err := jwt.NewWithClaims(jwt.SigningMethodHS256, AdminClaims{
		Role: "player",
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    issuer,
			ExpiresAt: jwt.NewNumericDate(time.Now().Add(time.Minute)),
		},
	}).SignedString([]byte("s3cret"))
	require.NoError(t, err)

	var seen *AdminClaims
	h := cfg.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{name: "missing header", status: http.StatusUnauthorized},
		{name: "not bearer", header: "Basic abc", status: http.StatusUnauthorized},
		{name: "garbage", header: "Bearer abc", status: http.StatusUnauthorized},
		{name: "expired", header: "Bearer " + expired, status: http.StatusUnauthorized},
		{name: "wrong key", header: "Bearer " + otherKey, status: http.StatusUnauthorized},
		{name: "wrong role", header: "Bearer " + player, status: http.StatusUnauthorized},
		{name: "valid", header: "Bearer " + valid, status: http.StatusOK},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			seen = nil
			req := httptest.NewRequest(http.MethodGet, "/api/sessions", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
			if tt.status == http.StatusOK {
				require.NotNil(t, seen)
				assert.Equal(t, "ops", seen.Subject)
			} else {
				assert.Nil(t, seen)
			}
		})
	}
}

func TestAuthMiddleware_NotConfigured(t *testing.T) {
	cfg := NewAdminConfig("")
	h := cfg.AuthMiddleware(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		t.Fatal("handler must not run")
	}))
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/sessions", nil))
	assert.Equal(t, http.StatusServiceUnavailable, rec.Code)

	_, err := cfg.NewToken("ops", time.Minute)
	assert.ErrorIs(t, err, ErrNotConfigured)
}
