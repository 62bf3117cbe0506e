package auth_test

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/hassan3xl/taxation-backend/auth"
	"github.com/hassan3xl/taxation-backend/generic"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newService(t *testing.T) *auth.Service {
	svc, err := auth.NewService("test-secret", time.Hour)
	require.NoError(t, err)
	return svc
}

func TestTokenRoundTrip(t *testing.T) {
	svc := newService(t)
	agent := generic.Actor{ID: "agent-17", Role: generic.RoleAgent}

	token, err := svc.GenerateToken(agent)
	require.NoError(t, err)

	got, err := svc.ValidateToken(token)
	require.NoError(t, err)
	assert.Equal(t, agent, got)

	// "Bearer " prefix is accepted
	got, err = svc.ValidateToken("Bearer " + token)
	require.NoError(t, err)
	assert.Equal(t, agent, got)
}

func TestGenerateToken_RejectsBadActor(t *testing.T) {
	svc := newService(t)

	_, err := svc.GenerateToken(generic.Actor{Role: generic.RoleAdmin})
	assert.ErrorIs(t, err, generic.ErrValidation)

	_, err = svc.GenerateToken(generic.Actor{ID: "x", Role: "superuser"})
	assert.ErrorIs(t, err, generic.ErrValidation)
}

func TestValidateToken_Expired(t *testing.T) {
	svc := newService(t)
	issued := time.Date(2025, 3, 1, 8, 0, 0, 0, time.UTC)
	svc.Now = func() time.Time { return issued }

	token, err := svc.GenerateToken(generic.Actor{ID: "a", Role: generic.RoleAdmin})
	require.NoError(t, err)

	// WHEN: Two hours pass with a one hour expiry
	svc.Now = func() time.Time { return issued.Add(2 * time.Hour) }

	_, err = svc.ValidateToken(token)
	assert.ErrorIs(t, err, auth.ErrExpiredToken)
}

func TestValidateToken_Invalid(t *testing.T) {
	svc := newService(t)
	other, err := auth.NewService("other-secret", time.Hour)
	require.NoError(t, err)

	foreign, err := other.GenerateToken(generic.Actor{ID: "a", Role: generic.RoleAdmin})
	require.NoError(t, err)

	noneToken, err := jwt.NewWithClaims(jwt.SigningMethodNone, jwt.MapClaims{
		"sub": "a", "role": "admin", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString(jwt.UnsafeAllowNoneSignatureType)
	require.NoError(t, err)

	badRole, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a", "role": "mayor", "exp": time.Now().Add(time.Hour).Unix(),
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	noExpiry, err := jwt.NewWithClaims(jwt.SigningMethodHS256, jwt.MapClaims{
		"sub": "a", "role": "admin",
	}).SignedString([]byte("test-secret"))
	require.NoError(t, err)

	tests := []struct {
		name  string
		token string
	}{
		{"garbage", "not.a.jwt"},
		{"wrong secret", foreign},
		{"none algorithm", noneToken},
		{"unknown role", badRole},
		{"no expiry", noExpiry},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := svc.ValidateToken(tt.token)
			assert.ErrorIs(t, err, auth.ErrInvalidToken)
		})
	}

	_, err = svc.ValidateToken("")
	assert.ErrorIs(t, err, auth.ErrMissingToken)
}

func TestExtractTokenFromHeader(t *testing.T) {
	assert.Equal(t, "abc", auth.ExtractTokenFromHeader("Bearer abc"))
	assert.Equal(t, "abc", auth.ExtractTokenFromHeader("bearer abc"))
	assert.Equal(t, "", auth.ExtractTokenFromHeader("Basic abc"))
	assert.Equal(t, "", auth.ExtractTokenFromHeader("abc"))
	assert.Equal(t, "", auth.ExtractTokenFromHeader(""))
}

func TestMiddleware_Authenticate(t *testing.T) {
	svc := newService(t)
	mw := auth.NewMiddleware(svc)

	var seen generic.Actor
	handler := mw.Authenticate(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = auth.ActorFromContext(r.Context())
		w.WriteHeader(http.StatusOK)
	}))

	t.Run("missing header", func(t *testing.T) {
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, httptest.NewRequest(http.MethodGet, "/api/vehicles", nil))

		assert.Equal(t, http.StatusUnauthorized, rr.Code)
		var body map[string]string
		require.NoError(t, json.NewDecoder(rr.Body).Decode(&body))
		assert.Equal(t, "unauthorized", body["code"])
	})

	t.Run("invalid token", func(t *testing.T) {
		req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
		req.Header.Set("Authorization", "Bearer junk")
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)
		assert.Equal(t, http.StatusUnauthorized, rr.Code)
	})

	t.Run("valid token", func(t *testing.T) {
		token, err := svc.GenerateToken(generic.Actor{ID: "agent-1", Role: generic.RoleAgent})
		require.NoError(t, err)

		req := httptest.NewRequest(http.MethodGet, "/api/vehicles", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rr := httptest.NewRecorder()
		handler.ServeHTTP(rr, req)

		assert.Equal(t, http.StatusOK, rr.Code)
		assert.Equal(t, "agent-1", seen.ID)
		assert.Equal(t, generic.RoleAgent, seen.Role)
	})
}

func TestMiddleware_RequireRole(t *testing.T) {
	mw := auth.NewMiddleware(newService(t))
	handler := mw.RequireRole(generic.RoleAgent)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		actor  *generic.Actor
		status int
	}{
		{"no actor", nil, http.StatusUnauthorized},
		{"taxpayer", &generic.Actor{ID: "t", Role: generic.RoleTaxPayer}, http.StatusForbidden},
		{"agent", &generic.Actor{ID: "g", Role: generic.RoleAgent}, http.StatusNoContent},
		{"admin always passes", &generic.Actor{ID: "a", Role: generic.RoleAdmin}, http.StatusNoContent},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
			if tt.actor != nil {
				req = req.WithContext(auth.WithActor(req.Context(), *tt.actor))
			}
			rr := httptest.NewRecorder()
			handler.ServeHTTP(rr, req)
			assert.Equal(t, tt.status, rr.Code)
		})
	}
}
