package middleware

import (
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Yulikepython/drive-cleaner/internal/model"
)

type stubValidator map[string]*model.AuthClaims

func (s stubValidator) ValidateToken(token string) (*model.AuthClaims, error) {
	claims, ok := s[token]
	if !ok {
		return nil, errors.New("invalid token")
	}
	return claims, nil
}

func TestAuthMiddleware(t *testing.T) {
	auth := NewAuthMiddleware(stubValidator{
		"viewer-token":   {UserID: "v", Role: model.RoleViewer},
		"operator-token": {UserID: "o", Role: model.RoleOperator},
	})

	var seen *model.AuthClaims
	handler := auth.RequireAuth(auth.RequireRoles("Operator")(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = ClaimsFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	})))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic operator-token", http.StatusUnauthorized},
		{"empty token", "Bearer ", http.StatusUnauthorized},
		{"unknown token", "Bearer nope", http.StatusUnauthorized},
		{"insufficient role", "Bearer viewer-token", http.StatusForbidden},
		{"allowed", "bearer operator-token", http.StatusNoContent},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/v1/runs/discover", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()

			handler.ServeHTTP(rec, req)

			assert.Equal(t, tt.status, rec.Code)
			if tt.status != http.StatusNoContent {
				assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))
				assert.Contains(t, rec.Body.String(), `"success":false`)
			}
		})
	}

	require.NotNil(t, seen)
	assert.Equal(t, "o", seen.UserID)
}

func TestRequireRoles_WithoutAuth(t *testing.T) {
	auth := NewAuthMiddleware(stubValidator{})
	handler := auth.RequireRoles(model.RoleViewer)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
	}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, http.StatusUnauthorized, rec.Code)
}

func TestSecurityHeaders(t *testing.T) {
	handler := SecurityHeaders(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	rec := httptest.NewRecorder()
	handler.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/", nil))

	assert.Equal(t, "nosniff", rec.Header().Get("X-Content-Type-Options"))
	assert.Equal(t, "DENY", rec.Header().Get("X-Frame-Options"))
	assert.Equal(t, "no-store", rec.Header().Get("Cache-Control"))
}
