package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testKey = "operator-secret"

func protected(apiKey string) http.Handler {
	return AdminAuth(apiKey)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusNoContent)
	}))
}

func TestAdminAuthDisabledWithoutKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/admin/stake-policy", nil)
	rec := httptest.NewRecorder()
	protected("").ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminAuthRejectsMissingCredentials(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/admin/stake-policy", nil)
	rec := httptest.NewRecorder()
	protected(testKey).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Equal(t, `Bearer realm="admin"`, rec.Header().Get("WWW-Authenticate"))
	assert.JSONEq(t, `{"error":"missing operator credentials"}`, rec.Body.String())
}

func TestAdminAuthRejectsWrongKey(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/admin/stake-policy", nil)
	req.Header.Set("Authorization", "Bearer wrong")
	rec := httptest.NewRecorder()
	protected(testKey).ServeHTTP(rec, req)

	require.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.JSONEq(t, `{"error":"invalid operator credentials"}`, rec.Body.String())
}

func TestAdminAuthAcceptsBearerToken(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/admin/stake-policy", nil)
	req.Header.Set("Authorization", "Bearer "+testKey)
	rec := httptest.NewRecorder()
	protected(testKey).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}

func TestAdminAuthAcceptsAPIKeyHeader(t *testing.T) {
	req := httptest.NewRequest(http.MethodPut, "/api/admin/stake-policy", nil)
	req.Header.Set("X-API-Key", testKey)
	rec := httptest.NewRecorder()
	protected(testKey).ServeHTTP(rec, req)

	assert.Equal(t, http.StatusNoContent, rec.Code)
}
