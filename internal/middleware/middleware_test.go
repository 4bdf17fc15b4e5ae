package middleware

import (
	"crypto/sha256"
	"encoding/hex"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

func okHandler(c echo.Context) error {
	return c.String(http.StatusOK, "ok")
}

func serve(t *testing.T, mw echo.MiddlewareFunc, token string) *httptest.ResponseRecorder {
	t.Helper()
	e := echo.New()
	req := httptest.NewRequest(http.MethodPost, "/api/payments", nil)
	if token != "" {
		req.Header.Set("Token", token)
	}
	rec := httptest.NewRecorder()
	c := e.NewContext(req, rec)
	require.NoError(t, mw(okHandler)(c))
	return rec
}

func TestAPIAuth(t *testing.T) {
	dir := t.TempDir()
	hashFile := filepath.Join(dir, "hash.txt")
	sum := sha256.Sum256([]byte("from-file"))
	require.NoError(t, os.WriteFile(hashFile, []byte(hex.EncodeToString(sum[:])+"\n"), 0o600))

	mw := APIAuth("api-key", hashFile)

	tests := []struct {
		name   string
		token  string
		status int
	}{
		{"missing", "", http.StatusUnauthorized},
		{"api key", "api-key", http.StatusOK},
		{"hashed file token", "from-file", http.StatusOK},
		{"wrong", "nope", http.StatusUnauthorized},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.status, serve(t, mw, tt.token).Code)
		})
	}
}

func TestAPIAuth_EmptyKeyNeverMatches(t *testing.T) {
	mw := APIAuth("", filepath.Join(t.TempDir(), "missing.txt"))
	assert.Equal(t, http.StatusUnauthorized, serve(t, mw, "anything").Code)
}

func TestRequestLogger_SetsRequestID(t *testing.T) {
	rec := serve(t, RequestLogger(zap.NewNop()), "")
	assert.Equal(t, http.StatusOK, rec.Code)
	assert.NotEmpty(t, rec.Header().Get(RequestIDHeader))
}

func TestContentSecurityPolicy(t *testing.T) {
	rec := serve(t, ContentSecurityPolicy("default-src 'self'"), "")
	assert.Equal(t, "default-src 'self'", rec.Header().Get("Content-Security-Policy"))
}
