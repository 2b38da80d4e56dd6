package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
)

func newAuthRouter(cfg *config.Config) *gin.Engine {
	gin.SetMode(gin.TestMode)
	router := gin.New()
	router.GET("/admin/ping", AdminAuth(cfg, zap.NewNop()), func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{"status": "ok"})
	})
	return router
}

func doAuthed(router *gin.Engine, authorization string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(http.MethodGet, "/admin/ping", nil)
	if authorization != "" {
		req.Header.Set("Authorization", authorization)
	}
	w := httptest.NewRecorder()
	router.ServeHTTP(w, req)
	return w
}

func TestAdminAuthPlainKey(t *testing.T) {
	router := newAuthRouter(&config.Config{AdminAPIKey: "dev-key"})

	assert.Equal(t, http.StatusOK, doAuthed(router, "Bearer dev-key").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuthed(router, "Bearer wrong-key").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuthed(router, "").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuthed(router, "dev-key").Code, "bearer scheme required")
}

func TestAdminAuthBcryptHashPreferred(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("prod-key"), bcrypt.MinCost)
	require.NoError(t, err)
	// With a hash configured the plaintext fallback must not apply.
	router := newAuthRouter(&config.Config{AdminAPIKeyHash: string(hash), AdminAPIKey: "other-key"})

	assert.Equal(t, http.StatusOK, doAuthed(router, "Bearer prod-key").Code)
	assert.Equal(t, http.StatusUnauthorized, doAuthed(router, "Bearer other-key").Code)
}

func TestAdminAuthNoKeysConfigured(t *testing.T) {
	router := newAuthRouter(&config.Config{})
	assert.Equal(t, http.StatusUnauthorized, doAuthed(router, "Bearer anything").Code)
}
