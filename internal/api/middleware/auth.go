package middleware

import (
	"crypto/hmac"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/kundan-thakur61/mobilecoverBackend/internal/config"
	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// AdminAuth guards the admin surface with a bearer key. Prefers the bcrypt
// hash from config; the plaintext key is a dev fallback compared in constant
// time.
func AdminAuth(cfg *config.Config, logger *zap.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		header := c.GetHeader("Authorization")
		if !strings.HasPrefix(header, "Bearer ") {
			abortUnauthorized(c, &errors.ErrUnauthorized{Message: "missing bearer token"})
			return
		}
		token := strings.TrimPrefix(header, "Bearer ")

		if !adminTokenValid(cfg, token) {
			logger.Warn("Admin auth rejected",
				zap.String("path", c.Request.URL.Path),
				zap.String("remote", c.ClientIP()),
			)
			abortUnauthorized(c, &errors.ErrUnauthorized{Message: "invalid credentials"})
			return
		}
		c.Next()
	}
}

func abortUnauthorized(c *gin.Context, err *errors.ErrUnauthorized) {
	c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": err.Error()})
}

func adminTokenValid(cfg *config.Config, token string) bool {
	if cfg.AdminAPIKeyHash != "" {
		return bcrypt.CompareHashAndPassword([]byte(cfg.AdminAPIKeyHash), []byte(token)) == nil
	}
	if cfg.AdminAPIKey != "" {
		return hmac.Equal([]byte(cfg.AdminAPIKey), []byte(token))
	}
	return false
}
