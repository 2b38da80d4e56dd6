package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/kundan-thakur61/mobilecoverBackend/pkg/errors"
)

// respondError maps service errors onto HTTP statuses. Anything untyped is a
// 500 with a generic body; details go to the log, not the client.
func respondError(c *gin.Context, logger *zap.Logger, err error) {
	switch e := err.(type) {
	case *errors.ErrNotFound:
		c.JSON(http.StatusNotFound, gin.H{"error": e.Error()})
	case *errors.ErrAmbiguousReference:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error()})
	case *errors.ErrValidation:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Message, "fields": e.Fields})
	case *errors.ErrPreconditionFailed:
		c.JSON(http.StatusBadRequest, gin.H{"error": e.Error()})
	case *errors.ErrAlreadyShipped:
		c.JSON(http.StatusConflict, gin.H{"error": e.Error(), "tracking_code": e.TrackingCode})
	case *errors.ErrUnauthorized:
		c.JSON(http.StatusUnauthorized, gin.H{"error": e.Error()})
	default:
		logger.Error("Request failed", zap.String("path", c.Request.URL.Path), zap.Error(err))
		c.JSON(http.StatusInternalServerError, gin.H{"error": "internal error"})
	}
}
