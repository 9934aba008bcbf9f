package api

import (
	"errors"
	"net/http"

	"github.com/Domenick1991/airsettle/internal/apperr"
	"github.com/Domenick1991/airsettle/internal/gateway"
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"
)

// writeError answers with {"error": ...}. Only client errors carry their
// own message; everything else gets fallback and is logged.
func writeError(c *gin.Context, log *zap.Logger, err error, fallback string) {
	status := apperr.HTTPStatus(err)
	if status < http.StatusInternalServerError {
		c.JSON(status, gin.H{"error": err.Error()})
		return
	}

	fields := []zap.Field{zap.String("kind", apperr.Kind(err)), zap.Error(err)}
	var gwErr *gateway.Error
	if errors.As(err, &gwErr) {
		fields = append(fields, zap.Int("upstream_status", gwErr.StatusCode), zap.ByteString("upstream_body", gwErr.Body))
	}
	log.Error(fallback, fields...)
	c.JSON(status, gin.H{"error": fallback})
}
