package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsewire/broker/internal/apperrors"
)

// writeErr converts any error into the standard {error, message} body and
// its mapped HTTP status.
func writeErr(c *gin.Context, err error) {
	if appErr, ok := err.(*apperrors.Error); ok {
		c.JSON(appErr.StatusCode(), appErr.ToResponse())
		return
	}
	wrapped := apperrors.Wrap(apperrors.Internal, "internal error", err)
	c.JSON(wrapped.StatusCode(), wrapped.ToResponse())
}
