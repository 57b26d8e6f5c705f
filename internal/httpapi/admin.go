package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsewire/broker/internal/app"
	"github.com/pulsewire/broker/internal/apperrors"
)

// createAppRequest is the body of POST /admin/apps, which registers a new
// tenant at runtime in addition to whatever applications were bootstrapped
// at process start.
type createAppRequest struct {
	ID     string `json:"id" binding:"required"`
	Key    string `json:"key" binding:"required"`
	Secret string `json:"secret" binding:"required"`
}

func (s *Server) createApp(c *gin.Context) {
	var req createAppRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperrors.New(apperrors.BadRequest, "invalid application request body"))
		return
	}

	if err := s.Apps.Create(app.New(req.ID, req.Key, req.Secret)); err != nil {
		writeErr(c, apperrors.New(apperrors.BadRequest, err.Error()))
		return
	}
	c.Status(http.StatusCreated)
}

// listApps returns every registered application id. Keys and secrets are
// never exposed over this surface.
func (s *Server) listApps(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"apps": s.Apps.List()})
}
