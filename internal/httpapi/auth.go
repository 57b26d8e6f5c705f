package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsewire/broker/internal/apperrors"
	"github.com/pulsewire/broker/internal/channel"
	"github.com/pulsewire/broker/internal/signature"
)

// authRequest is the body of POST /apps/:app_id/auth.
type authRequest struct {
	SocketID    string          `json:"socket_id" binding:"required"`
	ChannelName string          `json:"channel_name" binding:"required"`
	ChannelData json.RawMessage `json:"channel_data,omitempty"`
}

type authResponse struct {
	Auth string `json:"auth"`
}

// auth issues a subscription-authorization token for private/presence
// channels and rejects attempts to authenticate a public channel.
func (s *Server) auth(c *gin.Context) {
	appID := c.Param("app_id")
	a, ok := s.Apps.Get(appID)
	if !ok {
		writeErr(c, apperrors.ApplicationNotFoundErr(appID))
		return
	}

	var req authRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperrors.New(apperrors.BadRequest, "invalid auth request body"))
		return
	}

	if channel.TypeOf(req.ChannelName) == channel.Public {
		writeErr(c, apperrors.New(apperrors.BadRequest, "Public channels don't need authentication"))
		return
	}

	channelData := ""
	if len(req.ChannelData) > 0 {
		channelData = string(req.ChannelData)
	}

	auth := signature.Sign(a.Key, a.Secret, req.SocketID, req.ChannelName, channelData)
	c.JSON(http.StatusOK, authResponse{Auth: auth})
}
