package httpapi

import (
	"encoding/json"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsewire/broker/internal/apperrors"
	"github.com/pulsewire/broker/internal/logger"
	"github.com/pulsewire/broker/internal/protocol"
)

// publishRequest is the body of POST /apps/:app_id/events.
type publishRequest struct {
	Name     string          `json:"name" binding:"required"`
	Data     json.RawMessage `json:"data" binding:"required"`
	Channels []string        `json:"channels"`
	Channel  string          `json:"channel,omitempty"`
	SocketID string          `json:"socket_id,omitempty"`
}

// adminSignatureFields are the query parameters the publish endpoint
// requires to be present. auth_key is additionally checked against the
// target application; auth_signature itself is not cryptographically
// verified.
var adminSignatureFields = []string{"auth_key", "auth_timestamp", "auth_version", "body_md5", "auth_signature"}

// publishEvents fans an event out to every channel named in the request
// body. Channels are never created here: it stops with a 404 at the first
// channel that does not exist, having already broadcast to every channel
// before it.
func (s *Server) publishEvents(c *gin.Context) {
	appID := c.Param("app_id")
	a, ok := s.Apps.Get(appID)
	if !ok {
		writeErr(c, apperrors.ApplicationNotFoundErr(appID))
		return
	}

	for _, field := range adminSignatureFields {
		if c.Query(field) == "" {
			writeErr(c, apperrors.New(apperrors.BadRequest, "missing required query parameter: "+field))
			return
		}
	}

	if owner, ok := s.Apps.AuthenticateKey(c.Query("auth_key")); !ok || owner.ID != appID {
		writeErr(c, apperrors.New(apperrors.AuthenticationFailed, "auth_key does not match application"))
		return
	}

	var req publishRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		writeErr(c, apperrors.New(apperrors.BadRequest, "invalid publish request body"))
		return
	}

	channels := req.Channels
	if len(channels) == 0 && req.Channel != "" {
		channels = []string{req.Channel}
	}
	if len(channels) == 0 {
		// Empty channels list is a 200 no-op.
		c.Status(http.StatusOK)
		return
	}

	engine := protocol.New(a)
	if err := engine.Publish(channels, req.Name, req.Data); err != nil {
		logger.HTTP().Warn().Err(err).Str("app_id", appID).Msg("publish failed")
		writeErr(c, err)
		return
	}

	c.Status(http.StatusOK)
}
