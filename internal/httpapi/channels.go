package httpapi

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/pulsewire/broker/internal/apperrors"
)

// channelStateResponse is the body of GET /apps/:app_id/channels/:channel_name.
type channelStateResponse struct {
	Occupied          bool `json:"occupied"`
	SubscriptionCount int  `json:"subscription_count"`
}

func (s *Server) channelState(c *gin.Context) {
	appID := c.Param("app_id")
	channelName := c.Param("channel_name")

	a, ok := s.Apps.Get(appID)
	if !ok {
		writeErr(c, apperrors.ApplicationNotFoundErr(appID))
		return
	}

	ch, ok := a.Channels.Get(channelName)
	if !ok {
		writeErr(c, apperrors.ChannelNotFoundErr(channelName))
		return
	}

	count := ch.Count()
	c.JSON(http.StatusOK, channelStateResponse{Occupied: count > 0, SubscriptionCount: count})
}

// channelUsers returns the subscriber socket-ids for GET
// /apps/:app_id/channels/:channel_name/users.
func (s *Server) channelUsers(c *gin.Context) {
	appID := c.Param("app_id")
	channelName := c.Param("channel_name")

	a, ok := s.Apps.Get(appID)
	if !ok {
		writeErr(c, apperrors.ApplicationNotFoundErr(appID))
		return
	}

	ch, ok := a.Channels.Get(channelName)
	if !ok {
		writeErr(c, apperrors.ChannelNotFoundErr(channelName))
		return
	}

	c.JSON(http.StatusOK, ch.Subscribers())
}
