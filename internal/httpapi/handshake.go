package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsewire/broker/internal/apperrors"
	"github.com/pulsewire/broker/internal/logger"
	"github.com/pulsewire/broker/internal/protocol"
	"github.com/pulsewire/broker/internal/transport"
)

// handshake upgrades the HTTP connection to a full-duplex text-framed
// transport and hands it to a fresh protocol engine for the looked-up
// application. Query parameters (protocol, client, version, flash) are
// logged but never validated semantically.
func (s *Server) handshake(c *gin.Context) {
	appID := c.Param("app_id")
	a, ok := s.Apps.Get(appID)
	if !ok {
		writeErr(c, apperrors.ApplicationNotFoundErr(appID))
		return
	}

	logger.HTTP().Info().
		Str("app_id", appID).
		Str("protocol", c.Query("protocol")).
		Str("client", c.Query("client")).
		Str("version", c.Query("version")).
		Str("flash", c.Query("flash")).
		Msg("websocket handshake")

	conn, err := transport.Upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		logger.HTTP().Debug().Err(err).Msg("websocket upgrade failed")
		return
	}

	tr := transport.NewWebSocket(conn)
	engine := protocol.New(a)
	go engine.Serve(tr)
}
