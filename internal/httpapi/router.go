// Package httpapi is the HTTP admin surface: the event-publish endpoint,
// the subscription-auth endpoint, channel introspection, runtime
// application management, and the WebSocket handshake route, built on
// github.com/gin-gonic/gin.
package httpapi

import (
	"github.com/gin-gonic/gin"

	"github.com/pulsewire/broker/internal/app"
	"github.com/pulsewire/broker/internal/middleware"
)

// Server wires the application registry into a gin.Engine.
type Server struct {
	Apps   *app.Registry
	router *gin.Engine
}

func NewServer(apps *app.Registry) *Server {
	s := &Server{Apps: apps, router: gin.New()}
	s.routes()
	return s
}

func (s *Server) Handler() *gin.Engine { return s.router }

func (s *Server) routes() {
	r := s.router
	r.Use(middleware.Recovery(), middleware.RequestID(), middleware.AccessLog())

	r.GET("/app/:app_id", s.handshake)

	apps := r.Group("/apps/:app_id")
	{
		apps.POST("/auth", s.auth)
		apps.POST("/events", s.publishEvents)
		apps.GET("/channels/:channel_name", s.channelState)
		apps.GET("/channels/:channel_name/users", s.channelUsers)
	}

	admin := r.Group("/admin")
	{
		admin.POST("/apps", s.createApp)
		admin.GET("/apps", s.listApps)
	}
}
