package main

import (
	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/auth"
	"github.com/pocketsafety/backend/internal/events"
	"github.com/pocketsafety/backend/internal/middleware"
	"github.com/pocketsafety/backend/internal/recordings"
	"github.com/pocketsafety/backend/internal/session"
	"github.com/pocketsafety/backend/pkg/response"
)

type handlers struct {
	auth       *auth.Handler
	session    *session.Handler
	recordings *recordings.Handler
	events     *events.Handler
}

func newRouter(jwtService *auth.JWTService, h handlers, corsOrigins string, logger *zap.Logger) *gin.Engine {
	router := gin.New()
	router.Use(gin.Recovery())
	router.Use(middleware.CORS(corsOrigins))
	router.Use(middleware.Logger(logger))

	// Health
	router.GET("/health", func(c *gin.Context) { response.OK(c, gin.H{"status": "ok"}) })

	// Pairing (public)
	router.POST("/auth/pair", h.auth.Pair)

	// Protected API (device token required)
	api := router.Group("")
	api.Use(middleware.JWT(jwtService))
	{
		// Recording session
		api.GET("/session", h.session.Get)
		api.POST("/session/start", h.session.Start)
		api.POST("/session/stop", h.session.Stop)
		api.GET("/session/ws", h.session.Stream)

		// Saved recordings
		api.GET("/recordings", h.recordings.List)
		api.DELETE("/recordings", h.recordings.DeleteAll)
		api.GET("/recordings/:id/file", h.recordings.Download)
		api.POST("/recordings/:id/share", h.recordings.Share)
		api.DELETE("/recordings/:id", h.recordings.Delete)

		// Safety events
		api.GET("/events", h.events.List)
		api.DELETE("/events", h.events.DeleteAll)
		api.PATCH("/events/:id/label", h.events.UpdateLabel)
		api.DELETE("/events/:id", h.events.Delete)
	}
	return router
}
