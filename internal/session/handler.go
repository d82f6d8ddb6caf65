// Package session exposes the recording session over HTTP and WebSocket.
package session

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/capture"
	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/internal/recorder"
	"github.com/pocketsafety/backend/pkg/response"
)

// Controller is the recording coordinator as seen by the HTTP layer.
type Controller interface {
	Start(ctx context.Context, kind capture.Kind) (recorder.Snapshot, error)
	Stop(ctx context.Context, opts recorder.StopOptions) (*recorder.Result, error)
	Snapshot() recorder.Snapshot
	Subscribe() (<-chan recorder.Snapshot, func())
}

// StartRequest is the body for POST /session/start.
type StartRequest struct {
	Kind string `json:"kind"`
}

// StopRequest is the body for POST /session/stop. Coordinates are used when no link is given.
type StopRequest struct {
	Scenario     string   `json:"scenario"`
	LocationLink string   `json:"location_link"`
	Latitude     *float64 `json:"latitude" binding:"omitempty,gte=-90,lte=90"`
	Longitude    *float64 `json:"longitude" binding:"omitempty,gte=-180,lte=180"`
	Disposition  string   `json:"disposition"`
}

// Handler handles session HTTP endpoints.
type Handler struct {
	ctrl   Controller
	logger *zap.Logger
}

// NewHandler creates a session handler.
func NewHandler(ctrl Controller, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{ctrl: ctrl, logger: logger}
}

// Get handles GET /session.
func (h *Handler) Get(c *gin.Context) {
	response.OK(c, h.ctrl.Snapshot())
}

// Start handles POST /session/start.
func (h *Handler) Start(c *gin.Context) {
	var req StartRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	kind, err := capture.ParseKind(req.Kind)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}

	snap, err := h.ctrl.Start(c.Request.Context(), kind)
	switch {
	case err == nil:
		response.OK(c, snap)
	case errors.Is(err, recorder.ErrPermissionDenied):
		response.Forbidden(c, "permission to record was denied")
	case errors.Is(err, capture.ErrDeviceUnavailable), errors.Is(err, recorder.ErrClosed):
		h.logger.Warn("start recording failed", zap.Error(err))
		response.ServiceUnavailable(c, "recorder unavailable")
	default:
		h.logger.Error("start recording failed", zap.Error(err))
		response.Internal(c, "failed to start recording")
	}
}

// Stop handles POST /session/stop.
func (h *Handler) Stop(c *gin.Context) {
	var req StopRequest
	if c.Request.ContentLength != 0 {
		if err := c.ShouldBindJSON(&req); err != nil {
			response.BadRequest(c, "invalid request: "+err.Error())
			return
		}
	}
	disposition, err := recorder.ParseDisposition(req.Disposition)
	if err != nil {
		response.BadRequest(c, err.Error())
		return
	}
	link := req.LocationLink
	if link == "" && req.Latitude != nil && req.Longitude != nil {
		link = models.MapsLink(*req.Latitude, *req.Longitude)
	}

	res, err := h.ctrl.Stop(c.Request.Context(), recorder.StopOptions{
		Scenario:     models.ParseScenario(req.Scenario),
		LocationLink: link,
		Disposition:  disposition,
	})
	switch {
	case err == nil:
		response.OK(c, res)
	case errors.Is(err, recorder.ErrNoActiveSession):
		response.Conflict(c, "no recording in progress")
	case errors.Is(err, history.ErrPersistenceFailure):
		response.InternalWithData(c, "recording could not be saved", res)
	default:
		h.logger.Error("stop recording failed", zap.Error(err))
		response.Internal(c, "failed to stop recording")
	}
}
