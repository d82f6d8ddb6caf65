// Package events serves the safety event log.
package events

import (
	"context"
	"errors"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/pkg/response"
)

// Store is the events side of the history store.
type Store interface {
	SafetyEvents(ctx context.Context) []models.SafetyEvent
	UpdateEventLabel(ctx context.Context, id, label string) (models.SafetyEvent, error)
	DeleteEvent(ctx context.Context, id string) error
	DeleteAllEvents(ctx context.Context) error
}

// LabelRequest is the body for PATCH /events/:id/label. An empty label clears it.
type LabelRequest struct {
	Label string `json:"label" binding:"max=200"`
}

// Handler handles safety event HTTP endpoints.
type Handler struct {
	store  Store
	logger *zap.Logger
}

// NewHandler creates an events handler.
func NewHandler(store Store, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, logger: logger}
}

// List handles GET /events.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, h.store.SafetyEvents(c.Request.Context()))
}

// UpdateLabel handles PATCH /events/:id/label.
func (h *Handler) UpdateLabel(c *gin.Context) {
	var req LabelRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	ev, err := h.store.UpdateEventLabel(c.Request.Context(), c.Param("id"), req.Label)
	switch {
	case err == nil:
		response.OK(c, ev)
	case errors.Is(err, history.ErrNotFound):
		response.NotFound(c, "event not found")
	default:
		h.logger.Error("update event label failed", zap.Error(err), zap.String("event_id", c.Param("id")))
		response.Internal(c, "failed to update event")
	}
}

// Delete handles DELETE /events/:id.
func (h *Handler) Delete(c *gin.Context) {
	if err := h.store.DeleteEvent(c.Request.Context(), c.Param("id")); err != nil {
		h.logger.Error("delete event failed", zap.Error(err), zap.String("event_id", c.Param("id")))
		response.Internal(c, "failed to delete event")
		return
	}
	response.NoContent(c)
}

// DeleteAll handles DELETE /events.
func (h *Handler) DeleteAll(c *gin.Context) {
	if err := h.store.DeleteAllEvents(c.Request.Context()); err != nil {
		h.logger.Error("delete all events failed", zap.Error(err))
		response.Internal(c, "failed to delete events")
		return
	}
	response.NoContent(c)
}
