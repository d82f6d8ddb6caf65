// Package recordings serves saved recordings: listing, download, share and delete.
package recordings

import (
	"context"
	"errors"
	"path/filepath"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/pkg/response"
)

// Store is the recordings side of the history store.
type Store interface {
	Recordings(ctx context.Context) []models.RecordingMetadata
	Recording(ctx context.Context, id string) (models.RecordingMetadata, error)
	DeleteRecording(ctx context.Context, uri, eventID string) error
	DeleteAllRecordings(ctx context.Context) ([]models.RecordingMetadata, error)
}

// Sharer schedules share uploads and revokes published copies.
type Sharer interface {
	EnqueueShare(ctx context.Context, rec models.RecordingMetadata) error
	EnqueueRevoke(ctx context.Context, rec models.RecordingMetadata) error
}

// Handler handles recording HTTP endpoints.
type Handler struct {
	store  Store
	sharer Sharer // optional: nil when no share bucket is configured
	logger *zap.Logger
}

// NewHandler creates a recordings handler.
func NewHandler(store Store, sharer Sharer, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{store: store, sharer: sharer, logger: logger}
}

// List handles GET /recordings.
func (h *Handler) List(c *gin.Context) {
	response.OK(c, h.store.Recordings(c.Request.Context()))
}

// Download handles GET /recordings/:id/file.
func (h *Handler) Download(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	c.FileAttachment(rec.URI, filepath.Base(rec.URI))
}

// Share handles POST /recordings/:id/share.
func (h *Handler) Share(c *gin.Context) {
	if h.sharer == nil {
		response.ServiceUnavailable(c, "sharing is not configured")
		return
	}
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := h.sharer.EnqueueShare(c.Request.Context(), rec); err != nil {
		h.logger.Error("enqueue share failed", zap.Error(err), zap.String("recording_id", rec.ID))
		response.ServiceUnavailable(c, "failed to schedule share")
		return
	}
	response.Accepted(c, rec)
}

// Delete handles DELETE /recordings/:id?event_id=. The event is kept; only its recording reference is cleared.
func (h *Handler) Delete(c *gin.Context) {
	rec, ok := h.lookup(c)
	if !ok {
		return
	}
	if err := h.store.DeleteRecording(c.Request.Context(), rec.URI, c.Query("event_id")); err != nil {
		h.logger.Error("delete recording failed", zap.Error(err), zap.String("recording_id", rec.ID))
		response.Internal(c, "failed to delete recording")
		return
	}
	h.revoke(c.Request.Context(), rec)
	response.NoContent(c)
}

// DeleteAll handles DELETE /recordings.
func (h *Handler) DeleteAll(c *gin.Context) {
	removed, err := h.store.DeleteAllRecordings(c.Request.Context())
	for _, rec := range removed {
		h.revoke(c.Request.Context(), rec)
	}
	if err != nil {
		h.logger.Error("delete all recordings failed", zap.Error(err))
		response.Internal(c, "failed to delete some recordings")
		return
	}
	response.OK(c, gin.H{"deleted": len(removed)})
}

func (h *Handler) lookup(c *gin.Context) (models.RecordingMetadata, bool) {
	rec, err := h.store.Recording(c.Request.Context(), c.Param("id"))
	if errors.Is(err, history.ErrNotFound) {
		response.NotFound(c, "recording not found")
		return rec, false
	}
	if err != nil {
		response.Internal(c, "failed to load recording")
		return rec, false
	}
	return rec, true
}

func (h *Handler) revoke(ctx context.Context, rec models.RecordingMetadata) {
	if h.sharer == nil {
		return
	}
	if err := h.sharer.EnqueueRevoke(ctx, rec); err != nil {
		h.logger.Warn("enqueue share revoke failed", zap.Error(err), zap.String("recording_id", rec.ID))
	}
}
