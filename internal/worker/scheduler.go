package worker

import (
	"context"

	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/pkg/queue"
	"github.com/pocketsafety/backend/pkg/storage"
)

// Enqueuer is the producing side of the share queue.
type Enqueuer interface {
	EnqueueShareUpload(ctx context.Context, payload queue.ShareUploadPayload) error
	EnqueueShareRevoke(ctx context.Context, payload queue.ShareRevokePayload) error
}

// Scheduler turns recording metadata into share jobs.
type Scheduler struct {
	q Enqueuer
}

func NewScheduler(q Enqueuer) *Scheduler {
	return &Scheduler{q: q}
}

// EnqueueShare schedules an upload of the recording's durable copy.
func (s *Scheduler) EnqueueShare(ctx context.Context, rec models.RecordingMetadata) error {
	return s.q.EnqueueShareUpload(ctx, queue.ShareUploadPayload{RecordingID: rec.ID, URI: rec.URI})
}

// EnqueueRevoke schedules removal of a recording's shared object. Recordings never shared are skipped.
func (s *Scheduler) EnqueueRevoke(ctx context.Context, rec models.RecordingMetadata) error {
	if rec.ShareStatus != models.ShareStatusShared && rec.ShareURL == "" {
		return nil
	}
	return s.q.EnqueueShareRevoke(ctx, queue.ShareRevokePayload{RecordingID: rec.ID, Key: storage.ShareKey(rec.ID, rec.URI)})
}
