package worker

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"time"

	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/pkg/queue"
	"github.com/pocketsafety/backend/pkg/storage"
)

// RecordingStore is the part of the history store the share worker updates.
type RecordingStore interface {
	Recording(ctx context.Context, id string) (models.RecordingMetadata, error)
	UpdateShareStatus(ctx context.Context, id string, status models.ShareStatus, shareURL string) (models.RecordingMetadata, error)
}

// FileOpener opens a saved recording for reading.
type FileOpener interface {
	Open(ctx context.Context, uri string) (io.ReadCloser, int64, error)
}

// ObjectStore is where shared recordings are published.
type ObjectStore interface {
	Upload(ctx context.Context, key, contentType string, body io.Reader, contentLength int64) error
	PresignedDownloadURL(ctx context.Context, key string) (string, error)
	Exists(ctx context.Context, key string) (bool, error)
	DeleteObject(ctx context.Context, key string) error
}

// JobQueue is the consuming side of the share queue.
type JobQueue interface {
	Dequeue(ctx context.Context, timeout time.Duration) (*queue.Job, error)
	Retry(ctx context.Context, job *queue.Job) error
}

// ShareProcessor processes share jobs: upload the durable copy, presign a link, record it on the metadata.
type ShareProcessor struct {
	recordings RecordingStore
	files      FileOpener
	objects    ObjectStore
	queue      JobQueue
	backoff    time.Duration
	logger     *zap.Logger
}

// NewShareProcessor creates a share job processor.
func NewShareProcessor(recordings RecordingStore, files FileOpener, objects ObjectStore, q JobQueue, logger *zap.Logger) *ShareProcessor {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &ShareProcessor{
		recordings: recordings,
		files:      files,
		objects:    objects,
		queue:      q,
		backoff:    queue.RetryBackoff,
		logger:     logger,
	}
}

// Process executes one share job.
func (p *ShareProcessor) Process(ctx context.Context, job *queue.Job) error {
	switch job.Type {
	case queue.JobTypeShareUpload:
		var payload queue.ShareUploadPayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		return p.upload(ctx, payload)
	case queue.JobTypeShareRevoke:
		var payload queue.ShareRevokePayload
		if err := json.Unmarshal(job.Payload, &payload); err != nil {
			return fmt.Errorf("unmarshal payload: %w", err)
		}
		if err := p.objects.DeleteObject(ctx, payload.Key); err != nil {
			return fmt.Errorf("revoke share: %w", err)
		}
		p.logger.Info("share revoked", zap.String("recording_id", payload.RecordingID), zap.String("s3_key", payload.Key))
		return nil
	}
	return fmt.Errorf("unknown job type: %s", job.Type)
}

func (p *ShareProcessor) upload(ctx context.Context, payload queue.ShareUploadPayload) error {
	rec, err := p.recordings.Recording(ctx, payload.RecordingID)
	if errors.Is(err, history.ErrNotFound) {
		p.logger.Info("recording gone before share, skipping", zap.String("recording_id", payload.RecordingID))
		return nil
	}
	if err != nil {
		return fmt.Errorf("load recording: %w", err)
	}
	if rec.URI != payload.URI {
		p.logger.Warn("share payload uri differs from metadata, using metadata",
			zap.String("recording_id", rec.ID), zap.String("payload_uri", payload.URI))
	}

	key := storage.ShareKey(rec.ID, rec.URI)
	exists, err := p.objects.Exists(ctx, key)
	if err != nil {
		return err
	}
	if !exists {
		body, size, err := p.files.Open(ctx, rec.URI)
		if err != nil {
			return fmt.Errorf("open recording: %w", err)
		}
		err = p.objects.Upload(ctx, key, storage.ContentTypeForFilename(rec.URI), body, size)
		body.Close()
		if err != nil {
			return fmt.Errorf("s3 upload: %w", err)
		}
	}

	url, err := p.objects.PresignedDownloadURL(ctx, key)
	if err != nil {
		return err
	}
	if _, err := p.recordings.UpdateShareStatus(ctx, rec.ID, models.ShareStatusShared, url); err != nil {
		if errors.Is(err, history.ErrNotFound) {
			p.logger.Info("recording deleted during share", zap.String("recording_id", rec.ID))
			return nil
		}
		return fmt.Errorf("update share status: %w", err)
	}

	p.logger.Info("recording shared", zap.String("recording_id", rec.ID), zap.String("s3_key", key))
	return nil
}

// Run starts the worker loop: dequeue, process, retry on error.
func (p *ShareProcessor) Run(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			p.logger.Info("share worker stopping")
			return
		default:
		}

		job, err := p.queue.Dequeue(ctx, queue.DequeueTimeout)
		if err != nil {
			if ctx.Err() != nil {
				continue
			}
			p.logger.Warn("dequeue error", zap.Error(err))
			p.wait(ctx)
			continue
		}
		if job == nil {
			continue
		}

		p.logger.Debug("processing job", zap.String("job_id", job.ID), zap.String("type", string(job.Type)))
		if err := p.Process(ctx, job); err != nil {
			p.logger.Error("job failed", zap.String("job_id", job.ID), zap.Error(err))
			if reErr := p.queue.Retry(ctx, job); reErr != nil {
				p.logger.Error("retry enqueue failed", zap.Error(reErr))
			}
			p.wait(ctx)
		}
	}
}

func (p *ShareProcessor) wait(ctx context.Context) {
	t := time.NewTimer(p.backoff)
	defer t.Stop()
	select {
	case <-t.C:
	case <-ctx.Done():
	}
}
