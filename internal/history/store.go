// Package history persists recording metadata and safety events as bounded, newest-first lists.
package history

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/pkg/kv"
	"github.com/pocketsafety/backend/pkg/storage"
)

const (
	KeyRecordings   = "recordings"
	KeySafetyEvents = "safety_events"

	DefaultMaxRecordings = 20
	DefaultMaxEvents     = 10
)

var (
	// ErrPersistenceFailure means a file copy or list write did not complete.
	ErrPersistenceFailure = errors.New("persistence failure")
	ErrNotFound           = errors.New("not found")
)

// FileStore is the filesystem port used for durable copies and deletes.
type FileStore interface {
	Copy(ctx context.Context, src, dst string) error
	Stat(ctx context.Context, uri string) (storage.FileInfo, error)
	Delete(ctx context.Context, uri string) error
}

// Config controls retention and where durable copies are written.
type Config struct {
	RecordingsDir     string
	MaxRecordings     int
	MaxEvents         int
	EvictDeletesFiles bool // also delete the file of an evicted recording
}

// SaveOptions carries the context recorded alongside a saved recording.
type SaveOptions struct {
	Scenario     models.Scenario
	LocationLink string
	ShareStatus  models.ShareStatus
}

// Store owns the recordings and safety event lists.
type Store struct {
	mu         sync.Mutex
	recordings *boundedList[models.RecordingMetadata]
	events     *boundedList[models.SafetyEvent]
	files      FileStore
	cfg        Config
	now        func() time.Time
	logger     *zap.Logger
}

// NewStore creates a history store over a key-value port and a file port.
func NewStore(store kv.Store, files FileStore, cfg Config, logger *zap.Logger) *Store {
	if cfg.MaxRecordings <= 0 {
		cfg.MaxRecordings = DefaultMaxRecordings
	}
	if cfg.MaxEvents <= 0 {
		cfg.MaxEvents = DefaultMaxEvents
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Store{
		recordings: &boundedList[models.RecordingMetadata]{store: store, key: KeyRecordings, limit: cfg.MaxRecordings, logger: logger},
		events:     &boundedList[models.SafetyEvent]{store: store, key: KeySafetyEvents, limit: cfg.MaxEvents, logger: logger},
		files:      files,
		cfg:        cfg,
		now:        time.Now,
		logger:     logger,
	}
}

// SaveRecording copies the capture at tempURI into the recordings directory and records its metadata.
// No metadata exists unless this returns nil.
func (s *Store) SaveRecording(ctx context.Context, tempURI string, durationSeconds int, opts SaveOptions) (models.RecordingMetadata, error) {
	if tempURI == "" {
		return models.RecordingMetadata{}, fmt.Errorf("%w: no recording to save", ErrPersistenceFailure)
	}
	if durationSeconds < 0 {
		durationSeconds = 0
	}
	status := opts.ShareStatus
	if !status.Valid() {
		status = models.ShareStatusSaved
	}

	id := uuid.NewString()
	now := s.now()
	ext := filepath.Ext(tempURI)
	if ext == "" {
		ext = ".m4a"
	}
	dst := filepath.Join(s.cfg.RecordingsDir, fmt.Sprintf("recording_%d_%s%s", now.UnixMilli(), id[:8], ext))
	if err := s.files.Copy(ctx, tempURI, dst); err != nil {
		return models.RecordingMetadata{}, fmt.Errorf("%w: copy recording: %w", ErrPersistenceFailure, err)
	}

	rec := models.RecordingMetadata{
		ID:              id,
		URI:             dst,
		Timestamp:       now,
		DurationSeconds: durationSeconds,
		ShareStatus:     status,
		Scenario:        opts.Scenario,
		LocationLink:    opts.LocationLink,
	}

	s.mu.Lock()
	evicted, err := s.recordings.push(ctx, rec)
	s.mu.Unlock()
	if err != nil {
		if delErr := s.files.Delete(ctx, dst); delErr != nil {
			s.logger.Warn("failed to remove orphaned copy", zap.String("uri", dst), zap.Error(delErr))
		}
		return models.RecordingMetadata{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	for _, old := range evicted {
		s.logger.Info("recording evicted", zap.String("recording_id", old.ID), zap.String("uri", old.URI))
		if !s.cfg.EvictDeletesFiles {
			continue
		}
		if err := s.files.Delete(ctx, old.URI); err != nil {
			s.logger.Warn("failed to delete evicted recording", zap.String("uri", old.URI), zap.Error(err))
		}
	}

	s.logger.Info("recording saved",
		zap.String("recording_id", rec.ID), zap.String("uri", rec.URI), zap.Int("duration_seconds", durationSeconds))
	return rec, nil
}

// Recordings returns saved recordings, newest first.
func (s *Store) Recordings(ctx context.Context) []models.RecordingMetadata {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nonNil(s.recordings.load(ctx))
}

// Recording looks up one recording by id.
func (s *Store) Recording(ctx context.Context, id string) (models.RecordingMetadata, error) {
	for _, r := range s.Recordings(ctx) {
		if r.ID == id {
			return r, nil
		}
	}
	return models.RecordingMetadata{}, fmt.Errorf("recording %s: %w", id, ErrNotFound)
}

// AddSafetyEvent records an event. The id, timestamp and status are filled in when the caller left them blank.
func (s *Store) AddSafetyEvent(ctx context.Context, ev models.SafetyEvent) (models.SafetyEvent, error) {
	if ev.ID == "" {
		ev.ID = "evt_" + uuid.NewString()
	}
	if ev.Timestamp.IsZero() {
		ev.Timestamp = s.now()
	}
	if ev.Scenario == "" {
		ev.Scenario = models.ScenarioOther
	}
	ev.Status = models.StatusFor(ev.LocationLink)
	ev.Label = strings.TrimSpace(ev.Label)

	s.mu.Lock()
	evicted, err := s.events.push(ctx, ev)
	s.mu.Unlock()
	if err != nil {
		return models.SafetyEvent{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	for _, old := range evicted {
		s.logger.Info("safety event evicted", zap.String("event_id", old.ID))
	}
	return ev, nil
}

// SafetyEvents returns recorded events, newest first.
func (s *Store) SafetyEvents(ctx context.Context) []models.SafetyEvent {
	s.mu.Lock()
	defer s.mu.Unlock()
	return nonNil(s.events.load(ctx))
}

// DeleteRecording removes the file at uri and its metadata. The referencing events are kept with their
// recording reference cleared: eventID explicitly, plus any other event pointing at uri.
func (s *Store) DeleteRecording(ctx context.Context, uri, eventID string) error {
	if uri != "" {
		if err := s.files.Delete(ctx, uri); err != nil {
			return fmt.Errorf("%w: delete file: %w", ErrPersistenceFailure, err)
		}
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.recordings.update(ctx, func(items []models.RecordingMetadata) []models.RecordingMetadata {
		kept := items[:0]
		for _, r := range items {
			if r.URI != uri {
				kept = append(kept, r)
			}
		}
		return kept
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if err := s.clearRecordingFromEvents(ctx, func(ev models.SafetyEvent) bool {
		return (eventID != "" && ev.ID == eventID) || (uri != "" && ev.RecordingURI == uri)
	}); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return nil
}

// DeleteAllRecordings deletes every tracked file, empties the metadata list and clears the recording
// reference on every event. It returns the removed metadata.
func (s *Store) DeleteAllRecordings(ctx context.Context) ([]models.RecordingMetadata, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	items := s.recordings.load(ctx)
	var fileErrs []error
	for _, r := range items {
		if err := s.files.Delete(ctx, r.URI); err != nil {
			s.logger.Warn("failed to delete recording file", zap.String("uri", r.URI), zap.Error(err))
			fileErrs = append(fileErrs, err)
		}
	}
	if err := s.recordings.save(ctx, nil); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if err := s.clearRecordingFromEvents(ctx, func(models.SafetyEvent) bool { return true }); err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if len(fileErrs) > 0 {
		return nonNil(items), fmt.Errorf("%w: %w", ErrPersistenceFailure, errors.Join(fileErrs...))
	}
	return nonNil(items), nil
}

// DeleteEvent removes one event. Files are not touched.
func (s *Store) DeleteEvent(ctx context.Context, id string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	err := s.events.update(ctx, func(items []models.SafetyEvent) []models.SafetyEvent {
		kept := items[:0]
		for _, ev := range items {
			if ev.ID != id {
				kept = append(kept, ev)
			}
		}
		return kept
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return nil
}

// DeleteAllEvents empties the event list. Files are not touched.
func (s *Store) DeleteAllEvents(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if err := s.events.save(ctx, nil); err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return nil
}

// UpdateEventLabel sets a trimmed label on an event. A blank label clears it.
func (s *Store) UpdateEventLabel(ctx context.Context, id, label string) (models.SafetyEvent, error) {
	label = strings.TrimSpace(label)

	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		updated models.SafetyEvent
		found   bool
	)
	err := s.events.update(ctx, func(items []models.SafetyEvent) []models.SafetyEvent {
		for i := range items {
			if items[i].ID == id {
				items[i].Label = label
				updated, found = items[i], true
			}
		}
		return items
	})
	if err != nil {
		return models.SafetyEvent{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if !found {
		return models.SafetyEvent{}, fmt.Errorf("event %s: %w", id, ErrNotFound)
	}
	return updated, nil
}

// UpdateShareStatus records the share state of a recording. An empty shareURL keeps the existing link.
func (s *Store) UpdateShareStatus(ctx context.Context, id string, status models.ShareStatus, shareURL string) (models.RecordingMetadata, error) {
	if !status.Valid() {
		return models.RecordingMetadata{}, fmt.Errorf("invalid share status %q", status)
	}

	s.mu.Lock()
	defer s.mu.Unlock()
	var (
		updated models.RecordingMetadata
		found   bool
	)
	err := s.recordings.update(ctx, func(items []models.RecordingMetadata) []models.RecordingMetadata {
		for i := range items {
			if items[i].ID == id {
				items[i].ShareStatus = status
				if shareURL != "" {
					items[i].ShareURL = shareURL
				}
				updated, found = items[i], true
			}
		}
		return items
	})
	if err != nil {
		return models.RecordingMetadata{}, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if !found {
		return models.RecordingMetadata{}, fmt.Errorf("recording %s: %w", id, ErrNotFound)
	}
	return updated, nil
}

// clearRecordingFromEvents drops the recording reference of matching events. Nothing ever sets it again.
func (s *Store) clearRecordingFromEvents(ctx context.Context, match func(models.SafetyEvent) bool) error {
	return s.events.update(ctx, func(items []models.SafetyEvent) []models.SafetyEvent {
		for i := range items {
			if items[i].RecordingURI != "" && match(items[i]) {
				items[i].RecordingURI = ""
			}
		}
		return items
	})
}

func nonNil[T any](items []T) []T {
	if items == nil {
		return []T{}
	}
	return items
}
