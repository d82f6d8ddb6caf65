// Package recorder drives a capture device through one recording session at a time.
package recorder

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/capture"
	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/models"
)

var (
	ErrPermissionDenied = errors.New("capture permission denied")
	// ErrWriteIncomplete is advisory: the file may be truncated. It is never returned from Stop.
	ErrWriteIncomplete = errors.New("recording may be incomplete")
	ErrNoActiveSession = errors.New("no active recording session")
	ErrClosed          = errors.New("coordinator closed")
)

// State is a session lifecycle state.
type State string

const (
	StateIdle              State = "idle"
	StatePermissionPending State = "permission_pending"
	StatePreparing         State = "preparing"
	StateRecording         State = "recording"
	StateStopping          State = "stopping"
	StateCompleted         State = "completed"
	StateFailed            State = "failed"
)

// Failure reasons reported on a failed snapshot.
const (
	ReasonPermissionDenied  = "permission_denied"
	ReasonDeviceUnavailable = "device_unavailable"
)

// Disposition says what happens to the capture once a session stops.
type Disposition string

const (
	DispositionSave    Disposition = "save"
	DispositionShare   Disposition = "share"
	DispositionDiscard Disposition = "discard"
)

// ParseDisposition validates a disposition, defaulting empty input to save.
func ParseDisposition(s string) (Disposition, error) {
	switch d := Disposition(s); d {
	case "":
		return DispositionSave, nil
	case DispositionSave, DispositionShare, DispositionDiscard:
		return d, nil
	}
	return "", fmt.Errorf("unknown disposition %q", s)
}

// Snapshot is the observable view of the current or most recently ended session.
type Snapshot struct {
	SessionID      string       `json:"sessionId,omitempty"`
	Kind           capture.Kind `json:"kind,omitempty"`
	State          State        `json:"state"`
	StartedAt      time.Time    `json:"startedAt"`
	ElapsedSeconds int          `json:"elapsedSeconds"`
	Active         bool         `json:"active"`
	URI            string       `json:"uri,omitempty"`
	Reason         string       `json:"reason,omitempty"`
}

// StopOptions carries what the user reported when ending the session.
type StopOptions struct {
	Scenario     models.Scenario
	LocationLink string
	Disposition  Disposition
}

// Result is the outcome of a stopped session.
type Result struct {
	SessionID       string                    `json:"sessionId"`
	Kind            capture.Kind              `json:"kind"`
	URI             string                    `json:"uri,omitempty"`
	DurationSeconds int                       `json:"durationSeconds"`
	Event           *models.SafetyEvent       `json:"event,omitempty"`
	Recording       *models.RecordingMetadata `json:"recording,omitempty"`
	WriteIncomplete bool                      `json:"writeIncomplete"`
	ShareQueued     bool                      `json:"shareQueued"`
}

// Incomplete returns ErrWriteIncomplete when finalization timed out.
func (r *Result) Incomplete() error {
	if r.WriteIncomplete {
		return ErrWriteIncomplete
	}
	return nil
}

// History is where finished sessions are persisted.
type History interface {
	SaveRecording(ctx context.Context, tempURI string, durationSeconds int, opts history.SaveOptions) (models.RecordingMetadata, error)
	AddSafetyEvent(ctx context.Context, ev models.SafetyEvent) (models.SafetyEvent, error)
}

// FileRemover deletes transient capture files.
type FileRemover interface {
	Delete(ctx context.Context, uri string) error
}

// Sharer hands a saved recording off for sharing.
type Sharer interface {
	EnqueueShare(ctx context.Context, rec models.RecordingMetadata) error
}

// Options tunes a Coordinator. Zero values use the defaults.
type Options struct {
	PollInterval time.Duration
	Clock        func() time.Time
	Sharer       Sharer
}

type session struct {
	id        string
	kind      capture.Kind
	state     State
	startedAt time.Time
	elapsed   int
	active    bool
	uri       string
	gen       uint64
	tracker   *Tracker
}

// Coordinator owns the single active recording session.
type Coordinator struct {
	dev       *capture.Adapter
	finalizer *Finalizer
	history   History
	files     FileRemover
	opts      Options
	logger    *zap.Logger

	mu         sync.Mutex
	cur        *session
	last       Snapshot
	gen        uint64
	closed     bool
	cancelPoll context.CancelFunc
	wg         sync.WaitGroup
	subs       map[chan Snapshot]struct{}
}

// NewCoordinator wires a coordinator to its device, finalizer and persistence.
func NewCoordinator(dev *capture.Adapter, fin *Finalizer, hist History, files FileRemover, opts Options, logger *zap.Logger) *Coordinator {
	if opts.PollInterval <= 0 {
		opts.PollInterval = 500 * time.Millisecond
	}
	if opts.Clock == nil {
		opts.Clock = time.Now
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Coordinator{
		dev:       dev,
		finalizer: fin,
		history:   hist,
		files:     files,
		opts:      opts,
		logger:    logger,
		last:      Snapshot{State: StateIdle},
		subs:      make(map[chan Snapshot]struct{}),
	}
}

// Start begins a session of the given kind. If a session is already underway its snapshot is returned.
func (c *Coordinator) Start(ctx context.Context, kind capture.Kind) (Snapshot, error) {
	c.mu.Lock()
	if c.closed {
		c.mu.Unlock()
		return Snapshot{}, ErrClosed
	}
	if c.cur != nil {
		snap := c.snapshotLocked()
		c.mu.Unlock()
		return snap, nil
	}
	c.gen++
	s := &session{
		id:      uuid.NewString(),
		kind:    kind,
		state:   StatePermissionPending,
		gen:     c.gen,
		tracker: NewTracker(c.opts.Clock),
	}
	c.cur = s
	c.publishLocked()
	c.mu.Unlock()

	log := c.logger.With(zap.String("session_id", s.id), zap.String("kind", string(kind)))

	granted, err := c.dev.RequestPermission(ctx, kind)
	if err != nil {
		log.Warn("permission request failed", zap.Error(err))
		return c.fail(s, ReasonDeviceUnavailable), fmt.Errorf("request permission: %w", err)
	}
	if !granted {
		log.Info("capture permission denied")
		return c.fail(s, ReasonPermissionDenied), ErrPermissionDenied
	}

	c.setState(s, StatePreparing)
	if err := c.dev.Prepare(ctx, kind); err != nil {
		log.Error("prepare capture failed", zap.Error(err))
		return c.fail(s, ReasonDeviceUnavailable), fmt.Errorf("prepare: %w", err)
	}
	if err := c.dev.Start(ctx); err != nil {
		log.Error("start capture failed", zap.Error(err))
		return c.fail(s, ReasonDeviceUnavailable), fmt.Errorf("start: %w", err)
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur != s {
		return c.snapshotLocked(), ErrClosed
	}
	s.tracker.Start()
	s.startedAt = c.opts.Clock()
	s.state = StateRecording
	s.active = true
	if !c.closed {
		pollCtx, cancel := context.WithCancel(context.Background())
		c.cancelPoll = cancel
		c.wg.Add(1)
		go c.poll(pollCtx, s.gen)
	}
	c.publishLocked()
	log.Info("recording started")
	return c.snapshotLocked(), nil
}

// Stop ends the recording session and persists its outcome. Device stop failures are tolerated. When
// persistence fails the result is still returned, alongside an error matching history.ErrPersistenceFailure.
func (c *Coordinator) Stop(ctx context.Context, opts StopOptions) (*Result, error) {
	if opts.Disposition == "" {
		opts.Disposition = DispositionSave
	}
	if opts.Scenario == "" {
		opts.Scenario = models.ScenarioOther
	}

	c.mu.Lock()
	s := c.cur
	if s == nil || s.state != StateRecording {
		c.mu.Unlock()
		return nil, ErrNoActiveSession
	}
	s.state = StateStopping
	c.stopPollLocked()
	c.publishLocked()
	c.mu.Unlock()
	c.wg.Wait()

	// The outcome is persisted even if the caller goes away mid-stop.
	ctx = context.WithoutCancel(ctx)
	log := c.logger.With(zap.String("session_id", s.id))

	// Duration is fixed before the device flushes; stop time is not recording time.
	s.tracker.Observe(c.dev.Query().Elapsed)
	duration := s.tracker.Stop()

	if err := c.dev.Stop(ctx); err != nil {
		log.Warn("device stop failed, continuing", zap.Error(err))
	}
	uri := c.dev.Query().URI

	res := &Result{SessionID: s.id, Kind: s.kind, DurationSeconds: duration}
	fin := c.finalizer.Wait(ctx, uri, s.kind, duration)
	if uri != "" && !fin.Confirmed {
		res.WriteIncomplete = true
		log.Warn("recording finalization unconfirmed", zap.String("uri", uri), zap.Int64("size", fin.Size))
	}

	persistErr := c.persist(ctx, log, res, uri, opts)

	c.mu.Lock()
	if c.cur == s {
		c.cur = nil
	}
	c.last = Snapshot{
		SessionID:      s.id,
		Kind:           s.kind,
		State:          StateCompleted,
		StartedAt:      s.startedAt,
		ElapsedSeconds: duration,
		URI:            res.URI,
	}
	c.publishLocked()
	c.mu.Unlock()

	log.Info("recording completed",
		zap.Int("duration_seconds", duration), zap.String("uri", res.URI), zap.Bool("write_incomplete", res.WriteIncomplete))
	if persistErr != nil {
		return res, persistErr
	}
	return res, nil
}

func (c *Coordinator) persist(ctx context.Context, log *zap.Logger, res *Result, uri string, opts StopOptions) error {
	var errs []error
	ev := models.SafetyEvent{Scenario: opts.Scenario, LocationLink: opts.LocationLink}

	switch {
	case uri == "":
		log.Info("no capture produced, recording event only")
	case opts.Disposition == DispositionDiscard:
		c.removeTemp(ctx, log, uri)
	default:
		rec, err := c.history.SaveRecording(ctx, uri, res.DurationSeconds, history.SaveOptions{
			Scenario:     opts.Scenario,
			LocationLink: opts.LocationLink,
			ShareStatus:  models.ShareStatusSaved,
		})
		if err != nil {
			log.Error("save recording failed, capture left in place", zap.String("uri", uri), zap.Error(err))
			errs = append(errs, err)
			break
		}
		c.removeTemp(ctx, log, uri)
		res.Recording = &rec
		res.URI = rec.URI
		ev.RecordingURI = rec.URI

		if opts.Disposition == DispositionShare && c.opts.Sharer != nil {
			if err := c.opts.Sharer.EnqueueShare(ctx, rec); err != nil {
				log.Error("enqueue share failed", zap.String("recording_id", rec.ID), zap.Error(err))
			} else {
				res.ShareQueued = true
			}
		}
	}

	saved, err := c.history.AddSafetyEvent(ctx, ev)
	if err != nil {
		log.Error("record safety event failed", zap.Error(err))
		errs = append(errs, err)
	} else {
		res.Event = &saved
	}
	return errors.Join(errs...)
}

func (c *Coordinator) removeTemp(ctx context.Context, log *zap.Logger, uri string) {
	if err := c.files.Delete(ctx, uri); err != nil {
		log.Warn("failed to remove capture file", zap.String("uri", uri), zap.Error(err))
	}
}

// Snapshot returns the current session, or the last ended one.
func (c *Coordinator) Snapshot() Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.snapshotLocked()
}

// Subscribe streams snapshots on every transition and poll tick. Slow readers miss intermediate
// snapshots, never the latest. Call cancel to unsubscribe.
func (c *Coordinator) Subscribe() (<-chan Snapshot, func()) {
	ch := make(chan Snapshot, 8)
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.closed {
		close(ch)
		return ch, func() {}
	}
	c.subs[ch] = struct{}{}
	ch <- c.snapshotLocked()

	var once sync.Once
	return ch, func() {
		once.Do(func() {
			c.mu.Lock()
			defer c.mu.Unlock()
			if _, ok := c.subs[ch]; ok {
				delete(c.subs, ch)
				close(ch)
			}
		})
	}
}

// Close stops the poll timer and all subscriptions. It does not stop the device.
func (c *Coordinator) Close() {
	c.mu.Lock()
	c.closed = true
	c.stopPollLocked()
	for ch := range c.subs {
		close(ch)
		delete(c.subs, ch)
	}
	c.mu.Unlock()
	c.wg.Wait()
}

func (c *Coordinator) poll(ctx context.Context, gen uint64) {
	defer c.wg.Done()
	ticker := time.NewTicker(c.opts.PollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			c.tick(gen)
		}
	}
}

func (c *Coordinator) tick(gen uint64) {
	st := c.dev.Query()

	c.mu.Lock()
	defer c.mu.Unlock()
	s := c.cur
	if s == nil || s.gen != gen || s.state != StateRecording {
		return
	}
	s.elapsed = s.tracker.Observe(st.Elapsed)
	s.active = st.Active
	if st.URI != "" {
		s.uri = st.URI
	}
	c.publishLocked()
}

func (c *Coordinator) setState(s *session, state State) {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == s {
		s.state = state
		c.publishLocked()
	}
}

func (c *Coordinator) fail(s *session, reason string) Snapshot {
	c.mu.Lock()
	defer c.mu.Unlock()
	if c.cur == s {
		c.cur = nil
	}
	c.last = Snapshot{SessionID: s.id, Kind: s.kind, State: StateFailed, Reason: reason}
	c.publishLocked()
	return c.last
}

func (c *Coordinator) stopPollLocked() {
	if c.cancelPoll != nil {
		c.cancelPoll()
		c.cancelPoll = nil
	}
}

func (c *Coordinator) snapshotLocked() Snapshot {
	s := c.cur
	if s == nil {
		return c.last
	}
	return Snapshot{
		SessionID:      s.id,
		Kind:           s.kind,
		State:          s.state,
		StartedAt:      s.startedAt,
		ElapsedSeconds: s.elapsed,
		Active:         s.active,
		URI:            s.uri,
	}
}

func (c *Coordinator) publishLocked() {
	snap := c.snapshotLocked()
	for ch := range c.subs {
		select {
		case ch <- snap:
		default:
			select {
			case <-ch:
			default:
			}
			select {
			case ch <- snap:
			default:
			}
		}
	}
}
