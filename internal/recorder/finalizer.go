package recorder

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/pocketsafety/backend/internal/capture"
	"github.com/pocketsafety/backend/pkg/storage"
)

const (
	defaultSettleDelay  = 800 * time.Millisecond
	defaultPollInterval = 200 * time.Millisecond
	defaultDeadline     = 2500 * time.Millisecond
	// minExpectedBytes is the floor below which a file is never considered complete by size alone.
	minExpectedBytes = 1024
)

// Conservative bitrate floors in bytes per second, well under what the capture presets produce.
var defaultBytesPerSecond = map[capture.Kind]int64{
	capture.KindAudio: 4_000,
	capture.KindVideo: 50_000,
}

// FileStatter reports the size of a file that may still be growing.
type FileStatter interface {
	Stat(ctx context.Context, uri string) (storage.FileInfo, error)
}

// FinalizerConfig holds the finalization timings. Zero values use the defaults.
type FinalizerConfig struct {
	SettleDelay    time.Duration
	PollInterval   time.Duration
	Deadline       time.Duration
	BytesPerSecond map[capture.Kind]int64
}

// Finalization describes how a wait ended.
type Finalization struct {
	Skipped   bool // no file reference, nothing was polled
	Confirmed bool // size threshold reached or size stable
	Size      int64
	Polls     int
}

// Finalizer waits for a stopped capture's file to stop growing. It is a heuristic: it reduces the chance
// of handing out a truncated file but cannot rule it out.
type Finalizer struct {
	fs     FileStatter
	cfg    FinalizerConfig
	logger *zap.Logger
}

// NewFinalizer creates a finalizer over the given file port.
func NewFinalizer(fs FileStatter, cfg FinalizerConfig, logger *zap.Logger) *Finalizer {
	if cfg.SettleDelay <= 0 {
		cfg.SettleDelay = defaultSettleDelay
	}
	if cfg.PollInterval <= 0 {
		cfg.PollInterval = defaultPollInterval
	}
	if cfg.Deadline <= 0 {
		cfg.Deadline = defaultDeadline
	}
	if cfg.BytesPerSecond == nil {
		cfg.BytesPerSecond = defaultBytesPerSecond
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Finalizer{fs: fs, cfg: cfg, logger: logger}
}

// MinExpectedBytes is the size at which a file of the given kind and duration is assumed complete.
func (f *Finalizer) MinExpectedBytes(kind capture.Kind, seconds int) int64 {
	n := int64(seconds) * f.cfg.BytesPerSecond[kind]
	if n < minExpectedBytes {
		return minExpectedBytes
	}
	return n
}

// Wait blocks until the file at uri looks fully written or the deadline passes. It never returns an
// error: a timeout yields Confirmed=false and the caller proceeds with whatever exists.
func (f *Finalizer) Wait(ctx context.Context, uri string, kind capture.Kind, expectedSeconds int) Finalization {
	if uri == "" {
		return Finalization{Skipped: true}
	}

	settle := time.NewTimer(f.cfg.SettleDelay)
	select {
	case <-settle.C:
	case <-ctx.Done():
		settle.Stop()
		return Finalization{}
	}

	want := f.MinExpectedBytes(kind, expectedSeconds)
	deadline := time.NewTimer(f.cfg.Deadline)
	defer deadline.Stop()
	ticker := time.NewTicker(f.cfg.PollInterval)
	defer ticker.Stop()

	var res Finalization
	prev := int64(-1)
	for {
		info, err := f.fs.Stat(ctx, uri)
		res.Polls++
		size := info.Size
		if err != nil {
			size = 0
		}
		res.Size = size

		if size >= want {
			res.Confirmed = true
			return res
		}
		if size > 0 && size == prev {
			res.Confirmed = true
			return res
		}
		prev = size

		select {
		case <-ticker.C:
		case <-deadline.C:
			f.logger.Warn("recording finalization timed out",
				zap.String("uri", uri), zap.Int64("size", size), zap.Int64("expected", want))
			return res
		case <-ctx.Done():
			return res
		}
	}
}
