// Package capture defines the capture device contract and the adapter that shields callers from device faults.
package capture

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrDeviceUnavailable means the capture handle is invalid or the underlying process faulted.
	ErrDeviceUnavailable = errors.New("capture device unavailable")
	// ErrStateUnavailable means the device could not report its state.
	ErrStateUnavailable = errors.New("capture state unavailable")
)

// Kind is the media a session captures.
type Kind string

const (
	KindAudio Kind = "audio"
	KindVideo Kind = "video"
)

// ParseKind validates a kind string, defaulting empty input to audio.
func ParseKind(s string) (Kind, error) {
	switch Kind(s) {
	case "", KindAudio:
		return KindAudio, nil
	case KindVideo:
		return KindVideo, nil
	}
	return "", fmt.Errorf("unknown media kind %q", s)
}

// Ext is the container extension the device writes for this kind.
func (k Kind) Ext() string {
	if k == KindVideo {
		return ".mp4"
	}
	return ".m4a"
}

// State is a best-effort view of the device.
type State struct {
	Active  bool
	Elapsed time.Duration
	URI     string
}

// Device is a single audio or video capture handle. Any method may fail, and implementations
// may panic if their handle has been torn down underneath them; use Adapter rather than calling
// a Device directly.
type Device interface {
	RequestPermission(ctx context.Context, kind Kind) (bool, error)
	Prepare(ctx context.Context, kind Kind) error
	Start(ctx context.Context) error
	Stop(ctx context.Context) error
	QueryState() (State, error)
}
