package capture

import (
	"context"
	"fmt"
	"sync"

	"go.uber.org/zap"
)

// Adapter is the only place device faults are handled. Control calls return ErrDeviceUnavailable;
// queries never fail and fall back to an inactive state carrying the last known output URI.
type Adapter struct {
	dev    Device
	logger *zap.Logger

	mu      sync.Mutex
	lastURI string
}

// NewAdapter wraps a device.
func NewAdapter(dev Device, logger *zap.Logger) *Adapter {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Adapter{dev: dev, logger: logger}
}

// RequestPermission asks the device for access. A fault is reported as ErrDeviceUnavailable.
func (a *Adapter) RequestPermission(ctx context.Context, kind Kind) (granted bool, err error) {
	err = a.guard("request permission", ErrDeviceUnavailable, func() error {
		var callErr error
		granted, callErr = a.dev.RequestPermission(ctx, kind)
		return callErr
	})
	if err != nil {
		return false, err
	}
	return granted, nil
}

// Prepare readies the device and forgets the previous session's output.
func (a *Adapter) Prepare(ctx context.Context, kind Kind) error {
	a.mu.Lock()
	a.lastURI = ""
	a.mu.Unlock()
	return a.guard("prepare", ErrDeviceUnavailable, func() error { return a.dev.Prepare(ctx, kind) })
}

// Start begins capture.
func (a *Adapter) Start(ctx context.Context) error {
	return a.guard("start", ErrDeviceUnavailable, func() error { return a.dev.Start(ctx) })
}

// Stop ends capture. Callers treat the error as advisory; the file may still exist.
func (a *Adapter) Stop(ctx context.Context) error {
	return a.guard("stop", ErrDeviceUnavailable, func() error { return a.dev.Stop(ctx) })
}

// Query returns the device state, degrading to {Active: false, URI: last known} on any fault.
func (a *Adapter) Query() State {
	var st State
	err := a.guard("query state", ErrStateUnavailable, func() error {
		var callErr error
		st, callErr = a.dev.QueryState()
		return callErr
	})

	a.mu.Lock()
	defer a.mu.Unlock()
	if err != nil {
		return State{URI: a.lastURI}
	}
	if st.URI != "" {
		a.lastURI = st.URI
	} else {
		st.URI = a.lastURI
	}
	return st
}

// LastURI returns the most recent output reference the device reported.
func (a *Adapter) LastURI() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.lastURI
}

func (a *Adapter) guard(op string, sentinel error, fn func() error) (err error) {
	defer func() {
		if r := recover(); r != nil {
			a.logger.Warn("capture device panicked", zap.String("op", op), zap.Any("panic", r))
			err = fmt.Errorf("%s: %v: %w", op, r, sentinel)
		}
	}()
	if callErr := fn(); callErr != nil {
		a.logger.Debug("capture device call failed", zap.String("op", op), zap.Error(callErr))
		return fmt.Errorf("%s: %v: %w", op, callErr, sentinel)
	}
	return nil
}
