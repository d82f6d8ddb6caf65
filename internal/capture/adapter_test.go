package capture

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type scriptedDevice struct {
	granted    bool
	permErr    error
	prepareErr error
	startErr   error
	stopErr    error
	state      State
	queryErr   error
	queryPanic bool
}

func (d *scriptedDevice) RequestPermission(context.Context, Kind) (bool, error) {
	return d.granted, d.permErr
}
func (d *scriptedDevice) Prepare(context.Context, Kind) error { return d.prepareErr }
func (d *scriptedDevice) Start(context.Context) error { return d.startErr }
func (d *scriptedDevice) Stop(context.Context) error { return d.stopErr }
func (d *scriptedDevice) QueryState() (State, error) {
	if d.queryPanic {
		var handle *State
		return *handle, nil
	}
	return d.state, d.queryErr
}

func TestAdapterQueryRemembersURI(t *testing.T) {
	dev := &scriptedDevice{state: State{Active: true, Elapsed: 3 * time.Second, URI: "/tmp/capture.m4a"}}
	a := NewAdapter(dev, nil)

	st := a.Query()
	assert.True(t, st.Active)
	assert.Equal(t, "/tmp/capture.m4a", st.URI)

	dev.state = State{Active: true, Elapsed: 4 * time.Second}
	st = a.Query()
	assert.Equal(t, "/tmp/capture.m4a", st.URI, "empty uri keeps last known")
}

func TestAdapterQueryDegradesOnError(t *testing.T) {
	dev := &scriptedDevice{state: State{Active: true, URI: "/tmp/a.m4a"}}
	a := NewAdapter(dev, nil)
	a.Query()

	dev.queryErr = errors.New("shared object not found")
	st := a.Query()
	assert.False(t, st.Active)
	assert.Zero(t, st.Elapsed)
	assert.Equal(t, "/tmp/a.m4a", st.URI)
}

func TestAdapterQueryRecoversPanic(t *testing.T) {
	dev := &scriptedDevice{queryPanic: true}
	a := NewAdapter(dev, nil)

	var st State
	require.NotPanics(t, func() { st = a.Query() })
	assert.False(t, st.Active)
}

func TestAdapterControlErrorsAreDeviceUnavailable(t *testing.T) {
	boom := errors.New("boom")
	dev := &scriptedDevice{prepareErr: boom, startErr: boom, stopErr: boom, permErr: boom}
	a := NewAdapter(dev, nil)
	ctx := context.Background()

	granted, err := a.RequestPermission(ctx, KindAudio)
	assert.False(t, granted)
	assert.ErrorIs(t, err, ErrDeviceUnavailable)
	assert.ErrorIs(t, a.Prepare(ctx, KindAudio), ErrDeviceUnavailable)
	assert.ErrorIs(t, a.Start(ctx), ErrDeviceUnavailable)
	assert.ErrorIs(t, a.Stop(ctx), ErrDeviceUnavailable)
}

func TestAdapterPrepareForgetsPreviousURI(t *testing.T) {
	dev := &scriptedDevice{state: State{URI: "/tmp/old.m4a"}}
	a := NewAdapter(dev, nil)
	a.Query()
	require.Equal(t, "/tmp/old.m4a", a.LastURI())

	require.NoError(t, a.Prepare(context.Background(), KindVideo))
	assert.Empty(t, a.LastURI())
}

func TestParseKind(t *testing.T) {
	tests := []struct {
		in      string
		want    Kind
		wantErr bool
	}{
		{"", KindAudio, false},
		{"audio", KindAudio, false},
		{"video", KindVideo, false},
		{"photo", "", true},
	}
	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			got, err := ParseKind(tt.in)
			if tt.wantErr {
				assert.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
	assert.Equal(t, ".mp4", KindVideo.Ext())
	assert.Equal(t, ".m4a", KindAudio.Ext())
}
