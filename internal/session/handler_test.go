package session

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketsafety/backend/internal/capture"
	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/internal/recorder"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeController struct {
	startErr error
	stopRes  *recorder.Result
	stopErr  error
	gotKind  capture.Kind
	gotStop  recorder.StopOptions
	snaps    chan recorder.Snapshot
}

func (f *fakeController) Start(_ context.Context, kind capture.Kind) (recorder.Snapshot, error) {
	f.gotKind = kind
	if f.startErr != nil {
		return recorder.Snapshot{State: recorder.StateFailed}, f.startErr
	}
	return recorder.Snapshot{SessionID: "s1", Kind: kind, State: recorder.StateRecording}, nil
}

func (f *fakeController) Stop(_ context.Context, opts recorder.StopOptions) (*recorder.Result, error) {
	f.gotStop = opts
	return f.stopRes, f.stopErr
}

func (f *fakeController) Snapshot() recorder.Snapshot {
	return recorder.Snapshot{State: recorder.StateIdle}
}

func (f *fakeController) Subscribe() (<-chan recorder.Snapshot, func()) {
	return f.snaps, func() {}
}

type envelope struct {
	Success   bool            `json:"success"`
	Data      json.RawMessage `json:"data"`
	Error     string          `json:"error"`
	Retryable bool            `json:"retryable"`
}

func router(ctrl Controller) *gin.Engine {
	h := NewHandler(ctrl, nil)
	r := gin.New()
	r.GET("/session", h.Get)
	r.POST("/session/start", h.Start)
	r.POST("/session/stop", h.Stop)
	r.GET("/session/ws", h.Stream)
	return r
}

func do(t *testing.T, r http.Handler, method, path, body string) (int, envelope) {
	t.Helper()
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	var env envelope
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &env))
	return w.Code, env
}

func TestStartDefaultsToAudio(t *testing.T) {
	ctrl := &fakeController{}
	code, env := do(t, router(ctrl), http.MethodPost, "/session/start", "")
	assert.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, capture.KindAudio, ctrl.gotKind)
}

func TestStartErrors(t *testing.T) {
	cases := []struct {
		err       error
		code      int
		retryable bool
	}{
		{recorder.ErrPermissionDenied, http.StatusForbidden, true},
		{fmt.Errorf("prepare: %w", capture.ErrDeviceUnavailable), http.StatusServiceUnavailable, true},
		{fmt.Errorf("boom"), http.StatusInternalServerError, false},
	}
	for _, tc := range cases {
		code, env := do(t, router(&fakeController{startErr: tc.err}), http.MethodPost, "/session/start", `{"kind":"video"}`)
		assert.Equal(t, tc.code, code, tc.err.Error())
		assert.Equal(t, tc.retryable, env.Retryable, tc.err.Error())
		assert.False(t, env.Success)
	}
}

func TestStartRejectsUnknownKind(t *testing.T) {
	code, _ := do(t, router(&fakeController{}), http.MethodPost, "/session/start", `{"kind":"hologram"}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStopBuildsLocationLink(t *testing.T) {
	ctrl := &fakeController{stopRes: &recorder.Result{SessionID: "s1", DurationSeconds: 4}}
	code, env := do(t, router(ctrl), http.MethodPost, "/session/stop",
		`{"scenario":"calling_police","latitude":40.7128,"longitude":-74.006,"disposition":"share"}`)

	require.Equal(t, http.StatusOK, code)
	assert.True(t, env.Success)
	assert.Equal(t, models.ScenarioCallingPolice, ctrl.gotStop.Scenario)
	assert.Equal(t, "https://maps.google.com/?q=40.7128,-74.006", ctrl.gotStop.LocationLink)
	assert.Equal(t, recorder.DispositionShare, ctrl.gotStop.Disposition)
}

func TestStopValidation(t *testing.T) {
	r := router(&fakeController{})
	code, _ := do(t, r, http.MethodPost, "/session/stop", `{"disposition":"burn"}`)
	assert.Equal(t, http.StatusBadRequest, code)
	code, _ = do(t, r, http.MethodPost, "/session/stop", `{"latitude":123,"longitude":0}`)
	assert.Equal(t, http.StatusBadRequest, code)
}

func TestStopErrors(t *testing.T) {
	code, _ := do(t, router(&fakeController{stopErr: recorder.ErrNoActiveSession}), http.MethodPost, "/session/stop", "")
	assert.Equal(t, http.StatusConflict, code)

	res := &recorder.Result{SessionID: "s1", DurationSeconds: 3}
	code, env := do(t, router(&fakeController{stopRes: res, stopErr: history.ErrPersistenceFailure}), http.MethodPost, "/session/stop", "")
	assert.Equal(t, http.StatusInternalServerError, code)
	assert.False(t, env.Retryable)
	assert.Contains(t, string(env.Data), `"sessionId":"s1"`)
}

func TestStreamPushesSnapshots(t *testing.T) {
	snaps := make(chan recorder.Snapshot, 2)
	srv := httptest.NewServer(router(&fakeController{snaps: snaps}))
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/session/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	snaps <- recorder.Snapshot{SessionID: "s1", State: recorder.StateRecording, ElapsedSeconds: 2}
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	var msg WSMessage
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "snapshot", msg.Event)
	assert.Equal(t, 2, msg.Data.ElapsedSeconds)

	close(snaps)
	_, _, err = conn.ReadMessage()
	assert.True(t, websocket.IsCloseError(err, websocket.CloseGoingAway))
}
