package recordings

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketsafety/backend/internal/history"
	"github.com/pocketsafety/backend/internal/models"
	"github.com/pocketsafety/backend/pkg/kv"
	"github.com/pocketsafety/backend/pkg/storage"
)

func init() {
	gin.SetMode(gin.TestMode)
}

type fakeSharer struct {
	shared  []string
	revoked []string
}

func (f *fakeSharer) EnqueueShare(_ context.Context, rec models.RecordingMetadata) error {
	f.shared = append(f.shared, rec.ID)
	return nil
}

func (f *fakeSharer) EnqueueRevoke(_ context.Context, rec models.RecordingMetadata) error {
	f.revoked = append(f.revoked, rec.ID)
	return nil
}

func setup(t *testing.T, sharer Sharer) (*gin.Engine, *history.Store) {
	t.Helper()
	store := history.NewStore(kv.NewMemory(), storage.NewLocal(), history.Config{RecordingsDir: t.TempDir()}, nil)
	h := NewHandler(store, sharer, nil)
	r := gin.New()
	r.GET("/recordings", h.List)
	r.GET("/recordings/:id/file", h.Download)
	r.POST("/recordings/:id/share", h.Share)
	r.DELETE("/recordings/:id", h.Delete)
	r.DELETE("/recordings", h.DeleteAll)
	return r, store
}

func save(t *testing.T, store *history.Store) models.RecordingMetadata {
	t.Helper()
	tmp := filepath.Join(t.TempDir(), "capture.m4a")
	require.NoError(t, os.WriteFile(tmp, []byte("bytes"), 0600))
	rec, err := store.SaveRecording(context.Background(), tmp, 2, history.SaveOptions{})
	require.NoError(t, err)
	return rec
}

func serve(r http.Handler, method, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(method, path, nil))
	return w
}

func TestListAndDownload(t *testing.T) {
	r, store := setup(t, nil)
	rec := save(t, store)

	w := serve(r, http.MethodGet, "/recordings")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.RecordingMetadata `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, rec.ID, body.Data[0].ID)

	w = serve(r, http.MethodGet, "/recordings/"+rec.ID+"/file")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "bytes", w.Body.String())

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodGet, "/recordings/nope/file").Code)
}

func TestEmptyListIsArray(t *testing.T) {
	r, _ := setup(t, nil)
	w := serve(r, http.MethodGet, "/recordings")
	assert.JSONEq(t, `{"success":true,"data":[]}`, w.Body.String())
}

func TestDeleteKeepsEvent(t *testing.T) {
	sharer := &fakeSharer{}
	r, store := setup(t, sharer)
	rec := save(t, store)
	ev, err := store.AddSafetyEvent(context.Background(), models.SafetyEvent{RecordingURI: rec.URI})
	require.NoError(t, err)

	w := serve(r, http.MethodDelete, "/recordings/"+rec.ID+"?event_id="+ev.ID)
	assert.Equal(t, http.StatusNoContent, w.Code)
	assert.NoFileExists(t, rec.URI)
	assert.Equal(t, []string{rec.ID}, sharer.revoked)

	events := store.SafetyEvents(context.Background())
	require.Len(t, events, 1)
	assert.Empty(t, events[0].RecordingURI)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodDelete, "/recordings/"+rec.ID).Code)
}

func TestDeleteAll(t *testing.T) {
	sharer := &fakeSharer{}
	r, store := setup(t, sharer)
	save(t, store)
	save(t, store)

	w := serve(r, http.MethodDelete, "/recordings")
	assert.Equal(t, http.StatusOK, w.Code)
	assert.JSONEq(t, `{"success":true,"data":{"deleted":2}}`, w.Body.String())
	assert.Len(t, sharer.revoked, 2)
	assert.Empty(t, store.Recordings(context.Background()))
}

func TestShare(t *testing.T) {
	sharer := &fakeSharer{}
	r, store := setup(t, sharer)
	rec := save(t, store)

	assert.Equal(t, http.StatusAccepted, serve(r, http.MethodPost, "/recordings/"+rec.ID+"/share").Code)
	assert.Equal(t, []string{rec.ID}, sharer.shared)
	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPost, "/recordings/missing/share").Code)
}

func TestShareWithoutBucket(t *testing.T) {
	r, store := setup(t, nil)
	rec := save(t, store)
	assert.Equal(t, http.StatusServiceUnavailable, serve(r, http.MethodPost, "/recordings/"+rec.ID+"/share").Code)
}
