package events

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
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

func setup(t *testing.T) (*gin.Engine, *history.Store) {
	t.Helper()
	store := history.NewStore(kv.NewMemory(), storage.NewLocal(), history.Config{RecordingsDir: t.TempDir()}, nil)
	h := NewHandler(store, nil)
	r := gin.New()
	r.GET("/events", h.List)
	r.PATCH("/events/:id/label", h.UpdateLabel)
	r.DELETE("/events/:id", h.Delete)
	r.DELETE("/events", h.DeleteAll)
	return r, store
}

func serve(r http.Handler, method, path, body string) *httptest.ResponseRecorder {
	req := httptest.NewRequest(method, path, bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestListEvents(t *testing.T) {
	r, store := setup(t)
	_, err := store.AddSafetyEvent(context.Background(), models.SafetyEvent{Scenario: models.ScenarioPulledOver})
	require.NoError(t, err)

	w := serve(r, http.MethodGet, "/events", "")
	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []models.SafetyEvent `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	require.Len(t, body.Data, 1)
	assert.Equal(t, models.EventStatusPartial, body.Data[0].Status)
}

func TestUpdateLabel(t *testing.T) {
	r, store := setup(t)
	ev, err := store.AddSafetyEvent(context.Background(), models.SafetyEvent{})
	require.NoError(t, err)

	w := serve(r, http.MethodPatch, "/events/"+ev.ID+"/label", `{"label":"  I-95 exit 4 "}`)
	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "I-95 exit 4", store.SafetyEvents(context.Background())[0].Label)

	assert.Equal(t, http.StatusNotFound, serve(r, http.MethodPatch, "/events/nope/label", `{"label":"x"}`).Code)
	long := `{"label":"` + strings.Repeat("x", 201) + `"}`
	assert.Equal(t, http.StatusBadRequest, serve(r, http.MethodPatch, "/events/"+ev.ID+"/label", long).Code)
}

func TestDeleteEvents(t *testing.T) {
	r, store := setup(t)
	ctx := context.Background()
	a, err := store.AddSafetyEvent(ctx, models.SafetyEvent{})
	require.NoError(t, err)
	_, err = store.AddSafetyEvent(ctx, models.SafetyEvent{})
	require.NoError(t, err)

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodDelete, "/events/"+a.ID, "").Code)
	assert.Len(t, store.SafetyEvents(ctx), 1)

	assert.Equal(t, http.StatusNoContent, serve(r, http.MethodDelete, "/events", "").Code)
	assert.Empty(t, store.SafetyEvents(ctx))
}
