package auth

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pocketsafety/backend/pkg/utils"
)

func init() {
	gin.SetMode(gin.TestMode)
}

func TestGenerateAndValidate(t *testing.T) {
	svc := NewJWTService("secret", 2)
	token, expires, err := svc.Generate("dev-1", "pixel")
	require.NoError(t, err)
	assert.WithinDuration(t, time.Now().Add(2*time.Hour), expires, time.Minute)

	claims, err := svc.Validate(token)
	require.NoError(t, err)
	assert.Equal(t, "dev-1", claims.DeviceID)
	assert.Equal(t, "pixel", claims.DeviceName)

	_, err = NewJWTService("other", 2).Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func TestExpiredTokenRejected(t *testing.T) {
	svc := NewJWTService("secret", 1)
	svc.now = func() time.Time { return time.Now().Add(-2 * time.Hour) }
	token, _, err := svc.Generate("dev-1", "")
	require.NoError(t, err)

	_, err = svc.Validate(token)
	assert.ErrorIs(t, err, ErrInvalidToken)
}

func pair(t *testing.T, h *Handler, body string) *httptest.ResponseRecorder {
	t.Helper()
	r := gin.New()
	r.POST("/auth/pair", h.Pair)
	req := httptest.NewRequest(http.MethodPost, "/auth/pair", bytes.NewBufferString(body))
	req.Header.Set("Content-Type", "application/json")
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestPair(t *testing.T) {
	hash, err := utils.HashPassword("424242")
	require.NoError(t, err)
	svc := NewJWTService("secret", 1)
	h := NewHandler(svc, hash, nil)

	w := pair(t, h, `{"code":"424242","device_name":"pixel"}`)
	require.Equal(t, http.StatusCreated, w.Code)

	var body struct {
		Data TokenResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	claims, err := svc.Validate(body.Data.Token)
	require.NoError(t, err)
	assert.Equal(t, body.Data.DeviceID, claims.DeviceID)

	assert.Equal(t, http.StatusUnauthorized, pair(t, h, `{"code":"000000"}`).Code)
	assert.Equal(t, http.StatusBadRequest, pair(t, h, `{}`).Code)
}

func TestPairDisabledWithoutHash(t *testing.T) {
	h := NewHandler(NewJWTService("secret", 1), "", nil)
	assert.Equal(t, http.StatusServiceUnavailable, pair(t, h, `{"code":"1"}`).Code)
}
