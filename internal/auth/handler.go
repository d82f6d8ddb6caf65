package auth

import (
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/pocketsafety/backend/pkg/response"
	"github.com/pocketsafety/backend/pkg/utils"
)

// PairRequest is the body for POST /auth/pair.
type PairRequest struct {
	Code       string `json:"code" binding:"required"`
	DeviceName string `json:"device_name"`
}

// TokenResponse is the pairing response with the device JWT.
type TokenResponse struct {
	Token     string    `json:"token"`
	DeviceID  string    `json:"device_id"`
	ExpiresAt time.Time `json:"expires_at"`
}

// Handler handles auth HTTP endpoints.
type Handler struct {
	jwt         *JWTService
	pairingHash string
	logger      *zap.Logger
}

// NewHandler creates an auth handler. pairingHash is the bcrypt hash of the pairing code; empty disables pairing.
func NewHandler(jwt *JWTService, pairingHash string, logger *zap.Logger) *Handler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Handler{jwt: jwt, pairingHash: pairingHash, logger: logger}
}

// Pair handles POST /auth/pair.
func (h *Handler) Pair(c *gin.Context) {
	var req PairRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.BadRequest(c, "invalid request: "+err.Error())
		return
	}
	if h.pairingHash == "" {
		response.ServiceUnavailable(c, "pairing is not configured")
		return
	}
	if !utils.CheckPassword(req.Code, h.pairingHash) {
		h.logger.Warn("pairing rejected", zap.String("client_ip", c.ClientIP()))
		response.Unauthorized(c, "invalid pairing code")
		return
	}

	deviceID := uuid.New().String()
	token, expires, err := h.jwt.Generate(deviceID, req.DeviceName)
	if err != nil {
		response.Internal(c, "failed to generate token")
		return
	}
	h.logger.Info("device paired", zap.String("device_id", deviceID), zap.String("device_name", req.DeviceName))
	response.Created(c, TokenResponse{Token: token, DeviceID: deviceID, ExpiresAt: expires})
}
