package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/pocketsafety/backend/internal/auth"
	"github.com/pocketsafety/backend/pkg/response"
)

const (
	// ContextDeviceID is the key for the paired device ID in gin context.
	ContextDeviceID = "device_id"
	// ContextDeviceName is the key for the paired device name in gin context.
	ContextDeviceName = "device_name"
)

// JWT returns a middleware that validates the device token and sets its claims in context.
// Browsers cannot set headers on WebSocket upgrades, so a token query parameter is accepted there.
func JWT(jwtService *auth.JWTService) gin.HandlerFunc {
	return func(c *gin.Context) {
		token, ok := bearerToken(c)
		if !ok {
			response.Unauthorized(c, "missing or invalid authorization header")
			c.Abort()
			return
		}
		claims, err := jwtService.Validate(token)
		if err != nil {
			response.Unauthorized(c, "invalid or expired token")
			c.Abort()
			return
		}
		c.Set(ContextDeviceID, claims.DeviceID)
		c.Set(ContextDeviceName, claims.DeviceName)
		c.Next()
	}
}

func bearerToken(c *gin.Context) (string, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		if strings.EqualFold(c.GetHeader("Upgrade"), "websocket") {
			if t := c.Query("token"); t != "" {
				return t, true
			}
		}
		return "", false
	}
	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || parts[0] != "Bearer" || parts[1] == "" {
		return "", false
	}
	return parts[1], true
}
