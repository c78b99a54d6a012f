package v1

import (
	"net/http"
	"slices"
	"strings"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"github.com/shenikar/waste_incident_sync/internal/config"
	"github.com/shenikar/waste_incident_sync/internal/models"
)

const (
	headerUserID   = "X-User-ID"
	headerUserRole = "X-User-Role"
	identityKey    = "identity"
)

// APIKeyAuthMiddleware - middleware для аутентификации по API-ключу
func APIKeyAuthMiddleware(cfg *config.Config, log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			// Проверяем также заголовок Authorization: Bearer
			authHeader := c.GetHeader("Authorization")
			if strings.HasPrefix(authHeader, "Bearer ") {
				apiKey = strings.TrimPrefix(authHeader, "Bearer ")
			}
		}

		if apiKey == "" {
			log.Warn("API key missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "API key required"})
			return
		}

		if !slices.Contains(cfg.APIKeys, apiKey) {
			log.Warn("Invalid API key provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "Invalid API key"})
			return
		}

		c.Next()
	}
}

// IdentityMiddleware читает пользователя и роль, выставленные слоем аутентификации
func IdentityMiddleware(log *logrus.Logger) gin.HandlerFunc {
	return func(c *gin.Context) {
		userID := strings.TrimSpace(c.GetHeader(headerUserID))
		if userID == "" {
			log.Warn("User identity missing from request")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "user identity required"})
			return
		}

		role, err := models.ParseRole(c.GetHeader(headerUserRole))
		if err != nil {
			log.WithField("user_id", userID).Warn("Invalid user role provided")
			c.AbortWithStatusJSON(http.StatusUnauthorized, gin.H{"error": "invalid user role"})
			return
		}

		c.Set(identityKey, models.Identity{UserID: userID, Role: role})
		c.Next()
	}
}

// identityFrom возвращает пользователя, сохраненный IdentityMiddleware
func identityFrom(c *gin.Context) models.Identity {
	if v, ok := c.Get(identityKey); ok {
		if id, ok := v.(models.Identity); ok {
			return id
		}
	}
	return models.Identity{}
}
