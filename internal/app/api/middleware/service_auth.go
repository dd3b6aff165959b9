package middleware

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	cfgpkg "github.com/mcpfactory/stripe-service/pkg/config"
	"github.com/mcpfactory/stripe-service/pkg/response"
)

// ServiceAuthMiddleware validates the X-API-Key header for
// service-to-service callers. Webhook routes are not behind it; they
// authenticate via signature verification instead.
func ServiceAuthMiddleware(cfg *cfgpkg.Config, log *zap.SugaredLogger) gin.HandlerFunc {
	return func(c *gin.Context) {
		if cfg.ServiceAPIKey == "" {
			log.Error("service API key not configured")
			c.AbortWithStatusJSON(http.StatusInternalServerError, response.Err("Server configuration error"))
			return
		}

		apiKey := c.GetHeader("X-API-Key")
		if apiKey == "" {
			c.AbortWithStatusJSON(http.StatusUnauthorized, response.ErrDetails("Missing API key", "Please provide X-API-Key header"))
			return
		}
		if apiKey != cfg.ServiceAPIKey {
			c.AbortWithStatusJSON(http.StatusForbidden, response.Err("Invalid API key"))
			return
		}

		c.Next()
	}
}
