package handlers

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// @Summary      Health check
// @Description  Returns service status
// @Tags         System
// @Produce      json
// @Success      200  {object}  map[string]string
// @Router       /health [get]
func Health(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{"status": "ok", "service": "stripe-service"})
}

func Root(c *gin.Context) {
	c.String(http.StatusOK, "Stripe Service API")
}

func RegisterHealthRoutes(r gin.IRouter) {
	r.GET("/", Root)
	r.GET("/health", Health)
}
