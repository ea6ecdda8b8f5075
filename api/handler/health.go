package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/use-agent/fetchgate/models"
)

// Health returns a handler for GET /api/health. It has no dependencies and
// always reports ok.
func Health() gin.HandlerFunc {
	return func(c *gin.Context) {
		c.JSON(http.StatusOK, models.HealthResponse{Status: "ok"})
	}
}
