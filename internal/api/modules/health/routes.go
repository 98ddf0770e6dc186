package health

import "github.com/gin-gonic/gin"

// RegisterRoutes registers the routes for the health module. These stay open when an
// API key is configured
func RegisterRoutes(g *gin.RouterGroup) {
	g.GET("/health", getStatus)
	g.HEAD("/health", getStatus)
}
