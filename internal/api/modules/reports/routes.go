package reports

import (
	"github.com/ethanbaker/api/pkg/api_key"
	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/gin-gonic/gin"
)

// module holds the state shared by the report handlers
type module struct {
	store archive.Store
}

// Register routes for the reports module. A nil validator leaves the routes open
func RegisterRoutes(g *gin.RouterGroup, store archive.Store, validator func(key string) bool) {
	m := &module{store: store}

	// Create base group for report routes
	group := g.Group("/reports")
	if validator != nil {
		group.Handlers = append(group.Handlers, api_key.APIKeyHeaderHandler(validator))
	}

	group.GET("", m.ListReports)         // List archived sessions, optionally filtered by ?q=
	group.GET("/:id", m.GetReport)       // Get an archived session by id
	group.DELETE("/:id", m.DeleteReport) // Delete an archived session
}
