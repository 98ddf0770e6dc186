package session

import (
	"context"

	"github.com/ethanbaker/api/pkg/api_key"
	lifecycle "github.com/ethanbaker/avatar-client/internal/session"
	"github.com/gin-gonic/gin"
)

// Controller is the session controller surface the routes drive
type Controller interface {
	Connect(ctx context.Context) error
	StartNew(ctx context.Context) error
	Leave() error
	Dismiss() error
	SetMicrophoneEnabled(ctx context.Context, enabled bool) error
	ToggleMicrophone(ctx context.Context) error
	View() lifecycle.View
	// Subscribe calls fn with the current view, then after every change
	Subscribe(fn func(lifecycle.View)) func()
}

// module holds the state shared by the session handlers
type module struct {
	ctx  context.Context
	ctrl Controller
}

// Register routes for the session module. A nil validator leaves the routes open.
// Streams are closed when ctx is cancelled
func RegisterRoutes(ctx context.Context, g *gin.RouterGroup, ctrl Controller, validator func(key string) bool) {
	m := &module{ctx: ctx, ctrl: ctrl}

	// Create base group for session routes
	group := g.Group("/session")
	if validator != nil {
		group.Handlers = append(group.Handlers, api_key.APIKeyHeaderHandler(validator))
	}

	group.GET("", m.GetView)                   // Current view of the session
	group.POST("/connect", m.Connect)          // Start a session
	group.POST("/new", m.StartNew)             // Start another session from the report
	group.POST("/leave", m.Leave)              // Leave the call and evaluate
	group.POST("/dismiss", m.Dismiss)          // Close the report or error
	group.POST("/microphone", m.SetMicrophone) // Toggle or set the microphone
	group.GET("/transcript", m.GetTranscript)  // Transcript so far
	group.GET("/evaluation", m.GetEvaluation)  // Evaluation report once ready
	group.GET("/stream", m.Stream)             // Websocket stream of views
}
