package api

import (
	"context"
	"errors"
	"log"
	"net/http"
	"time"

	api_utils "github.com/ethanbaker/api/pkg/utils"
	"github.com/ethanbaker/avatar-client/internal/archive"
	"github.com/ethanbaker/avatar-client/internal/settings"
	"github.com/gin-contrib/cors"
	"github.com/gin-gonic/gin"

	health_module "github.com/ethanbaker/avatar-client/internal/api/modules/health"
	reports_module "github.com/ethanbaker/avatar-client/internal/api/modules/reports"
	session_module "github.com/ethanbaker/avatar-client/internal/api/modules/session"
)

const shutdownTimeout = 5 * time.Second

// Dependencies are what the API serves. Archive is optional
type Dependencies struct {
	Session session_module.Controller
	Archive archive.Store
}

// NewEngine builds the gin engine with every module registered. Websocket streams end
// when ctx is cancelled
func NewEngine(ctx context.Context, cfg *settings.API, deps Dependencies) *gin.Engine {
	// Add app level settings/routes
	engine := gin.Default()
	engine.NoRoute(api_utils.NoRouteHandler)

	// Add trusted proxies
	engine.SetTrustedProxies(nil)

	origins := cfg.AllowedOrigins
	if len(origins) == 0 {
		origins = []string{"*"}
	}

	// Add CORS using gin-contrib/cors (https://github.com/gin-contrib/cors for documentation)
	engine.Use(cors.New(cors.Config{
		AllowOrigins:     origins,
		AllowMethods:     []string{"OPTIONS", "GET", "POST", "PUT", "DELETE"},
		AllowHeaders:     []string{"Origin", "Content-Type", "X-API-KEY"},
		ExposeHeaders:    []string{"Content-Length"},
		AllowCredentials: false,
		MaxAge:           12 * time.Hour,
	}))

	// Only check keys when one is configured
	var validator func(string) bool
	if cfg.Key != "" {
		validator = makeApiKeyValidator(cfg.Key)
	}

	// Base group '/api' for all API routes
	baseGroup := engine.Group("/api")

	// Adding custom modules
	health_module.RegisterRoutes(baseGroup)
	session_module.RegisterRoutes(ctx, baseGroup, deps.Session, validator)
	if deps.Archive != nil {
		reports_module.RegisterRoutes(baseGroup, deps.Archive, validator)
	}

	return engine
}

// Start serves the API until ctx is cancelled
func Start(ctx context.Context, cfg *settings.API, deps Dependencies) error {
	server := &http.Server{
		Addr:              ":" + cfg.Port,
		Handler:           NewEngine(ctx, cfg, deps),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		log.Printf("[API-MAIN]: Starting server on port %s", cfg.Port)
		errCh <- server.ListenAndServe()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err

	case <-ctx.Done():
		log.Println("[API-MAIN]: Shutting down server...")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		return server.Shutdown(shutdownCtx)
	}
}

// makeApiKeyValidator checks the provided API key against the configured one
func makeApiKeyValidator(apiKey string) func(key string) bool {
	return func(key string) bool {
		return apiKey == key
	}
}
