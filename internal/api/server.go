package api

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	ginprometheus "github.com/zsais/go-gin-prometheus"

	"github.com/tablohq/backupd/internal/api/handler"
	"github.com/tablohq/backupd/internal/api/middleware"
	"github.com/tablohq/backupd/internal/core/repository"
	"github.com/tablohq/backupd/internal/core/service"
	"github.com/tablohq/backupd/pkg/config"
)

type Server struct {
	router *gin.Engine
	srv    *http.Server
	config *config.Config
}

// NewServer creates a new API server
func NewServer(
	cfg *config.Config,
	jobService *service.JobService,
	catalogService *service.CatalogService,
	searchService *service.SearchService,
	webhookRepo repository.WebhookRepository,
) *Server {
	gin.SetMode(gin.ReleaseMode)

	router := gin.New()

	// Global middleware
	router.Use(gin.Logger())
	router.Use(gin.Recovery())
	router.Use(middleware.ErrorHandlerMiddleware())
	router.Use(middleware.CORSMiddleware(cfg.CORSOrigins))

	prometheus := ginprometheus.NewPrometheus("gin")
	prometheus.Use(router)

	// Initialize handlers
	jobHandler := handler.NewJobHandler(jobService)
	backupHandler := handler.NewBackupHandler(catalogService)
	restoreHandler := handler.NewRestoreHandler(catalogService)
	webhookHandler := handler.NewWebhookHandler(webhookRepo)
	searchHandler := handler.NewSearchHandler(searchService)

	authMiddleware := middleware.AuthMiddleware(cfg.JWTSecretKey)

	// Job creation
	jobs := router.Group("/jobs")
	jobs.Use(authMiddleware)
	{
		jobs.POST("/backup/:databaseId", backupHandler.CreateBackup)
		jobs.POST("/backup/:databaseId/table", backupHandler.CreateTableBackup)
		jobs.POST("/restore/:databaseId", restoreHandler.CreateRestore)
		jobs.GET("", jobHandler.List)
		jobs.GET("/:jobId", jobHandler.Get)
		jobs.GET("/:jobId/events", jobHandler.Events)
	}

	// Artifact catalog. Static segments (orphaned, status) take priority over
	// the :databaseId param in gin's route tree.
	backups := router.Group("/backups")
	backups.Use(authMiddleware)
	{
		backups.GET("/orphaned", backupHandler.Orphaned)
		backups.GET("/status", backupHandler.Status)
		backups.GET("/:databaseId", backupHandler.ListArtifacts)
		backups.GET("/:databaseId/download", backupHandler.Download)
		backups.DELETE("/:databaseId", backupHandler.DeleteArtifact)
		backups.POST("/:databaseId/bulk-delete", backupHandler.BulkDelete)
		backups.DELETE("/:databaseId/all", backupHandler.DeleteAll)
	}

	// Webhook registrations
	webhooks := router.Group("/webhooks")
	webhooks.Use(authMiddleware)
	{
		webhooks.POST("", webhookHandler.Create)
		webhooks.GET("", webhookHandler.List)
		webhooks.GET("/:id", webhookHandler.Get)
		webhooks.PUT("/:id", webhookHandler.Update)
		webhooks.DELETE("/:id", webhookHandler.Delete)
	}

	// Cross-database search
	router.POST("/search/batch", authMiddleware, searchHandler.Batch)

	// Health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(http.StatusOK, gin.H{
			"status": "ok",
			"time":   time.Now().Format(time.RFC3339),
		})
	})

	server := &Server{
		router: router,
		config: cfg,
	}

	return server
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.config.APIHost, s.config.APIPort)

	s.srv = &http.Server{
		Addr:           addr,
		Handler:        s.router,
		ReadTimeout:    15 * time.Second,
		WriteTimeout:   15 * time.Second,
		IdleTimeout:    60 * time.Second,
		MaxHeaderBytes: 1 << 20, // 1 MB
	}

	// Start with or without SSL
	if s.config.SSLCert != "" && s.config.SSLKey != "" {
		fmt.Printf("Starting HTTPS server on %s\n", addr)
		return s.srv.ListenAndServeTLS(s.config.SSLCert, s.config.SSLKey)
	}

	fmt.Printf("Starting HTTP server on %s\n", addr)
	return s.srv.ListenAndServe()
}

// Shutdown gracefully shuts down the server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.srv != nil {
		return s.srv.Shutdown(ctx)
	}
	return nil
}

// Router exposes the gin engine for tests.
func (s *Server) Router() *gin.Engine {
	return s.router
}
