package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"civicwatch/config"
	"civicwatch/handlers"
	"civicwatch/service"

	"github.com/apex/log"
	"github.com/gin-contrib/gzip"
	"github.com/gin-gonic/gin"
	"github.com/joho/godotenv"
)

func main() {
	// Load .env file if present; environment variables win.
	_ = godotenv.Load()

	cfg := config.Load()

	log.SetLevelFromString(cfg.LogLevel)
	if cfg.LogLevel == "debug" {
		gin.SetMode(gin.DebugMode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	svc, err := service.NewService(cfg)
	if err != nil {
		log.WithError(err).Fatal("failed to create service")
	}

	if err := svc.Start(); err != nil {
		log.WithError(err).Fatal("failed to start service")
	}

	router := setupRouter(svc)

	srv := &http.Server{
		Addr:    ":" + cfg.Port,
		Handler: router,
	}

	go func() {
		log.Infof("Starting HTTP server on port %s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.WithError(err).Fatal("failed to start HTTP server")
		}
	}()

	// Wait for interrupt signal to gracefully shutdown the server
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	log.Info("Shutting down server...")

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	// Stop accepting requests before tearing down the components they use.
	if err := srv.Shutdown(ctx); err != nil {
		log.WithError(err).Fatal("server forced to shutdown")
	}

	if err := svc.Stop(); err != nil {
		log.WithError(err).Error("error stopping service")
	}

	log.Info("Server exited")
}

func setupRouter(svc *service.Service) *gin.Engine {
	router := gin.Default()

	// Add gzip compression middleware
	router.Use(gzip.Gzip(gzip.DefaultCompression))

	// Add CORS middleware
	router.Use(func(c *gin.Context) {
		c.Header("Access-Control-Allow-Origin", "*")
		c.Header("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		c.Header("Access-Control-Allow-Headers", "Origin, Content-Type, Accept")

		if c.Request.Method == "OPTIONS" {
			c.AbortWithStatus(204)
			return
		}

		c.Next()
	})

	h := handlers.NewHandlers(svc.Hub(), svc)

	// API routes
	api := router.Group("/api/v3")
	{
		// Submit a user report
		api.POST("/reports", h.SubmitReport)

		// Submission alias kept for clients posting provenance-first
		api.POST("/submissions", h.SubmitReport)

		// List reports with optional filters
		api.GET("/reports", h.ListReports)

		// WebSocket endpoint for the live feed
		api.GET("/reports/listen", h.ListenReports)

		// Health check endpoint
		api.GET("/reports/health", h.HealthCheck)

		// Latest verified reports for one feed topic
		api.GET("/reports/feed/:type", h.GetFeed)

		// Fetch a single report, counting the view
		api.GET("/reports/:id", h.GetReport)

		// Record an appreciation
		api.POST("/reports/:id/appreciate", h.AppreciateReport)
	}

	// Root health check
	router.GET("/health", func(c *gin.Context) {
		c.JSON(200, gin.H{
			"status":  "healthy",
			"service": "civicwatch",
			"time":    time.Now().UTC().Format(time.RFC3339),
		})
	})

	return router
}
