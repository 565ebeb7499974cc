package cmd

import (
	"log"
	"os"
	"strconv"

	"coda/config"
	"coda/ffmpeg"
	"coda/handlers"
	"coda/middleware"
	"coda/services"
	"coda/websocket"

	"github.com/gin-gonic/gin"
)

// StartWebServer starts the web server
func StartWebServer(port int) {
	// Set production mode if not specified
	if mode := os.Getenv("GIN_MODE"); mode != "" {
		gin.SetMode(mode)
	} else {
		gin.SetMode(gin.ReleaseMode)
	}

	// Initialize services
	hub := websocket.NewHub()
	go hub.Run()

	runner := ffmpeg.NewRunner()
	converter := services.NewConverter(runner, config.GetFFmpegPath())
	prober := ffmpeg.NewProber(runner, config.GetFFmpegPath(), config.GetFFprobePath())

	store := services.NewJobStore(config.GetRedisAddr())
	jobQueue := services.NewJobQueue(2, converter, hub, store)
	jobQueue.Start()

	fileService := services.NewFileService(prober)

	r := NewRouter(jobQueue, hub, fileService)

	// Start server
	portStr := strconv.Itoa(port)
	if serverPort := os.Getenv("SERVER_PORT"); serverPort != "" {
		portStr = serverPort
	}

	log.Printf("Coda web server starting on port %s", portStr)
	if err := r.Run(":" + portStr); err != nil {
		log.Fatalf("Failed to start server: %v", err)
	}
}

// NewRouter builds the gin engine with all middleware and routes wired.
// Exposed so tests can drive the real handler stack against an httptest
// server.
func NewRouter(jobQueue services.JobQueue, hub websocket.Hub, fileService services.FileService) *gin.Engine {
	conversionHandler := handlers.NewConversionHandler(jobQueue, hub)
	fileHandler := handlers.NewFileHandler(fileService)
	healthHandler := handlers.NewHealthHandler(jobQueue)
	settingsHandler := handlers.NewSettingsHandler()

	r := gin.New()
	r.Use(gin.Recovery())

	// Apply middleware
	r.Use(middleware.CORS())
	r.Use(middleware.Logging())
	r.Use(middleware.RateLimit(100, 200))

	setupRoutes(r, conversionHandler, fileHandler, healthHandler, settingsHandler)
	return r
}

// setupRoutes configures all the HTTP routes
func setupRoutes(r *gin.Engine, conversionHandler *handlers.ConversionHandler, fileHandler *handlers.FileHandler, healthHandler *handlers.HealthHandler, settingsHandler *handlers.SettingsHandler) {
	// Health check endpoint
	r.GET("/health", healthHandler.HealthCheck)

	// API routes group
	apiGroup := r.Group("/api")
	{
		apiGroup.GET("/status", healthHandler.APIStatus)

		// Conversion Management Endpoints
		conversionsGroup := apiGroup.Group("/conversions")
		{
			// Queue a batch of conversions
			conversionsGroup.POST("", conversionHandler.SubmitBatch)

			// Manage conversions
			conversionsGroup.GET("", conversionHandler.GetAllJobs)
			conversionsGroup.GET("/:jobId", conversionHandler.GetJob)
			conversionsGroup.DELETE("/:jobId", conversionHandler.CancelJob)
			conversionsGroup.DELETE("", conversionHandler.CancelAll)
		}

		// WebSocket endpoints for real-time progress
		wsGroup := apiGroup.Group("/ws")
		{
			// WebSocket endpoint for specific job progress
			wsGroup.GET("/conversions/:jobId", conversionHandler.HandleWebSocketConnection)

			// WebSocket endpoint for all conversion progress
			wsGroup.GET("/conversions", conversionHandler.HandleWebSocketAllConnection)
		}

		// File discovery and streaming endpoints
		apiGroup.GET("/files", fileHandler.ListFiles)
		apiGroup.GET("/files/stream/*filepath", fileHandler.StreamFile)

		// Settings endpoints
		apiGroup.GET("/settings", settingsHandler.GetSettings)
		apiGroup.POST("/settings", settingsHandler.UpdateSettings)
	}
}
