package handlers

import (
	"net/http"
	"os"
	"os/exec"
	"time"

	"coda/config"
	"coda/services"

	"github.com/gin-gonic/gin"
)

// HealthHandler handles health check endpoints
type HealthHandler struct {
	jobQueue services.JobQueue
}

// NewHealthHandler creates a new health handler
func NewHealthHandler(jq services.JobQueue) *HealthHandler {
	return &HealthHandler{jobQueue: jq}
}

// HealthCheck returns the health status of the service
func (h *HealthHandler) HealthCheck(c *gin.Context) {
	c.JSON(http.StatusOK, gin.H{
		"status":    "healthy",
		"service":   "coda",
		"version":   "1.0.0",
		"timestamp": time.Now().Unix(),
	})
}

// APIStatus returns the queue counters and tool availability
func (h *HealthHandler) APIStatus(c *gin.Context) {
	ffmpegPath := config.GetFFmpegPath()

	c.JSON(http.StatusOK, gin.H{
		"message":          "Coda API is running",
		"output_location":  config.GetOutputLocation(),
		"ffmpeg_path":      ffmpegPath,
		"ffmpeg_available": toolAvailable(ffmpegPath),
		"queue":            h.jobQueue.Stats(),
	})
}

// toolAvailable reports whether the binary exists at its configured path or
// resolves on PATH
func toolAvailable(path string) bool {
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return true
	}
	_, err := exec.LookPath(path)
	return err == nil
}
