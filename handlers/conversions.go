package handlers

import (
	"log"
	"net/http"

	"coda/config"
	"coda/services"
	"coda/types"
	"coda/websocket"

	"github.com/gin-gonic/gin"
)

// ConversionHandler handles batch conversion endpoints
type ConversionHandler struct {
	jobQueue services.JobQueue
	hub      websocket.Hub
}

// NewConversionHandler creates a new conversion handler
func NewConversionHandler(jq services.JobQueue, hub websocket.Hub) *ConversionHandler {
	return &ConversionHandler{
		jobQueue: jq,
		hub:      hub,
	}
}

// SubmitBatch queues one conversion job per requested input
func (h *ConversionHandler) SubmitBatch(c *gin.Context) {
	var req types.ConversionRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{
			"error":   "invalid request body",
			"details": err.Error(),
		})
		return
	}

	if len(req.Inputs) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "at least one input file is required",
		})
		return
	}

	outputDir := req.OutputDir
	if outputDir == "" {
		outputDir = config.GetOutputLocation()
	}

	format := req.Format
	if format == "" {
		format = config.DefaultFormat
	}

	normalize := false
	if req.Normalize != nil {
		normalize = *req.Normalize
	}

	jobs := h.jobQueue.AddBatch(req.Inputs, outputDir, normalize, format)

	c.JSON(http.StatusCreated, gin.H{
		"message": "Conversion batch queued successfully",
		"batchId": jobs[0].BatchID,
		"jobs":    jobs,
	})
}

// GetAllJobs returns all conversion jobs
func (h *ConversionHandler) GetAllJobs(c *gin.Context) {
	jobs := h.jobQueue.GetAllJobs()
	c.JSON(http.StatusOK, gin.H{
		"jobs":  jobs,
		"total": len(jobs),
	})
}

// GetJob returns a specific conversion job by ID
func (h *ConversionHandler) GetJob(c *gin.Context) {
	jobID := c.Param("jobId")
	job, exists := h.jobQueue.GetJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{
			"error": "job not found",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"job": job,
	})
}

// CancelJob cancels a conversion job
func (h *ConversionHandler) CancelJob(c *gin.Context) {
	jobID := c.Param("jobId")
	cancelled := h.jobQueue.CancelJob(jobID)
	if !cancelled {
		c.JSON(http.StatusBadRequest, gin.H{
			"error": "job cannot be cancelled (not found or already finished)",
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "job cancelled successfully",
	})
}

// CancelAll cancels every queued and processing job
func (h *ConversionHandler) CancelAll(c *gin.Context) {
	cancelled := h.jobQueue.CancelAll()
	c.JSON(http.StatusOK, gin.H{
		"message":   "active jobs cancelled",
		"cancelled": cancelled,
	})
}

// HandleWebSocketConnection handles WebSocket connections for specific job progress
func (h *ConversionHandler) HandleWebSocketConnection(c *gin.Context) {
	jobID := c.Param("jobId")
	if jobID == "" {
		c.JSON(http.StatusBadRequest, gin.H{"error": "job ID is required"})
		return
	}

	// Check if job exists
	_, exists := h.jobQueue.GetJob(jobID)
	if !exists {
		c.JSON(http.StatusNotFound, gin.H{"error": "job not found"})
		return
	}

	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, jobID)
	h.hub.RegisterClient(client)

	// Start client pumps
	client.StartPumps()
}

// HandleWebSocketAllConnection handles WebSocket connections for all job progress
func (h *ConversionHandler) HandleWebSocketAllConnection(c *gin.Context) {
	upgrader := websocket.GetUpgrader()
	conn, err := upgrader.Upgrade(c.Writer, c.Request, nil)
	if err != nil {
		log.Printf("WebSocket upgrade failed: %v", err)
		return
	}

	client := websocket.NewClient(h.hub, conn, "all")
	h.hub.RegisterClient(client)

	// Start client pumps
	client.StartPumps()
}
