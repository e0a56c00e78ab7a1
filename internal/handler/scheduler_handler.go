package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"
)

// StartScheduler starts cron scheduling of the harvest and act pipelines
func (h *Handlers) StartScheduler(c *gin.Context) {
	if err := h.scheduler.Start(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to start scheduler: " + err.Error(),
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message":   "Scheduler started",
		"status":    "running",
		"pipelines": h.scheduler.Pipelines(),
	})
}

// StopScheduler stops cron scheduling; it returns once scheduled runs in progress have finished
func (h *Handlers) StopScheduler(c *gin.Context) {
	if err := h.scheduler.Stop(); err != nil {
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "scheduler_error",
			Message: "Failed to stop scheduler",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, gin.H{
		"message": "Scheduler stopped, scheduled runs in progress have returned",
		"status":  "stopped",
	})
}

// GetSchedulerStatus returns whether the scheduler is running and the schedule of each pipeline
func (h *Handlers) GetSchedulerStatus(c *gin.Context) {
	status := "stopped"
	if h.scheduler.IsRunning() {
		status = "running"
	}

	response := SchedulerStatusResponse{
		Status:    status,
		Pipelines: h.scheduler.Pipelines(),
	}
	if next := h.scheduler.GetNextRun(); !next.IsZero() {
		response.NextRun = &next
	}
	c.JSON(http.StatusOK, response)
}
