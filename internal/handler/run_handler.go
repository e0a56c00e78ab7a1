package handler

import (
	"errors"
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"
	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/ledger"
)

const (
	defaultRunLimit = 20
	maxRunLimit     = 200
)

// GetRuns lists recent pipeline runs
func (h *Handlers) GetRuns(c *gin.Context) {
	if !h.ledgerEnabled(c) {
		return
	}

	limit := defaultRunLimit
	if raw := c.Query("limit"); raw != "" {
		parsed, err := strconv.Atoi(raw)
		if err != nil || parsed <= 0 {
			c.JSON(http.StatusBadRequest, ErrorResponse{
				Error:   "invalid_limit",
				Message: "limit must be a positive integer",
				Code:    http.StatusBadRequest,
			})
			return
		}
		limit = min(parsed, maxRunLimit)
	}

	runs, err := h.runs.List(c.Request.Context(), c.Query("pipeline"), limit)
	if err != nil {
		logrus.Errorf("Failed to list runs: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve runs",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, RunListResponse{Runs: runs, Count: len(runs)})
}

// GetRun returns a single pipeline run
func (h *Handlers) GetRun(c *gin.Context) {
	if !h.ledgerEnabled(c) {
		return
	}

	run, err := h.runs.Get(c.Request.Context(), c.Param("id"))
	if errors.Is(err, ledger.ErrRunNotFound) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Run not found",
			Code:    http.StatusNotFound,
		})
		return
	}
	if err != nil {
		logrus.Errorf("Failed to get run: %v", err)
		c.JSON(http.StatusInternalServerError, ErrorResponse{
			Error:   "database_error",
			Message: "Failed to retrieve run",
			Code:    http.StatusInternalServerError,
		})
		return
	}

	c.JSON(http.StatusOK, run)
}

func (h *Handlers) ledgerEnabled(c *gin.Context) bool {
	if h.runs != nil {
		return true
	}
	c.JSON(http.StatusServiceUnavailable, ErrorResponse{
		Error:   "ledger_disabled",
		Message: "Run ledger is not configured",
		Code:    http.StatusServiceUnavailable,
	})
	return false
}
