package handler

import (
	"errors"
	"io"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/action"
	"ruok-relay-go/internal/harvest"
	"ruok-relay-go/internal/ledger"
	"ruok-relay-go/internal/model"
)

// Trigger runs a pipeline for a push delivery and answers once the run has finished.
// A non-2xx answer makes the publisher redeliver.
func (h *Handlers) Trigger(c *gin.Context) {
	pipeline := c.Param("pipeline")
	if !knownPipeline(pipeline) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Unknown pipeline " + pipeline,
			Code:    http.StatusNotFound,
		})
		return
	}

	var req PushRequest
	if err := c.ShouldBindJSON(&req); err != nil && !errors.Is(err, io.EOF) {
		c.JSON(http.StatusBadRequest, ErrorResponse{
			Error:   "validation_error",
			Message: err.Error(),
			Code:    http.StatusBadRequest,
		})
		return
	}

	result, err := h.runner.Run(c.Request.Context(), pipeline, triggerFromPush(req))
	h.respondRun(c, result, err)
}

// RunOnce runs a pipeline immediately through the scheduler
func (h *Handlers) RunOnce(c *gin.Context) {
	pipeline := c.Param("pipeline")
	if !knownPipeline(pipeline) {
		c.JSON(http.StatusNotFound, ErrorResponse{
			Error:   "not_found",
			Message: "Unknown pipeline " + pipeline,
			Code:    http.StatusNotFound,
		})
		return
	}

	result, err := h.scheduler.RunOnce(c.Request.Context(), pipeline)
	h.respondRun(c, result, err)
}

func (h *Handlers) respondRun(c *gin.Context, result model.RunResult, err error) {
	switch {
	case errors.Is(err, ledger.ErrLocked):
		c.JSON(http.StatusConflict, ErrorResponse{
			Error:   "already_running",
			Message: err.Error(),
			Code:    http.StatusConflict,
		})
	case err != nil:
		logrus.WithError(err).WithField("pipeline", result.Pipeline).Error("Triggered run failed")
		c.JSON(http.StatusInternalServerError, gin.H{
			"error":  "run_failed",
			"result": result,
			"code":   http.StatusInternalServerError,
		})
	default:
		c.JSON(http.StatusOK, result)
	}
}

func triggerFromPush(req PushRequest) model.TriggerContext {
	trigger := model.TriggerContext{
		EventID:   req.Message.MessageID,
		Timestamp: req.Message.PublishTime,
		Source:    req.Subscription,
	}
	if trigger.EventID == "" {
		trigger.EventID = uuid.NewString()
	}
	if trigger.Source == "" {
		trigger.Source = "http"
	}
	return trigger
}

func knownPipeline(name string) bool {
	return name == harvest.PipelineName || name == action.PipelineName
}
