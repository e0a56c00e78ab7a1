package handler

import (
	"context"
	"net/http"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/model"
)

// Runner starts pipeline runs
type Runner interface {
	Run(ctx context.Context, pipeline string, trigger model.TriggerContext) (model.RunResult, error)
}

// RunStore reads the run ledger
type RunStore interface {
	List(ctx context.Context, pipeline string, limit int) ([]model.PipelineRun, error)
	Get(ctx context.Context, id string) (*model.PipelineRun, error)
	Ping(ctx context.Context) error
}

// Scheduler controls scheduled runs
type Scheduler interface {
	Start() error
	Stop() error
	IsRunning() bool
	RunOnce(ctx context.Context, pipeline string) (model.RunResult, error)
	GetNextRun() time.Time
	Pipelines() []model.PipelineSchedule
}

// Handlers contains all HTTP handlers
type Handlers struct {
	runner    Runner
	runs      RunStore
	scheduler Scheduler
	gatherer  prometheus.Gatherer
}

// NewHandlers creates new HTTP handlers. runs may be nil when the ledger is disabled.
func NewHandlers(runner Runner, runs RunStore, scheduler Scheduler, gatherer prometheus.Gatherer) *Handlers {
	return &Handlers{
		runner:    runner,
		runs:      runs,
		scheduler: scheduler,
		gatherer:  gatherer,
	}
}

// SetupRoutes sets up all HTTP routes
func (h *Handlers) SetupRoutes(router *gin.Engine) {
	router.GET("/healthz", h.HealthCheck)
	router.GET("/metrics", gin.WrapH(promhttp.HandlerFor(h.gatherer, promhttp.HandlerOpts{})))

	api := router.Group("/api/v1")
	{
		api.POST("/trigger/:pipeline", h.Trigger)

		api.GET("/runs", h.GetRuns)
		api.GET("/runs/:id", h.GetRun)

		api.POST("/scheduler/start", h.StartScheduler)
		api.POST("/scheduler/stop", h.StopScheduler)
		api.POST("/scheduler/run-once/:pipeline", h.RunOnce)
		api.GET("/scheduler/status", h.GetSchedulerStatus)
	}
}

// HealthCheck handles health check requests
func (h *Handlers) HealthCheck(c *gin.Context) {
	response := HealthResponse{
		Status:    "ok",
		Timestamp: time.Now(),
		Database:  "disabled",
		Metrics:   make(map[string]string),
	}

	if h.runs != nil {
		response.Database = "ok"
		if err := h.runs.Ping(c.Request.Context()); err != nil {
			response.Status = "error"
			response.Database = "error"
			logrus.Errorf("Database health check failed: %v", err)
		}
	}

	if h.scheduler.IsRunning() {
		response.Metrics["scheduler"] = "running"
		response.Metrics["next_run"] = h.scheduler.GetNextRun().Format(time.RFC3339)
	} else {
		response.Metrics["scheduler"] = "stopped"
	}

	statusCode := http.StatusOK
	if response.Status == "error" {
		statusCode = http.StatusServiceUnavailable
	}

	c.JSON(statusCode, response)
}
