package router

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruok-relay-go/internal/handler"
	"ruok-relay-go/internal/model"
)

type idleScheduler struct{}

func (idleScheduler) Start() error          { return nil }
func (idleScheduler) Stop() error           { return nil }
func (idleScheduler) IsRunning() bool       { return false }
func (idleScheduler) GetNextRun() time.Time { return time.Time{} }
func (idleScheduler) Pipelines() []model.PipelineSchedule { return nil }
func (idleScheduler) RunOnce(ctx context.Context, pipeline string) (model.RunResult, error) {
	return model.RunResult{Pipeline: pipeline}, nil
}

func TestSetupRouterServesHealth(t *testing.T) {
	h := handler.NewHandlers(nil, nil, idleScheduler{}, prometheus.NewRegistry())
	r := SetupRouter(h)

	w := httptest.NewRecorder()
	r.ServeHTTP(w, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestLoggerMiddleware(t *testing.T) {
	gin.SetMode(gin.TestMode)
	logger, hook := test.NewNullLogger()

	r := gin.New()
	r.Use(loggerMiddleware(logger))
	r.GET("/healthz", func(c *gin.Context) { c.Status(http.StatusOK) })
	r.GET("/api/v1/runs/:id", func(c *gin.Context) { c.Status(http.StatusNotFound) })

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Empty(t, hook.AllEntries())

	r.ServeHTTP(httptest.NewRecorder(), httptest.NewRequest(http.MethodGet, "/api/v1/runs/x", nil))
	require.Len(t, hook.AllEntries(), 1)
	entry := hook.LastEntry()
	assert.Equal(t, logrus.WarnLevel, entry.Level)
	assert.Equal(t, http.StatusNotFound, entry.Data["status"])
	assert.Equal(t, "/api/v1/runs/x", entry.Data["path"])
}
