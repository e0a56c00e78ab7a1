package handler

import (
	"time"

	"ruok-relay-go/internal/model"
)

// PushRequest is a Pub/Sub push delivery. Only its identifiers are used; the payload is ignored.
type PushRequest struct {
	Message struct {
		MessageID   string            `json:"messageId"`
		PublishTime string            `json:"publishTime"`
		Data        []byte            `json:"data"`
		Attributes  map[string]string `json:"attributes"`
	} `json:"message"`
	Subscription string `json:"subscription"`
}

// RunListResponse represents the response structure for listing runs
type RunListResponse struct {
	Runs  []model.PipelineRun `json:"runs"`
	Count int                 `json:"count"`
}

// HealthResponse represents the health check response
type HealthResponse struct {
	Status    string            `json:"status"`
	Timestamp time.Time         `json:"timestamp"`
	Database  string            `json:"database"`
	Metrics   map[string]string `json:"metrics,omitempty"`
}

// SchedulerStatusResponse reports the scheduler state and per-pipeline schedules
type SchedulerStatusResponse struct {
	Status    string                   `json:"status"`
	NextRun   *time.Time               `json:"next_run,omitempty"`
	Pipelines []model.PipelineSchedule `json:"pipelines"`
}

// ErrorResponse represents an error response
type ErrorResponse struct {
	Error   string `json:"error"`
	Message string `json:"message"`
	Code    int    `json:"code"`
}
