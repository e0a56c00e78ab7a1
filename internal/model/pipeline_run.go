package model

import (
	"time"
)

// Run statuses recorded in the ledger
const (
	RunStatusRunning   = "running"
	RunStatusSucceeded = "succeeded"
	RunStatusFailed    = "failed"
	RunStatusSkipped   = "skipped"
)

// PipelineRun represents one invocation of the harvest or act pipeline
type PipelineRun struct {
	ID            string     `json:"id" gorm:"primaryKey;type:varchar(36)"`
	Pipeline      string     `json:"pipeline" gorm:"type:varchar(32);not null;index"`
	TriggerID     string     `json:"trigger_id" gorm:"type:varchar(255)"`
	TriggerTime   string     `json:"trigger_time" gorm:"type:varchar(64)"`
	TriggerSource string     `json:"trigger_source" gorm:"type:varchar(255)"`
	Status        string     `json:"status" gorm:"type:varchar(20);not null"` // running, succeeded, failed, skipped
	Items         int        `json:"items"`
	ErrorMsg      string     `json:"error_msg" gorm:"type:text"`
	StartedAt     time.Time  `json:"started_at" gorm:"index"`
	FinishedAt    *time.Time `json:"finished_at"`
}

// TableName specifies the table name for PipelineRun
func (PipelineRun) TableName() string {
	return "pipeline_runs"
}

// RunResult is what a triggered run reports back to its caller
type RunResult struct {
	RunID    string      `json:"run_id,omitempty"`
	Pipeline string      `json:"pipeline"`
	Status   string      `json:"status"`
	Summary  interface{} `json:"summary,omitempty"`
}

// PipelineSchedule describes when a pipeline is scheduled to run
type PipelineSchedule struct {
	Pipeline string     `json:"pipeline"`
	Spec     string     `json:"spec"`
	NextRun  *time.Time `json:"next_run,omitempty"`
	LastRun  *time.Time `json:"last_run,omitempty"`
}
