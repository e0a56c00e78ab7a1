package app

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/action"
	"ruok-relay-go/internal/harvest"
	"ruok-relay-go/internal/ledger"
	"ruok-relay-go/internal/logging"
	"ruok-relay-go/internal/metrics"
	"ruok-relay-go/internal/model"
)

// ErrUnknownPipeline is returned for a pipeline name other than harvest or act
var ErrUnknownPipeline = errors.New("unknown pipeline")

// HarvestPipeline runs one harvest
type HarvestPipeline interface {
	Run(ctx context.Context, trigger model.TriggerContext) (harvest.Summary, error)
}

// ActionPipeline runs one action pass
type ActionPipeline interface {
	Run(ctx context.Context, trigger model.TriggerContext) (action.Summary, error)
}

// RunLedger records runs and keeps two processes from running the same pipeline
type RunLedger interface {
	Begin(ctx context.Context, pipeline string, trigger model.TriggerContext) (*model.PipelineRun, error)
	Finish(ctx context.Context, run *model.PipelineRun, status string, items int, runErr error) error
	WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error
}

// Runner is the single entry point through which the CLI, the scheduler and the HTTP
// triggers start pipelines
type Runner struct {
	harvest HarvestPipeline
	act     ActionPipeline
	ledger  RunLedger
	metrics *metrics.Metrics
	log     logrus.FieldLogger

	// running holds one lock per pipeline; cron, HTTP triggers and run-once share it
	running map[string]*sync.Mutex
}

// NewRunner creates a runner. runLedger may be nil, in which case runs are neither
// recorded nor locked across processes; runs in this process are always exclusive
// per pipeline.
func NewRunner(h HarvestPipeline, a ActionPipeline, runLedger RunLedger, m *metrics.Metrics, log logrus.FieldLogger) *Runner {
	return &Runner{
		harvest: h,
		act:     a,
		ledger:  runLedger,
		metrics: m,
		log:     log,
		running: map[string]*sync.Mutex{
			harvest.PipelineName: {},
			action.PipelineName:  {},
		},
	}
}

// Run starts the named pipeline
func (r *Runner) Run(ctx context.Context, pipeline string, trigger model.TriggerContext) (model.RunResult, error) {
	switch pipeline {
	case harvest.PipelineName:
		return r.Harvest(ctx, trigger)
	case action.PipelineName:
		return r.Act(ctx, trigger)
	default:
		return model.RunResult{Pipeline: pipeline}, fmt.Errorf("%w: %q", ErrUnknownPipeline, pipeline)
	}
}

// Harvest runs the harvest pipeline
func (r *Runner) Harvest(ctx context.Context, trigger model.TriggerContext) (model.RunResult, error) {
	return r.execute(ctx, harvest.PipelineName, trigger, func(ctx context.Context) (interface{}, int, bool, error) {
		summary, err := r.harvest.Run(ctx, trigger)
		return summary, summary.Posts, false, err
	})
}

// Act runs the action pipeline
func (r *Runner) Act(ctx context.Context, trigger model.TriggerContext) (model.RunResult, error) {
	return r.execute(ctx, action.PipelineName, trigger, func(ctx context.Context) (interface{}, int, bool, error) {
		summary, err := r.act.Run(ctx, trigger)
		return summary, summary.Sent, summary.Skipped, err
	})
}

type runFunc func(ctx context.Context) (summary interface{}, items int, skipped bool, err error)

func (r *Runner) execute(ctx context.Context, pipeline string, trigger model.TriggerContext, run runFunc) (model.RunResult, error) {
	result := model.RunResult{Pipeline: pipeline}
	log := r.log.WithFields(logging.TriggerFields(trigger)).WithField("pipeline", pipeline)
	start := time.Now()

	body := func(ctx context.Context) error {
		var record *model.PipelineRun
		if r.ledger != nil {
			var err error
			record, err = r.ledger.Begin(ctx, pipeline, trigger)
			if err != nil {
				return err
			}
			result.RunID = record.ID
			log = log.WithField("run_id", record.ID)
		}

		log.Info("Pipeline run started")
		summary, items, skipped, runErr := run(ctx)
		result.Summary = summary

		switch {
		case runErr != nil:
			result.Status = model.RunStatusFailed
		case skipped:
			result.Status = model.RunStatusSkipped
		default:
			result.Status = model.RunStatusSucceeded
		}

		if record != nil {
			if err := r.ledger.Finish(context.WithoutCancel(ctx), record, result.Status, items, runErr); err != nil {
				log.WithError(err).Warn("Failed to record run outcome")
			}
		}
		return runErr
	}

	guard := r.running[pipeline]
	if !guard.TryLock() {
		log.Warn("Pipeline is already running in this process, skipping")
		r.metrics.Runs.WithLabelValues(pipeline, "locked").Inc()
		return result, fmt.Errorf("%s run rejected: %w", pipeline, ledger.ErrLocked)
	}
	defer guard.Unlock()

	var err error
	if r.ledger != nil {
		err = r.ledger.WithLock(ctx, pipeline, body)
	} else {
		err = body(ctx)
	}

	if errors.Is(err, ledger.ErrLocked) {
		log.Warn("Pipeline is already running elsewhere, skipping")
		r.metrics.Runs.WithLabelValues(pipeline, "locked").Inc()
		return result, err
	}
	if result.Status == "" {
		result.Status = model.RunStatusFailed
	}

	duration := time.Since(start)
	r.metrics.Runs.WithLabelValues(pipeline, result.Status).Inc()
	r.metrics.RunDuration.WithLabelValues(pipeline).Observe(duration.Seconds())

	if err != nil {
		log.WithError(err).WithField("status", result.Status).Errorf("Pipeline run failed after %v", duration)
		return result, fmt.Errorf("%s run failed: %w", pipeline, err)
	}
	log.WithField("status", result.Status).Infof("Pipeline run completed in %v", duration)
	return result, nil
}
