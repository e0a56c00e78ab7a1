package scheduler

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/robfig/cron/v3"
	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/action"
	"ruok-relay-go/internal/config"
	"ruok-relay-go/internal/harvest"
	"ruok-relay-go/internal/model"
)

// PipelineRunner starts a pipeline run
type PipelineRunner interface {
	Run(ctx context.Context, pipeline string, trigger model.TriggerContext) (model.RunResult, error)
}

// Scheduler runs the harvest and act pipelines on their cron specs
type Scheduler struct {
	cron      *cron.Cron
	entries   map[string]cron.EntryID
	config    *config.SchedulerConfig
	runner    PipelineRunner
	ctx       context.Context
	cancel    context.CancelFunc
	isRunning bool
	lastRuns  map[string]time.Time
	mu        sync.RWMutex
}

// NewScheduler creates a new scheduler
func NewScheduler(cfg *config.SchedulerConfig, runner PipelineRunner) *Scheduler {
	return &Scheduler{
		config:   cfg,
		runner:   runner,
		lastRuns: make(map[string]time.Time),
	}
}

// Start starts the scheduler
func (s *Scheduler) Start() error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.isRunning {
		return fmt.Errorf("scheduler is already running")
	}

	// a run still in progress when its next tick fires is not started twice
	c := cron.New(
		cron.WithSeconds(),
		cron.WithChain(cron.SkipIfStillRunning(cron.VerbosePrintfLogger(logrus.StandardLogger()))),
	)

	specs := map[string]string{
		harvest.PipelineName: s.config.HarvestSpec,
		action.PipelineName:  s.config.ActionSpec,
	}
	entries := make(map[string]cron.EntryID, len(specs))
	for pipeline, spec := range specs {
		if spec == "" {
			logrus.Infof("No schedule configured for %s", pipeline)
			continue
		}
		entryID, err := c.AddFunc(spec, s.job(pipeline))
		if err != nil {
			return fmt.Errorf("failed to add cron job for %s: %w", pipeline, err)
		}
		entries[pipeline] = entryID
	}

	s.ctx, s.cancel = context.WithCancel(context.Background())
	s.cron = c
	s.entries = entries
	s.cron.Start()
	s.isRunning = true

	logrus.Infof("Scheduler started with harvest spec %q and act spec %q", s.config.HarvestSpec, s.config.ActionSpec)
	return nil
}

// Stop stops the scheduler and waits for scheduled runs in progress to return
func (s *Scheduler) Stop() error {
	s.mu.Lock()
	if !s.isRunning {
		s.mu.Unlock()
		return nil
	}

	// Cancel context to stop any running pipeline
	s.cancel()
	done := s.cron.Stop()
	s.isRunning = false
	s.mu.Unlock()

	// Wait for running jobs to complete
	select {
	case <-done.Done():
		logrus.Info("Scheduler stopped gracefully")
	case <-time.After(30 * time.Second):
		logrus.Warn("Scheduler stop timeout, forcing shutdown")
	}
	return nil
}

// IsRunning returns whether the scheduler is running
func (s *Scheduler) IsRunning() bool {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.isRunning
}

// RunOnce runs a pipeline immediately, outside the schedule
func (s *Scheduler) RunOnce(ctx context.Context, pipeline string) (model.RunResult, error) {
	now := time.Now()
	s.setLastRun(pipeline, now)
	return s.runner.Run(ctx, pipeline, model.NewCronTrigger(uuid.NewString(), pipeline, now))
}

// GetNextRun returns the earliest upcoming scheduled run, zero when stopped
func (s *Scheduler) GetNextRun() time.Time {
	var next time.Time
	for _, p := range s.Pipelines() {
		if p.NextRun != nil && (next.IsZero() || p.NextRun.Before(next)) {
			next = *p.NextRun
		}
	}
	return next
}

// Pipelines reports the schedule of each pipeline: its cron spec, next scheduled
// run while the scheduler is running, and the last run it started
func (s *Scheduler) Pipelines() []model.PipelineSchedule {
	s.mu.RLock()
	defer s.mu.RUnlock()

	specs := []struct{ pipeline, spec string }{
		{harvest.PipelineName, s.config.HarvestSpec},
		{action.PipelineName, s.config.ActionSpec},
	}
	schedules := make([]model.PipelineSchedule, 0, len(specs))
	for _, p := range specs {
		schedule := model.PipelineSchedule{Pipeline: p.pipeline, Spec: p.spec}
		if id, ok := s.entries[p.pipeline]; ok && s.isRunning {
			if next := s.cron.Entry(id).Next; !next.IsZero() {
				schedule.NextRun = &next
			}
		}
		if last, ok := s.lastRuns[p.pipeline]; ok {
			schedule.LastRun = &last
		}
		schedules = append(schedules, schedule)
	}
	return schedules
}

func (s *Scheduler) setLastRun(pipeline string, t time.Time) {
	s.mu.Lock()
	s.lastRuns[pipeline] = t
	s.mu.Unlock()
}

// job returns the cron callback for a pipeline
func (s *Scheduler) job(pipeline string) func() {
	return func() {
		s.mu.RLock()
		if !s.isRunning {
			s.mu.RUnlock()
			logrus.Info("Scheduler not running, skipping scheduled run")
			return
		}
		ctx := s.ctx
		s.mu.RUnlock()

		now := time.Now()
		s.setLastRun(pipeline, now)

		trigger := model.NewCronTrigger(uuid.NewString(), pipeline, now)
		if _, err := s.runner.Run(ctx, pipeline, trigger); err != nil {
			logrus.WithError(err).WithField("pipeline", pipeline).Error("Scheduled run failed")
		}
	}
}
