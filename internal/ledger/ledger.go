package ledger

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"gorm.io/gorm"

	"ruok-relay-go/internal/model"
)

var (
	// ErrLocked is returned when another process holds the pipeline's lock
	ErrLocked = errors.New("pipeline is already running")
	// ErrRunNotFound is returned when no run has the requested id
	ErrRunNotFound = errors.New("run not found")
)

const lockPrefix = "ruok_relay_"

// Ledger records pipeline runs in MySQL and serializes runs across processes
type Ledger struct {
	db  *gorm.DB
	now func() time.Time
}

// New creates a ledger on top of an initialized database
func New(db *gorm.DB) *Ledger {
	return &Ledger{db: db, now: time.Now}
}

// Begin records the start of a run
func (l *Ledger) Begin(ctx context.Context, pipeline string, trigger model.TriggerContext) (*model.PipelineRun, error) {
	run := &model.PipelineRun{
		ID:            uuid.NewString(),
		Pipeline:      pipeline,
		TriggerID:     trigger.EventID,
		TriggerTime:   trigger.Timestamp,
		TriggerSource: trigger.Source,
		Status:        model.RunStatusRunning,
		StartedAt:     l.now().UTC(),
	}

	if err := l.db.WithContext(ctx).Create(run).Error; err != nil {
		return nil, fmt.Errorf("failed to record run start: %w", err)
	}
	return run, nil
}

// Finish records the outcome of a run
func (l *Ledger) Finish(ctx context.Context, run *model.PipelineRun, status string, items int, runErr error) error {
	finished := l.now().UTC()
	run.Status = status
	run.Items = items
	run.FinishedAt = &finished
	if runErr != nil {
		run.ErrorMsg = runErr.Error()
	}

	result := l.db.WithContext(ctx).Model(&model.PipelineRun{}).Where("id = ?", run.ID).Updates(map[string]interface{}{
		"status":      run.Status,
		"items":       run.Items,
		"error_msg":   run.ErrorMsg,
		"finished_at": finished,
	})
	if result.Error != nil {
		return fmt.Errorf("failed to record run finish: %w", result.Error)
	}
	return nil
}

// List returns the most recent runs, optionally filtered by pipeline
func (l *Ledger) List(ctx context.Context, pipeline string, limit int) ([]model.PipelineRun, error) {
	var runs []model.PipelineRun

	query := l.db.WithContext(ctx)
	if pipeline != "" {
		query = query.Where("pipeline = ?", pipeline)
	}
	if err := query.Order("started_at DESC").Limit(limit).Find(&runs).Error; err != nil {
		return nil, fmt.Errorf("failed to list runs: %w", err)
	}
	return runs, nil
}

// Get returns a single run
func (l *Ledger) Get(ctx context.Context, id string) (*model.PipelineRun, error) {
	var run model.PipelineRun

	err := l.db.WithContext(ctx).Where("id = ?", id).First(&run).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return nil, ErrRunNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get run %s: %w", id, err)
	}
	return &run, nil
}

// WithLock runs fn while holding the named MySQL advisory lock. It does not wait:
// ErrLocked is returned at once when the lock is held elsewhere.
func (l *Ledger) WithLock(ctx context.Context, name string, fn func(ctx context.Context) error) error {
	lockName := lockPrefix + name

	return l.db.WithContext(ctx).Connection(func(tx *gorm.DB) error {
		var acquired sql.NullInt64
		if err := tx.WithContext(ctx).Raw("SELECT GET_LOCK(?, 0)", lockName).Row().Scan(&acquired); err != nil {
			return fmt.Errorf("failed to acquire lock %s: %w", lockName, err)
		}
		if !acquired.Valid || acquired.Int64 != 1 {
			return ErrLocked
		}

		defer func() {
			var released sql.NullInt64
			// the lock dies with the connection if this fails
			tx.WithContext(context.WithoutCancel(ctx)).Raw("SELECT RELEASE_LOCK(?)", lockName).Row().Scan(&released)
		}()

		return fn(ctx)
	})
}

// Ping checks the ledger database connection
func (l *Ledger) Ping(ctx context.Context) error {
	sqlDB, err := l.db.DB()
	if err != nil {
		return fmt.Errorf("failed to get underlying SQL DB: %w", err)
	}
	return sqlDB.PingContext(ctx)
}
