package action

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/logging"
	"ruok-relay-go/internal/metrics"
	"ruok-relay-go/internal/model"
	"ruok-relay-go/internal/warehouse"
)

// PipelineName identifies the action pipeline in logs, metrics and the run ledger
const PipelineName = "act"

// PendingReader reads the rows that still need outreach
type PendingReader interface {
	QueryPendingActions(ctx context.Context, table warehouse.TableRef) ([]model.PendingAction, error)
}

// Store is the warehouse surface the action pipeline needs
type Store interface {
	PendingReader
	Loader
	FlagUpdater
}

// Options configures an action run
type Options struct {
	PendingTable  warehouse.TableRef
	ActivityTable warehouse.TableRef
	DryRun        bool
	SendDelay     time.Duration
	ReferenceLink string
}

// Summary describes the outcome of an action run
type Summary struct {
	Pending   int  `json:"pending"`
	Sent      int  `json:"sent"`
	Recorded  int  `json:"recorded"`
	Committed int  `json:"committed"`
	DryRun    bool `json:"dry_run"`
	Skipped   bool `json:"skipped"`
}

// Pipeline sends outreach for every pending action, records it and flags the rows as actioned
type Pipeline struct {
	reader    PendingReader
	sender    *Sender
	recorder  *Recorder
	committer *Committer
	opts      Options
	metrics   *metrics.Metrics
	log       logrus.FieldLogger
}

// NewPipeline creates an action pipeline
func NewPipeline(store Store, poster Poster, opts Options, m *metrics.Metrics, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		reader:    store,
		sender:    NewSender(poster, opts.DryRun, opts.SendDelay),
		recorder:  NewRecorder(store, opts.ActivityTable),
		committer: NewCommitter(store, opts.PendingTable),
		opts:      opts,
		metrics:   m,
		log:       log,
	}
}

// Run performs one action pass. Rows are handled in order; the first send or record failure
// stops the pass. Users whose outreach was sent are flagged in a single trailing update,
// even when the pass stopped early.
func (p *Pipeline) Run(ctx context.Context, trigger model.TriggerContext) (Summary, error) {
	summary := Summary{DryRun: p.sender.DryRun()}
	log := p.log.WithFields(logging.TriggerFields(trigger)).WithField("pipeline", PipelineName)

	rows, err := p.reader.QueryPendingActions(ctx, p.opts.PendingTable)
	if errors.Is(err, warehouse.ErrNotFound) {
		log.WithField("table", p.opts.PendingTable.String()).Warn("Pending actions table not found, nothing to do")
		summary.Skipped = true
		return summary, nil
	}
	if err != nil {
		return summary, fmt.Errorf("failed to read pending actions: %w", err)
	}
	summary.Pending = len(rows)
	log.Infof("Found %d pending actions", len(rows))

	mode := "live"
	if summary.DryRun {
		mode = "dry_run"
	}
	activityTable := p.opts.ActivityTable.String()

	var actioned []int64
	var runErr error

	for _, row := range rows {
		rowLog := log.WithFields(logrus.Fields{
			"user_id":     row.UserID,
			"screen_name": row.LatestScreenName,
		})

		text := Compose(row, p.opts.ReferenceLink)
		result, err := p.sender.Send(ctx, text)
		if err != nil {
			rowLog.WithError(err).Error("Failed to send outreach, stopping")
			runErr = fmt.Errorf("failed to send outreach to user %d: %w", row.UserID, err)
			break
		}
		summary.Sent++
		actioned = append(actioned, row.UserID)
		p.metrics.OutreachSent.WithLabelValues(mode).Inc()
		rowLog.WithField("post_id", result.ID).Info("Outreach sent")

		record := model.ActivityRecord{
			ActionPostID:   result.ID,
			ActionedUserID: row.UserID,
			PayloadText:    text,
			CreatedAt:      result.CreatedAt,
		}
		if err := p.recorder.Record(ctx, record); err != nil {
			p.metrics.LoadJobs.WithLabelValues(activityTable, "failed").Inc()
			rowLog.WithError(err).WithField("post_id", result.ID).
				Error("Outreach was sent but its activity was not recorded, stopping")
			runErr = fmt.Errorf("failed to record outreach to user %d: %w", row.UserID, err)
			break
		}
		p.metrics.LoadJobs.WithLabelValues(activityTable, "succeeded").Inc()
		summary.Recorded++
	}

	if len(actioned) == 0 {
		log.Info("No outreach sent, skipping commit")
		return summary, runErr
	}

	// flags are committed even if the run was cancelled mid-way
	if err := p.committer.Commit(context.WithoutCancel(ctx), actioned); err != nil {
		p.metrics.CommitFailures.Inc()
		log.WithError(err).WithField("user_ids", actioned).
			Error("Failed to flag actioned users. Duplicate outreach possible!")
		return summary, errors.Join(runErr, err)
	}
	summary.Committed = len(actioned)
	log.Infof("Flagged %d users as actioned", len(actioned))

	return summary, runErr
}
