package harvest

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/logging"
	"ruok-relay-go/internal/metrics"
	"ruok-relay-go/internal/model"
	"ruok-relay-go/internal/warehouse"
)

// PipelineName identifies the harvest pipeline in logs, metrics and the run ledger
const PipelineName = "harvest"

// MemberLister returns the members of the curated list
type MemberLister interface {
	ListMembers(ctx context.Context, listID string, limit int) ([]model.ListMember, error)
}

// Loader appends newline-delimited JSON records to a warehouse table
type Loader interface {
	BulkLoad(ctx context.Context, table warehouse.TableRef, schema *warehouse.Schema, records [][]byte) error
}

// Options configures a harvest run
type Options struct {
	ListID          string
	MemberLimit     int
	MaxPostsPerUser int
	PostsTable      warehouse.TableRef
}

// Summary describes the outcome of a harvest run
type Summary struct {
	Members       int  `json:"members"`
	FailedMembers int  `json:"failed_members"`
	Fetched       int  `json:"fetched"`
	Malformed     int  `json:"malformed"`
	Posts         int  `json:"posts"`
	Loaded        bool `json:"loaded"`
}

// MemberError is a member whose timeline could not be fetched. Its posts are left for the next run.
type MemberError struct {
	UserID     int64
	ScreenName string
	Err        error
}

func (e *MemberError) Error() string {
	return fmt.Sprintf("failed to harvest user %d (%s): %v", e.UserID, e.ScreenName, e.Err)
}

func (e *MemberError) Unwrap() error { return e.Err }

// Pipeline harvests new posts of every list member into the posts table
type Pipeline struct {
	members    MemberLister
	watermarks *WatermarkResolver
	fetcher    *TimelineFetcher
	normalizer *Normalizer
	loader     Loader
	opts       Options
	metrics    *metrics.Metrics
	log        logrus.FieldLogger
}

// NewPipeline creates a harvest pipeline
func NewPipeline(members MemberLister, watermarks *WatermarkResolver, fetcher *TimelineFetcher, normalizer *Normalizer, loader Loader, opts Options, m *metrics.Metrics, log logrus.FieldLogger) *Pipeline {
	return &Pipeline{
		members:    members,
		watermarks: watermarks,
		fetcher:    fetcher,
		normalizer: normalizer,
		loader:     loader,
		opts:       opts,
		metrics:    m,
		log:        log,
	}
}

// Run performs one harvest. A watermark failure aborts the run before anything is loaded.
// A member whose timeline cannot be fetched is skipped and reported in the returned error
// after the posts of the other members have been loaded.
func (p *Pipeline) Run(ctx context.Context, trigger model.TriggerContext) (Summary, error) {
	var summary Summary
	log := p.log.WithFields(logging.TriggerFields(trigger)).WithField("pipeline", PipelineName)

	members, err := p.members.ListMembers(ctx, p.opts.ListID, p.opts.MemberLimit)
	if err != nil {
		return summary, fmt.Errorf("failed to list members: %w", err)
	}
	summary.Members = len(members)
	log.Infof("Harvesting %d list members", len(members))

	var batch [][]byte
	var memberErrs []error

	for _, member := range members {
		memberLog := log.WithFields(logrus.Fields{
			"user_id":     member.UserID,
			"screen_name": member.ScreenName,
		})
		memberLog.Info("Harvesting member")

		watermark, err := p.watermarks.Resolve(ctx, member.UserID)
		if err != nil {
			return summary, fmt.Errorf("failed to resolve watermark for user %d: %w", member.UserID, err)
		}
		if watermark == nil {
			memberLog.Info("No watermark, fetching full history")
		} else {
			memberLog.WithField("since_id", *watermark).Info("Watermark resolved")
		}

		records, fetched, malformed, err := p.harvestMember(ctx, memberLog, member.UserID, watermark)
		summary.Fetched += fetched
		summary.Malformed += malformed
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return summary, ctxErr
			}
			memberLog.WithError(err).Error("Failed to fetch timeline, skipping member")
			summary.FailedMembers++
			memberErrs = append(memberErrs, &MemberError{UserID: member.UserID, ScreenName: member.ScreenName, Err: err})
			continue
		}

		batch = append(batch, records...)
		memberLog.Infof("Fetched %d posts, %d malformed", fetched, malformed)
	}

	summary.Posts = len(batch)
	if len(batch) == 0 {
		log.Info("No new posts, skipping load")
		return summary, errors.Join(memberErrs...)
	}

	table := p.opts.PostsTable.String()
	if err := p.loader.BulkLoad(ctx, p.opts.PostsTable, warehouse.PostsSchema(), batch); err != nil {
		p.metrics.LoadJobs.WithLabelValues(table, "failed").Inc()
		return summary, errors.Join(append([]error{fmt.Errorf("failed to load posts: %w", err)}, memberErrs...)...)
	}

	summary.Loaded = true
	p.metrics.LoadJobs.WithLabelValues(table, "succeeded").Inc()
	p.metrics.PostsHarvested.Add(float64(len(batch)))
	log.WithField("table", table).Infof("Loaded %d posts", len(batch))

	return summary, errors.Join(memberErrs...)
}

// harvestMember fetches and normalizes one member's new posts. On a fetch failure the
// partial result is discarded so the watermark never skips posts that were not loaded.
func (p *Pipeline) harvestMember(ctx context.Context, log logrus.FieldLogger, userID int64, watermark *int64) ([][]byte, int, int, error) {
	var records [][]byte
	fetched, malformed := 0, 0

	for raw, err := range p.fetcher.Fetch(ctx, userID, watermark, p.opts.MaxPostsPerUser) {
		if err != nil {
			return nil, fetched, malformed, err
		}
		fetched++

		post, err := p.normalizer.Normalize(raw)
		if err != nil {
			var malformedErr *MalformedRecordError
			if !errors.As(err, &malformedErr) {
				return nil, fetched, malformed, err
			}
			malformed++
			p.metrics.MalformedRecords.Inc()
			log.WithError(err).Warn("Skipping malformed post")
			continue
		}

		record, err := json.Marshal(post)
		if err != nil {
			return nil, fetched, malformed, fmt.Errorf("failed to encode post %d: %w", post.ID, err)
		}
		records = append(records, record)
	}

	return records, fetched, malformed, nil
}
