package action

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/metrics"
	"ruok-relay-go/internal/model"
	"ruok-relay-go/internal/warehouse"
)

var (
	testPendingTable  = warehouse.TableRef{Dataset: "analysis", Table: "ruok_actions"}
	testActivityTable = warehouse.TableRef{Dataset: "social", Table: "activity"}
)

func pendingRow(userID int64) model.PendingAction {
	return model.PendingAction{
		UserID:            userID,
		LatestScreenName:  fmt.Sprintf("user%d", userID),
		DaysSinceLastPost: 9,
		BaselineDailyRate: 2.25,
		RecentDailyRate:   0.1,
	}
}

// fakeStore keeps pending rows and activity in memory
type fakeStore struct {
	tableMissing bool
	readErr      error
	rows         []model.PendingAction
	activity     []model.ActivityRecord
	loadErrAt    int // fail the nth activity load (1-based), 0 never
	loadCalls    int
	updateErr    error
	updates      [][]int64
}

func (s *fakeStore) QueryPendingActions(ctx context.Context, table warehouse.TableRef) ([]model.PendingAction, error) {
	if s.tableMissing {
		return nil, fmt.Errorf("%s: %w", table, warehouse.ErrNotFound)
	}
	if s.readErr != nil {
		return nil, s.readErr
	}

	var pending []model.PendingAction
	for _, row := range s.rows {
		if !row.Actioned {
			pending = append(pending, row)
		}
	}
	return pending, nil
}

func (s *fakeStore) BulkLoad(ctx context.Context, table warehouse.TableRef, schema *warehouse.Schema, records [][]byte) error {
	s.loadCalls++
	if s.loadErrAt == s.loadCalls {
		return fmt.Errorf("backendError")
	}

	for _, data := range records {
		var record model.ActivityRecord
		if err := json.Unmarshal(data, &record); err != nil {
			return err
		}
		s.activity = append(s.activity, record)
	}
	return nil
}

func (s *fakeStore) UpdateActionedFlag(ctx context.Context, table warehouse.TableRef, userIDs []int64) error {
	if s.updateErr != nil {
		return s.updateErr
	}
	s.updates = append(s.updates, userIDs)

	flagged := make(map[int64]bool, len(userIDs))
	for _, id := range userIDs {
		flagged[id] = true
	}
	for i := range s.rows {
		if flagged[s.rows[i].UserID] {
			s.rows[i].Actioned = true
		}
	}
	return nil
}

// fakePoster publishes into a slice and can fail on the nth call
type fakePoster struct {
	failAt int // 1-based, 0 never
	calls  int
	sent   []string
	nextID int64
}

func (p *fakePoster) PostMessage(ctx context.Context, text string) (model.SendResult, error) {
	p.calls++
	if p.failAt == p.calls {
		return model.SendResult{}, fmt.Errorf("status is a duplicate")
	}
	p.sent = append(p.sent, text)
	p.nextID++
	return model.SendResult{ID: 1000 + p.nextID, CreatedAt: "Fri Aug 13 10:00:00 +0000 2021"}, nil
}

func activityCounts(store *fakeStore) map[int64]int {
	counts := make(map[int64]int)
	for _, record := range store.activity {
		counts[record.ActionedUserID]++
	}
	return counts
}

func newTestPipeline(store *fakeStore, poster Poster, dryRun bool) (*Pipeline, *[]time.Duration) {
	logger := logrus.New()
	logger.SetOutput(io.Discard)

	pipeline := NewPipeline(store, poster, Options{
		PendingTable:  testPendingTable,
		ActivityTable: testActivityTable,
		DryRun:        dryRun,
		SendDelay:     time.Second,
		ReferenceLink: DefaultReferenceLink,
	}, metrics.NewMetrics(prometheus.NewRegistry()), logger)

	var waits []time.Duration
	pipeline.sender.sleep = func(ctx context.Context, d time.Duration) error {
		waits = append(waits, d)
		return nil
	}
	return pipeline, &waits
}
