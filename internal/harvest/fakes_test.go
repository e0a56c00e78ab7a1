package harvest

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/sirupsen/logrus"

	"ruok-relay-go/internal/feed"
	"ruok-relay-go/internal/metrics"
	"ruok-relay-go/internal/model"
	"ruok-relay-go/internal/warehouse"
)

var (
	testPostsTable = warehouse.TableRef{Dataset: "social", Table: "tweets"}
	testClock      = time.Date(2021, 8, 12, 16, 0, 0, 0, time.UTC)
)

func ptr[T any](v T) *T { return &v }

func rawPost(id, userID int64) model.RawPost {
	return model.RawPost{
		ID:        ptr(id),
		CreatedAt: "Thu Aug 12 16:11:58 +0000 2021",
		User: &model.RawUser{
			ID:         ptr(userID),
			Name:       fmt.Sprintf("User %d", userID),
			ScreenName: fmt.Sprintf("user%d", userID),
		},
		FullText: fmt.Sprintf("post %d", id),
	}
}

// timeline builds a newest-first timeline from ids given newest first
func timeline(userID int64, ids ...int64) []model.RawPost {
	posts := make([]model.RawPost, 0, len(ids))
	for _, id := range ids {
		posts = append(posts, rawPost(id, userID))
	}
	return posts
}

// fakeFeed serves list members and timelines the way the feed API bounds them
type fakeFeed struct {
	mu        sync.Mutex
	members   []model.ListMember
	timelines map[int64][]model.RawPost
	failUsers map[int64]error
	requests  []feed.PageRequest
}

func (f *fakeFeed) ListMembers(ctx context.Context, listID string, limit int) ([]model.ListMember, error) {
	return f.members[:min(limit, len(f.members))], nil
}

func (f *fakeFeed) TimelinePage(ctx context.Context, req feed.PageRequest) ([]model.RawPost, error) {
	f.mu.Lock()
	defer f.mu.Unlock()

	f.requests = append(f.requests, req)
	if err := f.failUsers[req.UserID]; err != nil {
		return nil, err
	}

	var page []model.RawPost
	for _, post := range f.timelines[req.UserID] {
		if req.SinceID != nil && *post.ID <= *req.SinceID {
			continue
		}
		if req.MaxID != nil && *post.ID > *req.MaxID {
			continue
		}
		page = append(page, post)
		if len(page) == req.Count {
			break
		}
	}
	return page, nil
}

func (f *fakeFeed) requestsFor(userID int64) []feed.PageRequest {
	f.mu.Lock()
	defer f.mu.Unlock()

	var reqs []feed.PageRequest
	for _, req := range f.requests {
		if req.UserID == userID {
			reqs = append(reqs, req)
		}
	}
	return reqs
}

// fakeWarehouse keeps loaded posts in memory and answers max id lookups from them
type fakeWarehouse struct {
	tableExists bool
	maxIDErr    error
	loadErr     error
	loads       int
	rows        []model.Post
}

func (w *fakeWarehouse) QueryMaxID(ctx context.Context, table warehouse.TableRef, userID int64) (*int64, error) {
	if w.maxIDErr != nil {
		return nil, w.maxIDErr
	}
	if !w.tableExists {
		return nil, fmt.Errorf("%s: %w", table, warehouse.ErrNotFound)
	}

	var maxID *int64
	for _, row := range w.rows {
		if row.User.ID == userID && (maxID == nil || row.ID > *maxID) {
			maxID = ptr(row.ID)
		}
	}
	return maxID, nil
}

func (w *fakeWarehouse) BulkLoad(ctx context.Context, table warehouse.TableRef, schema *warehouse.Schema, records [][]byte) error {
	if w.loadErr != nil {
		return &warehouse.LoadError{Table: table.String(), Err: w.loadErr}
	}

	for _, record := range records {
		var post model.Post
		if err := json.Unmarshal(record, &post); err != nil {
			return err
		}
		w.rows = append(w.rows, post)
	}
	w.loads++
	w.tableExists = true
	return nil
}

func (w *fakeWarehouse) idsFor(userID int64) []int64 {
	var ids []int64
	for _, row := range w.rows {
		if row.User.ID == userID {
			ids = append(ids, row.ID)
		}
	}
	return ids
}

// pagerFunc adapts a function to TimelinePager
type pagerFunc func(ctx context.Context, req feed.PageRequest) ([]model.RawPost, error)

func (f pagerFunc) TimelinePage(ctx context.Context, req feed.PageRequest) ([]model.RawPost, error) {
	return f(ctx, req)
}

func newTestLogger() *logrus.Logger {
	logger := logrus.New()
	logger.SetOutput(io.Discard)
	return logger
}

func newTestPipeline(f *fakeFeed, w *fakeWarehouse, pageSize int) *Pipeline {
	return NewPipeline(
		f,
		NewWatermarkResolver(w, testPostsTable),
		NewTimelineFetcher(f, pageSize),
		NewNormalizer(func() time.Time { return testClock }),
		w,
		Options{
			ListID:          "42",
			MemberLimit:     1000,
			MaxPostsPerUser: DefaultMaxPostsPerUser,
			PostsTable:      testPostsTable,
		},
		metrics.NewMetrics(prometheus.NewRegistry()),
		newTestLogger(),
	)
}
