package harvest

import (
	"context"
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"ruok-relay-go/internal/feed"
	"ruok-relay-go/internal/model"
	"ruok-relay-go/internal/warehouse"
)

var testTrigger = model.TriggerContext{EventID: "evt-1", Timestamp: "2021-08-12T16:00:00Z", Source: "test"}

func twoMemberFeed() *fakeFeed {
	return &fakeFeed{
		members: []model.ListMember{
			{UserID: 1, ScreenName: "user1"},
			{UserID: 2, ScreenName: "user2"},
		},
		timelines: map[int64][]model.RawPost{
			1: timeline(1, 15, 12, 11),
			2: timeline(2, 14, 13),
		},
	}
}

func TestRunColdStartLoadsFullHistory(t *testing.T) {
	f := twoMemberFeed()
	w := &fakeWarehouse{tableExists: false}

	summary, err := newTestPipeline(f, w, 2).Run(context.Background(), testTrigger)
	require.NoError(t, err)

	assert.Equal(t, Summary{Members: 2, Fetched: 5, Posts: 5, Loaded: true}, summary)
	assert.Equal(t, 1, w.loads)
	assert.Equal(t, []int64{15, 12, 11}, w.idsFor(1))
	assert.Equal(t, []int64{14, 13}, w.idsFor(2))
	assert.Nil(t, f.requestsFor(1)[0].SinceID)
	assert.Nil(t, f.requestsFor(2)[0].SinceID)

	for _, row := range w.rows {
		assert.Equal(t, testClock, row.LoadedAt.Time())
	}
}

func TestRunIsIdempotent(t *testing.T) {
	f := twoMemberFeed()
	w := &fakeWarehouse{}
	pipeline := newTestPipeline(f, w, 100)

	_, err := pipeline.Run(context.Background(), testTrigger)
	require.NoError(t, err)
	require.Len(t, w.rows, 5)

	summary, err := pipeline.Run(context.Background(), testTrigger)
	require.NoError(t, err)
	assert.False(t, summary.Loaded)
	assert.Equal(t, 0, summary.Posts)
	assert.Equal(t, 1, w.loads)
	assert.Len(t, w.rows, 5)

	reqs := f.requestsFor(1)
	require.NotNil(t, reqs[len(reqs)-1].SinceID)
	assert.Equal(t, int64(15), *reqs[len(reqs)-1].SinceID)

	// only posts newer than the watermark are loaded
	f.timelines[1] = append(timeline(1, 16), f.timelines[1]...)
	summary, err = pipeline.Run(context.Background(), testTrigger)
	require.NoError(t, err)
	assert.True(t, summary.Loaded)
	assert.Equal(t, 1, summary.Posts)
	assert.Equal(t, []int64{15, 12, 11, 16}, w.idsFor(1))
	assert.Len(t, w.rows, 6)
}

func TestRunColdStartForNewMember(t *testing.T) {
	f := twoMemberFeed()
	w := &fakeWarehouse{tableExists: true, rows: []model.Post{{ID: 12, User: model.Author{ID: 1}}}}

	summary, err := newTestPipeline(f, w, 100).Run(context.Background(), testTrigger)
	require.NoError(t, err)
	assert.Equal(t, 3, summary.Posts)

	require.NotNil(t, f.requestsFor(1)[0].SinceID)
	assert.Equal(t, int64(12), *f.requestsFor(1)[0].SinceID)
	assert.Nil(t, f.requestsFor(2)[0].SinceID)
	assert.Equal(t, []int64{12, 15}, w.idsFor(1))
}

func TestRunWithoutNewPostsSkipsLoad(t *testing.T) {
	f := &fakeFeed{members: []model.ListMember{{UserID: 1, ScreenName: "quiet"}}}
	w := &fakeWarehouse{tableExists: true}

	summary, err := newTestPipeline(f, w, 100).Run(context.Background(), testTrigger)
	require.NoError(t, err)
	assert.Equal(t, Summary{Members: 1}, summary)
	assert.Equal(t, 0, w.loads)
}

func TestRunAbortsOnWatermarkFailure(t *testing.T) {
	f := twoMemberFeed()
	w := &fakeWarehouse{maxIDErr: &warehouse.QueryError{Table: "social.tweets", Err: errors.New("accessDenied")}}

	_, err := newTestPipeline(f, w, 100).Run(context.Background(), testTrigger)

	var queryErr *warehouse.QueryError
	require.ErrorAs(t, err, &queryErr)
	assert.Equal(t, 0, w.loads)
	assert.Empty(t, f.requests)
}

func TestRunIsolatesMemberFetchFailure(t *testing.T) {
	boom := errors.New("over capacity")
	f := twoMemberFeed()
	f.failUsers = map[int64]error{1: boom}
	w := &fakeWarehouse{}

	summary, err := newTestPipeline(f, w, 100).Run(context.Background(), testTrigger)
	require.Error(t, err)

	var memberErr *MemberError
	require.ErrorAs(t, err, &memberErr)
	assert.Equal(t, int64(1), memberErr.UserID)
	assert.ErrorIs(t, err, boom)

	assert.Equal(t, 1, summary.FailedMembers)
	assert.True(t, summary.Loaded)
	assert.Empty(t, w.idsFor(1))
	assert.Equal(t, []int64{14, 13}, w.idsFor(2))
}

func TestRunDiscardsPartialMemberTimeline(t *testing.T) {
	f := twoMemberFeed()
	calls := 0
	failing := pagerFunc(func(ctx context.Context, req feed.PageRequest) ([]model.RawPost, error) {
		calls++
		if req.UserID == 1 && calls > 1 {
			return nil, errors.New("connection reset")
		}
		return f.TimelinePage(ctx, req)
	})

	w := &fakeWarehouse{}
	pipeline := newTestPipeline(f, w, 2)
	pipeline.fetcher = NewTimelineFetcher(failing, 2)

	summary, err := pipeline.Run(context.Background(), testTrigger)
	require.Error(t, err)
	assert.Equal(t, 1, summary.FailedMembers)
	assert.Empty(t, w.idsFor(1))
	assert.Equal(t, []int64{14, 13}, w.idsFor(2))
}

func TestRunSkipsMalformedPosts(t *testing.T) {
	f := twoMemberFeed()
	broken := rawPost(10, 1)
	broken.User = nil
	f.timelines[1] = append(f.timelines[1], broken)
	w := &fakeWarehouse{}

	summary, err := newTestPipeline(f, w, 100).Run(context.Background(), testTrigger)
	require.NoError(t, err)
	assert.Equal(t, 6, summary.Fetched)
	assert.Equal(t, 1, summary.Malformed)
	assert.Equal(t, 5, summary.Posts)
	assert.Equal(t, []int64{15, 12, 11}, w.idsFor(1))
}

func TestRunSurfacesLoadFailure(t *testing.T) {
	f := twoMemberFeed()
	w := &fakeWarehouse{loadErr: errors.New("invalid")}

	summary, err := newTestPipeline(f, w, 100).Run(context.Background(), testTrigger)

	var loadErr *warehouse.LoadError
	require.ErrorAs(t, err, &loadErr)
	assert.False(t, summary.Loaded)
	assert.Equal(t, 5, summary.Posts)
}
