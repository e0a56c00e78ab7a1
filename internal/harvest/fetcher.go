package harvest

import (
	"context"
	"iter"

	"ruok-relay-go/internal/feed"
	"ruok-relay-go/internal/model"
)

const (
	DefaultPageSize        = 100
	DefaultMaxPostsPerUser = 500
)

// TimelinePager returns one page of a user's timeline, newest first
type TimelinePager interface {
	TimelinePage(ctx context.Context, page feed.PageRequest) ([]model.RawPost, error)
}

// TimelineFetcher walks a user's timeline backwards page by page
type TimelineFetcher struct {
	pager    TimelinePager
	pageSize int
}

// NewTimelineFetcher creates a fetcher requesting pageSize posts per page
func NewTimelineFetcher(pager TimelinePager, pageSize int) *TimelineFetcher {
	if pageSize <= 0 {
		pageSize = DefaultPageSize
	}
	return &TimelineFetcher{pager: pager, pageSize: pageSize}
}

// Fetch returns the user's posts newer than sinceID (all of them when sinceID is nil), at most limit.
// Pages are requested lazily while the sequence is consumed. A failed page is yielded once as an
// error and ends the sequence. Each call starts again from the newest post.
func (f *TimelineFetcher) Fetch(ctx context.Context, userID int64, sinceID *int64, limit int) iter.Seq2[model.RawPost, error] {
	if limit <= 0 {
		limit = DefaultMaxPostsPerUser
	}

	return func(yield func(model.RawPost, error) bool) {
		var maxID *int64
		yielded := 0

		for yielded < limit {
			page, err := f.pager.TimelinePage(ctx, feed.PageRequest{
				UserID:  userID,
				SinceID: sinceID,
				MaxID:   maxID,
				Count:   min(f.pageSize, limit-yielded),
			})
			if err != nil {
				yield(model.RawPost{}, err)
				return
			}
			if len(page) == 0 {
				return
			}

			var lowest *int64
			for _, raw := range page {
				if raw.ID != nil {
					// already covered by an earlier page
					if maxID != nil && *raw.ID > *maxID {
						continue
					}
					if lowest == nil || *raw.ID < *lowest {
						lowest = raw.ID
					}
				}

				if !yield(raw, nil) {
					return
				}
				yielded++
				if yielded >= limit {
					return
				}
			}

			// a page without new ids cannot move the cursor
			if lowest == nil {
				return
			}
			next := *lowest - 1
			maxID = &next
		}
	}
}
