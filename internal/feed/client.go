package feed

import (
	"context"
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/dghubble/oauth1"
	"github.com/dghubble/sling"
	"github.com/failsafe-go/failsafe-go"
	"github.com/failsafe-go/failsafe-go/retrypolicy"

	"ruok-relay-go/internal/config"
	"ruok-relay-go/internal/model"
)

const (
	maxListPageSize = 5000
	retryBaseDelay  = time.Second
	retryMaxDelay   = 30 * time.Second
)

// APIError is an error payload returned by the feed API
type APIError struct {
	StatusCode int           `json:"-"`
	Errors     []ErrorDetail `json:"errors"`
}

// ErrorDetail is a single entry of an APIError
type ErrorDetail struct {
	Code    int    `json:"code"`
	Message string `json:"message"`
}

func (e *APIError) Error() string {
	if len(e.Errors) == 0 {
		return fmt.Sprintf("feed api returned status %d", e.StatusCode)
	}
	return fmt.Sprintf("feed api returned status %d: %d %s", e.StatusCode, e.Errors[0].Code, e.Errors[0].Message)
}

// PageRequest asks for one page of a user's timeline
type PageRequest struct {
	UserID  int64
	SinceID *int64
	MaxID   *int64
	Count   int
}

type timelineParams struct {
	UserID         int64  `url:"user_id"`
	Count          int    `url:"count"`
	SinceID        *int64 `url:"since_id,omitempty"`
	MaxID          *int64 `url:"max_id,omitempty"`
	IncludeRTs     bool   `url:"include_rts"`
	ExcludeReplies bool   `url:"exclude_replies"`
	TweetMode      string `url:"tweet_mode"`
}

type listMembersParams struct {
	ListID     string `url:"list_id"`
	Count      int    `url:"count"`
	Cursor     int64  `url:"cursor"`
	SkipStatus bool   `url:"skip_status"`
}

type listMembersResponse struct {
	Users      []model.ListMember `json:"users"`
	NextCursor int64              `json:"next_cursor"`
}

type updateParams struct {
	Status string `url:"status"`
}

// Client is the social feed collaborator backed by the v1.1 REST API
type Client struct {
	base     *sling.Sling
	executor failsafe.Executor[*http.Response]
}

// NewClient creates a feed client signing requests with the OAuth1 user context credentials
func NewClient(cfg *config.FeedConfig) *Client {
	oauthConfig := oauth1.NewConfig(cfg.ConsumerKey, cfg.ConsumerSecret)
	token := oauth1.NewToken(cfg.AccessToken, cfg.AccessTokenSecret)
	httpClient := oauthConfig.Client(oauth1.NoContext, token)

	return newClient(httpClient, cfg.BaseURL, cfg.MaxRetries, retryBaseDelay)
}

func newClient(httpClient *http.Client, baseURL string, maxRetries int, baseDelay time.Duration) *Client {
	if !strings.HasSuffix(baseURL, "/") {
		baseURL += "/"
	}
	if maxRetries < 0 {
		maxRetries = 0
	}
	maxDelay := retryMaxDelay
	if maxDelay < baseDelay {
		maxDelay = baseDelay
	}

	policy := retrypolicy.NewBuilder[*http.Response]().
		HandleIf(shouldRetry).
		WithBackoff(baseDelay, maxDelay).
		WithMaxRetries(maxRetries).
		Build()

	return &Client{
		base:     sling.New().Client(httpClient).Base(baseURL),
		executor: failsafe.With(policy),
	}
}

// shouldRetry retries reads on transport errors, rate limits and server errors
func shouldRetry(resp *http.Response, err error) bool {
	if err != nil {
		return true
	}
	if resp == nil {
		return true
	}
	return resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= http.StatusInternalServerError
}

// ListMembers returns up to limit members of the list, following cursors as needed
func (c *Client) ListMembers(ctx context.Context, listID string, limit int) ([]model.ListMember, error) {
	var members []model.ListMember
	cursor := int64(-1)

	for len(members) < limit {
		params := &listMembersParams{
			ListID:     listID,
			Count:      min(limit-len(members), maxListPageSize),
			Cursor:     cursor,
			SkipStatus: true,
		}

		var page listMembersResponse
		if err := c.get(ctx, "lists/members.json", params, &page); err != nil {
			return nil, fmt.Errorf("failed to list members of %s: %w", listID, err)
		}

		members = append(members, page.Users...)
		if page.NextCursor == 0 || len(page.Users) == 0 {
			break
		}
		cursor = page.NextCursor
	}

	if len(members) > limit {
		members = members[:limit]
	}
	return members, nil
}

// TimelinePage fetches one page of a user's timeline, reposts excluded and replies included
func (c *Client) TimelinePage(ctx context.Context, page PageRequest) ([]model.RawPost, error) {
	params := &timelineParams{
		UserID:         page.UserID,
		Count:          page.Count,
		SinceID:        page.SinceID,
		MaxID:          page.MaxID,
		IncludeRTs:     false,
		ExcludeReplies: false,
		TweetMode:      "extended",
	}

	var posts []model.RawPost
	if err := c.get(ctx, "statuses/user_timeline.json", params, &posts); err != nil {
		return nil, fmt.Errorf("failed to fetch timeline of user %d: %w", page.UserID, err)
	}
	return posts, nil
}

// PostMessage publishes a status update. Writes are never retried.
func (c *Client) PostMessage(ctx context.Context, text string) (model.SendResult, error) {
	var result model.SendResult

	req, err := c.base.New().Post("statuses/update.json").BodyForm(&updateParams{Status: text}).Request()
	if err != nil {
		return result, fmt.Errorf("failed to build status update: %w", err)
	}

	apiErr := &APIError{}
	resp, err := c.base.Do(req.WithContext(ctx), &result, apiErr)
	if err != nil {
		return result, fmt.Errorf("failed to post status update: %w", err)
	}
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		apiErr.StatusCode = resp.StatusCode
		return result, apiErr
	}
	return result, nil
}

// get runs an idempotent GET through the retry executor
func (c *Client) get(ctx context.Context, path string, params interface{}, success interface{}) error {
	var apiErr *APIError

	resp, err := c.executor.WithContext(ctx).Get(func() (*http.Response, error) {
		apiErr = &APIError{}
		req, err := c.base.New().Get(path).QueryStruct(params).Request()
		if err != nil {
			return nil, err
		}
		return c.base.Do(req.WithContext(ctx), success, apiErr)
	})

	failed := resp != nil && (resp.StatusCode < 200 || resp.StatusCode > 299)
	if failed {
		apiErr.StatusCode = resp.StatusCode
	}

	if err != nil {
		if failed {
			return fmt.Errorf("%w: %w", err, apiErr)
		}
		return err
	}
	if failed {
		return apiErr
	}
	return nil
}
