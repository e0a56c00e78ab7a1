package warehouse

import (
	"bytes"
	"context"
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2/google"
	bigquery "google.golang.org/api/bigquery/v2"
	"google.golang.org/api/googleapi"
	"google.golang.org/api/option"

	"ruok-relay-go/internal/config"
	"ruok-relay-go/internal/model"
)

const (
	stateDone      = "DONE"
	queryTimeoutMs = 10000
)

// TableRef names a table inside the client's project
type TableRef struct {
	Dataset string
	Table   string
}

func (t TableRef) String() string {
	return t.Dataset + "." + t.Table
}

func (t TableRef) quoted() string {
	return fmt.Sprintf("`%s`.`%s`", t.Dataset, t.Table)
}

// Client is the warehouse storage collaborator backed by the BigQuery REST API
type Client struct {
	service      *bigquery.Service
	projectID    string
	location     string
	pollInterval time.Duration
}

// NewClient creates a warehouse client authorized with the service account credentials file
func NewClient(ctx context.Context, cfg *config.WarehouseConfig) (*Client, error) {
	data, err := os.ReadFile(cfg.CredentialsFile)
	if err != nil {
		return nil, fmt.Errorf("failed to read warehouse credentials: %w", err)
	}

	creds, err := google.CredentialsFromJSON(ctx, data, bigquery.BigqueryScope)
	if err != nil {
		return nil, fmt.Errorf("failed to parse warehouse credentials: %w", err)
	}

	projectID := cfg.ProjectID
	if projectID == "" {
		projectID = creds.ProjectID
	}
	if projectID == "" {
		return nil, fmt.Errorf("warehouse project id is not configured and not present in credentials")
	}

	return newClient(ctx, projectID, cfg.Location, cfg.PollInterval, option.WithTokenSource(creds.TokenSource))
}

func newClient(ctx context.Context, projectID, location string, pollInterval time.Duration, opts ...option.ClientOption) (*Client, error) {
	service, err := bigquery.NewService(ctx, opts...)
	if err != nil {
		return nil, fmt.Errorf("failed to create BigQuery service: %w", err)
	}

	return &Client{
		service:      service,
		projectID:    projectID,
		location:     location,
		pollInterval: pollInterval,
	}, nil
}

// QueryMaxID returns the highest post id stored for the user, or nil when the user has no rows.
// A missing table yields an error wrapping ErrNotFound.
func (c *Client) QueryMaxID(ctx context.Context, table TableRef, userID int64) (*int64, error) {
	sql := fmt.Sprintf("SELECT MAX(id) FROM %s WHERE user.id = @user_id", table.quoted())
	params := []*bigquery.QueryParameter{int64Param("user_id", userID)}

	rows, err := c.query(ctx, sql, params)
	if err != nil {
		return nil, classifyRead(table, err)
	}
	if len(rows) == 0 || len(rows[0].F) == 0 {
		return nil, nil
	}

	value, ok := cellString(rows[0].F[0])
	if !ok {
		return nil, nil
	}
	id, err := strconv.ParseInt(value, 10, 64)
	if err != nil {
		return nil, &QueryError{Table: table.String(), Err: fmt.Errorf("unexpected max id %q: %w", value, err)}
	}
	return &id, nil
}

// QueryPendingActions returns every row of the pending actions table that is not yet actioned
func (c *Client) QueryPendingActions(ctx context.Context, table TableRef) ([]model.PendingAction, error) {
	sql := fmt.Sprintf("SELECT user_id, latest_screen_name, days_since_last_tweet, "+
		"average_daily_activity_baseline, average_daily_activity_recent, actioned "+
		"FROM %s WHERE actioned = false", table.quoted())

	rows, err := c.query(ctx, sql, nil)
	if err != nil {
		return nil, classifyRead(table, err)
	}

	actions := make([]model.PendingAction, 0, len(rows))
	for i, row := range rows {
		action, err := parsePendingAction(row)
		if err != nil {
			return nil, &QueryError{Table: table.String(), Err: fmt.Errorf("row %d: %w", i, err)}
		}
		actions = append(actions, action)
	}
	return actions, nil
}

// BulkLoad appends newline-delimited JSON records to the table in a single load job,
// creating the table from schema when it does not exist
func (c *Client) BulkLoad(ctx context.Context, table TableRef, schema *Schema, records [][]byte) error {
	job := &bigquery.Job{
		JobReference: &bigquery.JobReference{
			ProjectId: c.projectID,
			JobId:     "ruok_load_" + uuid.NewString(),
			Location:  c.location,
		},
		Configuration: &bigquery.JobConfiguration{
			Load: &bigquery.JobConfigurationLoad{
				DestinationTable: &bigquery.TableReference{
					ProjectId: c.projectID,
					DatasetId: table.Dataset,
					TableId:   table.Table,
				},
				SourceFormat:      "NEWLINE_DELIMITED_JSON",
				Schema:            schema,
				CreateDisposition: "CREATE_IF_NEEDED",
				WriteDisposition:  "WRITE_APPEND",
				Autodetect:        false,
			},
		},
	}

	data := bytes.Join(records, []byte("\n"))
	inserted, err := c.service.Jobs.Insert(c.projectID, job).
		Media(bytes.NewReader(data), googleapi.ContentType("application/octet-stream")).
		Context(ctx).
		Do()
	if err != nil {
		return &LoadError{Table: table.String(), Err: fmt.Errorf("failed to submit load job: %w", err)}
	}

	if err := c.waitForJob(ctx, inserted); err != nil {
		return &LoadError{Table: table.String(), Err: err}
	}
	return nil
}

// UpdateActionedFlag sets actioned = true for every given user id in a single statement
func (c *Client) UpdateActionedFlag(ctx context.Context, table TableRef, userIDs []int64) error {
	sql := fmt.Sprintf("UPDATE %s SET actioned = true WHERE user_id IN UNNEST(@user_ids)", table.quoted())

	values := make([]*bigquery.QueryParameterValue, 0, len(userIDs))
	for _, id := range userIDs {
		values = append(values, &bigquery.QueryParameterValue{Value: strconv.FormatInt(id, 10)})
	}
	params := []*bigquery.QueryParameter{{
		Name: "user_ids",
		ParameterType: &bigquery.QueryParameterType{
			Type:      "ARRAY",
			ArrayType: &bigquery.QueryParameterType{Type: "INT64"},
		},
		ParameterValue: &bigquery.QueryParameterValue{ArrayValues: values},
	}}

	if _, err := c.query(ctx, sql, params); err != nil {
		return &UpdateError{Table: table.String(), Err: err}
	}
	return nil
}

// query runs a standard SQL statement and returns all result rows
func (c *Client) query(ctx context.Context, sql string, params []*bigquery.QueryParameter) ([]*bigquery.TableRow, error) {
	req := &bigquery.QueryRequest{
		Query:           sql,
		UseLegacySql:    googleapi.Bool(false),
		Location:        c.location,
		TimeoutMs:       queryTimeoutMs,
		QueryParameters: params,
	}
	if len(params) > 0 {
		req.ParameterMode = "NAMED"
	}

	resp, err := c.service.Jobs.Query(c.projectID, req).Context(ctx).Do()
	if err != nil {
		return nil, err
	}
	if err := firstError(resp.Errors); err != nil {
		return nil, err
	}

	rows := resp.Rows
	complete := resp.JobComplete
	pageToken := resp.PageToken

	for !complete || pageToken != "" {
		if resp.JobReference == nil {
			return nil, fmt.Errorf("query did not complete and returned no job reference")
		}
		if !complete {
			if err := sleep(ctx, c.pollInterval); err != nil {
				return nil, err
			}
		}

		call := c.service.Jobs.GetQueryResults(c.projectID, resp.JobReference.JobId).
			Location(c.location).
			TimeoutMs(queryTimeoutMs).
			Context(ctx)
		if complete {
			call = call.PageToken(pageToken)
		}

		results, err := call.Do()
		if err != nil {
			return nil, &resultsError{JobID: resp.JobReference.JobId, Err: err}
		}
		if err := firstError(results.Errors); err != nil {
			return nil, &resultsError{JobID: resp.JobReference.JobId, Err: err}
		}
		if !results.JobComplete {
			continue
		}
		if !complete {
			rows = nil
			complete = true
		}
		rows = append(rows, results.Rows...)
		pageToken = results.PageToken
	}

	return rows, nil
}

// waitForJob polls a job until it reaches the DONE state and reports its error result
func (c *Client) waitForJob(ctx context.Context, job *bigquery.Job) error {
	if job.JobReference == nil {
		return fmt.Errorf("job submitted without a job reference")
	}
	jobID := job.JobReference.JobId

	for job.Status == nil || job.Status.State != stateDone {
		if err := sleep(ctx, c.pollInterval); err != nil {
			return err
		}

		var err error
		job, err = c.service.Jobs.Get(c.projectID, jobID).Location(c.location).Context(ctx).Do()
		if err != nil {
			return fmt.Errorf("failed to poll job %s: %w", jobID, err)
		}
	}

	if result := job.Status.ErrorResult; result != nil {
		return &JobError{JobID: jobID, Reason: result.Reason, Message: result.Message}
	}
	return nil
}

func firstError(errs []*bigquery.ErrorProto) error {
	if len(errs) == 0 {
		return nil
	}
	return &googleapi.Error{
		Message: errs[0].Message,
		Errors:  []googleapi.ErrorItem{{Reason: errs[0].Reason, Message: errs[0].Message}},
	}
}

func int64Param(name string, value int64) *bigquery.QueryParameter {
	return &bigquery.QueryParameter{
		Name:           name,
		ParameterType:  &bigquery.QueryParameterType{Type: "INT64"},
		ParameterValue: &bigquery.QueryParameterValue{Value: strconv.FormatInt(value, 10)},
	}
}

func cellString(cell *bigquery.TableCell) (string, bool) {
	if cell == nil || cell.V == nil {
		return "", false
	}
	s, ok := cell.V.(string)
	return s, ok
}

func parsePendingAction(row *bigquery.TableRow) (model.PendingAction, error) {
	var action model.PendingAction
	if len(row.F) < 6 {
		return action, fmt.Errorf("expected 6 columns, got %d", len(row.F))
	}

	values := make([]string, 6)
	for i := range values {
		v, ok := cellString(row.F[i])
		if !ok && i == 0 {
			return action, fmt.Errorf("user_id is null")
		}
		values[i] = v
	}

	var err error
	if action.UserID, err = strconv.ParseInt(values[0], 10, 64); err != nil {
		return action, fmt.Errorf("invalid user_id %q: %w", values[0], err)
	}
	action.LatestScreenName = values[1]
	if action.DaysSinceLastPost, err = parseFloat(values[2]); err != nil {
		return action, fmt.Errorf("invalid days_since_last_tweet: %w", err)
	}
	if action.BaselineDailyRate, err = parseFloat(values[3]); err != nil {
		return action, fmt.Errorf("invalid average_daily_activity_baseline: %w", err)
	}
	if action.RecentDailyRate, err = parseFloat(values[4]); err != nil {
		return action, fmt.Errorf("invalid average_daily_activity_recent: %w", err)
	}
	if values[5] != "" {
		if action.Actioned, err = strconv.ParseBool(values[5]); err != nil {
			return action, fmt.Errorf("invalid actioned: %w", err)
		}
	}
	return action, nil
}

func parseFloat(s string) (float64, error) {
	if s == "" {
		return 0, nil
	}
	return strconv.ParseFloat(s, 64)
}

func sleep(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
