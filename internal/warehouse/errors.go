package warehouse

import (
	"errors"
	"fmt"
	"net/http"

	"google.golang.org/api/googleapi"
)

// ErrNotFound is returned when the target table (or its dataset) does not exist
var ErrNotFound = errors.New("table not found")

// QueryError is an unexpected failure of a read query
type QueryError struct {
	Table string
	Err   error
}

func (e *QueryError) Error() string {
	return fmt.Sprintf("query on %s failed: %v", e.Table, e.Err)
}

func (e *QueryError) Unwrap() error { return e.Err }

// LoadError is a bulk load job that could not be submitted or reported errors
type LoadError struct {
	Table string
	Err   error
}

func (e *LoadError) Error() string {
	return fmt.Sprintf("load into %s failed: %v", e.Table, e.Err)
}

func (e *LoadError) Unwrap() error { return e.Err }

// UpdateError is a failed state-transition update
type UpdateError struct {
	Table string
	Err   error
}

func (e *UpdateError) Error() string {
	return fmt.Sprintf("update of %s failed: %v", e.Table, e.Err)
}

func (e *UpdateError) Unwrap() error { return e.Err }

// JobError carries the error result of a finished warehouse job
type JobError struct {
	JobID   string
	Reason  string
	Message string
}

func (e *JobError) Error() string {
	return fmt.Sprintf("job %s: %s: %s", e.JobID, e.Reason, e.Message)
}

// resultsError is a failure while polling a submitted query job. A 404 here names
// the job, not the table, so it is never read as a missing table.
type resultsError struct {
	JobID string
	Err   error
}

func (e *resultsError) Error() string {
	return fmt.Sprintf("failed to fetch results of job %s: %v", e.JobID, e.Err)
}

func (e *resultsError) Unwrap() error { return e.Err }

// IsNotFound reports whether err is a warehouse "notFound" failure on the target table
func IsNotFound(err error) bool {
	if errors.Is(err, ErrNotFound) {
		return true
	}
	var pollErr *resultsError
	if errors.As(err, &pollErr) {
		return false
	}

	var apiErr *googleapi.Error
	if !errors.As(err, &apiErr) {
		return false
	}
	if apiErr.Code == http.StatusNotFound {
		return true
	}
	for _, item := range apiErr.Errors {
		if item.Reason == "notFound" {
			return true
		}
	}
	return false
}

// classifyRead maps a read failure onto ErrNotFound or a QueryError
func classifyRead(table TableRef, err error) error {
	if IsNotFound(err) {
		return fmt.Errorf("%s: %w", table, ErrNotFound)
	}
	return &QueryError{Table: table.String(), Err: err}
}
