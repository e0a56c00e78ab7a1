package action

import (
	"context"
	"errors"

	"ruok-relay-go/internal/warehouse"
)

// FlagUpdater marks pending actions as actioned
type FlagUpdater interface {
	UpdateActionedFlag(ctx context.Context, table warehouse.TableRef, userIDs []int64) error
}

// Committer flips the actioned flag of processed rows in a single statement
type Committer struct {
	updater FlagUpdater
	table   warehouse.TableRef
}

// NewCommitter creates a committer for the pending actions table
func NewCommitter(updater FlagUpdater, table warehouse.TableRef) *Committer {
	return &Committer{updater: updater, table: table}
}

// Commit flags every given user. Nothing is issued for an empty list. Failures are *warehouse.UpdateError.
func (c *Committer) Commit(ctx context.Context, userIDs []int64) error {
	if len(userIDs) == 0 {
		return nil
	}

	err := c.updater.UpdateActionedFlag(ctx, c.table, userIDs)
	if err == nil {
		return nil
	}

	var updateErr *warehouse.UpdateError
	if errors.As(err, &updateErr) {
		return err
	}
	return &warehouse.UpdateError{Table: c.table.String(), Err: err}
}
