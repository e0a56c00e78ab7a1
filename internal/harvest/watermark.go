package harvest

import (
	"context"
	"errors"

	"ruok-relay-go/internal/warehouse"
)

// MaxIDQuerier looks up the highest post id stored for a user
type MaxIDQuerier interface {
	QueryMaxID(ctx context.Context, table warehouse.TableRef, userID int64) (*int64, error)
}

// WatermarkResolver decides where incremental fetching resumes for a user
type WatermarkResolver struct {
	store MaxIDQuerier
	table warehouse.TableRef
}

// NewWatermarkResolver creates a resolver reading from the posts table
func NewWatermarkResolver(store MaxIDQuerier, table warehouse.TableRef) *WatermarkResolver {
	return &WatermarkResolver{store: store, table: table}
}

// Resolve returns the user's watermark, or nil when there is no prior history.
// A missing posts table counts as no prior history; any other failure is a *warehouse.QueryError.
func (r *WatermarkResolver) Resolve(ctx context.Context, userID int64) (*int64, error) {
	id, err := r.store.QueryMaxID(ctx, r.table, userID)
	if err == nil {
		return id, nil
	}
	if errors.Is(err, warehouse.ErrNotFound) {
		return nil, nil
	}

	var queryErr *warehouse.QueryError
	if errors.As(err, &queryErr) {
		return nil, err
	}
	return nil, &warehouse.QueryError{Table: r.table.String(), Err: err}
}
